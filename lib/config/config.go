package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix namespaces environment overrides, e.g.
// REELRANGE_CATALOG_PATH -> catalog.path.
const envPrefix = "REELRANGE_"

// defaultConfigPaths lists where config files are searched, first hit wins.
var defaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

// Config is immutable after Load and safe for concurrent reads.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Recommend RecommendConfig `koanf:"recommend"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"gt=0,lte=65535"`
}

// Addr returns the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type CatalogConfig struct {
	// Path to the delimited movie table with a header row.
	Path string `koanf:"path" validate:"required"`
	// Attribute names the numeric column the band filter runs over.
	Attribute string `koanf:"attribute" validate:"oneof=revenue popularity"`
	// SampleSize caps the random catalog subsample offered for selection.
	SampleSize int `koanf:"sample_size" validate:"gt=0"`
}

type RecommendConfig struct {
	// Band multipliers applied to the query value. The shipped variants
	// are 0.70/1.30 (±30%) and 0.85/1.15 (±15%).
	BandLower float64 `koanf:"band_lower" validate:"gt=0,lte=1"`
	BandUpper float64 `koanf:"band_upper" validate:"gte=1"`
	// DisplaySize caps how many matches are sampled for display.
	DisplaySize int `koanf:"display_size" validate:"gt=0"`
	// MaxWatched and MaxLiked cap the selection sizes; overflow is
	// truncated with a warning, never rejected.
	MaxWatched int `koanf:"max_watched" validate:"gt=0"`
	MaxLiked   int `koanf:"max_liked" validate:"gt=0"`
}

type LoggingConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

// SlogLevel maps the configured level onto slog.
func (c LoggingConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Path: "reelrange.db",
		},
		Catalog: CatalogConfig{
			Path:       "dataset/movies.csv",
			Attribute:  "revenue",
			SampleSize: 20,
		},
		Recommend: RecommendConfig{
			BandLower:   0.70,
			BandUpper:   1.30,
			DisplaySize: 10,
			MaxWatched:  5,
			MaxLiked:    5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration in three layers: defaults, an optional
// YAML file, then environment overrides. The result is validated before
// it is returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := configFilePath(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envToKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration against its struct tags plus the
// cross-field band constraint.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Recommend.BandLower > c.Recommend.BandUpper {
		return fmt.Errorf("invalid configuration: band_lower %.2f exceeds band_upper %.2f",
			c.Recommend.BandLower, c.Recommend.BandUpper)
	}
	return nil
}

// envToKey maps REELRANGE_SECTION_SOME_KEY to section.some_key. Sections
// are single words, so only the first underscore becomes a separator.
func envToKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func configFilePath() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range defaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
