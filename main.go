package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tzekhang/reelrange/handlers"
	"github.com/tzekhang/reelrange/lib/catalog"
	"github.com/tzekhang/reelrange/lib/config"
	"github.com/tzekhang/reelrange/lib/db"
	"github.com/tzekhang/reelrange/lib/feedback"
	"github.com/tzekhang/reelrange/lib/health"
	"github.com/tzekhang/reelrange/lib/metrics"
	"github.com/tzekhang/reelrange/lib/recommend"
	"github.com/tzekhang/reelrange/lib/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Logging.SlogLevel(),
	}))
	slog.SetDefault(logger)

	gormDB, err := gorm.Open(sqlite.Open(cfg.Database.Path), &gorm.Config{
		Logger: db.NewGormLogger(logger),
	})
	if err != nil {
		logger.Error("Failed to open database", slog.String("path", cfg.Database.Path), slog.Any("error", err))
		os.Exit(1)
	}

	if err := db.RunMigrations(gormDB, logger); err != nil {
		logger.Error("Failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	cat, err := catalog.Load(cfg.Catalog.Path, cfg.Catalog.Attribute, logger)
	if err != nil {
		logger.Error("Failed to load catalog", slog.String("path", cfg.Catalog.Path), slog.Any("error", err))
		os.Exit(1)
	}

	band := recommend.Band{Lower: cfg.Recommend.BandLower, Upper: cfg.Recommend.BandUpper}
	recommender := recommend.New(cat, band, logger)
	sessions := session.NewStore(gormDB, logger, cfg.Recommend.MaxWatched, cfg.Recommend.MaxLiked)
	feedbackLog := feedback.NewLog(gormDB, logger)

	srv := handlers.New(logger, cat, recommender, sessions, feedbackLog, handlers.Options{
		SampleSize:  cfg.Catalog.SampleSize,
		DisplaySize: cfg.Recommend.DisplaySize,
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", health.Check(gormDB, cat.Len()))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	srv.Register(r)

	addr := cfg.Server.Addr()
	logger.Info("starting server",
		slog.String("addr", addr),
		slog.String("attribute", cfg.Catalog.Attribute),
		slog.Float64("band_lower", band.Lower),
		slog.Float64("band_upper", band.Upper),
		slog.Int("catalog_records", cat.Len()))

	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Error("Server failed", slog.Any("error", err))
		os.Exit(1)
	}
}
