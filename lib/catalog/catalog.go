package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
)

// ErrMissingColumn is returned when the source file lacks a required column.
var ErrMissingColumn = errors.New("required column missing")

// Record is one cleaned catalog row: a title and its numeric attribute
// (revenue or popularity, depending on how the catalog was loaded).
type Record struct {
	Title     string  `json:"title"`
	Attribute float64 `json:"attribute"`
}

// Catalog is an immutable, ordered collection of cleaned records. Every
// record has a non-empty title and a positive attribute.
type Catalog struct {
	attribute string
	records   []Record
	byTitle   map[string]int
}

// New builds a catalog from already-cleaned records. Titles are not
// guaranteed unique; Lookup resolves to the first occurrence.
func New(attribute string, records []Record) *Catalog {
	byTitle := make(map[string]int, len(records))
	for i, rec := range records {
		if _, ok := byTitle[rec.Title]; !ok {
			byTitle[rec.Title] = i
		}
	}
	return &Catalog{
		attribute: attribute,
		records:   records,
		byTitle:   byTitle,
	}
}

// Load reads a delimited text file with a header row and returns a cleaned
// catalog. The file must contain a "title" column and the named attribute
// column; a missing column fails fast with ErrMissingColumn. Rows with an
// empty title, an unparsable attribute, or an attribute <= 0 are dropped
// silently.
func Load(path, attribute string, logger *slog.Logger) (*Catalog, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from validated config
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Error("failed to close catalog file", slog.String("path", path), slog.Any("error", err))
		}
	}()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog header: %w", err)
	}

	titleIdx, attrIdx := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "title":
			if titleIdx == -1 {
				titleIdx = i
			}
		case attribute:
			if attrIdx == -1 {
				attrIdx = i
			}
		}
	}
	if titleIdx == -1 {
		return nil, fmt.Errorf("%w: title", ErrMissingColumn)
	}
	if attrIdx == -1 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, attribute)
	}

	var records []Record
	dropped := 0
	for {
		row, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read catalog row: %w", err)
		}
		if titleIdx >= len(row) || attrIdx >= len(row) {
			dropped++
			continue
		}
		title := strings.TrimSpace(row[titleIdx])
		if title == "" {
			dropped++
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(row[attrIdx]), 64)
		if err != nil || value <= 0 {
			dropped++
			continue
		}
		records = append(records, Record{Title: title, Attribute: value})
	}

	logger.Info("loaded catalog",
		slog.String("path", path),
		slog.String("attribute", attribute),
		slog.Int("records", len(records)),
		slog.Int("dropped", dropped))

	return New(attribute, records), nil
}

// Attribute returns the name of the attribute column this catalog was
// loaded with.
func (c *Catalog) Attribute() string {
	return c.attribute
}

// Len returns the number of records in the catalog.
func (c *Catalog) Len() int {
	return len(c.records)
}

// Records returns the catalog rows in load order. Callers must not modify
// the returned slice.
func (c *Catalog) Records() []Record {
	return c.records
}

// Lookup returns the first record with the given title.
func (c *Catalog) Lookup(title string) (Record, bool) {
	i, ok := c.byTitle[title]
	if !ok {
		return Record{}, false
	}
	return c.records[i], true
}

// Sample returns a uniform random subsample of up to n records without
// replacement. The randomness source is injected so callers can make
// sampling deterministic in tests.
func (c *Catalog) Sample(n int, rng *rand.Rand) []Record {
	if n >= len(c.records) {
		out := make([]Record, len(c.records))
		copy(out, c.records)
		return out
	}
	out := make([]Record, 0, n)
	for _, i := range rng.Perm(len(c.records))[:n] {
		out = append(out, c.records[i])
	}
	return out
}
