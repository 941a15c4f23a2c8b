package recommend

import (
	"log/slog"
	"math/rand"

	"github.com/tzekhang/reelrange/lib/catalog"
)

// Band is the multiplier pair applied to a query value to derive a bound.
// It is fixed at construction time.
type Band struct {
	Lower float64
	Upper float64
}

// The two bands the original variants shipped with.
var (
	// WideBand matches attributes within ±30% of the query value.
	WideBand = Band{Lower: 0.70, Upper: 1.30}
	// NarrowBand matches attributes within ±15% of the query value.
	NarrowBand = Band{Lower: 0.85, Upper: 1.15}
)

// Bound is an inclusive attribute range, either freshly derived from a
// query value or carried forward from an earlier query in the same batch.
type Bound struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Contains reports whether v lies within the bound, inclusive on both ends.
func (b Bound) Contains(v float64) bool {
	return v >= b.Lower && v <= b.Upper
}

// Recommender filters a catalog to records whose attribute falls within a
// band of a query value. Filtering is pure and side-effect free; the
// catalog is immutable after load.
type Recommender struct {
	catalog *catalog.Catalog
	band    Band
	logger  *slog.Logger
}

func New(c *catalog.Catalog, band Band, logger *slog.Logger) *Recommender {
	return &Recommender{
		catalog: c,
		band:    band,
		logger:  logger,
	}
}

// Band returns the multiplier pair this recommender was built with.
func (r *Recommender) Band() Band {
	return r.band
}

// Recommend returns every catalog record whose attribute falls within the
// bound, plus the bound actually used. When locked is nil the bound is
// derived from the query value and the recommender's band; otherwise the
// locked bound is used verbatim and the query value is ignored. An empty
// match set is valid output, not an error.
func (r *Recommender) Recommend(query float64, locked *Bound) ([]catalog.Record, Bound) {
	var bound Bound
	if locked != nil {
		bound = *locked
	} else {
		bound = Bound{Lower: query * r.band.Lower, Upper: query * r.band.Upper}
	}

	var matches []catalog.Record
	for _, rec := range r.catalog.Records() {
		if bound.Contains(rec.Attribute) {
			matches = append(matches, rec)
		}
	}
	return matches, bound
}

// Batch runs one Recommend call per title. When no bound is locked, the
// first title found in the catalog establishes it and every later call
// reuses it. Each reference title is excluded from its own match set, and
// the results are unioned and deduplicated by title in first-seen order.
// Titles absent from the catalog are skipped. The returned bound is nil
// only if no title resolved and no bound was passed in.
func (r *Recommender) Batch(titles []string, locked *Bound) ([]catalog.Record, *Bound) {
	used := locked
	seen := make(map[string]bool, len(titles))
	var union []catalog.Record

	for _, title := range titles {
		rec, ok := r.catalog.Lookup(title)
		if !ok {
			r.logger.Debug("skipping title not in catalog", slog.String("title", title))
			continue
		}

		matches, bound := r.Recommend(rec.Attribute, used)
		if used == nil {
			b := bound
			used = &b
		}

		for _, m := range matches {
			if m.Title == title || seen[m.Title] {
				continue
			}
			seen[m.Title] = true
			union = append(union, m)
		}
	}

	return union, used
}

// SampleRecords draws a uniform random subsample of up to n records
// without replacement. The randomness source is injected so display
// sampling stays testable.
func SampleRecords(records []catalog.Record, n int, rng *rand.Rand) []catalog.Record {
	if n >= len(records) {
		out := make([]catalog.Record, len(records))
		copy(out, records)
		return out
	}
	out := make([]catalog.Record, 0, n)
	for _, i := range rng.Perm(len(records))[:n] {
		out = append(out, records[i])
	}
	return out
}
