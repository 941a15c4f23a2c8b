package catalog

import (
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeCatalogFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "movies.csv")
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("failed to write catalog file: %v", err)
	}
	return path
}

func TestLoadCleansRows(t *testing.T) {
	path := writeCatalogFile(t, `title,revenue,year
Inception,825000000,2010
,100,1999
No Revenue,,2001
Zero,0,2002
Negative,-5,2003
Not A Number,abc,2004
Cheap Gem,42.5,2005
`)

	c, err := Load(path, "revenue", testLogger())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (invalid rows must be dropped)", c.Len())
	}
	for _, rec := range c.Records() {
		if rec.Title == "" {
			t.Error("record with empty title survived cleaning")
		}
		if rec.Attribute <= 0 {
			t.Errorf("record %q has attribute %v, want > 0", rec.Title, rec.Attribute)
		}
	}

	rec, ok := c.Lookup("Cheap Gem")
	if !ok {
		t.Fatal("Lookup(Cheap Gem) not found")
	}
	if rec.Attribute != 42.5 {
		t.Errorf("attribute = %v, want 42.5", rec.Attribute)
	}
}

func TestLoadMissingAttributeColumn(t *testing.T) {
	path := writeCatalogFile(t, "title,year\nInception,2010\n")

	_, err := Load(path, "revenue", testLogger())
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("err = %v, want ErrMissingColumn", err)
	}
}

func TestLoadMissingTitleColumn(t *testing.T) {
	path := writeCatalogFile(t, "name,popularity\nInception,9.5\n")

	_, err := Load(path, "popularity", testLogger())
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("err = %v, want ErrMissingColumn", err)
	}
}

func TestLoadPopularityAttribute(t *testing.T) {
	path := writeCatalogFile(t, "title,popularity\nInception,9.5\nDud,0\n")

	c, err := Load(path, "popularity", testLogger())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Attribute() != "popularity" {
		t.Errorf("Attribute = %q, want popularity", c.Attribute())
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestLookupFirstOccurrenceWins(t *testing.T) {
	c := New("revenue", []Record{
		{Title: "Twin", Attribute: 10},
		{Title: "Twin", Attribute: 20},
	})

	rec, ok := c.Lookup("Twin")
	if !ok || rec.Attribute != 10 {
		t.Errorf("Lookup(Twin) = (%v, %v), want first occurrence (10)", rec, ok)
	}
}

func TestSample(t *testing.T) {
	c := New("revenue", []Record{
		{Title: "A", Attribute: 1},
		{Title: "B", Attribute: 2},
		{Title: "C", Attribute: 3},
	})
	rng := rand.New(rand.NewSource(1))

	sample := c.Sample(2, rng)
	if len(sample) != 2 {
		t.Fatalf("len(sample) = %d, want 2", len(sample))
	}

	// Asking for more than the catalog holds returns everything.
	all := c.Sample(10, rng)
	if len(all) != 3 {
		t.Errorf("len(sample) = %d, want 3", len(all))
	}
}
