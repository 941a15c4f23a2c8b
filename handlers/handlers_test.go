package handlers

import (
	"bytes"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tzekhang/reelrange/lib/catalog"
	"github.com/tzekhang/reelrange/lib/feedback"
	"github.com/tzekhang/reelrange/lib/recommend"
	"github.com/tzekhang/reelrange/lib/session"
	"github.com/tzekhang/reelrange/models"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := gormDB.AutoMigrate(&models.Session{}, &models.FeedbackEntry{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat := catalog.New("revenue", []catalog.Record{
		{Title: "A", Attribute: 100},
		{Title: "B", Attribute: 110},
		{Title: "C", Attribute: 115},
		{Title: "D", Attribute: 200},
		{Title: "E", Attribute: 112},
	})
	rec := recommend.New(cat, recommend.NarrowBand, logger)
	sessions := session.NewStore(gormDB, logger, 5, 5)
	fb := feedback.NewLog(gormDB, logger)

	srv := New(logger, cat, rec, sessions, fb, Options{
		SampleSize:  20,
		DisplaySize: 10,
		NewRand: func() *rand.Rand {
			return rand.New(rand.NewSource(42))
		},
	})

	r := chi.NewRouter()
	srv.Register(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.Errorf("failed to close response body: %v", err)
		}
	}()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func createSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp := postJSON(t, ts.URL+"/sessions", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d, want 201", resp.StatusCode)
	}
	var body sessionResponse
	decodeBody(t, resp, &body)
	if body.SessionID == "" {
		t.Fatal("create session returned empty id")
	}
	return body.SessionID
}

func TestSessionFlow(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)

	// Catalog choices for the selection screen.
	resp, err := http.Get(ts.URL + "/sessions/" + id + "/choices")
	if err != nil {
		t.Fatalf("GET choices failed: %v", err)
	}
	var choices struct {
		Choices []catalog.Record `json:"choices"`
	}
	decodeBody(t, resp, &choices)
	if len(choices.Choices) != 5 {
		t.Errorf("len(choices) = %d, want full catalog of 5", len(choices.Choices))
	}

	// Confirming A (100) with the ±15% band locks (85, 115).
	resp = postJSON(t, ts.URL+"/sessions/"+id+"/watched", map[string]any{"titles": []string{"A"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("watched status = %d, want 200", resp.StatusCode)
	}
	var recs recommendationsResponse
	decodeBody(t, resp, &recs)

	if recs.Bound == nil || recs.Bound.Lower != 85 || recs.Bound.Upper != 115 {
		t.Fatalf("bound = %v, want (85, 115)", recs.Bound)
	}
	if recs.Matched != 3 {
		t.Errorf("matched = %d, want 3 (B, C, E)", recs.Matched)
	}
	for _, r := range recs.Recommendations {
		if r.Title == "A" {
			t.Error("reference title A appeared in its own recommendations")
		}
		if r.Attribute < 85 || r.Attribute > 115 {
			t.Errorf("recommendation %q attribute %v outside bound", r.Title, r.Attribute)
		}
	}

	// A second confirmation reuses the locked bound: D (200) would derive
	// (170, 230) but must still be filtered under (85, 115).
	resp = postJSON(t, ts.URL+"/sessions/"+id+"/watched", map[string]any{"titles": []string{"D"}})
	decodeBody(t, resp, &recs)
	if recs.Bound == nil || recs.Bound.Lower != 85 || recs.Bound.Upper != 115 {
		t.Fatalf("bound after second confirmation = %v, want locked (85, 115)", recs.Bound)
	}

	// Refresh redraws under the same bound.
	resp = postJSON(t, ts.URL+"/sessions/"+id+"/refresh", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d, want 200", resp.StatusCode)
	}
	decodeBody(t, resp, &recs)
	if recs.Bound == nil || recs.Bound.Lower != 85 {
		t.Errorf("refresh bound = %v, want locked (85, 115)", recs.Bound)
	}
	if len(recs.Recommendations) == 0 {
		t.Fatal("refresh returned no recommendations")
	}

	// Liking a shown title logs feedback and returns stats.
	liked := recs.Recommendations[0].Title
	resp = postJSON(t, ts.URL+"/sessions/"+id+"/liked", map[string]any{"titles": []string{liked, "not-shown"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("liked status = %d, want 200", resp.StatusCode)
	}
	var likedResp likedResponse
	decodeBody(t, resp, &likedResp)
	if len(likedResp.Liked) != 1 || likedResp.Liked[0] != liked {
		t.Errorf("liked = %v, want [%q] (titles outside the shown set dropped)", likedResp.Liked, liked)
	}
	if likedResp.Stats.Count != 1 {
		t.Errorf("stats count = %d, want 1", likedResp.Stats.Count)
	}

	// Precision is defined after one logged batch.
	resp, err = http.Get(ts.URL + "/precision")
	if err != nil {
		t.Fatalf("GET precision failed: %v", err)
	}
	var prec precisionResponse
	decodeBody(t, resp, &prec)
	if prec.Precision == nil {
		t.Fatal("precision = null after a logged batch")
	}
	if prec.Batches != 1 {
		t.Errorf("batches = %d, want 1", prec.Batches)
	}
}

func TestWatchedTruncatesSelection(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)

	resp := postJSON(t, ts.URL+"/sessions/"+id+"/watched", map[string]any{
		"titles": []string{"A", "B", "C", "D", "E", "A2", "A3"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("watched status = %d, want 200", resp.StatusCode)
	}
	var recs recommendationsResponse
	decodeBody(t, resp, &recs)
	if recs.Warning == "" {
		t.Error("warning missing for selection above the cap")
	}
}

func TestRefreshWithoutBatch(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)

	resp := postJSON(t, ts.URL+"/sessions/"+id+"/refresh", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("refresh status = %d, want 409 before any confirmation", resp.StatusCode)
	}
	if err := resp.Body.Close(); err != nil {
		t.Errorf("failed to close response body: %v", err)
	}
}

func TestUnknownSession(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/sessions/1b4e28ba-2fa1-11d2-883f-0016d3cca427")
	if err != nil {
		t.Fatalf("GET session failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if err := resp.Body.Close(); err != nil {
		t.Errorf("failed to close response body: %v", err)
	}
}

func TestMalformedSessionID(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/sessions/not-a-uuid")
	if err != nil {
		t.Fatalf("GET session failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if err := resp.Body.Close(); err != nil {
		t.Errorf("failed to close response body: %v", err)
	}
}

func TestWatchedRejectsEmptySelection(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)

	resp := postJSON(t, ts.URL+"/sessions/"+id+"/watched", map[string]any{"titles": []string{}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for empty selection", resp.StatusCode)
	}
	if err := resp.Body.Close(); err != nil {
		t.Errorf("failed to close response body: %v", err)
	}
}
