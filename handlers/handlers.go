package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tzekhang/reelrange/lib/catalog"
	"github.com/tzekhang/reelrange/lib/feedback"
	"github.com/tzekhang/reelrange/lib/metrics"
	"github.com/tzekhang/reelrange/lib/recommend"
	"github.com/tzekhang/reelrange/lib/session"
	"github.com/tzekhang/reelrange/lib/stats"
	"github.com/tzekhang/reelrange/lib/validation"
	"github.com/tzekhang/reelrange/models"
)

// Server wires the catalog, recommender, and stores into the JSON API.
type Server struct {
	logger      *slog.Logger
	catalog     *catalog.Catalog
	recommender *recommend.Recommender
	sessions    *session.Store
	feedback    *feedback.Log
	sampleSize  int
	displaySize int
	newRand     func() *rand.Rand
}

// Options carries the presentation knobs and an optional randomness
// source for deterministic sampling in tests.
type Options struct {
	SampleSize  int
	DisplaySize int
	NewRand     func() *rand.Rand
}

func New(logger *slog.Logger, cat *catalog.Catalog, rec *recommend.Recommender, sessions *session.Store, fb *feedback.Log, opts Options) *Server {
	newRand := opts.NewRand
	if newRand == nil {
		newRand = func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		}
	}
	return &Server{
		logger:      logger,
		catalog:     cat,
		recommender: rec,
		sessions:    sessions,
		feedback:    fb,
		sampleSize:  opts.SampleSize,
		displaySize: opts.DisplaySize,
		newRand:     newRand,
	}
}

// Register mounts the API routes.
func (s *Server) Register(r chi.Router) {
	r.Post("/sessions", s.HandleCreateSession)
	r.Get("/sessions/{id}", s.HandleGetSession)
	r.Get("/sessions/{id}/choices", s.HandleChoices)
	r.Post("/sessions/{id}/watched", s.HandleSetWatched)
	r.Post("/sessions/{id}/refresh", s.HandleRefresh)
	r.Post("/sessions/{id}/liked", s.HandleSetLiked)
	r.Get("/precision", s.HandlePrecision)
}

type titlesRequest struct {
	Titles []string `json:"titles" validate:"required,min=1,dive,required"`
}

type sessionResponse struct {
	SessionID string           `json:"session_id"`
	Watched   []string         `json:"watched"`
	Shown     []string         `json:"shown"`
	Liked     []string         `json:"liked"`
	Bound     *recommend.Bound `json:"bound"`
}

type recommendationsResponse struct {
	Recommendations []catalog.Record `json:"recommendations"`
	Bound           *recommend.Bound `json:"bound"`
	Matched         int              `json:"matched"`
	Warning         string           `json:"warning,omitempty"`
}

type likedResponse struct {
	Liked   []string      `json:"liked"`
	Stats   stats.Summary `json:"stats"`
	Warning string        `json:"warning,omitempty"`
}

type precisionResponse struct {
	Precision *float64 `json:"precision"`
	Batches   int64    `json:"batches"`
}

// HandleCreateSession starts a new session.
func (s *Server) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create(r.Context())
	if err != nil {
		s.logger.Error("Failed to create session", slog.Any("error", err))
		validation.WriteError(w, errors.New("failed to create session"), http.StatusInternalServerError)
		return
	}

	metrics.SessionsCreated.Inc()
	validation.WriteJSON(w, sessionView(sess), http.StatusCreated)
}

// HandleGetSession returns the current session state.
func (s *Server) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	validation.WriteJSON(w, sessionView(sess), http.StatusOK)
}

// HandleChoices returns a random catalog subsample to pick watched movies
// from.
func (s *Server) HandleChoices(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.loadSession(w, r); !ok {
		return
	}

	choices := s.catalog.Sample(s.sampleSize, s.newRand())
	validation.WriteJSON(w, map[string]any{"choices": choices}, http.StatusOK)
}

// HandleSetWatched records the watched selection and serves a
// recommendation batch. The first confirmed selection locks the bound;
// later confirmations in the same session reuse it.
func (s *Server) HandleSetWatched(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	var req titlesRequest
	if !s.decode(w, r, &req) {
		return
	}

	truncated, err := s.sessions.SetWatched(r.Context(), sess, req.Titles)
	if err != nil {
		s.logger.Error("Failed to store watched titles", slog.Any("error", err))
		validation.WriteError(w, errors.New("failed to store selection"), http.StatusInternalServerError)
		return
	}

	matches, bound := s.recommender.Batch(sess.WatchedTitles, session.LockedBound(sess))
	shown := recommend.SampleRecords(matches, s.displaySize, s.newRand())

	if err := s.sessions.SetShown(r.Context(), sess, titlesOf(shown), bound); err != nil {
		s.logger.Error("Failed to store recommendations", slog.Any("error", err))
		validation.WriteError(w, errors.New("failed to store recommendations"), http.StatusInternalServerError)
		return
	}

	metrics.BatchesServed.Inc()
	metrics.RecommendationsShown.Add(float64(len(shown)))

	resp := recommendationsResponse{
		Recommendations: shown,
		Bound:           bound,
		Matched:         len(matches),
	}
	if truncated {
		resp.Warning = fmt.Sprintf("selection truncated to %d titles", s.sessions.MaxWatched())
	}
	validation.WriteJSON(w, resp, http.StatusOK)
}

// HandleRefresh redraws the display sample. The locked bound stays in
// force; the query value is the mean attribute of the currently shown
// set, which the locked bound makes irrelevant to the filter itself.
func (s *Server) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	bound := session.LockedBound(sess)
	if bound == nil || len(sess.ShownTitles) == 0 {
		validation.WriteError(w, errors.New("no recommendation batch to refresh"), http.StatusConflict)
		return
	}

	var values []float64
	for _, title := range sess.ShownTitles {
		if rec, ok := s.catalog.Lookup(title); ok {
			values = append(values, rec.Attribute)
		}
	}

	matches, _ := s.recommender.Recommend(stats.Mean(values), bound)
	matches = excludeTitles(matches, sess.WatchedTitles)
	shown := recommend.SampleRecords(matches, s.displaySize, s.newRand())

	if err := s.sessions.SetShown(r.Context(), sess, titlesOf(shown), bound); err != nil {
		s.logger.Error("Failed to store recommendations", slog.Any("error", err))
		validation.WriteError(w, errors.New("failed to store recommendations"), http.StatusInternalServerError)
		return
	}

	metrics.BatchesServed.Inc()
	metrics.RecommendationsShown.Add(float64(len(shown)))

	validation.WriteJSON(w, recommendationsResponse{
		Recommendations: shown,
		Bound:           bound,
		Matched:         len(matches),
	}, http.StatusOK)
}

// HandleSetLiked records liked titles from the shown set, appends a
// feedback entry, and returns descriptive statistics over the liked
// attribute values.
func (s *Server) HandleSetLiked(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	var req titlesRequest
	if !s.decode(w, r, &req) {
		return
	}

	// Only titles that were actually shown count as feedback.
	shown := make(map[string]bool, len(sess.ShownTitles))
	for _, t := range sess.ShownTitles {
		shown[t] = true
	}
	var liked []string
	for _, t := range req.Titles {
		if shown[t] {
			liked = append(liked, t)
		}
	}

	truncated, err := s.sessions.SetLiked(r.Context(), sess, liked)
	if err != nil {
		s.logger.Error("Failed to store liked titles", slog.Any("error", err))
		validation.WriteError(w, errors.New("failed to store selection"), http.StatusInternalServerError)
		return
	}

	entry := &models.FeedbackEntry{
		SessionID:     sess.ID,
		WatchedTitles: sess.WatchedTitles,
		ShownTitles:   sess.ShownTitles,
		LikedTitles:   sess.LikedTitles,
		ShownCount:    len(sess.ShownTitles),
		LikedCount:    len(sess.LikedTitles),
	}
	if err := s.feedback.Append(r.Context(), entry); err != nil {
		s.logger.Error("Failed to append feedback", slog.Any("error", err))
		validation.WriteError(w, errors.New("failed to record feedback"), http.StatusInternalServerError)
		return
	}
	metrics.FeedbackEntries.Inc()

	var values []float64
	for _, title := range sess.LikedTitles {
		if rec, ok := s.catalog.Lookup(title); ok {
			values = append(values, rec.Attribute)
		}
	}

	resp := likedResponse{
		Liked: sess.LikedTitles,
		Stats: stats.Summarize(values),
	}
	if truncated {
		resp.Warning = fmt.Sprintf("selection truncated to %d titles", s.sessions.MaxLiked())
	}
	validation.WriteJSON(w, resp, http.StatusOK)
}

// HandlePrecision reports the aggregate precision metric. Precision is
// null until at least one batch with shown recommendations was logged.
func (s *Server) HandlePrecision(w http.ResponseWriter, r *http.Request) {
	precision, defined, err := s.feedback.Precision(r.Context())
	if err != nil {
		s.logger.Error("Failed to compute precision", slog.Any("error", err))
		validation.WriteError(w, errors.New("failed to compute precision"), http.StatusInternalServerError)
		return
	}

	count, err := s.feedback.Count(r.Context())
	if err != nil {
		s.logger.Error("Failed to count feedback entries", slog.Any("error", err))
		validation.WriteError(w, errors.New("failed to compute precision"), http.StatusInternalServerError)
		return
	}

	resp := precisionResponse{Batches: count}
	if defined {
		resp.Precision = &precision
	}
	validation.WriteJSON(w, resp, http.StatusOK)
}

// loadSession resolves the session from the URL, writing the error
// response itself when the id is malformed or unknown.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	id := chi.URLParam(r, "id")
	if err := validation.ValidateSessionID(id); err != nil {
		validation.WriteError(w, err, http.StatusBadRequest)
		return nil, false
	}

	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			validation.WriteError(w, err, http.StatusNotFound)
		} else {
			s.logger.Error("Failed to load session", slog.String("session_id", id), slog.Any("error", err))
			validation.WriteError(w, errors.New("failed to load session"), http.StatusInternalServerError)
		}
		return nil, false
	}
	return sess, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		validation.WriteError(w, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return false
	}
	if err := validation.Struct(v); err != nil {
		validation.WriteError(w, err, http.StatusBadRequest)
		return false
	}
	return true
}

func sessionView(sess *models.Session) sessionResponse {
	return sessionResponse{
		SessionID: sess.ID,
		Watched:   emptyIfNil(sess.WatchedTitles),
		Shown:     emptyIfNil(sess.ShownTitles),
		Liked:     emptyIfNil(sess.LikedTitles),
		Bound:     session.LockedBound(sess),
	}
}

func titlesOf(records []catalog.Record) []string {
	titles := make([]string, len(records))
	for i, rec := range records {
		titles[i] = rec.Title
	}
	return titles
}

func excludeTitles(records []catalog.Record, titles []string) []catalog.Record {
	drop := make(map[string]bool, len(titles))
	for _, t := range titles {
		drop[t] = true
	}
	var out []catalog.Record
	for _, rec := range records {
		if !drop[rec.Title] {
			out = append(out, rec)
		}
	}
	return out
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
