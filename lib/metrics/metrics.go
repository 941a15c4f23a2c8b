package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SessionsCreated counts sessions started over the service lifetime.
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelrange_sessions_created_total",
		Help: "Number of sessions created.",
	})

	// BatchesServed counts recommendation batches computed.
	BatchesServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelrange_recommendation_batches_total",
		Help: "Number of recommendation batches served.",
	})

	// RecommendationsShown counts individual titles shown to users.
	RecommendationsShown = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelrange_recommendations_shown_total",
		Help: "Number of recommendation titles shown.",
	})

	// FeedbackEntries counts appended feedback log entries.
	FeedbackEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelrange_feedback_entries_total",
		Help: "Number of feedback entries logged.",
	})
)

// Handler exposes the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
