package models

import (
	"time"
)

// Session is one user's interaction state: the watched titles they picked,
// the recommendations currently shown to them, the bound locked by their
// first confirmation, and the titles they liked from the shown set.
type Session struct {
	ID        string `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	WatchedTitles []string `gorm:"serializer:json"`
	ShownTitles   []string `gorm:"serializer:json"`
	LikedTitles   []string `gorm:"serializer:json"`

	// Locked bound; both nil until the first confirmed selection.
	BoundLower *float64
	BoundUpper *float64
}

// FeedbackEntry is one append-only feedback record for a batch: what was
// watched, what was shown, and what was liked. The counts feed the
// aggregate precision metric.
type FeedbackEntry struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time

	SessionID string `gorm:"index"`

	WatchedTitles []string `gorm:"serializer:json"`
	ShownTitles   []string `gorm:"serializer:json"`
	LikedTitles   []string `gorm:"serializer:json"`

	ShownCount int
	LikedCount int
}
