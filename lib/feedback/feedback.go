package feedback

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/tzekhang/reelrange/models"
)

// Log is the append-only feedback record: one entry per batch, capturing
// what was watched, shown, and liked. Entries are never updated or
// deleted; the only read is the aggregate precision metric.
type Log struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewLog(db *gorm.DB, logger *slog.Logger) *Log {
	return &Log{db: db, logger: logger}
}

// Append writes one feedback entry.
func (l *Log) Append(ctx context.Context, entry *models.FeedbackEntry) error {
	if err := l.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append feedback entry: %w", err)
	}
	l.logger.Debug("appended feedback entry",
		slog.String("session_id", entry.SessionID),
		slog.Int("shown", entry.ShownCount),
		slog.Int("liked", entry.LikedCount))
	return nil
}

// Count returns the number of logged entries.
func (l *Log) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := l.db.WithContext(ctx).Model(&models.FeedbackEntry{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count feedback entries: %w", err)
	}
	return count, nil
}

// Precision computes liked ÷ shown across all logged entries. The second
// return is false when no recommendations have been shown yet, in which
// case the metric is undefined and must not be reported.
func (l *Log) Precision(ctx context.Context) (float64, bool, error) {
	var totals struct {
		Shown int64
		Liked int64
	}
	err := l.db.WithContext(ctx).
		Model(&models.FeedbackEntry{}).
		Select("COALESCE(SUM(shown_count), 0) AS shown, COALESCE(SUM(liked_count), 0) AS liked").
		Scan(&totals).Error
	if err != nil {
		return 0, false, fmt.Errorf("failed to aggregate feedback: %w", err)
	}

	if totals.Shown == 0 {
		return 0, false, nil
	}
	return float64(totals.Liked) / float64(totals.Shown), true, nil
}
