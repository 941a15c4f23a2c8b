package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tzekhang/reelrange/lib/recommend"
	"github.com/tzekhang/reelrange/models"
)

// ErrNotFound is returned when no session exists for the given id.
var ErrNotFound = errors.New("session not found")

// Store persists per-session state. Each session is owned by one logical
// request at a time; there is no cross-session shared state to coordinate.
type Store struct {
	db         *gorm.DB
	logger     *slog.Logger
	maxWatched int
	maxLiked   int
}

func NewStore(db *gorm.DB, logger *slog.Logger, maxWatched, maxLiked int) *Store {
	return &Store{
		db:         db,
		logger:     logger,
		maxWatched: maxWatched,
		maxLiked:   maxLiked,
	}
}

// MaxWatched returns the configured watched-selection cap.
func (s *Store) MaxWatched() int {
	return s.maxWatched
}

// MaxLiked returns the configured liked-selection cap.
func (s *Store) MaxLiked() int {
	return s.maxLiked
}

// Create starts a new session with a fresh id and no state.
func (s *Store) Create(ctx context.Context) (*models.Session, error) {
	sess := &models.Session{ID: uuid.NewString()}
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.logger.Debug("created session", slog.String("session_id", sess.ID))
	return sess, nil
}

// Get loads a session by id.
func (s *Store) Get(ctx context.Context, id string) (*models.Session, error) {
	var sess models.Session
	if err := s.db.WithContext(ctx).First(&sess, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &sess, nil
}

// SetWatched records the watched titles, silently truncating to the
// configured cap. The returned flag reports whether truncation happened so
// the caller can surface a warning.
func (s *Store) SetWatched(ctx context.Context, sess *models.Session, titles []string) (bool, error) {
	watched, truncated := Truncate(titles, s.maxWatched)
	if truncated {
		s.logger.Debug("truncated watched selection",
			slog.String("session_id", sess.ID),
			slog.Int("requested", len(titles)),
			slog.Int("kept", s.maxWatched))
	}
	sess.WatchedTitles = watched
	return truncated, s.save(ctx, sess)
}

// SetShown records the currently displayed recommendation titles and the
// bound they were filtered under.
func (s *Store) SetShown(ctx context.Context, sess *models.Session, titles []string, bound *recommend.Bound) error {
	sess.ShownTitles = titles
	if bound != nil {
		sess.BoundLower = &bound.Lower
		sess.BoundUpper = &bound.Upper
	}
	return s.save(ctx, sess)
}

// SetLiked records the liked titles, truncating to the configured cap.
func (s *Store) SetLiked(ctx context.Context, sess *models.Session, titles []string) (bool, error) {
	liked, truncated := Truncate(titles, s.maxLiked)
	if truncated {
		s.logger.Debug("truncated liked selection",
			slog.String("session_id", sess.ID),
			slog.Int("requested", len(titles)),
			slog.Int("kept", s.maxLiked))
	}
	sess.LikedTitles = liked
	return truncated, s.save(ctx, sess)
}

func (s *Store) save(ctx context.Context, sess *models.Session) error {
	if err := s.db.WithContext(ctx).Save(sess).Error; err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// LockedBound returns the bound locked by the session's first confirmed
// selection, or nil if none is locked yet.
func LockedBound(sess *models.Session) *recommend.Bound {
	if sess.BoundLower == nil || sess.BoundUpper == nil {
		return nil
	}
	return &recommend.Bound{Lower: *sess.BoundLower, Upper: *sess.BoundUpper}
}

// Truncate keeps at most limit titles, dropping duplicates and empty
// entries first. The second return reports whether any titles beyond the
// cap were dropped.
func Truncate(titles []string, limit int) ([]string, bool) {
	seen := make(map[string]bool, len(titles))
	cleaned := make([]string, 0, len(titles))
	for _, t := range titles {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		cleaned = append(cleaned, t)
	}
	if len(cleaned) <= limit {
		return cleaned, false
	}
	return cleaned[:limit], true
}
