package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/natep/cinesearch/internal/domain"
	"gorm.io/gorm"
)

// ViewingRepository handles the append-only viewing event log.
type ViewingRepository struct {
	db *gorm.DB
}

// NewViewingRepository creates a new ViewingRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ViewingRepository: repository instance bound to db.
func NewViewingRepository(db *gorm.DB) *ViewingRepository {
	return &ViewingRepository{db: db}
}

// Create appends a viewing event.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - event: viewing event to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *ViewingRepository) Create(ctx context.Context, event *domain.ViewingEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

// ViewCount is a per-movie aggregate of viewing events.
type ViewCount struct {
	MovieID string
	Views   int64
}

// CountByMovieSince aggregates view counts per movie for events newer than
// the cutoff. Movies with zero events in the window do not appear.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - since: lower bound (exclusive of older events) on event time.
// Returns:
//   - []ViewCount: per-movie counts.
//   - error: non-nil if the aggregate fails.
func (r *ViewingRepository) CountByMovieSince(ctx context.Context, since time.Time) ([]ViewCount, error) {
	var counts []ViewCount
	if err := r.db.WithContext(ctx).
		Model(&domain.ViewingEvent{}).
		Select("movie_id, COUNT(*) as views").
		Where("created_at >= ?", since).
		Group("movie_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	return counts, nil
}
