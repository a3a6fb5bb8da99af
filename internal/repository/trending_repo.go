package repository

import (
	"context"

	"github.com/natep/cinesearch/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TrendingRepository handles derived trending score rows.
type TrendingRepository struct {
	db *gorm.DB
}

// NewTrendingRepository creates a new TrendingRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *TrendingRepository: repository instance bound to db.
func NewTrendingRepository(db *gorm.DB) *TrendingRepository {
	return &TrendingRepository{db: db}
}

// Upsert creates or replaces the trending score row for a movie. The write
// is a single-row statement, so concurrent readers never observe a torn row.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - score: trending score row to persist.
// Returns:
//   - error: non-nil if the upsert fails.
func (r *TrendingRepository) Upsert(ctx context.Context, score *domain.TrendingScore) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "movie_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"weekly_views", "score", "updated_at"}),
	}).Create(score).Error
}

// ListTop retrieves the highest-scored trending rows.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of rows to return.
// Returns:
//   - []domain.TrendingScore: rows ordered by score desc.
//   - error: non-nil if the query fails.
func (r *TrendingRepository) ListTop(ctx context.Context, limit int) ([]domain.TrendingScore, error) {
	var scores []domain.TrendingScore
	if err := r.db.WithContext(ctx).
		Order("score DESC").
		Limit(limit).
		Find(&scores).Error; err != nil {
		return nil, err
	}
	return scores, nil
}
