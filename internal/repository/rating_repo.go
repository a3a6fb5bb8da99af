package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/natep/cinesearch/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RatingRepository handles rating edge persistence.
type RatingRepository struct {
	db *gorm.DB
}

// NewRatingRepository creates a new RatingRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *RatingRepository: repository instance bound to db.
func NewRatingRepository(db *gorm.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Upsert creates or replaces the rating for (user, movie). Latest write wins.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - rating: rating edge to persist.
// Returns:
//   - error: non-nil if the rating is out of range or the upsert fails.
func (r *RatingRepository) Upsert(ctx context.Context, rating *domain.Rating) error {
	if rating.Rating < domain.RatingMin || rating.Rating > domain.RatingMax {
		return fmt.Errorf("rating %d out of range [%d,%d]", rating.Rating, domain.RatingMin, domain.RatingMax)
	}
	if rating.ID == "" {
		rating.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "movie_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating", "updated_at"}),
	}).Create(rating).Error
}

// ListByUser retrieves all rating edges for a user.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: user whose ratings to load.
// Returns:
//   - []domain.Rating: the user's rating edges.
//   - error: non-nil if the query fails.
func (r *RatingRepository) ListByUser(ctx context.Context, userID string) ([]domain.Rating, error) {
	var ratings []domain.Rating
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&ratings).Error; err != nil {
		return nil, err
	}
	return ratings, nil
}

// ListByMovies retrieves rating edges on any of the given movies from users
// other than excludeUserID. The pull is capped to bound neighbor fan-out.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - movieIDs: movies whose raters to collect.
//   - excludeUserID: user to leave out (the recommendation target).
//   - limit: cap on the number of edges pulled.
// Returns:
//   - []domain.Rating: matching rating edges.
//   - error: non-nil if the query fails.
func (r *RatingRepository) ListByMovies(ctx context.Context, movieIDs []string, excludeUserID string, limit int) ([]domain.Rating, error) {
	if len(movieIDs) == 0 {
		return []domain.Rating{}, nil
	}
	var ratings []domain.Rating
	if err := r.db.WithContext(ctx).
		Where("movie_id IN ?", movieIDs).
		Where("user_id <> ?", excludeUserID).
		Limit(limit).
		Find(&ratings).Error; err != nil {
		return nil, err
	}
	return ratings, nil
}

// ListByUsers retrieves all rating edges belonging to the given users.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userIDs: users whose ratings to load.
// Returns:
//   - []domain.Rating: matching rating edges.
//   - error: non-nil if the query fails.
func (r *RatingRepository) ListByUsers(ctx context.Context, userIDs []string) ([]domain.Rating, error) {
	if len(userIDs) == 0 {
		return []domain.Rating{}, nil
	}
	var ratings []domain.Rating
	if err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&ratings).Error; err != nil {
		return nil, err
	}
	return ratings, nil
}
