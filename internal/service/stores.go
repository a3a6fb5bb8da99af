package service

import (
	"context"
	"time"

	"github.com/natep/cinesearch/internal/domain"
	"github.com/natep/cinesearch/internal/repository"
)

// Store interfaces consumed by the services. The GORM repositories satisfy
// them; tests use in-memory fakes. Defined here, on the consumer side, so
// the services state exactly what they read and write.

// CatalogStore reads catalog titles and their embeddings.
type CatalogStore interface {
	GetByID(ctx context.Context, id string) (*domain.Movie, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Movie, error)
	Search(ctx context.Context, filter *repository.MovieFilter, orderBy string, limit, offset int) ([]domain.Movie, error)
	Count(ctx context.Context, filter *repository.MovieFilter) (int64, error)
	TextCandidates(ctx context.Context, query string, limit int) ([]domain.Movie, error)
	ListWithEmbeddings(ctx context.Context, excludeIDs []string, limit int) ([]domain.Movie, error)
	ListPopular(ctx context.Context, minRating float64, minVotes int64, genres []string, limit int) ([]domain.Movie, error)
}

// RatingStore reads rating edges.
type RatingStore interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Rating, error)
	ListByMovies(ctx context.Context, movieIDs []string, excludeUserID string, limit int) ([]domain.Rating, error)
	ListByUsers(ctx context.Context, userIDs []string) ([]domain.Rating, error)
}

// ViewingStore appends to and aggregates the viewing event log.
type ViewingStore interface {
	Create(ctx context.Context, event *domain.ViewingEvent) error
	CountByMovieSince(ctx context.Context, since time.Time) ([]repository.ViewCount, error)
}

// TrendingStore reads and upserts derived trending rows.
type TrendingStore interface {
	Upsert(ctx context.Context, score *domain.TrendingScore) error
	ListTop(ctx context.Context, limit int) ([]domain.TrendingScore, error)
}

// UserStore reads the user profile slice the recommenders need.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// QueryLogStore appends write-only search audit records.
type QueryLogStore interface {
	Create(ctx context.Context, record *domain.QueryLog) error
}
