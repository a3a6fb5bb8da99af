package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/natep/cinesearch/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MovieFilter is the typed query builder for catalog reads. Each field is an
// optional named constraint; zero values mean "no constraint". The filter is
// translated into store conditions by apply, so callers never assemble ad hoc
// condition maps.
type MovieFilter struct {
	Query      string
	Genre      string
	YearMin    int
	YearMax    int
	RatingMin  float64
	RatingMax  float64
	RuntimeMin int
	RuntimeMax int
	Directors  []string
	Cast       []string
	Countries  []string
}

// apply translates the filter into GORM conditions on tx.
func (f *MovieFilter) apply(tx *gorm.DB) *gorm.DB {
	if f == nil {
		return tx
	}
	if f.Query != "" {
		pattern := "%" + f.Query + "%"
		tx = tx.Where("title LIKE ? OR plot LIKE ?", pattern, pattern)
	}
	if f.Genre != "" {
		tx = tx.Where("genres LIKE ?", jsonMemberPattern(f.Genre))
	}
	if f.YearMin > 0 {
		tx = tx.Where("year >= ?", f.YearMin)
	}
	if f.YearMax > 0 {
		tx = tx.Where("year <= ?", f.YearMax)
	}
	if f.RatingMin > 0 {
		tx = tx.Where("rating >= ?", f.RatingMin)
	}
	if f.RatingMax > 0 {
		tx = tx.Where("rating <= ?", f.RatingMax)
	}
	if f.RuntimeMin > 0 {
		tx = tx.Where("runtime_min >= ?", f.RuntimeMin)
	}
	if f.RuntimeMax > 0 {
		tx = tx.Where("runtime_min <= ?", f.RuntimeMax)
	}
	for _, d := range f.Directors {
		tx = tx.Where("directors LIKE ?", jsonMemberPattern(d))
	}
	for _, c := range f.Cast {
		tx = tx.Where("cast_members LIKE ?", jsonMemberPattern(c))
	}
	for _, c := range f.Countries {
		tx = tx.Where("countries LIKE ?", jsonMemberPattern(c))
	}
	return tx
}

// jsonMemberPattern matches a quoted member inside a JSON-encoded string
// array column.
func jsonMemberPattern(value string) string {
	return fmt.Sprintf("%%%q%%", value)
}

// MovieRepository handles catalog reads. The catalog is read-only from this
// core's perspective; writes happen in the external catalog management path.
type MovieRepository struct {
	db *gorm.DB
}

// NewMovieRepository creates a new MovieRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *MovieRepository: repository instance bound to db.
func NewMovieRepository(db *gorm.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// Upsert creates or replaces a movie row. Used by the catalog seeder.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - movie: movie record to persist.
// Returns:
//   - error: non-nil if the upsert fails.
func (r *MovieRepository) Upsert(ctx context.Context, movie *domain.Movie) error {
	if movie.ID == "" {
		movie.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(movie).Error
}

// GetByID retrieves a movie by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: movie ID.
// Returns:
//   - *domain.Movie: movie record if found.
//   - error: gorm.ErrRecordNotFound when absent; other errors on store failure.
func (r *MovieRepository) GetByID(ctx context.Context, id string) (*domain.Movie, error) {
	var movie domain.Movie
	if err := r.db.WithContext(ctx).First(&movie, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &movie, nil
}

// GetByIDs retrieves movies by a list of IDs.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ids: list of movie IDs.
// Returns:
//   - []domain.Movie: matching movie records.
//   - error: non-nil if the query fails.
func (r *MovieRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Movie, error) {
	if len(ids) == 0 {
		return []domain.Movie{}, nil
	}
	var movies []domain.Movie
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&movies).Error; err != nil {
		return nil, fmt.Errorf("failed to get movies by IDs: %w", err)
	}
	return movies, nil
}

// Search retrieves movies matching the filter with pagination and ordering.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - filter: typed filter constraints; nil means no constraints.
//   - orderBy: SQL order clause; empty means insertion order.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.Movie: matching movie records.
//   - error: non-nil if the query fails.
func (r *MovieRepository) Search(ctx context.Context, filter *MovieFilter, orderBy string, limit, offset int) ([]domain.Movie, error) {
	var movies []domain.Movie
	tx := filter.apply(r.db.WithContext(ctx).Model(&domain.Movie{}))
	if orderBy != "" {
		tx = tx.Order(orderBy)
	}
	if err := tx.Limit(limit).Offset(offset).Find(&movies).Error; err != nil {
		return nil, err
	}
	return movies, nil
}

// Count returns the number of movies matching the filter.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - filter: typed filter constraints; nil means no constraints.
// Returns:
//   - int64: number of matching records.
//   - error: non-nil if the query fails.
func (r *MovieRepository) Count(ctx context.Context, filter *MovieFilter) (int64, error) {
	var count int64
	tx := filter.apply(r.db.WithContext(ctx).Model(&domain.Movie{}))
	if err := tx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListWithEmbeddings retrieves movies that carry an embedding, excluding the
// given IDs. The pull is capped to bound worst-case similarity scans.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - excludeIDs: movie IDs to leave out of the candidate set.
//   - limit: cap on the number of candidates pulled.
// Returns:
//   - []domain.Movie: embedded candidate movies.
//   - error: non-nil if the query fails.
func (r *MovieRepository) ListWithEmbeddings(ctx context.Context, excludeIDs []string, limit int) ([]domain.Movie, error) {
	var movies []domain.Movie
	tx := r.db.WithContext(ctx).Where("embedding IS NOT NULL")
	if len(excludeIDs) > 0 {
		tx = tx.Where("id NOT IN ?", excludeIDs)
	}
	if err := tx.Limit(limit).Find(&movies).Error; err != nil {
		return nil, err
	}
	return movies, nil
}

// TextCandidates retrieves movies matching the query text in any of the
// fields the text ranker scores: title, plot, directors, cast. The pull is
// capped; scoring and ordering happen in the service layer.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - query: raw query text.
//   - limit: cap on the number of candidates pulled.
// Returns:
//   - []domain.Movie: candidate movies with some textual match.
//   - error: non-nil if the query fails.
func (r *MovieRepository) TextCandidates(ctx context.Context, query string, limit int) ([]domain.Movie, error) {
	pattern := "%" + query + "%"
	var movies []domain.Movie
	if err := r.db.WithContext(ctx).
		Where("title LIKE ? OR plot LIKE ? OR directors LIKE ? OR cast_members LIKE ?",
			pattern, pattern, pattern, pattern).
		Limit(limit).
		Find(&movies).Error; err != nil {
		return nil, err
	}
	return movies, nil
}

// ListPopular retrieves "obviously good" titles for cold-start
// recommendations: rating and vote floors, optionally restricted to a
// genre list, ordered rating desc then votes desc.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - minRating: minimum catalog rating.
//   - minVotes: minimum vote count.
//   - genres: preferred genres; empty means no genre restriction.
//   - limit: maximum number of records to return.
// Returns:
//   - []domain.Movie: matching movies ordered by rating desc, votes desc.
//   - error: non-nil if the query fails.
func (r *MovieRepository) ListPopular(ctx context.Context, minRating float64, minVotes int64, genres []string, limit int) ([]domain.Movie, error) {
	var movies []domain.Movie
	tx := r.db.WithContext(ctx).
		Where("rating >= ?", minRating).
		Where("votes >= ?", minVotes)
	if len(genres) > 0 {
		genreTx := r.db.Where("genres LIKE ?", jsonMemberPattern(genres[0]))
		for _, g := range genres[1:] {
			genreTx = genreTx.Or("genres LIKE ?", jsonMemberPattern(g))
		}
		tx = tx.Where(genreTx)
	}
	if err := tx.Order("rating DESC, votes DESC").Limit(limit).Find(&movies).Error; err != nil {
		return nil, err
	}
	return movies, nil
}
