package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/natep/cinesearch/internal/domain"
	"github.com/natep/cinesearch/internal/logger"
	"github.com/natep/cinesearch/internal/storage"
	"github.com/natep/cinesearch/internal/vector"
)

// Recommendation source labels reported to clients.
const (
	SourceContentBased  = "personalized_content_based"
	SourceColdStart     = "cold_start_popular"
	SourceCollaborative = "collaborative_filtering"
	SourceSimilar       = "similar_content_based"
)

// ErrNoEmbedding marks a similarity target that exists but carries no
// embedding vector. Distinct from an empty result list.
var ErrNoEmbedding = errors.New("movie has no embedding")

// RecommendConfig holds configuration for the recommendation service.
type RecommendConfig struct {
	NeighborThreshold  int     // min shared rated movies to count as a neighbor
	NeighborCap        int     // cap on neighbor ratings pulled per request
	CandidateCap       int     // cap on embedded candidates per request
	ColdStartMinRating float64 // popularity floor for cold start picks
	ColdStartMinVotes  int64
}

// RecommendationService produces personalized movie recommendations from
// rating history, falling back to popular titles for new users.
type RecommendationService struct {
	movies  CatalogStore
	ratings RatingStore
	users   UserStore
	storage storage.ObjectStorage
	logger  *logger.Logger
	cfg     RecommendConfig
}

// NewRecommendationService creates a new recommendation service.
// Parameters:
//   - movies: catalog store.
//   - ratings: rating store.
//   - users: user store for cold start genre preferences; may be nil.
//   - posterStorage: object storage for poster URLs; nil disables enrichment.
//   - log: logger instance.
//   - cfg: recommendation configuration settings.
// Returns:
//   - *RecommendationService: initialized recommendation service.
func NewRecommendationService(
	movies CatalogStore,
	ratings RatingStore,
	users UserStore,
	posterStorage storage.ObjectStorage,
	log *logger.Logger,
	cfg RecommendConfig,
) *RecommendationService {
	if cfg.NeighborThreshold <= 0 {
		cfg.NeighborThreshold = 3
	}
	if cfg.NeighborCap <= 0 {
		cfg.NeighborCap = 200
	}
	if cfg.CandidateCap <= 0 {
		cfg.CandidateCap = 500
	}
	return &RecommendationService{
		movies:  movies,
		ratings: ratings,
		users:   users,
		storage: posterStorage,
		logger:  log,
		cfg:     cfg,
	}
}

// Recommendation is a single recommended movie with its score and origin.
type Recommendation struct {
	MovieResult
	Score            float64 `json:"score"`
	RecommenderCount int     `json:"recommender_count,omitempty"`
}

// RecommendationResponse represents a recommendation list with its source.
type RecommendationResponse struct {
	Recommendations []Recommendation `json:"recommendations"`
	Source          string           `json:"source"`
	UserID          string           `json:"user_id,omitempty"`
	Total           int              `json:"total"`
}

// ForUser recommends movies similar to the ones the user liked. Users with
// no liked ratings get popular titles instead, biased toward their
// preferred genres when a profile exists.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: user to recommend for.
//   - limit: max recommendations to return.
// Returns:
//   - *RecommendationResponse: ranked recommendations with their source.
//   - error: non-nil if recommendation fails.
func (r *RecommendationService) ForUser(ctx context.Context, userID string, limit int) (*RecommendationResponse, error) {
	limit = normalizeLimit(limit)

	userRatings, err := r.ratings.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user ratings: %w", err)
	}

	liked := likedMovieIDs(userRatings)
	if len(liked) == 0 {
		return r.coldStart(ctx, userID, limit)
	}

	likedMovies, err := r.movies.GetByIDs(ctx, liked)
	if err != nil {
		return nil, fmt.Errorf("failed to load liked movies: %w", err)
	}

	likedVectors := make([][]float64, 0, len(likedMovies))
	for i := range likedMovies {
		if likedMovies[i].HasEmbedding() {
			likedVectors = append(likedVectors, likedMovies[i].Embedding)
		}
	}
	if len(likedVectors) == 0 {
		logger.CtxDebug(ctx, "No embedded liked movies for user %s, falling back to popular", userID)
		return r.coldStart(ctx, userID, limit)
	}

	// Candidates are every embedded title outside the liked set. A liked
	// movie never comes back; a disliked one may, if its content is close
	// enough to the taste profile.
	candidates, err := r.movies.ListWithEmbeddings(ctx, liked, r.cfg.CandidateCap)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	recs := make([]Recommendation, 0, len(candidates))
	for i := range candidates {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		recs = append(recs, Recommendation{
			MovieResult: newMovieResult(&candidates[i], r.storage),
			Score:       meanSimilarity(candidates[i].Embedding, likedVectors),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Score > recs[j].Score
	})
	if len(recs) > limit {
		recs = recs[:limit]
	}

	return &RecommendationResponse{
		Recommendations: recs,
		Source:          SourceContentBased,
		UserID:          userID,
		Total:           len(recs),
	}, nil
}

// Similar recommends movies whose embeddings are closest to a given title.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - movieID: reference movie.
//   - limit: max recommendations to return.
// Returns:
//   - *RecommendationResponse: ranked similar titles.
//   - error: gorm.ErrRecordNotFound when the movie is absent; ErrNoEmbedding
//     when it exists but cannot anchor a similarity scan.
func (r *RecommendationService) Similar(ctx context.Context, movieID string, limit int) (*RecommendationResponse, error) {
	limit = normalizeLimit(limit)

	anchor, err := r.movies.GetByID(ctx, movieID)
	if err != nil {
		return nil, err
	}
	if !anchor.HasEmbedding() {
		return nil, ErrNoEmbedding
	}

	candidates, err := r.movies.ListWithEmbeddings(ctx, []string{movieID}, r.cfg.CandidateCap)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	recs := make([]Recommendation, 0, len(candidates))
	for i := range candidates {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		recs = append(recs, Recommendation{
			MovieResult: newMovieResult(&candidates[i], r.storage),
			Score:       vector.Cosine(anchor.Embedding, candidates[i].Embedding),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Score > recs[j].Score
	})
	if len(recs) > limit {
		recs = recs[:limit]
	}

	return &RecommendationResponse{
		Recommendations: recs,
		Source:          SourceSimilar,
		Total:           len(recs),
	}, nil
}

// meanSimilarity averages the cosine similarity of a candidate against
// every liked vector. The taste profile is the full set of liked vectors,
// not a single centroid, so one outlier like does not dominate.
func meanSimilarity(candidate []float64, liked [][]float64) float64 {
	var sum float64
	for _, lv := range liked {
		sum += vector.Cosine(candidate, lv)
	}
	return sum / float64(len(liked))
}

// coldStart recommends broadly popular titles for users without usable
// rating history. When a profile with preferred genres exists the picks are
// restricted to those genres; a missing profile is not an error.
func (r *RecommendationService) coldStart(ctx context.Context, userID string, limit int) (*RecommendationResponse, error) {
	var genres []string
	if r.users != nil {
		user, err := r.users.GetByID(ctx, userID)
		switch {
		case err == nil && user != nil:
			genres = user.PreferredGenres
		case errors.Is(err, gorm.ErrRecordNotFound):
			// unknown users still get popular picks
		case err != nil:
			return nil, fmt.Errorf("failed to load user profile: %w", err)
		}
	}

	popular, err := r.movies.ListPopular(ctx, r.cfg.ColdStartMinRating, r.cfg.ColdStartMinVotes, genres, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load popular movies: %w", err)
	}
	if len(popular) == 0 && len(genres) > 0 {
		// Narrow genre preferences can filter out everything; retry broad.
		popular, err = r.movies.ListPopular(ctx, r.cfg.ColdStartMinRating, r.cfg.ColdStartMinVotes, nil, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to load popular movies: %w", err)
		}
	}

	recs := make([]Recommendation, 0, len(popular))
	for i := range popular {
		var score float64
		if popular[i].Rating != nil {
			score = *popular[i].Rating / 10
		}
		recs = append(recs, Recommendation{
			MovieResult: newMovieResult(&popular[i], r.storage),
			Score:       score,
		})
	}

	return &RecommendationResponse{
		Recommendations: recs,
		Source:          SourceColdStart,
		UserID:          userID,
		Total:           len(recs),
	}, nil
}

// Collaborative recommends movies liked by users with overlapping taste.
// Neighbors are users sharing at least the configured number of rated
// movies; only their liked ratings contribute, and each candidate is scored
// by the mean of those contributing ratings.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: user to recommend for.
//   - limit: max recommendations to return.
// Returns:
//   - *RecommendationResponse: ranked recommendations; empty for users with
//     no ratings or no qualifying neighbors.
//   - error: non-nil if recommendation fails.
func (r *RecommendationService) Collaborative(ctx context.Context, userID string, limit int) (*RecommendationResponse, error) {
	limit = normalizeLimit(limit)

	empty := &RecommendationResponse{
		Recommendations: []Recommendation{},
		Source:          SourceCollaborative,
		UserID:          userID,
	}

	userRatings, err := r.ratings.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user ratings: %w", err)
	}
	if len(userRatings) == 0 {
		return empty, nil
	}

	ratedIDs := make([]string, 0, len(userRatings))
	ratedSet := make(map[string]struct{}, len(userRatings))
	for _, rt := range userRatings {
		ratedIDs = append(ratedIDs, rt.MovieID)
		ratedSet[rt.MovieID] = struct{}{}
	}

	// Everyone else who rated any of the same movies, with overlap counts.
	overlapping, err := r.ratings.ListByMovies(ctx, ratedIDs, userID, r.cfg.NeighborCap*r.cfg.NeighborThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to load overlapping ratings: %w", err)
	}

	overlap := make(map[string]int)
	for _, rt := range overlapping {
		overlap[rt.UserID]++
	}
	neighbors := make([]string, 0, len(overlap))
	for uid, n := range overlap {
		if n >= r.cfg.NeighborThreshold {
			neighbors = append(neighbors, uid)
		}
	}
	if len(neighbors) == 0 {
		return empty, nil
	}
	sort.Strings(neighbors)
	if len(neighbors) > r.cfg.NeighborCap {
		neighbors = neighbors[:r.cfg.NeighborCap]
	}

	neighborRatings, err := r.ratings.ListByUsers(ctx, neighbors)
	if err != nil {
		return nil, fmt.Errorf("failed to load neighbor ratings: %w", err)
	}

	// Mean of the liked neighbor ratings per movie the user has not
	// rated. Ratings below the liked threshold never contribute, so a
	// single enthusiastic neighbor is not diluted by a lukewarm one.
	type tally struct {
		sum   int
		count int
	}
	tallies := make(map[string]*tally)
	for _, rt := range neighborRatings {
		if _, rated := ratedSet[rt.MovieID]; rated {
			continue
		}
		if rt.Rating < domain.LikedRatingThreshold {
			continue
		}
		t := tallies[rt.MovieID]
		if t == nil {
			t = &tally{}
			tallies[rt.MovieID] = t
		}
		t.sum += rt.Rating
		t.count++
	}

	type scoredMovie struct {
		movieID string
		score   float64
		count   int
	}
	scored := make([]scoredMovie, 0, len(tallies))
	for movieID, t := range tallies {
		scored = append(scored, scoredMovie{
			movieID: movieID,
			score:   float64(t.sum) / float64(t.count),
			count:   t.count,
		})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		if scored[i].count != scored[j].count {
			return scored[i].count > scored[j].count
		}
		return scored[i].movieID < scored[j].movieID
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	if len(scored) == 0 {
		return empty, nil
	}

	ids := make([]string, 0, len(scored))
	for _, sm := range scored {
		ids = append(ids, sm.movieID)
	}
	movies, err := r.movies.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load recommended movies: %w", err)
	}
	byID := make(map[string]*domain.Movie, len(movies))
	for i := range movies {
		byID[movies[i].ID] = &movies[i]
	}

	recs := make([]Recommendation, 0, len(scored))
	for _, sm := range scored {
		m, ok := byID[sm.movieID]
		if !ok {
			continue
		}
		recs = append(recs, Recommendation{
			MovieResult:      newMovieResult(m, r.storage),
			Score:            sm.score,
			RecommenderCount: sm.count,
		})
	}

	return &RecommendationResponse{
		Recommendations: recs,
		Source:          SourceCollaborative,
		UserID:          userID,
		Total:           len(recs),
	}, nil
}

func likedMovieIDs(ratings []domain.Rating) []string {
	ids := make([]string, 0, len(ratings))
	for _, rt := range ratings {
		if rt.Liked() {
			ids = append(ids, rt.MovieID)
		}
	}
	return ids
}
