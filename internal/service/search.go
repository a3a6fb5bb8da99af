package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/natep/cinesearch/internal/cache"
	"github.com/natep/cinesearch/internal/domain"
	"github.com/natep/cinesearch/internal/logger"
	"github.com/natep/cinesearch/internal/repository"
	"github.com/natep/cinesearch/internal/storage"
	"github.com/natep/cinesearch/internal/vector"
)

// ErrEmptyQuery rejects requests with no query text before any computation.
var ErrEmptyQuery = errors.New("query text is required")

// Text match scoring weights. A movie's raw text score is the sum of the
// matched field weights, normalized by textScoreNorm; sums above the norm
// are allowed (no explicit cap).
const (
	titleMatchWeight    = 3.0
	plotMatchWeight     = 2.0
	directorMatchWeight = 2.0
	castMatchWeight     = 1.0
	textScoreNorm       = 10.0
)

// Default hybrid weights when the request specifies neither.
const (
	defaultTextWeight   = 0.4
	defaultVectorWeight = 0.6
)

// ctxCheckInterval is how many candidates a similarity scan processes
// between cancellation checks.
const ctxCheckInterval = 64

// SearchConfig holds configuration for the search service.
type SearchConfig struct {
	TextWeight       float64
	VectorWeight     float64
	MinSimilarity    float64
	VectorCandidates int // cap on embedded-candidate pulls
	FacetCandidates  int // cap on the filtered set scanned for facets
	EmbeddingKind    string
}

// SearchService handles text, vector, hybrid, and faceted catalog search.
type SearchService struct {
	movies    CatalogStore
	embedder  QueryEmbedder
	cache     *cache.Cache
	analytics *AnalyticsService
	storage   storage.ObjectStorage
	logger    *logger.Logger
	cfg       SearchConfig
}

// NewSearchService creates a new search service.
// Parameters:
//   - movies: catalog store.
//   - embedder: pluggable query embedding capability.
//   - queryCache: shared query result cache; nil disables caching.
//   - analytics: fire-and-forget query log writer; nil disables logging.
//   - posterStorage: object storage for poster URLs; nil disables enrichment.
//   - log: logger instance.
//   - cfg: search configuration settings.
// Returns:
//   - *SearchService: initialized search service.
func NewSearchService(
	movies CatalogStore,
	embedder QueryEmbedder,
	queryCache *cache.Cache,
	analytics *AnalyticsService,
	posterStorage storage.ObjectStorage,
	log *logger.Logger,
	cfg SearchConfig,
) *SearchService {
	if cfg.VectorCandidates <= 0 {
		cfg.VectorCandidates = 500
	}
	if cfg.FacetCandidates <= 0 {
		cfg.FacetCandidates = 2000
	}
	return &SearchService{
		movies:    movies,
		embedder:  embedder,
		cache:     queryCache,
		analytics: analytics,
		storage:   posterStorage,
		logger:    log,
		cfg:       cfg,
	}
}

// TextSearchRequest represents a text search request.
type TextSearchRequest struct {
	Query  string `json:"query" binding:"required"`
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
	SortBy string `json:"sort_by"` // relevance, year, rating, title
	UserID string `json:"user_id,omitempty"`
}

// TextSearchResponse represents a paginated text search response.
type TextSearchResponse struct {
	Results     []MovieResult `json:"results"`
	Query       string        `json:"query"`
	CurrentPage int           `json:"current_page"`
	TotalPages  int           `json:"total_pages"`
	TotalItems  int64         `json:"total_items"`
}

// TextSearch performs a paginated catalog text search.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - req: search request parameters.
// Returns:
//   - *TextSearchResponse: search results and pagination metadata.
//   - error: non-nil if the search fails.
func (s *SearchService) TextSearch(ctx context.Context, req *TextSearchRequest) (*TextSearchResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := normalizeLimit(req.Limit)
	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = "relevance"
	}

	key := cache.Key(query, domain.SearchTypeText, map[string]string{
		"page":    strconv.Itoa(page),
		"limit":   strconv.Itoa(limit),
		"sort_by": sortBy,
	})
	if cached, ok := s.cacheGet(key); ok {
		if resp, ok := cached.(*TextSearchResponse); ok {
			logger.With(logger.Fields{logger.FieldQuery: query}).
				WithCacheHit(true).
				Debug(ctx, "Text search served from cache")
			return resp, nil
		}
	}

	var movies []domain.Movie
	var totalItems int64
	var err error

	switch sortBy {
	case "relevance":
		movies, totalItems, err = s.rankedTextPage(ctx, query, page, limit)
	case "year", "rating", "title":
		filter := &repository.MovieFilter{Query: query}
		totalItems, err = s.movies.Count(ctx, filter)
		if err != nil {
			break
		}
		movies, err = s.movies.Search(ctx, filter, sortOrder(sortBy), limit, (page-1)*limit)
	default:
		return nil, fmt.Errorf("unsupported sort_by %q", sortBy)
	}
	if err != nil {
		return nil, fmt.Errorf("text search failed: %w", err)
	}

	resp := &TextSearchResponse{
		Results:     s.toResults(movies),
		Query:       query,
		CurrentPage: page,
		TotalPages:  totalPages(totalItems, limit),
		TotalItems:  totalItems,
	}

	s.cacheSet(key, resp)
	s.recordQuery(req.UserID, query, domain.SearchTypeText, map[string]string{"sort_by": sortBy}, len(resp.Results))

	return resp, nil
}

// rankedTextPage pulls a capped candidate set, scores it with the text
// heuristic, and slices out the requested page.
func (s *SearchService) rankedTextPage(ctx context.Context, query string, page, limit int) ([]domain.Movie, int64, error) {
	candidates, err := s.movies.TextCandidates(ctx, query, s.cfg.FacetCandidates)
	if err != nil {
		return nil, 0, err
	}

	scored := rankByText(candidates, query)

	total := int64(len(scored))
	start := (page - 1) * limit
	if start >= len(scored) {
		return []domain.Movie{}, total, nil
	}
	end := start + limit
	if end > len(scored) {
		end = len(scored)
	}

	movies := make([]domain.Movie, 0, end-start)
	for _, sc := range scored[start:end] {
		movies = append(movies, sc.movie)
	}
	return movies, total, nil
}

// textScored pairs a movie with its normalized text score.
type textScored struct {
	movie domain.Movie
	score float64
}

// rankByText scores candidates with the text heuristic and returns the
// matches sorted by score descending. The sort is stable, so ties keep
// candidate pull order.
func rankByText(candidates []domain.Movie, query string) []textScored {
	scored := make([]textScored, 0, len(candidates))
	for i := range candidates {
		score := textMatchScore(&candidates[i], query)
		if score > 0 {
			scored = append(scored, textScored{movie: candidates[i], score: score})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	return scored
}

// textMatchScore computes the normalized text relevance of a movie for a
// query: +3 for a title substring match, +2 for plot, +2 per matching
// director, +1 per matching cast member, divided by a fixed norm of 10.
// Matching is case-insensitive substring both ways for people so that
// "nolan" matches "Christopher Nolan".
func textMatchScore(m *domain.Movie, query string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return 0
	}

	var score float64
	if strings.Contains(strings.ToLower(m.Title), q) {
		score += titleMatchWeight
	}
	if strings.Contains(strings.ToLower(m.Plot), q) {
		score += plotMatchWeight
	}
	for _, d := range m.Directors {
		if strings.Contains(strings.ToLower(d), q) {
			score += directorMatchWeight
		}
	}
	for _, c := range m.Cast {
		if strings.Contains(strings.ToLower(c), q) {
			score += castMatchWeight
		}
	}
	return score / textScoreNorm
}

// VectorSearchRequest represents a semantic search request. EmbeddingKind
// is advisory; the process serves a single embedding space, and a request
// naming a different one gets that space's results labeled honestly.
type VectorSearchRequest struct {
	Query         string  `json:"query" binding:"required"`
	EmbeddingKind string  `json:"embedding_kind"`
	Limit         int     `json:"limit"`
	MinSimilarity float64 `json:"min_similarity"`
	UserID        string  `json:"user_id,omitempty"`
}

// VectorSearchResult is a single semantic search match.
type VectorSearchResult struct {
	MovieResult
	SimilarityScore float64 `json:"similarity_score"`
}

// VectorSearchResponse represents a semantic search response.
type VectorSearchResponse struct {
	Results       []VectorSearchResult `json:"results"`
	Query         string               `json:"query"`
	EmbeddingKind string               `json:"embedding_kind,omitempty"`
	MinSimilarity float64              `json:"min_similarity"`
	Total         int                  `json:"total"`
}

// VectorSearch ranks embedded catalog titles by cosine similarity to the
// query embedding.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - req: search request parameters.
// Returns:
//   - *VectorSearchResponse: matches above the similarity threshold.
//   - error: non-nil if the search fails.
func (s *SearchService) VectorSearch(ctx context.Context, req *VectorSearchRequest) (*VectorSearchResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	limit := normalizeLimit(req.Limit)

	key := cache.Key(query, domain.SearchTypeVector, map[string]string{
		"limit":   strconv.Itoa(limit),
		"min_sim": formatFloat(req.MinSimilarity),
	})
	if cached, ok := s.cacheGet(key); ok {
		if resp, ok := cached.(*VectorSearchResponse); ok {
			return resp, nil
		}
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scores, err := s.scanVectorCandidates(ctx, queryVec, req.MinSimilarity)
	if err != nil {
		return nil, err
	}
	if len(scores) > limit {
		scores = scores[:limit]
	}

	results := make([]VectorSearchResult, 0, len(scores))
	for _, sc := range scores {
		results = append(results, VectorSearchResult{
			MovieResult:     newMovieResult(&sc.movie, s.storage),
			SimilarityScore: sc.score,
		})
	}

	resp := &VectorSearchResponse{
		Results:       results,
		Query:         query,
		EmbeddingKind: s.cfg.EmbeddingKind,
		MinSimilarity: req.MinSimilarity,
		Total:         len(results),
	}

	s.cacheSet(key, resp)
	s.recordQuery(req.UserID, query, domain.SearchTypeVector, nil, len(results))

	return resp, nil
}

type vectorScored struct {
	movie domain.Movie
	score float64
}

// scanVectorCandidates scores every embedded candidate against the query
// vector and returns those at or above minSim, sorted descending. The scan
// honors caller cancellation so abandoned requests stop consuming CPU.
func (s *SearchService) scanVectorCandidates(ctx context.Context, queryVec []float64, minSim float64) ([]vectorScored, error) {
	candidates, err := s.movies.ListWithEmbeddings(ctx, nil, s.cfg.VectorCandidates)
	if err != nil {
		return nil, fmt.Errorf("failed to load vector candidates: %w", err)
	}

	scores := make([]vectorScored, 0, len(candidates))
	for i := range candidates {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		score := vector.Cosine(queryVec, candidates[i].Embedding)
		if score >= minSim {
			scores = append(scores, vectorScored{movie: candidates[i], score: score})
		}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})
	return scores, nil
}

// HybridSearchRequest represents a combined text + vector search request.
type HybridSearchRequest struct {
	Query         string  `json:"query" binding:"required"`
	EmbeddingKind string  `json:"embedding_kind"`
	TextWeight    float64 `json:"text_weight"`
	VectorWeight  float64 `json:"vector_weight"`
	Limit         int     `json:"limit"`
	MinSimilarity float64 `json:"min_similarity"`
	UserID        string  `json:"user_id,omitempty"`
}

// HybridSearchResult is a single hybrid match with its score breakdown.
type HybridSearchResult struct {
	MovieResult
	TextScore   float64 `json:"text_score"`
	VectorScore float64 `json:"vector_score"`
	HybridScore float64 `json:"hybrid_score"`
}

// HybridSearchResponse represents a hybrid search response.
type HybridSearchResponse struct {
	Results      []HybridSearchResult `json:"results"`
	Query        string               `json:"query"`
	TextWeight   float64              `json:"text_weight"`
	VectorWeight float64              `json:"vector_weight"`
	Total        int                  `json:"total"`
}

// HybridSearch blends the text heuristic and vector similarity into one
// ranked list. Pure-text (1,0) and pure-vector (0,1) weights are degenerate
// configurations of the same ranker and reproduce the single-signal
// orderings.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - req: search request parameters.
// Returns:
//   - *HybridSearchResponse: merged ranking with per-signal scores.
//   - error: non-nil if the search fails.
func (s *SearchService) HybridSearch(ctx context.Context, req *HybridSearchRequest) (*HybridSearchResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	limit := normalizeLimit(req.Limit)

	textWeight, vectorWeight := req.TextWeight, req.VectorWeight
	if textWeight == 0 && vectorWeight == 0 {
		textWeight, vectorWeight = s.cfg.TextWeight, s.cfg.VectorWeight
		if textWeight == 0 && vectorWeight == 0 {
			textWeight, vectorWeight = defaultTextWeight, defaultVectorWeight
		}
	}
	if textWeight < 0 || vectorWeight < 0 {
		return nil, fmt.Errorf("weights must be non-negative")
	}

	key := cache.Key(query, domain.SearchTypeHybrid, map[string]string{
		"limit":   strconv.Itoa(limit),
		"tw":      formatFloat(textWeight),
		"vw":      formatFloat(vectorWeight),
		"min_sim": formatFloat(req.MinSimilarity),
	})
	if cached, ok := s.cacheGet(key); ok {
		if resp, ok := cached.(*HybridSearchResponse); ok {
			return resp, nil
		}
	}

	// Text signal. Skipped entirely at weight 0 so pure-vector requests
	// never surface text-only movies with a zero hybrid score.
	var textScores []textScored
	if textWeight > 0 {
		textCandidates, err := s.movies.TextCandidates(ctx, query, s.cfg.FacetCandidates)
		if err != nil {
			return nil, fmt.Errorf("failed to load text candidates: %w", err)
		}
		textScores = rankByText(textCandidates, query)
	}

	// Vector signal. Embedder failures degrade to text-only ranking when
	// the vector axis carries no weight; otherwise they surface.
	var vecScores []vectorScored
	if vectorWeight > 0 {
		queryVec, err := s.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		vecScores, err = s.scanVectorCandidates(ctx, queryVec, req.MinSimilarity)
		if err != nil {
			return nil, err
		}
	}

	// Union of both signals. A movie may carry only a text score, only a
	// vector score, or both; a missing signal counts as 0 on that axis.
	// Vector-only movies already passed the threshold in the scan;
	// text-only movies are included regardless of it.
	type merged struct {
		movie    domain.Movie
		text     float64
		vec      float64
		hasVec   bool
		ordering int
	}
	byID := make(map[string]*merged, len(textScores)+len(vecScores))
	order := make([]*merged, 0, len(textScores)+len(vecScores))

	for _, ts := range textScores {
		m := &merged{movie: ts.movie, text: ts.score, ordering: len(order)}
		byID[ts.movie.ID] = m
		order = append(order, m)
	}
	for _, vs := range vecScores {
		if m, ok := byID[vs.movie.ID]; ok {
			m.vec = vs.score
			m.hasVec = true
			continue
		}
		m := &merged{movie: vs.movie, vec: vs.score, hasVec: true, ordering: len(order)}
		byID[vs.movie.ID] = m
		order = append(order, m)
	}

	results := make([]HybridSearchResult, 0, len(order))
	for _, m := range order {
		results = append(results, HybridSearchResult{
			MovieResult: newMovieResult(&m.movie, s.storage),
			TextScore:   m.text,
			VectorScore: m.vec,
			HybridScore: textWeight*m.text + vectorWeight*m.vec,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].HybridScore > results[j].HybridScore
	})
	if len(results) > limit {
		results = results[:limit]
	}

	resp := &HybridSearchResponse{
		Results:      results,
		Query:        query,
		TextWeight:   textWeight,
		VectorWeight: vectorWeight,
		Total:        len(results),
	}

	s.cacheSet(key, resp)
	s.recordQuery(req.UserID, query, domain.SearchTypeHybrid, map[string]string{
		"tw": formatFloat(textWeight),
		"vw": formatFloat(vectorWeight),
	}, len(results))

	return resp, nil
}

// cacheGet consults the shared query cache when one is configured.
func (s *SearchService) cacheGet(key string) (interface{}, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(cache.NamespaceSearch, key)
}

// cacheSet writes through to the shared query cache when one is configured.
// Two concurrent requests for the same uncached query may both compute and
// both write; last write wins, which is fine because results are
// deterministic for the same inputs.
func (s *SearchService) cacheSet(key string, value interface{}) {
	if s.cache == nil {
		return
	}
	s.cache.Set(cache.NamespaceSearch, key, value)
}

// recordQuery dispatches a fire-and-forget query log record.
func (s *SearchService) recordQuery(userID, query, searchType string, filters map[string]string, resultCount int) {
	if s.analytics == nil {
		return
	}
	s.analytics.Record(userID, query, searchType, filters, resultCount)
}

func (s *SearchService) toResults(movies []domain.Movie) []MovieResult {
	results := make([]MovieResult, 0, len(movies))
	for i := range movies {
		results = append(results, newMovieResult(&movies[i], s.storage))
	}
	return results
}

// sortOrder maps an API sort_by value to a store order clause.
func sortOrder(sortBy string) string {
	switch sortBy {
	case "year":
		return "year DESC"
	case "rating":
		return "rating DESC"
	case "title":
		return "title ASC"
	default:
		return ""
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

func totalPages(totalItems int64, limit int) int {
	if totalItems == 0 {
		return 0
	}
	return int((totalItems + int64(limit) - 1) / int64(limit))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
