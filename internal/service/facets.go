package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/natep/cinesearch/internal/cache"
	"github.com/natep/cinesearch/internal/domain"
	"github.com/natep/cinesearch/internal/repository"
)

const (
	facetGenreLimit = 20
	facetYearLimit  = 20
)

// ratingBucketLabels are the fixed histogram buckets for the rating facet,
// in display order. Boundary values fall into the upper bucket except 10,
// which stays in "8-10".
var ratingBucketLabels = [...]string{"0-2", "2-4", "4-6", "6-8", "8-10"}

const ratingBucketUnknown = "unknown"

// FacetedSearchRequest represents a filtered search with facet aggregation.
type FacetedSearchRequest struct {
	Query      string   `json:"query"`
	Genre      string   `json:"genre"`
	YearMin    int      `json:"year_min"`
	YearMax    int      `json:"year_max"`
	RatingMin  float64  `json:"rating_min"`
	RatingMax  float64  `json:"rating_max"`
	RuntimeMin int      `json:"runtime_min"`
	RuntimeMax int      `json:"runtime_max"`
	Directors  []string `json:"directors"`
	Cast       []string `json:"cast"`
	Countries  []string `json:"countries"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
	SortBy     string   `json:"sort_by"` // year, rating, title
	UserID     string   `json:"user_id,omitempty"`
}

// FacetBucket is one value of a facet with its count over the filtered set.
type FacetBucket struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Facets aggregates the filtered result set along the browse dimensions.
type Facets struct {
	Genres  []FacetBucket `json:"genres"`
	Years   []FacetBucket `json:"years"`
	Ratings []FacetBucket `json:"ratings"`
}

// FacetedSearchResponse represents a faceted search response. Filters echo
// the effective filter set so clients can render the active filter state.
type FacetedSearchResponse struct {
	Results     []MovieResult     `json:"results"`
	Facets      Facets            `json:"facets"`
	Filters     map[string]string `json:"filters"`
	CurrentPage int               `json:"current_page"`
	TotalPages  int               `json:"total_pages"`
	TotalItems  int64             `json:"total_items"`
}

// FacetedSearch applies structured filters to the catalog and aggregates
// facet counts over the whole filtered set, not just the returned page.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - req: filter, pagination, and attribution parameters.
// Returns:
//   - *FacetedSearchResponse: page of matches plus facet histograms.
//   - error: non-nil if the search fails.
func (s *SearchService) FacetedSearch(ctx context.Context, req *FacetedSearchRequest) (*FacetedSearchResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := normalizeLimit(req.Limit)

	filter := &repository.MovieFilter{
		Query:      strings.TrimSpace(req.Query),
		Genre:      req.Genre,
		YearMin:    req.YearMin,
		YearMax:    req.YearMax,
		RatingMin:  req.RatingMin,
		RatingMax:  req.RatingMax,
		RuntimeMin: req.RuntimeMin,
		RuntimeMax: req.RuntimeMax,
		Directors:  req.Directors,
		Cast:       req.Cast,
		Countries:  req.Countries,
	}

	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = "year"
	}
	orderBy := sortOrder(sortBy)
	if orderBy == "" {
		return nil, fmt.Errorf("unsupported sort_by %q", sortBy)
	}

	echoed := facetCacheFilters(req, page, limit)
	echoed["sort_by"] = sortBy
	if filter.Query != "" {
		echoed["query"] = filter.Query
	}

	key := cache.Key(filter.Query, domain.SearchTypeFaceted, echoed)
	if cached, ok := s.cacheGet(key); ok {
		if resp, ok := cached.(*FacetedSearchResponse); ok {
			return resp, nil
		}
	}

	totalItems, err := s.movies.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("faceted search count failed: %w", err)
	}

	pageMovies, err := s.movies.Search(ctx, filter, orderBy, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("faceted search failed: %w", err)
	}

	facets, err := s.facetsFor(ctx, filter, echoed)
	if err != nil {
		return nil, fmt.Errorf("facet aggregation failed: %w", err)
	}

	resp := &FacetedSearchResponse{
		Results:     s.toResults(pageMovies),
		Facets:      facets,
		Filters:     echoed,
		CurrentPage: page,
		TotalPages:  totalPages(totalItems, limit),
		TotalItems:  totalItems,
	}

	s.cacheSet(key, resp)
	s.recordQuery(req.UserID, filter.Query, domain.SearchTypeFaceted, echoed, len(resp.Results))

	return resp, nil
}

// facetsFor aggregates facets over the filtered set, capped so a very broad
// filter cannot pull the whole catalog into memory. The aggregation is cached
// independently of pagination, so every page of the same filter set shares
// one scan.
func (s *SearchService) facetsFor(ctx context.Context, filter *repository.MovieFilter, filters map[string]string) (Facets, error) {
	scope := make(map[string]string, len(filters))
	for k, v := range filters {
		if k == "page" || k == "limit" {
			continue
		}
		scope[k] = v
	}
	key := cache.Key(filter.Query, domain.SearchTypeFaceted, scope)

	if s.cache != nil {
		if cached, ok := s.cache.Get(cache.NamespaceAnalytics, key); ok {
			if facets, ok := cached.(Facets); ok {
				return facets, nil
			}
		}
	}

	movies, err := s.movies.Search(ctx, filter, "", s.cfg.FacetCandidates, 0)
	if err != nil {
		return Facets{}, err
	}
	facets := computeFacets(movies)

	if s.cache != nil {
		s.cache.Set(cache.NamespaceAnalytics, key, facets)
	}
	return facets, nil
}

// computeFacets aggregates genre, year, and rating histograms over the
// given movies. Genres are counted once per movie even when duplicated,
// ordered by count descending with name ascending as tie-break, capped at
// the top 20. Years keep the 20 most recent. Rating buckets always appear
// in their fixed order and include an "unknown" bucket for unrated titles.
func computeFacets(movies []domain.Movie) Facets {
	genreCounts := make(map[string]int)
	yearCounts := make(map[int]int)
	ratingCounts := make(map[string]int)

	for i := range movies {
		m := &movies[i]

		seen := make(map[string]struct{}, len(m.Genres))
		for _, g := range m.Genres {
			g = strings.TrimSpace(g)
			if g == "" {
				continue
			}
			if _, dup := seen[g]; dup {
				continue
			}
			seen[g] = struct{}{}
			genreCounts[g]++
		}

		if m.Year > 0 {
			yearCounts[m.Year]++
		}

		ratingCounts[ratingBucket(m.Rating)]++
	}

	return Facets{
		Genres:  topGenres(genreCounts),
		Years:   recentYears(yearCounts),
		Ratings: ratingHistogram(ratingCounts),
	}
}

// ratingBucket maps a rating to its histogram label. Ratings out of the
// 0..10 range clamp into the edge buckets.
func ratingBucket(r *float64) string {
	if r == nil {
		return ratingBucketUnknown
	}
	idx := int(*r / 2)
	if idx < 0 {
		idx = 0
	}
	if idx >= len(ratingBucketLabels) {
		idx = len(ratingBucketLabels) - 1
	}
	return ratingBucketLabels[idx]
}

func topGenres(counts map[string]int) []FacetBucket {
	buckets := make([]FacetBucket, 0, len(counts))
	for g, n := range counts {
		buckets = append(buckets, FacetBucket{Value: g, Count: n})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Value < buckets[j].Value
	})
	if len(buckets) > facetGenreLimit {
		buckets = buckets[:facetGenreLimit]
	}
	return buckets
}

func recentYears(counts map[int]int) []FacetBucket {
	years := make([]int, 0, len(counts))
	for y := range counts {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	if len(years) > facetYearLimit {
		years = years[:facetYearLimit]
	}

	buckets := make([]FacetBucket, 0, len(years))
	for _, y := range years {
		buckets = append(buckets, FacetBucket{Value: strconv.Itoa(y), Count: counts[y]})
	}
	return buckets
}

func ratingHistogram(counts map[string]int) []FacetBucket {
	buckets := make([]FacetBucket, 0, len(ratingBucketLabels)+1)
	for _, label := range ratingBucketLabels {
		if n := counts[label]; n > 0 {
			buckets = append(buckets, FacetBucket{Value: label, Count: n})
		}
	}
	if n := counts[ratingBucketUnknown]; n > 0 {
		buckets = append(buckets, FacetBucket{Value: ratingBucketUnknown, Count: n})
	}
	return buckets
}

// facetCacheFilters flattens the structured filters into the cache key map.
func facetCacheFilters(req *FacetedSearchRequest, page, limit int) map[string]string {
	f := map[string]string{
		"page":  strconv.Itoa(page),
		"limit": strconv.Itoa(limit),
	}
	if req.Genre != "" {
		f["genre"] = req.Genre
	}
	if req.YearMin != 0 {
		f["year_min"] = strconv.Itoa(req.YearMin)
	}
	if req.YearMax != 0 {
		f["year_max"] = strconv.Itoa(req.YearMax)
	}
	if req.RatingMin != 0 {
		f["rating_min"] = formatFloat(req.RatingMin)
	}
	if req.RatingMax != 0 {
		f["rating_max"] = formatFloat(req.RatingMax)
	}
	if req.RuntimeMin != 0 {
		f["runtime_min"] = strconv.Itoa(req.RuntimeMin)
	}
	if req.RuntimeMax != 0 {
		f["runtime_max"] = strconv.Itoa(req.RuntimeMax)
	}
	if len(req.Directors) > 0 {
		f["directors"] = strings.Join(req.Directors, ",")
	}
	if len(req.Cast) > 0 {
		f["cast"] = strings.Join(req.Cast, ",")
	}
	if len(req.Countries) > 0 {
		f["countries"] = strings.Join(req.Countries, ",")
	}
	return f
}
