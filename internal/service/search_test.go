package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/natep/cinesearch/internal/cache"
	"github.com/natep/cinesearch/internal/domain"
)

func testSearchService(catalog *fakeCatalog, embedder QueryEmbedder, c *cache.Cache) *SearchService {
	return NewSearchService(catalog, embedder, c, nil, nil, nil, SearchConfig{
		TextWeight:       0.4,
		VectorWeight:     0.6,
		VectorCandidates: 500,
		FacetCandidates:  2000,
	})
}

func testMovies() []domain.Movie {
	return []domain.Movie{
		{
			ID:        "m1",
			Title:     "Inception",
			Year:      2010,
			Genres:    domain.StringArray{"Sci-Fi", "Thriller"},
			Plot:      "A thief steals secrets through dream-sharing technology.",
			Directors: domain.StringArray{"Christopher Nolan"},
			Cast:      domain.StringArray{"Leonardo DiCaprio", "Elliot Page"},
			Rating:    floatPtr(8.8),
			Votes:     2200000,
			Embedding: domain.Vector{1, 0, 0},
		},
		{
			ID:        "m2",
			Title:     "Interstellar",
			Year:      2014,
			Genres:    domain.StringArray{"Sci-Fi", "Drama"},
			Plot:      "Explorers travel through a wormhole in space.",
			Directors: domain.StringArray{"Christopher Nolan"},
			Cast:      domain.StringArray{"Matthew McConaughey"},
			Rating:    floatPtr(8.7),
			Votes:     1900000,
			Embedding: domain.Vector{0.8, 0.6, 0},
		},
		{
			ID:        "m3",
			Title:     "The Dream Team",
			Year:      1989,
			Genres:    domain.StringArray{"Comedy"},
			Plot:      "Four psychiatric patients on a field trip.",
			Directors: domain.StringArray{"Howard Zieff"},
			Cast:      domain.StringArray{"Michael Keaton"},
			Rating:    floatPtr(6.5),
			Votes:     25000,
			Embedding: domain.Vector{0, 1, 0},
		},
		{
			ID:     "m4",
			Title:  "Dreams of Tomorrow",
			Year:   2021,
			Genres: domain.StringArray{"Drama"},
			Plot:   "An unreleased indie film.",
			// no rating, no embedding
		},
	}
}

func TestTextMatchScore(t *testing.T) {
	movie := &domain.Movie{
		Title:     "Inception",
		Plot:      "A thief steals secrets through dream-sharing technology.",
		Directors: domain.StringArray{"Christopher Nolan"},
		Cast:      domain.StringArray{"Leonardo DiCaprio", "Elliot Page"},
	}

	tests := []struct {
		name  string
		query string
		want  float64
	}{
		{"title match", "inception", 0.3},
		{"plot match", "dream-sharing", 0.2},
		{"director match", "nolan", 0.2},
		{"cast match", "dicaprio", 0.1},
		{"stacked people matches", "l", 0.2 + 0.2 + 0.1 + 0.1}, // plot + director + both cast members
		{"no match", "western", 0},
		{"case insensitive", "INCEPTION", 0.3},
		{"blank query", "   ", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := textMatchScore(movie, tt.query)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("textMatchScore(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestTextSearchEmptyQuery(t *testing.T) {
	svc := testSearchService(&fakeCatalog{}, &fakeEmbedder{}, nil)

	if _, err := svc.TextSearch(context.Background(), &TextSearchRequest{Query: "   "}); err != ErrEmptyQuery {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
	if _, err := svc.VectorSearch(context.Background(), &VectorSearchRequest{Query: ""}); err != ErrEmptyQuery {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
	if _, err := svc.HybridSearch(context.Background(), &HybridSearchRequest{Query: ""}); err != ErrEmptyQuery {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestTextSearchRelevanceOrdering(t *testing.T) {
	catalog := &fakeCatalog{movies: testMovies()}
	svc := testSearchService(catalog, &fakeEmbedder{}, nil)

	resp, err := svc.TextSearch(context.Background(), &TextSearchRequest{Query: "dream"})
	if err != nil {
		t.Fatalf("TextSearch failed: %v", err)
	}

	// "The Dream Team" and "Dreams of Tomorrow" match on title (0.3);
	// "Inception" matches only on plot (0.2). Title matches rank first.
	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(resp.Results))
	}
	if resp.Results[2].ID != "m1" {
		t.Errorf("expected plot-only match last, got %s", resp.Results[2].ID)
	}
	for _, r := range resp.Results[:2] {
		if r.ID != "m3" && r.ID != "m4" {
			t.Errorf("expected title matches first, got %s", r.ID)
		}
	}
	if resp.TotalItems != 3 {
		t.Errorf("TotalItems = %d, want 3", resp.TotalItems)
	}
	if resp.TotalPages != 1 {
		t.Errorf("TotalPages = %d, want 1", resp.TotalPages)
	}
}

func TestTextSearchPagination(t *testing.T) {
	catalog := &fakeCatalog{movies: testMovies()}
	svc := testSearchService(catalog, &fakeEmbedder{}, nil)

	page1, err := svc.TextSearch(context.Background(), &TextSearchRequest{Query: "dream", Limit: 2, Page: 1})
	if err != nil {
		t.Fatalf("TextSearch failed: %v", err)
	}
	page2, err := svc.TextSearch(context.Background(), &TextSearchRequest{Query: "dream", Limit: 2, Page: 2})
	if err != nil {
		t.Fatalf("TextSearch failed: %v", err)
	}

	if len(page1.Results) != 2 || len(page2.Results) != 1 {
		t.Fatalf("page sizes = %d, %d; want 2, 1", len(page1.Results), len(page2.Results))
	}
	if page1.TotalPages != 2 {
		t.Errorf("TotalPages = %d, want 2", page1.TotalPages)
	}

	beyond, err := svc.TextSearch(context.Background(), &TextSearchRequest{Query: "dream", Limit: 2, Page: 5})
	if err != nil {
		t.Fatalf("TextSearch failed: %v", err)
	}
	if len(beyond.Results) != 0 {
		t.Errorf("expected empty page past the end, got %d results", len(beyond.Results))
	}
}

func TestTextSearchSortByYear(t *testing.T) {
	catalog := &fakeCatalog{movies: testMovies()}
	svc := testSearchService(catalog, &fakeEmbedder{}, nil)

	resp, err := svc.TextSearch(context.Background(), &TextSearchRequest{Query: "dream", SortBy: "year"})
	if err != nil {
		t.Fatalf("TextSearch failed: %v", err)
	}
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i-1].Year < resp.Results[i].Year {
			t.Errorf("results not ordered by year desc: %d before %d",
				resp.Results[i-1].Year, resp.Results[i].Year)
		}
	}
}

func TestTextSearchUnsupportedSort(t *testing.T) {
	svc := testSearchService(&fakeCatalog{movies: testMovies()}, &fakeEmbedder{}, nil)
	if _, err := svc.TextSearch(context.Background(), &TextSearchRequest{Query: "dream", SortBy: "popularity"}); err == nil {
		t.Fatal("expected error for unsupported sort_by")
	}
}

func TestVectorSearchOrdering(t *testing.T) {
	catalog := &fakeCatalog{movies: testMovies()}
	embedder := &fakeEmbedder{vec: []float64{1, 0, 0}}
	svc := testSearchService(catalog, embedder, nil)

	resp, err := svc.VectorSearch(context.Background(), &VectorSearchRequest{Query: "heist in dreams"})
	if err != nil {
		t.Fatalf("VectorSearch failed: %v", err)
	}

	// m1 is exactly the query vector (1.0), m2 is close (0.8), m3 is
	// orthogonal (0.0), m4 has no embedding and never appears.
	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(resp.Results))
	}
	if resp.Results[0].ID != "m1" || resp.Results[1].ID != "m2" {
		t.Errorf("unexpected order: %s, %s", resp.Results[0].ID, resp.Results[1].ID)
	}
	if math.Abs(resp.Results[0].SimilarityScore-1.0) > 1e-9 {
		t.Errorf("top score = %v, want 1.0", resp.Results[0].SimilarityScore)
	}
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i-1].SimilarityScore < resp.Results[i].SimilarityScore {
			t.Error("results not ordered by similarity desc")
		}
	}
}

func TestVectorSearchMinSimilarity(t *testing.T) {
	catalog := &fakeCatalog{movies: testMovies()}
	embedder := &fakeEmbedder{vec: []float64{1, 0, 0}}
	svc := testSearchService(catalog, embedder, nil)

	resp, err := svc.VectorSearch(context.Background(), &VectorSearchRequest{
		Query:         "heist in dreams",
		MinSimilarity: 0.5,
	})
	if err != nil {
		t.Fatalf("VectorSearch failed: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results above threshold, got %d", len(resp.Results))
	}
	for _, r := range resp.Results {
		if r.SimilarityScore < 0.5 {
			t.Errorf("result %s below threshold: %v", r.ID, r.SimilarityScore)
		}
	}
}

func TestVectorSearchEmbedderFailure(t *testing.T) {
	svc := testSearchService(&fakeCatalog{movies: testMovies()}, &fakeEmbedder{err: context.DeadlineExceeded}, nil)
	if _, err := svc.VectorSearch(context.Background(), &VectorSearchRequest{Query: "dream"}); err == nil {
		t.Fatal("expected error when embedder fails")
	}
}

func TestHybridSearchBlendsSignals(t *testing.T) {
	catalog := &fakeCatalog{movies: testMovies()}
	embedder := &fakeEmbedder{vec: []float64{1, 0, 0}}
	svc := testSearchService(catalog, embedder, nil)

	resp, err := svc.HybridSearch(context.Background(), &HybridSearchRequest{Query: "dream"})
	if err != nil {
		t.Fatalf("HybridSearch failed: %v", err)
	}

	if resp.TextWeight != 0.4 || resp.VectorWeight != 0.6 {
		t.Fatalf("weights = %v, %v; want defaults 0.4, 0.6", resp.TextWeight, resp.VectorWeight)
	}

	// m1: text 0.2 (plot) + vector 1.0 -> 0.68. Every other movie scores
	// lower on the blend, so m1 leads even though it loses on pure text.
	if resp.Results[0].ID != "m1" {
		t.Errorf("expected m1 first on blended score, got %s", resp.Results[0].ID)
	}
	first := resp.Results[0]
	want := 0.4*first.TextScore + 0.6*first.VectorScore
	if math.Abs(first.HybridScore-want) > 1e-9 {
		t.Errorf("HybridScore = %v, want %v", first.HybridScore, want)
	}

	// m4 matches on title but has no embedding; it must still appear with
	// a zero vector score.
	var sawTextOnly bool
	for _, r := range resp.Results {
		if r.ID == "m4" {
			sawTextOnly = true
			if r.VectorScore != 0 {
				t.Errorf("m4 VectorScore = %v, want 0", r.VectorScore)
			}
		}
	}
	if !sawTextOnly {
		t.Error("text-only match missing from hybrid results")
	}
}

func TestHybridSearchTextOnlyBypassesThreshold(t *testing.T) {
	catalog := &fakeCatalog{movies: testMovies()}
	embedder := &fakeEmbedder{vec: []float64{1, 0, 0}}
	svc := testSearchService(catalog, embedder, nil)

	resp, err := svc.HybridSearch(context.Background(), &HybridSearchRequest{
		Query:         "dream",
		MinSimilarity: 0.9,
	})
	if err != nil {
		t.Fatalf("HybridSearch failed: %v", err)
	}

	// Only m1 passes the similarity gate on the vector side, but the text
	// matches m3 and m4 must still be present.
	ids := make(map[string]bool)
	for _, r := range resp.Results {
		ids[r.ID] = true
	}
	for _, want := range []string{"m1", "m3", "m4"} {
		if !ids[want] {
			t.Errorf("expected %s in hybrid results, got %v", want, ids)
		}
	}
	if ids["m2"] {
		t.Error("m2 has no text match and is below the similarity gate; should be absent")
	}
}

func TestHybridSearchPureTextWeights(t *testing.T) {
	catalog := &fakeCatalog{movies: testMovies()}
	svc := testSearchService(catalog, &fakeEmbedder{vec: []float64{1, 0, 0}}, nil)

	resp, err := svc.HybridSearch(context.Background(), &HybridSearchRequest{
		Query:      "dream",
		TextWeight: 1,
	})
	if err != nil {
		t.Fatalf("HybridSearch failed: %v", err)
	}
	if resp.TextWeight != 1 || resp.VectorWeight != 0 {
		t.Fatalf("weights = %v, %v; want 1, 0", resp.TextWeight, resp.VectorWeight)
	}
	for _, r := range resp.Results {
		if r.HybridScore != r.TextScore {
			t.Errorf("pure text weights: HybridScore %v != TextScore %v", r.HybridScore, r.TextScore)
		}
	}
}

func TestHybridSearchPureVectorWeights(t *testing.T) {
	catalog := &fakeCatalog{movies: testMovies()}
	svc := testSearchService(catalog, &fakeEmbedder{vec: []float64{1, 0, 0}}, nil)

	hybrid, err := svc.HybridSearch(context.Background(), &HybridSearchRequest{
		Query:        "dream",
		VectorWeight: 1,
	})
	if err != nil {
		t.Fatalf("HybridSearch failed: %v", err)
	}
	vec, err := svc.VectorSearch(context.Background(), &VectorSearchRequest{Query: "dream"})
	if err != nil {
		t.Fatalf("VectorSearch failed: %v", err)
	}

	// (0,1) reproduces the pure vector ordering; the embedding-less text
	// match must not sneak in with a zero hybrid score.
	if len(hybrid.Results) != len(vec.Results) {
		t.Fatalf("result counts differ: hybrid %d, vector %d", len(hybrid.Results), len(vec.Results))
	}
	for i := range vec.Results {
		if hybrid.Results[i].ID != vec.Results[i].ID {
			t.Errorf("rank %d: hybrid %s, vector %s", i, hybrid.Results[i].ID, vec.Results[i].ID)
		}
		if hybrid.Results[i].HybridScore != hybrid.Results[i].VectorScore {
			t.Errorf("pure vector weights: HybridScore %v != VectorScore %v",
				hybrid.Results[i].HybridScore, hybrid.Results[i].VectorScore)
		}
	}
	for _, r := range hybrid.Results {
		if r.ID == "m4" {
			t.Errorf("movie without embedding returned at vector weight 1")
		}
	}
}

func TestHybridSearchNegativeWeights(t *testing.T) {
	svc := testSearchService(&fakeCatalog{movies: testMovies()}, &fakeEmbedder{}, nil)
	_, err := svc.HybridSearch(context.Background(), &HybridSearchRequest{
		Query:      "dream",
		TextWeight: -1, VectorWeight: 2,
	})
	if err == nil {
		t.Fatal("expected error for negative weight")
	}
}

func TestSearchCacheHit(t *testing.T) {
	catalog := &fakeCatalog{movies: testMovies()}
	c := cache.New(map[string]cache.Config{
		cache.NamespaceSearch: {TTL: time.Minute, Capacity: 10},
	})
	defer c.Close()
	svc := testSearchService(catalog, &fakeEmbedder{}, c)

	for i := 0; i < 3; i++ {
		if _, err := svc.TextSearch(context.Background(), &TextSearchRequest{Query: "dream"}); err != nil {
			t.Fatalf("TextSearch failed: %v", err)
		}
	}

	catalog.mu.Lock()
	calls := catalog.candidateCalls
	catalog.mu.Unlock()
	if calls != 1 {
		t.Errorf("candidate pulls = %d, want 1 (later requests served from cache)", calls)
	}
}

func TestFacetedSearchFiltersAndFacets(t *testing.T) {
	catalog := &fakeCatalog{movies: testMovies()}
	svc := testSearchService(catalog, &fakeEmbedder{}, nil)

	resp, err := svc.FacetedSearch(context.Background(), &FacetedSearchRequest{Genre: "Sci-Fi"})
	if err != nil {
		t.Fatalf("FacetedSearch failed: %v", err)
	}

	if resp.TotalItems != 2 {
		t.Fatalf("TotalItems = %d, want 2", resp.TotalItems)
	}
	// Page results are year desc.
	if resp.Results[0].ID != "m2" || resp.Results[1].ID != "m1" {
		t.Errorf("unexpected page order: %s, %s", resp.Results[0].ID, resp.Results[1].ID)
	}

	genreCount := make(map[string]int)
	for _, b := range resp.Facets.Genres {
		genreCount[b.Value] = b.Count
	}
	if genreCount["Sci-Fi"] != 2 || genreCount["Thriller"] != 1 || genreCount["Drama"] != 1 {
		t.Errorf("unexpected genre facets: %v", genreCount)
	}
}

func TestComputeFacets(t *testing.T) {
	movies := []domain.Movie{
		{Genres: domain.StringArray{"Drama", "Drama", "Crime"}, Year: 2020, Rating: floatPtr(8.0)},
		{Genres: domain.StringArray{"Drama"}, Year: 2020, Rating: floatPtr(10.0)},
		{Genres: domain.StringArray{"Crime"}, Year: 1999, Rating: floatPtr(3.9)},
		{Genres: domain.StringArray{"Comedy"}, Year: 2021},
	}

	facets := computeFacets(movies)

	// Duplicate genre on one movie counts once; ties order by name.
	if facets.Genres[0].Value != "Crime" && facets.Genres[0].Value != "Drama" {
		t.Errorf("unexpected top genre %q", facets.Genres[0].Value)
	}
	genreCount := make(map[string]int)
	for _, b := range facets.Genres {
		genreCount[b.Value] = b.Count
	}
	if genreCount["Drama"] != 2 || genreCount["Crime"] != 2 || genreCount["Comedy"] != 1 {
		t.Errorf("unexpected genre counts: %v", genreCount)
	}

	// Years ordered most recent first.
	if facets.Years[0].Value != "2021" || facets.Years[len(facets.Years)-1].Value != "1999" {
		t.Errorf("unexpected year order: %v", facets.Years)
	}

	ratingCount := make(map[string]int)
	for _, b := range facets.Ratings {
		ratingCount[b.Value] = b.Count
	}
	if ratingCount["8-10"] != 2 || ratingCount["2-4"] != 1 || ratingCount["unknown"] != 1 {
		t.Errorf("unexpected rating buckets: %v", ratingCount)
	}
}

func TestRatingBucket(t *testing.T) {
	tests := []struct {
		rating *float64
		want   string
	}{
		{nil, "unknown"},
		{floatPtr(0), "0-2"},
		{floatPtr(1.9), "0-2"},
		{floatPtr(2), "2-4"},
		{floatPtr(6.5), "6-8"},
		{floatPtr(8), "8-10"},
		{floatPtr(10), "8-10"},
	}
	for _, tt := range tests {
		if got := ratingBucket(tt.rating); got != tt.want {
			t.Errorf("ratingBucket(%v) = %q, want %q", tt.rating, got, tt.want)
		}
	}
}

func TestNormalizeLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 20}, {-5, 20}, {1, 1}, {100, 100}, {500, 100},
	}
	for _, tt := range tests {
		if got := normalizeLimit(tt.in); got != tt.want {
			t.Errorf("normalizeLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSuggest(t *testing.T) {
	catalog := &fakeCatalog{movies: testMovies()}
	svc := testSearchService(catalog, &fakeEmbedder{}, nil)

	resp, err := svc.Suggest(context.Background(), "dream", 0)
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	// Prefix matches rank before mid-title matches; Inception only matches
	// on plot text and is not a title suggestion.
	want := []string{"Dreams of Tomorrow", "The Dream Team"}
	if len(resp.Suggestions) != len(want) {
		t.Fatalf("suggestions = %v, want %v", resp.Suggestions, want)
	}
	for i, title := range want {
		if resp.Suggestions[i] != title {
			t.Errorf("suggestions[%d] = %q, want %q", i, resp.Suggestions[i], title)
		}
	}

	if _, err := svc.Suggest(context.Background(), "   ", 5); err != ErrEmptyQuery {
		t.Errorf("blank prefix error = %v, want ErrEmptyQuery", err)
	}
}

func TestSuggestCached(t *testing.T) {
	catalog := &fakeCatalog{movies: testMovies()}
	c := cache.New(map[string]cache.Config{
		cache.NamespaceAutocomplete: {TTL: time.Minute, Capacity: 10},
	})
	defer c.Close()
	svc := testSearchService(catalog, &fakeEmbedder{}, c)

	for i := 0; i < 3; i++ {
		if _, err := svc.Suggest(context.Background(), "dream", 5); err != nil {
			t.Fatalf("Suggest %d failed: %v", i, err)
		}
	}

	catalog.mu.Lock()
	calls := catalog.candidateCalls
	catalog.mu.Unlock()
	if calls != 1 {
		t.Errorf("candidate pulls = %d, want 1 (later requests served from cache)", calls)
	}
}

func TestFacetAggregationSharedAcrossPages(t *testing.T) {
	catalog := &fakeCatalog{movies: testMovies()}
	c := cache.New(map[string]cache.Config{
		cache.NamespaceSearch:    {TTL: time.Minute, Capacity: 10},
		cache.NamespaceAnalytics: {TTL: time.Minute, Capacity: 10},
	})
	defer c.Close()
	svc := testSearchService(catalog, &fakeEmbedder{}, c)

	p1, err := svc.FacetedSearch(context.Background(), &FacetedSearchRequest{Genre: "Sci-Fi", Limit: 1, Page: 1})
	if err != nil {
		t.Fatalf("page 1 failed: %v", err)
	}
	p2, err := svc.FacetedSearch(context.Background(), &FacetedSearchRequest{Genre: "Sci-Fi", Limit: 1, Page: 2})
	if err != nil {
		t.Fatalf("page 2 failed: %v", err)
	}

	if p1.Results[0].ID == p2.Results[0].ID {
		t.Errorf("pages returned the same movie %s", p1.Results[0].ID)
	}
	if len(p1.Facets.Genres) != len(p2.Facets.Genres) {
		t.Errorf("facets differ across pages: %v vs %v", p1.Facets.Genres, p2.Facets.Genres)
	}

	// One catalog scan per page plus a single shared facet aggregation.
	catalog.mu.Lock()
	calls := catalog.searchCalls
	catalog.mu.Unlock()
	if calls != 3 {
		t.Errorf("catalog scans = %d, want 3 (facet aggregation cached across pages)", calls)
	}
}
