package service

import (
	"context"
	"math"
	"testing"

	"github.com/natep/cinesearch/internal/domain"
)

func testRecommendService(catalog *fakeCatalog, ratings *fakeRatings, users *fakeUsers) *RecommendationService {
	return NewRecommendationService(catalog, ratings, users, nil, nil, RecommendConfig{
		NeighborThreshold:  3,
		NeighborCap:        200,
		CandidateCap:       500,
		ColdStartMinRating: 7.0,
		ColdStartMinVotes:  10000,
	})
}

func TestForUserContentBased(t *testing.T) {
	catalog := &fakeCatalog{movies: []domain.Movie{
		{ID: "liked1", Title: "Liked One", Embedding: domain.Vector{1, 0, 0}, Rating: floatPtr(8)},
		{ID: "liked2", Title: "Liked Two", Embedding: domain.Vector{0, 1, 0}, Rating: floatPtr(8)},
		{ID: "near", Title: "Near Both", Embedding: domain.Vector{1, 1, 0}, Rating: floatPtr(7)},
		{ID: "far", Title: "Far Away", Embedding: domain.Vector{0, 0, 1}, Rating: floatPtr(7)},
		{ID: "opposite", Title: "Opposite Taste", Embedding: domain.Vector{-1, 0, 0}, Rating: floatPtr(7)},
	}}
	ratings := &fakeRatings{ratings: []domain.Rating{
		{UserID: "u1", MovieID: "liked1", Rating: 5},
		{UserID: "u1", MovieID: "liked2", Rating: 4},
	}}

	svc := testRecommendService(catalog, ratings, &fakeUsers{})
	resp, err := svc.ForUser(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("ForUser failed: %v", err)
	}

	if resp.Source != SourceContentBased {
		t.Fatalf("Source = %q, want %q", resp.Source, SourceContentBased)
	}
	if resp.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", resp.UserID)
	}

	// Mean similarity against both liked vectors: near 0.707, far 0,
	// opposite -0.5. Liked movies never come back.
	if len(resp.Recommendations) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(resp.Recommendations))
	}
	for i, wantID := range []string{"near", "far", "opposite"} {
		if resp.Recommendations[i].ID != wantID {
			t.Errorf("rank %d = %s, want %s", i, resp.Recommendations[i].ID, wantID)
		}
	}
	if math.Abs(resp.Recommendations[0].Score-1/math.Sqrt2) > 1e-9 {
		t.Errorf("top score = %v, want %v", resp.Recommendations[0].Score, 1/math.Sqrt2)
	}
	for _, rec := range resp.Recommendations {
		if rec.ID == "liked1" || rec.ID == "liked2" {
			t.Errorf("liked movie %s recommended back", rec.ID)
		}
	}
}

func TestSimilar(t *testing.T) {
	catalog := &fakeCatalog{movies: []domain.Movie{
		{ID: "anchor", Title: "Anchor", Embedding: domain.Vector{1, 0, 0}},
		{ID: "close", Title: "Close", Embedding: domain.Vector{0.9, 0.1, 0}},
		{ID: "unrelated", Title: "Unrelated", Embedding: domain.Vector{0, 0, 1}},
		{ID: "bare", Title: "No Embedding"},
	}}
	svc := testRecommendService(catalog, &fakeRatings{}, &fakeUsers{})

	resp, err := svc.Similar(context.Background(), "anchor", 10)
	if err != nil {
		t.Fatalf("Similar failed: %v", err)
	}
	if resp.Source != SourceSimilar {
		t.Fatalf("Source = %q, want %q", resp.Source, SourceSimilar)
	}
	if len(resp.Recommendations) != 2 || resp.Recommendations[0].ID != "close" {
		t.Fatalf("unexpected recommendations: %+v", resp.Recommendations)
	}

	if _, err := svc.Similar(context.Background(), "bare", 10); err != ErrNoEmbedding {
		t.Errorf("expected ErrNoEmbedding for embedding-less anchor, got %v", err)
	}
	if _, err := svc.Similar(context.Background(), "missing", 10); err == nil {
		t.Error("expected not-found error for unknown anchor")
	}
}

func TestForUserColdStart(t *testing.T) {
	catalog := &fakeCatalog{movies: []domain.Movie{
		{ID: "popular", Title: "Popular", Genres: domain.StringArray{"Drama"}, Rating: floatPtr(8.5), Votes: 500000},
		{ID: "obscure", Title: "Obscure Gem", Genres: domain.StringArray{"Drama"}, Rating: floatPtr(9.0), Votes: 500},
		{ID: "mediocre", Title: "Mediocre Hit", Genres: domain.StringArray{"Drama"}, Rating: floatPtr(5.0), Votes: 900000},
	}}

	svc := testRecommendService(catalog, &fakeRatings{}, &fakeUsers{})
	resp, err := svc.ForUser(context.Background(), "newcomer", 10)
	if err != nil {
		t.Fatalf("ForUser failed: %v", err)
	}

	if resp.Source != SourceColdStart {
		t.Fatalf("Source = %q, want %q", resp.Source, SourceColdStart)
	}
	if len(resp.Recommendations) != 1 || resp.Recommendations[0].ID != "popular" {
		t.Fatalf("expected only the popular title, got %+v", resp.Recommendations)
	}
}

func TestForUserColdStartGenrePreference(t *testing.T) {
	catalog := &fakeCatalog{movies: []domain.Movie{
		{ID: "drama", Title: "Acclaimed Drama", Genres: domain.StringArray{"Drama"}, Rating: floatPtr(8.0), Votes: 100000},
		{ID: "horror", Title: "Acclaimed Horror", Genres: domain.StringArray{"Horror"}, Rating: floatPtr(8.5), Votes: 100000},
	}}
	users := &fakeUsers{users: map[string]domain.User{
		"u1": {ID: "u1", PreferredGenres: domain.StringArray{"Drama"}},
	}}

	svc := testRecommendService(catalog, &fakeRatings{}, users)
	resp, err := svc.ForUser(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("ForUser failed: %v", err)
	}
	if len(resp.Recommendations) != 1 || resp.Recommendations[0].ID != "drama" {
		t.Fatalf("expected preferred-genre pick, got %+v", resp.Recommendations)
	}
}

func TestForUserColdStartUnknownUser(t *testing.T) {
	catalog := &fakeCatalog{movies: []domain.Movie{
		{ID: "popular", Title: "Popular", Rating: floatPtr(8.0), Votes: 100000},
	}}
	svc := testRecommendService(catalog, &fakeRatings{}, &fakeUsers{})

	resp, err := svc.ForUser(context.Background(), "ghost", 10)
	if err != nil {
		t.Fatalf("unknown user should still get popular picks: %v", err)
	}
	if resp.Source != SourceColdStart || len(resp.Recommendations) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestForUserFallsBackWithoutEmbeddedLikes(t *testing.T) {
	catalog := &fakeCatalog{movies: []domain.Movie{
		{ID: "liked1", Title: "Liked, No Embedding", Rating: floatPtr(8)},
		{ID: "popular", Title: "Popular", Rating: floatPtr(8.0), Votes: 100000},
	}}
	ratings := &fakeRatings{ratings: []domain.Rating{
		{UserID: "u1", MovieID: "liked1", Rating: 5},
	}}

	svc := testRecommendService(catalog, ratings, &fakeUsers{})
	resp, err := svc.ForUser(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("ForUser failed: %v", err)
	}
	if resp.Source != SourceColdStart {
		t.Fatalf("Source = %q, want cold start fallback", resp.Source)
	}
}

func TestCollaborative(t *testing.T) {
	catalog := &fakeCatalog{movies: []domain.Movie{
		{ID: "a", Title: "A"}, {ID: "b", Title: "B"}, {ID: "c", Title: "C"},
		{ID: "gem", Title: "Neighbor Favorite"},
		{ID: "dud", Title: "Neighbor Dud"},
	}}
	ratings := &fakeRatings{ratings: []domain.Rating{
		// u1 rated a, b, c.
		{UserID: "u1", MovieID: "a", Rating: 5},
		{UserID: "u1", MovieID: "b", Rating: 4},
		{UserID: "u1", MovieID: "c", Rating: 3},
		// n1 shares all three and loves gem -> qualifies as neighbor.
		{UserID: "n1", MovieID: "a", Rating: 5},
		{UserID: "n1", MovieID: "b", Rating: 5},
		{UserID: "n1", MovieID: "c", Rating: 4},
		{UserID: "n1", MovieID: "gem", Rating: 5},
		{UserID: "n1", MovieID: "dud", Rating: 2},
		// n2 also shares all three but was cold on gem.
		{UserID: "n2", MovieID: "a", Rating: 4},
		{UserID: "n2", MovieID: "b", Rating: 4},
		{UserID: "n2", MovieID: "c", Rating: 5},
		{UserID: "n2", MovieID: "gem", Rating: 2},
		// n3 shares only one movie -> below the overlap threshold.
		{UserID: "n3", MovieID: "a", Rating: 5},
		{UserID: "n3", MovieID: "dud", Rating: 5},
	}}

	svc := testRecommendService(catalog, ratings, &fakeUsers{})
	resp, err := svc.Collaborative(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("Collaborative failed: %v", err)
	}

	if resp.Source != SourceCollaborative {
		t.Fatalf("Source = %q, want %q", resp.Source, SourceCollaborative)
	}
	// gem: only n1's liked rating contributes; n2's cold 2 neither dilutes
	// the mean nor counts as a recommender. dud: n1 rated it below the
	// liked threshold and n3 is not a neighbor, so it has no contributors.
	// a/b/c already rated.
	if len(resp.Recommendations) != 1 {
		t.Fatalf("expected 1 recommendation, got %+v", resp.Recommendations)
	}
	rec := resp.Recommendations[0]
	if rec.ID != "gem" || rec.Score != 5 || rec.RecommenderCount != 1 {
		t.Errorf("unexpected recommendation: %+v", rec)
	}
}

func TestCollaborativeNoRatings(t *testing.T) {
	svc := testRecommendService(&fakeCatalog{}, &fakeRatings{}, &fakeUsers{})
	resp, err := svc.Collaborative(context.Background(), "nobody", 10)
	if err != nil {
		t.Fatalf("Collaborative failed: %v", err)
	}
	if resp.Source != SourceCollaborative || len(resp.Recommendations) != 0 {
		t.Fatalf("expected empty collaborative response, got %+v", resp)
	}
}

func TestCollaborativeNoNeighbors(t *testing.T) {
	ratings := &fakeRatings{ratings: []domain.Rating{
		{UserID: "u1", MovieID: "a", Rating: 5},
		{UserID: "n1", MovieID: "a", Rating: 5}, // only 1 shared movie
	}}
	svc := testRecommendService(&fakeCatalog{}, ratings, &fakeUsers{})
	resp, err := svc.Collaborative(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("Collaborative failed: %v", err)
	}
	if len(resp.Recommendations) != 0 {
		t.Fatalf("expected no recommendations without neighbors, got %+v", resp.Recommendations)
	}
}

func TestMeanSimilarity(t *testing.T) {
	liked := [][]float64{{1, 0}, {0, 1}}
	got := meanSimilarity([]float64{1, 0}, liked)
	if math.Abs(got-0.5) > 1e-9 {
		t.Errorf("meanSimilarity = %v, want 0.5", got)
	}
}
