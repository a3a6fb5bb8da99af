package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/natep/cinesearch/internal/domain"
	"github.com/natep/cinesearch/internal/repository"
)

// In-memory store fakes. They implement just enough filter semantics for
// the service tests; anything the services never exercise is left out.

type fakeCatalog struct {
	movies []domain.Movie

	mu             sync.Mutex
	searchCalls    int
	candidateCalls int
}

func (f *fakeCatalog) GetByID(_ context.Context, id string) (*domain.Movie, error) {
	for i := range f.movies {
		if f.movies[i].ID == id {
			m := f.movies[i]
			return &m, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCatalog) GetByIDs(_ context.Context, ids []string) ([]domain.Movie, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []domain.Movie
	for i := range f.movies {
		if _, ok := want[f.movies[i].ID]; ok {
			out = append(out, f.movies[i])
		}
	}
	return out, nil
}

func (f *fakeCatalog) matches(m *domain.Movie, filter *repository.MovieFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Query != "" {
		q := strings.ToLower(filter.Query)
		if !strings.Contains(strings.ToLower(m.Title), q) &&
			!strings.Contains(strings.ToLower(m.Plot), q) {
			return false
		}
	}
	if filter.Genre != "" {
		found := false
		for _, g := range m.Genres {
			if strings.EqualFold(g, filter.Genre) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.YearMin > 0 && m.Year < filter.YearMin {
		return false
	}
	if filter.YearMax > 0 && m.Year > filter.YearMax {
		return false
	}
	if filter.RatingMin > 0 && (m.Rating == nil || *m.Rating < filter.RatingMin) {
		return false
	}
	if filter.RatingMax > 0 && (m.Rating == nil || *m.Rating > filter.RatingMax) {
		return false
	}
	return true
}

func (f *fakeCatalog) Search(_ context.Context, filter *repository.MovieFilter, orderBy string, limit, offset int) ([]domain.Movie, error) {
	f.mu.Lock()
	f.searchCalls++
	f.mu.Unlock()

	var out []domain.Movie
	for i := range f.movies {
		if f.matches(&f.movies[i], filter) {
			out = append(out, f.movies[i])
		}
	}
	switch orderBy {
	case "year DESC":
		sort.SliceStable(out, func(i, j int) bool { return out[i].Year > out[j].Year })
	case "rating DESC":
		sort.SliceStable(out, func(i, j int) bool {
			ri, rj := 0.0, 0.0
			if out[i].Rating != nil {
				ri = *out[i].Rating
			}
			if out[j].Rating != nil {
				rj = *out[j].Rating
			}
			return ri > rj
		})
	case "title ASC":
		sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCatalog) Count(_ context.Context, filter *repository.MovieFilter) (int64, error) {
	var n int64
	for i := range f.movies {
		if f.matches(&f.movies[i], filter) {
			n++
		}
	}
	return n, nil
}

func (f *fakeCatalog) TextCandidates(_ context.Context, query string, limit int) ([]domain.Movie, error) {
	f.mu.Lock()
	f.candidateCalls++
	f.mu.Unlock()

	q := strings.ToLower(query)
	var out []domain.Movie
	for i := range f.movies {
		m := &f.movies[i]
		hit := strings.Contains(strings.ToLower(m.Title), q) ||
			strings.Contains(strings.ToLower(m.Plot), q)
		for _, d := range m.Directors {
			hit = hit || strings.Contains(strings.ToLower(d), q)
		}
		for _, c := range m.Cast {
			hit = hit || strings.Contains(strings.ToLower(c), q)
		}
		if hit {
			out = append(out, *m)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeCatalog) ListWithEmbeddings(_ context.Context, excludeIDs []string, limit int) ([]domain.Movie, error) {
	exclude := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		exclude[id] = struct{}{}
	}
	var out []domain.Movie
	for i := range f.movies {
		if !f.movies[i].HasEmbedding() {
			continue
		}
		if _, skip := exclude[f.movies[i].ID]; skip {
			continue
		}
		out = append(out, f.movies[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeCatalog) ListPopular(_ context.Context, minRating float64, minVotes int64, genres []string, limit int) ([]domain.Movie, error) {
	var out []domain.Movie
	for i := range f.movies {
		m := &f.movies[i]
		if m.Rating == nil || *m.Rating < minRating || m.Votes < minVotes {
			continue
		}
		if len(genres) > 0 {
			found := false
			for _, want := range genres {
				for _, g := range m.Genres {
					if strings.EqualFold(g, want) {
						found = true
					}
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, *m)
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].Rating > *out[j].Rating })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeRatings struct {
	ratings []domain.Rating
}

func (f *fakeRatings) ListByUser(_ context.Context, userID string) ([]domain.Rating, error) {
	var out []domain.Rating
	for _, r := range f.ratings {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRatings) ListByMovies(_ context.Context, movieIDs []string, excludeUserID string, limit int) ([]domain.Rating, error) {
	want := make(map[string]struct{}, len(movieIDs))
	for _, id := range movieIDs {
		want[id] = struct{}{}
	}
	var out []domain.Rating
	for _, r := range f.ratings {
		if r.UserID == excludeUserID {
			continue
		}
		if _, ok := want[r.MovieID]; !ok {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRatings) ListByUsers(_ context.Context, userIDs []string) ([]domain.Rating, error) {
	want := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		want[id] = struct{}{}
	}
	var out []domain.Rating
	for _, r := range f.ratings {
		if _, ok := want[r.UserID]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeViewings struct {
	mu     sync.Mutex
	events []domain.ViewingEvent
	calls  int
}

func (f *fakeViewings) Create(_ context.Context, event *domain.ViewingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeViewings) CountByMovieSince(_ context.Context, since time.Time) ([]repository.ViewCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	counts := make(map[string]int64)
	var order []string
	for _, e := range f.events {
		if e.CreatedAt.Before(since) {
			continue
		}
		if _, seen := counts[e.MovieID]; !seen {
			order = append(order, e.MovieID)
		}
		counts[e.MovieID]++
	}
	out := make([]repository.ViewCount, 0, len(order))
	for _, id := range order {
		out = append(out, repository.ViewCount{MovieID: id, Views: counts[id]})
	}
	return out, nil
}

type fakeTrending struct {
	mu   sync.Mutex
	rows map[string]domain.TrendingScore
}

func (f *fakeTrending) Upsert(_ context.Context, score *domain.TrendingScore) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows == nil {
		f.rows = make(map[string]domain.TrendingScore)
	}
	f.rows[score.MovieID] = *score
	return nil
}

func (f *fakeTrending) ListTop(_ context.Context, limit int) ([]domain.TrendingScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.TrendingScore, 0, len(f.rows))
	for _, row := range f.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeUsers struct {
	users map[string]domain.User
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

type fakeQueryLog struct {
	mu      sync.Mutex
	records []domain.QueryLog
	err     error
}

func (f *fakeQueryLog) Create(_ context.Context, record *domain.QueryLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeQueryLog) all() []domain.QueryLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.QueryLog, len(f.records))
	copy(out, f.records)
	return out
}

type fakeEmbedder struct {
	vec  []float64
	err  error
	fn   func(query string) []float64
	mu   sync.Mutex
	hits int
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, query string) ([]float64, error) {
	f.mu.Lock()
	f.hits++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.fn != nil {
		return f.fn(query), nil
	}
	return f.vec, nil
}

var errFake = errors.New("store unavailable")

func floatPtr(f float64) *float64 {
	return &f
}
