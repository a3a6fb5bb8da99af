package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/natep/cinesearch/internal/domain"
	"github.com/natep/cinesearch/internal/logger"
	"github.com/natep/cinesearch/internal/storage"
)

// TrendingConfig holds configuration for the trending service.
type TrendingConfig struct {
	Multiplier float64       // boost applied to recent-window views
	WindowDays int           // recency window in days
	MinRefresh time.Duration // min interval between lazy recomputes
}

// TrendingService maintains popularity scores that weight recent viewing
// activity above older activity. Scores are recomputed lazily on read, at
// most once per refresh interval, so reads stay cheap between recomputes.
type TrendingService struct {
	movies   CatalogStore
	viewings ViewingStore
	trending TrendingStore
	storage  storage.ObjectStorage
	logger   *logger.Logger
	cfg      TrendingConfig

	mu            sync.Mutex
	lastRecompute time.Time

	now func() time.Time
}

// NewTrendingService creates a new trending service.
// Parameters:
//   - movies: catalog store.
//   - viewings: viewing event store.
//   - trending: trending score store.
//   - posterStorage: object storage for poster URLs; nil disables enrichment.
//   - log: logger instance.
//   - cfg: trending configuration settings.
// Returns:
//   - *TrendingService: initialized trending service.
func NewTrendingService(
	movies CatalogStore,
	viewings ViewingStore,
	trending TrendingStore,
	posterStorage storage.ObjectStorage,
	log *logger.Logger,
	cfg TrendingConfig,
) *TrendingService {
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 1.5
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 7
	}
	if cfg.MinRefresh <= 0 {
		cfg.MinRefresh = 5 * time.Minute
	}
	return &TrendingService{
		movies:   movies,
		viewings: viewings,
		trending: trending,
		storage:  posterStorage,
		logger:   log,
		cfg:      cfg,
		now:      time.Now,
	}
}

// RecordView appends a viewing event for trending aggregation.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: viewer; may be empty for anonymous views.
//   - movieID: viewed movie.
//   - watchedSeconds: how long the title was watched.
//   - completed: whether the viewing reached the end.
// Returns:
//   - error: non-nil if the event cannot be stored.
func (t *TrendingService) RecordView(ctx context.Context, userID, movieID string, watchedSeconds int, completed bool) error {
	event := &domain.ViewingEvent{
		UserID:         userID,
		MovieID:        movieID,
		WatchedSeconds: watchedSeconds,
		Completed:      completed,
	}
	if err := t.viewings.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to record view: %w", err)
	}
	return nil
}

// TrendingMovie is a single entry of the trending list.
type TrendingMovie struct {
	MovieResult
	TrendingScore float64 `json:"trending_score"`
	ViewCount     int64   `json:"view_count"`
	RecentViews   int64   `json:"recent_views"`
}

// TrendingResponse represents the current trending list.
type TrendingResponse struct {
	Results    []TrendingMovie `json:"results"`
	WindowDays int             `json:"window_days"`
	ComputedAt time.Time       `json:"computed_at"`
	Total      int             `json:"total"`
}

// GetTrending returns the current trending list, refreshing stale scores
// first. daysBack overrides the configured window for this request when
// positive; override windows are aggregated request-locally and never
// written back, so the persisted scores always reflect the configured
// window.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: max entries to return.
//   - daysBack: optional window override in days; 0 uses the configured window.
// Returns:
//   - *TrendingResponse: ranked trending movies.
//   - error: non-nil if scores cannot be read or refreshed.
func (t *TrendingService) GetTrending(ctx context.Context, limit, daysBack int) (*TrendingResponse, error) {
	limit = normalizeLimit(limit)

	if daysBack > 0 && daysBack != t.cfg.WindowDays {
		return t.windowedTrending(ctx, limit, daysBack)
	}

	if err := t.maybeRecompute(ctx); err != nil {
		return nil, err
	}

	scores, err := t.trending.ListTop(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load trending scores: %w", err)
	}

	results := make([]TrendingMovie, 0, len(scores))
	for _, sc := range scores {
		movie, err := t.movies.GetByID(ctx, sc.MovieID)
		if err != nil {
			logger.CtxWarn(ctx, "Trending movie %s missing from catalog: %v", sc.MovieID, err)
			continue
		}
		results = append(results, TrendingMovie{
			MovieResult:   newMovieResult(movie, t.storage),
			TrendingScore: sc.Score,
			ViewCount:     sc.ViewCount,
			RecentViews:   sc.WeeklyViews,
		})
	}

	return &TrendingResponse{
		Results:    results,
		WindowDays: t.cfg.WindowDays,
		ComputedAt: t.lastRecomputeTime(),
		Total:      len(results),
	}, nil
}

// windowedTrending serves a window override from the event log directly,
// leaving the persisted scores untouched.
func (t *TrendingService) windowedTrending(ctx context.Context, limit, windowDays int) (*TrendingResponse, error) {
	nowUTC := t.now().UTC()

	recent, err := t.viewings.CountByMovieSince(ctx, nowUTC.AddDate(0, 0, -windowDays))
	if err != nil {
		return nil, fmt.Errorf("failed to count recent views: %w", err)
	}
	totals, err := t.allTimeViews(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(recent, func(i, j int) bool {
		if recent[i].Views != recent[j].Views {
			return recent[i].Views > recent[j].Views
		}
		return recent[i].MovieID < recent[j].MovieID
	})
	if len(recent) > limit {
		recent = recent[:limit]
	}

	results := make([]TrendingMovie, 0, len(recent))
	for _, vc := range recent {
		movie, err := t.movies.GetByID(ctx, vc.MovieID)
		if err != nil {
			logger.CtxWarn(ctx, "Trending movie %s missing from catalog: %v", vc.MovieID, err)
			continue
		}
		results = append(results, TrendingMovie{
			MovieResult:   newMovieResult(movie, t.storage),
			TrendingScore: float64(vc.Views) * t.cfg.Multiplier,
			ViewCount:     totals[vc.MovieID],
			RecentViews:   vc.Views,
		})
	}

	return &TrendingResponse{
		Results:    results,
		WindowDays: windowDays,
		ComputedAt: nowUTC,
		Total:      len(results),
	}, nil
}

// maybeRecompute refreshes scores when they are older than the refresh
// interval. The mutex serializes recomputes; concurrent readers that lose
// the race reuse the fresh scores the winner just wrote.
func (t *TrendingService) maybeRecompute(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.now().Sub(t.lastRecompute) < t.cfg.MinRefresh {
		return nil
	}
	if err := t.recomputeLocked(ctx); err != nil {
		return err
	}
	t.lastRecompute = t.now()
	return nil
}

// Recompute rebuilds all trending scores immediately, ignoring the refresh
// throttle. Intended for startup warm-up and operational use.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - error: non-nil if the recompute fails.
func (t *TrendingService) Recompute(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.recomputeLocked(ctx); err != nil {
		return err
	}
	t.lastRecompute = t.now()
	return nil
}

// recomputeLocked aggregates views over the trailing configured window and
// upserts score = views * multiplier per movie. Movies with zero views in
// the window keep whatever row they had; the aggregate simply never visits
// them. Each upsert is a single-row write, so a failure part way leaves
// earlier rows updated and the next recompute converges them.
func (t *TrendingService) recomputeLocked(ctx context.Context) error {
	nowUTC := t.now().UTC()
	since := nowUTC.AddDate(0, 0, -t.cfg.WindowDays)

	recent, err := t.viewings.CountByMovieSince(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to count recent views: %w", err)
	}
	totals, err := t.allTimeViews(ctx)
	if err != nil {
		return err
	}

	start := t.now()
	var updated int
	for _, vc := range recent {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry := &domain.TrendingScore{
			MovieID:     vc.MovieID,
			ViewCount:   totals[vc.MovieID],
			WeeklyViews: vc.Views,
			Score:       float64(vc.Views) * t.cfg.Multiplier,
			UpdatedAt:   nowUTC,
		}
		if err := t.trending.Upsert(ctx, entry); err != nil {
			return fmt.Errorf("failed to store trending score for %s: %w", vc.MovieID, err)
		}
		updated++
	}

	if t.logger != nil {
		t.logger.WithFields(logger.Fields{
			logger.FieldComponent:  "trending",
			logger.FieldCount:      updated,
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
		}).Info("Trending scores recomputed")
	}
	return nil
}

// allTimeViews aggregates total view counts per movie over the whole event
// log, for the view_count field alongside the windowed score inputs.
func (t *TrendingService) allTimeViews(ctx context.Context) (map[string]int64, error) {
	counts, err := t.viewings.CountByMovieSince(ctx, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to count total views: %w", err)
	}
	totals := make(map[string]int64, len(counts))
	for _, vc := range counts {
		totals[vc.MovieID] = vc.Views
	}
	return totals, nil
}

func (t *TrendingService) lastRecomputeTime() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRecompute
}
