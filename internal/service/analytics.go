package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/natep/cinesearch/internal/domain"
	"github.com/natep/cinesearch/internal/logger"
)

// AnalyticsService persists query log records off the request path. Records
// are handed to a buffered channel and written by a background goroutine;
// when the buffer is full the record is dropped and the drop is logged.
// Nothing on this path ever fails or delays a search response.
type AnalyticsService struct {
	store     QueryLogStore
	logger    *logger.Logger
	ch        chan domain.QueryLog
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewAnalyticsService creates the analytics writer and starts its worker.
// Parameters:
//   - store: query log store; nil disables persistence entirely.
//   - buffer: channel capacity; <=0 uses a default of 256.
//   - log: logger instance.
// Returns:
//   - *AnalyticsService: running analytics service.
func NewAnalyticsService(store QueryLogStore, buffer int, log *logger.Logger) *AnalyticsService {
	if buffer <= 0 {
		buffer = 256
	}
	s := &AnalyticsService{
		store:  store,
		logger: log,
		ch:     make(chan domain.QueryLog, buffer),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Record dispatches a query log record without blocking. Safe to call after
// Close (the send is dropped).
func (s *AnalyticsService) Record(userID, query, searchType string, filters map[string]string, resultCount int) {
	var filtersJSON string
	if len(filters) > 0 {
		if b, err := json.Marshal(filters); err == nil {
			filtersJSON = string(b)
		}
	}

	record := domain.QueryLog{
		UserID:      userID,
		Query:       query,
		SearchType:  searchType,
		Filters:     filtersJSON,
		ResultCount: resultCount,
		CreatedAt:   time.Now(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- record:
	default:
		s.logger.WithField(logger.FieldQuery, query).
			Warn("Query log buffer full, dropping record")
	}
}

// Close stops accepting records and waits for the buffered ones to drain.
func (s *AnalyticsService) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.ch)
	})
	s.wg.Wait()
}

func (s *AnalyticsService) run() {
	defer s.wg.Done()
	for record := range s.ch {
		if s.store == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.store.Create(ctx, &record); err != nil {
			// Telemetry loss only; the search response already went out.
			s.logger.WithError(err).Warn("Failed to persist query log record")
		}
		cancel()
	}
}
