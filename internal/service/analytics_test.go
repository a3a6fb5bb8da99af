package service

import (
	"testing"

	"github.com/natep/cinesearch/internal/domain"
	"github.com/natep/cinesearch/internal/logger"
)

func TestAnalyticsRecordPersists(t *testing.T) {
	store := &fakeQueryLog{}
	svc := NewAnalyticsService(store, 8, logger.NewDefault())

	svc.Record("u1", "heist movies", domain.SearchTypeHybrid, map[string]string{"tw": "0.4"}, 12)
	svc.Record("", "anonymous query", domain.SearchTypeText, nil, 0)
	svc.Close() // drains the buffer

	records := store.all()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	first := records[0]
	if first.UserID != "u1" || first.Query != "heist movies" || first.SearchType != domain.SearchTypeHybrid {
		t.Errorf("unexpected record: %+v", first)
	}
	if first.Filters == "" {
		t.Error("filters not serialized")
	}
	if records[1].Filters != "" {
		t.Errorf("empty filters should serialize to empty string, got %q", records[1].Filters)
	}
}

func TestAnalyticsRecordAfterClose(t *testing.T) {
	store := &fakeQueryLog{}
	svc := NewAnalyticsService(store, 8, logger.NewDefault())
	svc.Close()

	// Must not panic or block.
	svc.Record("u1", "late query", domain.SearchTypeText, nil, 3)

	if n := len(store.all()); n != 0 {
		t.Errorf("expected no records after close, got %d", n)
	}
}

func TestAnalyticsCloseIdempotent(t *testing.T) {
	svc := NewAnalyticsService(&fakeQueryLog{}, 8, logger.NewDefault())
	svc.Close()
	svc.Close()
}

func TestAnalyticsStoreErrorDoesNotPropagate(t *testing.T) {
	store := &fakeQueryLog{err: errFake}
	svc := NewAnalyticsService(store, 8, logger.NewDefault())

	svc.Record("u1", "doomed query", domain.SearchTypeText, nil, 1)
	svc.Close() // worker swallows the store error
}
