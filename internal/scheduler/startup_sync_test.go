package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/MrSnakeDoc/statuspage/internal/aggregator"
	"github.com/MrSnakeDoc/statuspage/internal/logger"
)

type fakeHydrator struct {
	limit int
	err   error
}

func (f *fakeHydrator) Hydrate(ctx context.Context, reader aggregator.HistoryReader, limit int) error {
	f.limit = limit
	return f.err
}

type fakeIncidents struct {
	called bool
}

func (f *fakeIncidents) ApplyOpenIncidents(ctx context.Context) (int, error) {
	f.called = true
	return 1, nil
}

func TestStartupSyncer_Sync(t *testing.T) {
	h := &fakeHydrator{}
	inc := &fakeIncidents{}

	NewStartupSyncer(h, nil, inc, logger.NewNop(), 90).Sync(context.Background())

	if h.limit != 90 {
		t.Errorf("Expected hydration of 90 days, got %d", h.limit)
	}
	if !inc.called {
		t.Error("Open incidents were not applied")
	}
}

func TestStartupSyncer_HydrationFailureStillAppliesIncidents(t *testing.T) {
	h := &fakeHydrator{err: errors.New("redis down")}
	inc := &fakeIncidents{}

	NewStartupSyncer(h, nil, inc, logger.NewNop(), 90).Sync(context.Background())

	if !inc.called {
		t.Error("Open incidents must be applied even when hydration is partial")
	}
}
