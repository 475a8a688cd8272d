package scheduler

import (
	"context"

	"github.com/MrSnakeDoc/statuspage/internal/aggregator"
	"github.com/MrSnakeDoc/statuspage/internal/logger"
)

// Hydrator loads persisted history into live state.
type Hydrator interface {
	Hydrate(ctx context.Context, reader aggregator.HistoryReader, limit int) error
}

// IncidentSyncer re-applies the overrides of open incidents.
type IncidentSyncer interface {
	ApplyOpenIncidents(ctx context.Context) (int, error)
}

// StartupSyncer restores live state from Redis on startup
type StartupSyncer struct {
	hydrator    Hydrator
	history     aggregator.HistoryReader
	incidents   IncidentSyncer
	logger      logger.Logger
	historyDays int
}

// NewStartupSyncer creates a new startup syncer
func NewStartupSyncer(
	hydrator Hydrator,
	history aggregator.HistoryReader,
	incidents IncidentSyncer,
	log logger.Logger,
	historyDays int,
) *StartupSyncer {
	return &StartupSyncer{
		hydrator:    hydrator,
		history:     history,
		incidents:   incidents,
		logger:      log,
		historyDays: historyDays,
	}
}

// Sync hydrates history, then applies open incidents. Both steps are best
// effort: a partial failure is logged and the service starts anyway.
func (ss *StartupSyncer) Sync(ctx context.Context) {
	ss.logger.Info("syncing live state from redis")

	if err := ss.hydrator.Hydrate(ctx, ss.history, ss.historyDays); err != nil {
		ss.logger.Warn("history hydration incomplete",
			logger.Error(err))
	} else {
		ss.logger.Info("history hydrated from redis",
			logger.Int("days", ss.historyDays))
	}

	if ss.incidents == nil {
		return
	}
	if _, err := ss.incidents.ApplyOpenIncidents(ctx); err != nil {
		ss.logger.Error("failed to sync active incidents",
			logger.Error(err))
	}
}
