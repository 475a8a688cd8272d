package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/statuspage/internal/logger"
)

const (
	// DefaultRetentionDays is how long day records are kept
	DefaultRetentionDays = 365
	// DefaultPurgeInterval is the period of the retention job
	DefaultPurgeInterval = 24 * time.Hour
)

// HistoryPurger deletes day records older than a number of days.
type HistoryPurger interface {
	PurgeOlderThan(ctx context.Context, retentionDays int) (int, error)
}

// RetentionPurger handles cleanup of day records past the retention window
type RetentionPurger struct {
	store         HistoryPurger
	logger        logger.Logger
	interval      time.Duration
	retentionDays int
	stopCh        chan struct{}
	stopOnce      sync.Once
	done          chan struct{}
}

// NewRetentionPurger creates a new retention purger
func NewRetentionPurger(
	store HistoryPurger,
	log logger.Logger,
	interval time.Duration,
	retentionDays int,
) *RetentionPurger {
	if interval <= 0 {
		interval = DefaultPurgeInterval
	}
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}

	return &RetentionPurger{
		store:         store,
		logger:        log,
		interval:      interval,
		retentionDays: retentionDays,
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start runs a purge immediately, then once per interval.
func (rp *RetentionPurger) Start(ctx context.Context) error {
	// Run immediately on start
	if err := rp.Purge(ctx); err != nil {
		rp.logger.Warn("initial history purge failed",
			logger.Error(err))
	}

	// Start periodic purge
	ticker := time.NewTicker(rp.interval)
	go func() {
		defer close(rp.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := rp.Purge(ctx); err != nil {
					rp.logger.Error("history purge failed",
						logger.Error(err))
				}
			case <-rp.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the purger and waits for it to exit.
func (rp *RetentionPurger) Stop() {
	rp.stopOnce.Do(func() { close(rp.stopCh) })
	<-rp.done
}

// Purge removes day records older than the retention window. A failure is
// returned and retried on the next tick.
func (rp *RetentionPurger) Purge(ctx context.Context) error {
	if rp.store == nil {
		return nil
	}

	deleted, err := rp.store.PurgeOlderThan(ctx, rp.retentionDays)
	if err != nil {
		return err
	}

	if deleted > 0 {
		rp.logger.Info("history purge completed",
			logger.Int("records_deleted", deleted),
			logger.Int("retention_days", rp.retentionDays))
	} else {
		rp.logger.Debug("no history records to purge")
	}

	return nil
}
