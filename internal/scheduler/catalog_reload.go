package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/statuspage/internal/logger"
)

// CatalogSource re-reads the catalog file and installs it when needed.
type CatalogSource interface {
	ReloadFromSource(ctx context.Context, force bool) (bool, error)
}

// CatalogReloader handles periodic reloading of the catalog file
type CatalogReloader struct {
	source        CatalogSource
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	done          chan struct{}
	manualTrigger chan struct{}
}

// NewCatalogReloader creates a new catalog reloader. A send on
// manualTrigger forces a reload even when the file is unchanged.
func NewCatalogReloader(
	source CatalogSource,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *CatalogReloader {
	return &CatalogReloader{
		source:        source,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start loads the catalog and begins watching the file for changes.
func (cr *CatalogReloader) Start(ctx context.Context) error {
	// Load immediately on start
	if _, err := cr.source.ReloadFromSource(ctx, true); err != nil {
		close(cr.done)
		return fmt.Errorf("initial catalog load failed: %w", err)
	}

	if cr.interval <= 0 && cr.manualTrigger == nil {
		close(cr.done)
		return nil
	}

	// Start periodic reload
	var tick <-chan time.Time
	var ticker *time.Ticker
	if cr.interval > 0 {
		ticker = time.NewTicker(cr.interval)
		tick = ticker.C
	}
	go func() {
		defer close(cr.done)
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-tick:
				cr.reload(ctx, false)
			case <-cr.manualTrigger:
				cr.logger.Info("manual catalog reload triggered")
				cr.reload(ctx, true)
			case <-cr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader and waits for it to exit.
func (cr *CatalogReloader) Stop() {
	cr.stopOnce.Do(func() { close(cr.stopCh) })
	<-cr.done
}

func (cr *CatalogReloader) reload(ctx context.Context, force bool) {
	if _, err := cr.source.ReloadFromSource(ctx, force); err != nil {
		// The previous catalog stays live
		cr.logger.Error("failed to reload catalog",
			logger.Error(err))
	}
}
