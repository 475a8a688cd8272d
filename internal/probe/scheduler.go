package probe

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/statuspage/internal/domain"
	"github.com/MrSnakeDoc/statuspage/internal/logger"
	"github.com/MrSnakeDoc/statuspage/internal/metrics"
)

// DefaultStartupJitter bounds the random delay before a lineage's first
// check.
const DefaultStartupJitter = 5 * time.Second

// SchedulerConfig tunes the scheduler. Zero values use the defaults.
type SchedulerConfig struct {
	Interval  time.Duration // per-component default, 30s
	Jitter    time.Duration // startup delay upper bound, 5s; negative disables
	Threshold int           // debounce threshold, 3
}

// Scheduler runs one probe lineage per probed component. A lineage owns
// its ticker and its Debouncer; lineages share nothing.
type Scheduler struct {
	checker Checker
	sink    Sink
	logger  logger.Logger
	metrics *metrics.Metrics
	cfg     SchedulerConfig

	mu     sync.Mutex
	parent context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	gen    uint64
	active atomic.Int64
}

// NewScheduler creates a scheduler.
func NewScheduler(checker Checker, sink Sink, log logger.Logger, m *metrics.Metrics, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = domain.DefaultProbeInterval
	}
	if cfg.Jitter == 0 {
		cfg.Jitter = DefaultStartupJitter
	}
	if cfg.Threshold < 1 {
		cfg.Threshold = DefaultFailureThreshold
	}
	return &Scheduler{
		checker: checker,
		sink:    sink,
		logger:  log,
		metrics: m,
		cfg:     cfg,
	}
}

// Start schedules the catalog. Lineages stop when ctx is cancelled or on
// Stop.
func (s *Scheduler) Start(ctx context.Context, catalog *domain.Catalog) {
	s.mu.Lock()
	s.parent = ctx
	s.mu.Unlock()
	s.Reconfigure(catalog)
}

// Reconfigure replaces the schedule. Every lineage of the previous
// generation has exited before the first new one starts.
func (s *Scheduler) Reconfigure(catalog *domain.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	parent := s.parent
	if parent == nil {
		parent = context.Background()
	}
	if parent.Err() != nil {
		return
	}

	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.gen++

	scheduled, skipped := 0, 0
	for _, c := range catalog.Components() {
		if !c.Probed() {
			skipped++
			continue
		}
		comp := *c
		s.wg.Add(1)
		s.active.Add(1)
		go s.lineage(ctx, &comp)
		scheduled++
	}

	s.logger.Info("probe schedule applied",
		logger.Int64("generation", int64(s.gen)),
		logger.Int("scheduled", scheduled),
		logger.Int("skipped", skipped))
}

// Stop cancels every lineage and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Active returns the number of running lineages.
func (s *Scheduler) Active() int {
	return int(s.active.Load())
}

func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
}

func (s *Scheduler) lineage(ctx context.Context, c *domain.Component) {
	defer s.wg.Done()
	defer s.active.Add(-1)

	interval := c.EffectiveInterval(s.cfg.Interval)
	deb := NewDebouncer(s.cfg.Threshold)
	log := s.logger.With(logger.String("component_id", c.ID))

	log.Debug("scheduled probe", logger.Duration("interval", interval))

	if delay := s.startupDelay(); delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	s.check(ctx, c, deb, log)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.check(ctx, c, deb, log)
		}
	}
}

func (s *Scheduler) check(ctx context.Context, c *domain.Component, deb *Debouncer, log logger.Logger) {
	out := s.checker.Execute(ctx, c)
	if ctx.Err() != nil {
		// Retired generation
		return
	}

	res := deb.Observe(out.Err)
	switch {
	case res.Masked:
		s.metrics.MaskedFailure(c.ID)
		log.Warn("probe failure masked",
			logger.Int("attempt", res.Failures),
			logger.Int("threshold", deb.Threshold()),
			logger.Error(out.Err))
	case res.Error != nil:
		log.Error("probe failed",
			logger.Int("attempt", res.Failures),
			logger.Error(out.Err))
	case res.Recovered > 0:
		log.Info("probe recovered",
			logger.Int("failures", res.Recovered))
	}

	_ = s.sink.Report(ctx, c.ID, domain.ProbeResult{
		Status:  res.Status,
		Latency: float64(out.Latency) / float64(time.Millisecond),
		Error:   res.Error,
	})
}

func (s *Scheduler) startupDelay() time.Duration {
	if s.cfg.Jitter <= 0 {
		return 0
	}
	return rand.N(s.cfg.Jitter)
}
