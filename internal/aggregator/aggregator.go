package aggregator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/MrSnakeDoc/statuspage/internal/domain"
	"github.com/MrSnakeDoc/statuspage/internal/logger"
	"github.com/MrSnakeDoc/statuspage/internal/metrics"
)

const (
	// DefaultHistoryDays is the trailing history kept per component.
	DefaultHistoryDays = 90
	// DefaultWriteTimeout bounds one asynchronous history write.
	DefaultWriteTimeout = 5 * time.Second
)

// HistoryRecorder persists day records.
type HistoryRecorder interface {
	RecordObservation(ctx context.Context, componentID string, status domain.Status) error
}

// HistoryReader loads day records, newest first.
type HistoryReader interface {
	GetHistory(ctx context.Context, componentID string, limit int) ([]domain.DayRecord, error)
}

// state is the live record of one component. Fields are guarded by mu.
type state struct {
	mu        sync.Mutex
	component *domain.Component
	status    domain.Status
	regions   map[string]domain.Status
	override  *domain.Status
	history   []domain.DayRecord
}

func newState(c *domain.Component) *state {
	return &state{
		component: c,
		status:    domain.StatusOperational,
		regions:   make(map[string]domain.Status),
	}
}

// Aggregator owns the status of every component. Per-component mutations
// hold the table read lock plus that component's mutex, so different
// components progress in parallel. ReloadConfig takes the table write lock
// and therefore never observes a mutation half-way.
type Aggregator struct {
	mu      sync.RWMutex
	catalog *domain.Catalog
	states  map[string]*state

	recorder     HistoryRecorder
	logger       logger.Logger
	metrics      *metrics.Metrics
	historyDays  int
	writeTimeout time.Duration
	now          func() time.Time

	writes sync.WaitGroup
}

// Option customises an Aggregator.
type Option func(*Aggregator)

// WithMetrics exports component statuses and history failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithHistoryDays sets the trailing history length kept in memory.
func WithHistoryDays(days int) Option {
	return func(a *Aggregator) {
		if days > 0 {
			a.historyDays = days
		}
	}
}

// WithWriteTimeout bounds each asynchronous history write.
func WithWriteTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.writeTimeout = d
		}
	}
}

// WithClock overrides the time source used to date history entries.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// New creates an aggregator for catalog. recorder may be nil, in which case
// status changes are not persisted.
func New(catalog *domain.Catalog, recorder HistoryRecorder, log logger.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		recorder:     recorder,
		logger:       log,
		historyDays:  DefaultHistoryDays,
		writeTimeout: DefaultWriteTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if catalog == nil {
		catalog = &domain.Catalog{}
	}

	a.catalog = catalog
	a.states = make(map[string]*state, catalog.Len())
	for _, c := range catalog.Components() {
		a.states[c.ID] = newState(c)
		a.metrics.SetComponentStatus(c.ID, domain.StatusOperational.Priority())
	}
	return a
}

// Ingest records the status a region observed for a component and
// recalculates it. Unknown components are ignored and false is returned.
func (a *Aggregator) Ingest(componentID, region string, status domain.Status) bool {
	if !status.Valid() {
		return false
	}
	return a.mutate(componentID, func(st *state) {
		st.regions[region] = status
	})
}

// SetIncidentOverride applies the severity an incident imposes on a
// component. Resolved and non-severity phases clear the override.
func (a *Aggregator) SetIncidentOverride(componentID string, status domain.IncidentStatus) bool {
	return a.mutate(componentID, func(st *state) {
		st.override = status.Override()
	})
}

// Recalculate recomputes a component's status from its current inputs. It
// reports whether the status changed; unchanged inputs never trigger a
// history write.
func (a *Aggregator) Recalculate(componentID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st, ok := a.states[componentID]
	if !ok {
		return false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return a.recalculateLocked(componentID, st)
}

// mutate applies fn and recalculates as one critical section.
func (a *Aggregator) mutate(componentID string, fn func(*state)) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st, ok := a.states[componentID]
	if !ok {
		return false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	fn(st)
	a.recalculateLocked(componentID, st)
	return true
}

// recalculateLocked must be called with st.mu held.
func (a *Aggregator) recalculateLocked(componentID string, st *state) bool {
	derived := domain.StatusOperational
	for _, s := range st.regions {
		derived = domain.MaxStatus(derived, s)
	}

	final := derived
	if st.override != nil && st.override.Outranks(derived) {
		final = *st.override
	}
	if final == st.status {
		return false
	}

	var override string
	if st.override != nil {
		override = st.override.String()
	}
	a.logger.Info("component status changed",
		logger.String("component_id", componentID),
		logger.Stringer("from", st.status),
		logger.Stringer("to", final),
		logger.Stringer("regions", derived),
		logger.String("incident", override))

	st.status = final
	st.history = domain.MergeHistory(st.history, componentID, domain.DateOf(a.now()), final, a.historyDays)
	a.metrics.SetComponentStatus(componentID, final.Priority())
	a.record(componentID, final)
	return true
}

// record persists a status change without making the caller wait.
func (a *Aggregator) record(componentID string, status domain.Status) {
	if a.recorder == nil {
		return
	}
	a.writes.Add(1)
	go func() {
		defer a.writes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.writeTimeout)
		defer cancel()
		if err := a.recorder.RecordObservation(ctx, componentID, status); err != nil {
			a.metrics.HistoryWriteFailed()
			a.logger.Warn("failed to record status history",
				logger.String("component_id", componentID),
				logger.Stringer("status", status),
				logger.Error(err))
		}
	}()
}

// Wait blocks until every in-flight history write has finished.
func (a *Aggregator) Wait() {
	a.writes.Wait()
}

// ReloadSummary describes what a reload changed.
type ReloadSummary struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Kept    int      `json:"kept"`
}

// ReloadConfig replaces the component set. Components present before and
// after keep their status and history; their region map and incident
// override start empty. The swap is atomic for readers.
func (a *Aggregator) ReloadConfig(catalog *domain.Catalog) ReloadSummary {
	if catalog == nil {
		catalog = &domain.Catalog{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	summary := ReloadSummary{Added: []string{}, Removed: []string{}}
	next := make(map[string]*state, catalog.Len())
	for _, c := range catalog.Components() {
		fresh := newState(c)
		if old, ok := a.states[c.ID]; ok {
			old.mu.Lock()
			fresh.status = old.status
			fresh.history = append([]domain.DayRecord(nil), old.history...)
			old.mu.Unlock()
			summary.Kept++
		} else {
			summary.Added = append(summary.Added, c.ID)
		}
		next[c.ID] = fresh
		a.metrics.SetComponentStatus(c.ID, fresh.status.Priority())
	}
	for id := range a.states {
		if _, ok := next[id]; !ok {
			summary.Removed = append(summary.Removed, id)
			a.metrics.ForgetComponent(id)
		}
	}

	a.catalog = catalog
	a.states = next

	a.logger.Info("aggregator configuration reloaded",
		logger.Int("components", len(next)),
		logger.Strings("added", summary.Added),
		logger.Strings("removed", summary.Removed))
	return summary
}

// Hydrate seeds today's day record for every component and loads their
// trailing history. Failures are collected and do not stop the others.
func (a *Aggregator) Hydrate(ctx context.Context, reader HistoryReader, limit int) error {
	if limit <= 0 {
		limit = a.historyDays
	}

	a.mu.RLock()
	ids := make([]string, 0, len(a.states))
	for _, c := range a.catalog.Components() {
		ids = append(ids, c.ID)
	}
	a.mu.RUnlock()

	var errs error
	for _, id := range ids {
		if a.recorder != nil {
			if err := a.recorder.RecordObservation(ctx, id, domain.StatusOperational); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
		if reader == nil {
			continue
		}
		history, err := reader.GetHistory(ctx, id, limit)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		a.mutateHistory(id, history)
	}
	return errs
}

func (a *Aggregator) mutateHistory(componentID string, history []domain.DayRecord) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if st, ok := a.states[componentID]; ok {
		st.mu.Lock()
		st.history = history
		st.mu.Unlock()
	}
}
