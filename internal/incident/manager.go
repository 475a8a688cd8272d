package incident

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/multierr"

	"github.com/MrSnakeDoc/statuspage/internal/domain"
	"github.com/MrSnakeDoc/statuspage/internal/logger"
	redisstore "github.com/MrSnakeDoc/statuspage/internal/store/redis"
)

const (
	// ActiveUpdates is how many of the latest updates an active incident carries.
	ActiveUpdates = 3
	// HistoryLookback bounds the public list of past events.
	HistoryLookback = 14 * 24 * time.Hour
	// HistoryLimit is the maximum number of past events listed.
	HistoryLimit = 5
)

var (
	// ErrInvalid is wrapped by every input validation failure.
	ErrInvalid = errors.New("invalid request")
	// ErrNotFound is returned for unknown incidents and maintenance windows.
	ErrNotFound = redisstore.ErrNotFound
	// ErrResolved is returned when updating a resolved incident.
	ErrResolved = redisstore.ErrIncidentResolved
)

// Store persists incidents and maintenance windows.
type Store interface {
	CreateIncident(ctx context.Context, in redisstore.NewIncident) (*domain.Incident, error)
	AppendIncidentUpdate(ctx context.Context, id, message string, status domain.IncidentStatus) (*domain.Incident, error)
	DeleteIncident(ctx context.Context, id string) (*domain.Incident, error)
	OpenIncidents(ctx context.Context, updatesLimit int) ([]*domain.Incident, error)
	ResolvedIncidentsSince(ctx context.Context, since time.Time, limit int) ([]*domain.Incident, error)
	ClearResolvedIncidents(ctx context.Context) (int, error)

	SaveMaintenance(ctx context.Context, w *domain.MaintenanceWindow) (*domain.MaintenanceWindow, error)
	ActiveMaintenance(ctx context.Context) ([]*domain.MaintenanceWindow, error)
	PastMaintenanceSince(ctx context.Context, since time.Time, limit int) ([]*domain.MaintenanceWindow, error)
	DeleteMaintenance(ctx context.Context, id string) error
	ClearFinishedMaintenance(ctx context.Context) (int, error)
}

// Overrides is the part of the aggregator incidents drive.
type Overrides interface {
	SetIncidentOverride(componentID string, status domain.IncidentStatus) bool
	Component(componentID string) (*domain.Component, bool)
}

// Manager runs the incident and maintenance lifecycle and keeps the
// aggregator's incident overrides in step with it.
type Manager struct {
	store     Store
	overrides Overrides
	logger    logger.Logger
	now       func() time.Time
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for the history lookback.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager.
func NewManager(store Store, overrides Overrides, log logger.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		overrides: overrides,
		logger:    log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateRequest is the operator input for a new incident.
type CreateRequest struct {
	ComponentID string                `json:"component_id"`
	Title       string                `json:"title"`
	Status      domain.IncidentStatus `json:"status"`
	Description string                `json:"description"`
	UpdateText  string                `json:"update_text"`
}

// Validate reports every problem with r.
func (r *CreateRequest) Validate() error {
	var err error
	if strings.TrimSpace(r.ComponentID) == "" {
		err = multierr.Append(err, fmt.Errorf("%w: component_id: required", ErrInvalid))
	}
	if strings.TrimSpace(r.Title) == "" {
		err = multierr.Append(err, fmt.Errorf("%w: title: required", ErrInvalid))
	}
	if !r.Status.Valid() {
		err = multierr.Append(err, fmt.Errorf("%w: status: unknown incident status %q", ErrInvalid, r.Status))
	}
	return err
}

// Create stores a new incident. An unresolved incident immediately imposes
// its status on the component.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*domain.Incident, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, ok := m.overrides.Component(req.ComponentID); !ok {
		return nil, fmt.Errorf("%w: component_id: unknown component %q", ErrInvalid, req.ComponentID)
	}

	inc, err := m.store.CreateIncident(ctx, redisstore.NewIncident{
		ComponentID: req.ComponentID,
		Title:       req.Title,
		Status:      req.Status,
		Description: req.Description,
		UpdateText:  req.UpdateText,
	})
	if err != nil {
		return nil, err
	}

	if !inc.Status.Resolved() {
		m.overrides.SetIncidentOverride(inc.ComponentID, inc.Status)
	}
	m.logger.Info("incident created",
		logger.String("incident_id", inc.ID),
		logger.String("component_id", inc.ComponentID),
		logger.String("status", string(inc.Status)))
	return inc, nil
}

// Update appends a progress note and moves the incident to status. The
// component override follows the new status; resolving clears it.
func (m *Manager) Update(ctx context.Context, id, message string, status domain.IncidentStatus) (*domain.Incident, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: status: unknown incident status %q", ErrInvalid, status)
	}

	inc, err := m.store.AppendIncidentUpdate(ctx, id, message, status)
	if err != nil {
		return nil, err
	}

	m.overrides.SetIncidentOverride(inc.ComponentID, status)
	m.logger.Info("incident updated",
		logger.String("incident_id", id),
		logger.String("component_id", inc.ComponentID),
		logger.String("status", string(status)))
	return inc, nil
}

// Delete removes an incident. Deleting an open incident lifts its override.
func (m *Manager) Delete(ctx context.Context, id string) error {
	inc, err := m.store.DeleteIncident(ctx, id)
	if err != nil {
		return err
	}
	if !inc.Status.Resolved() {
		m.overrides.SetIncidentOverride(inc.ComponentID, domain.IncidentResolved)
	}
	m.logger.Info("incident deleted",
		logger.String("incident_id", id),
		logger.String("component_id", inc.ComponentID))
	return nil
}

// Active returns open incidents, newest first, each with its latest updates.
func (m *Manager) Active(ctx context.Context) ([]*domain.Incident, error) {
	return m.store.OpenIncidents(ctx, ActiveUpdates)
}

// History lists recently resolved incidents and finished maintenance
// windows, most recent end first.
func (m *Manager) History(ctx context.Context) ([]domain.PastEvent, error) {
	since := m.now().Add(-HistoryLookback)

	incidents, err := m.store.ResolvedIncidentsSince(ctx, since, HistoryLimit)
	if err != nil {
		return nil, err
	}
	windows, err := m.store.PastMaintenanceSince(ctx, since, HistoryLimit)
	if err != nil {
		return nil, err
	}

	events := make([]domain.PastEvent, 0, len(incidents)+len(windows))
	for _, inc := range incidents {
		ev := domain.PastEvent{
			ID:          inc.ID,
			Type:        "incident",
			Title:       inc.Title,
			Description: inc.Description,
			StartTime:   inc.CreatedAt,
		}
		if inc.ResolvedAt != nil {
			ev.EndTime = *inc.ResolvedAt
		}
		events = append(events, ev)
	}
	for _, w := range windows {
		events = append(events, domain.PastEvent{
			ID:          w.ID,
			Type:        "maintenance",
			Title:       w.Title,
			Description: w.Description,
			StartTime:   w.StartTime,
			EndTime:     w.EndTime,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].EndTime.After(events[j].EndTime)
	})
	if len(events) > HistoryLimit {
		events = events[:HistoryLimit]
	}
	return events, nil
}

// ClearResolved empties the history view: resolved incidents and
// maintenance windows that have ended. It returns how many were deleted.
func (m *Manager) ClearResolved(ctx context.Context) (int, error) {
	incidents, err := m.store.ClearResolvedIncidents(ctx)
	if err != nil {
		return 0, err
	}
	windows, err := m.store.ClearFinishedMaintenance(ctx)
	if err != nil {
		return incidents, err
	}
	m.logger.Info("history cleared",
		logger.Int("incidents", incidents),
		logger.Int("maintenance", windows))
	return incidents + windows, nil
}

// ApplyOpenIncidents installs the override of every open incident. They are
// applied oldest first so the most recent incident on a component wins.
func (m *Manager) ApplyOpenIncidents(ctx context.Context) (int, error) {
	open, err := m.store.OpenIncidents(ctx, 1)
	if err != nil {
		return 0, err
	}

	applied := 0
	for i := len(open) - 1; i >= 0; i-- {
		inc := open[i]
		if m.overrides.SetIncidentOverride(inc.ComponentID, inc.Status) {
			applied++
		}
	}
	m.logger.Info("active incidents synced",
		logger.Int("open", len(open)),
		logger.Int("applied", applied))
	return applied, nil
}

// MaintenanceRequest is the operator input for a maintenance window.
// Times are Unix milliseconds, given as numbers or digit strings.
type MaintenanceRequest struct {
	Title       string                   `json:"title"`
	Description string                   `json:"description"`
	StartTime   Millis                   `json:"start_time"`
	EndTime     Millis                   `json:"end_time"`
	Status      domain.MaintenanceStatus `json:"status"`
}

// Validate reports every problem with r.
func (r *MaintenanceRequest) Validate() error {
	var err error
	if utf8.RuneCountInString(r.Title) < 3 {
		err = multierr.Append(err, fmt.Errorf("%w: title: must be at least 3 characters", ErrInvalid))
	}
	if utf8.RuneCountInString(r.Description) < 5 {
		err = multierr.Append(err, fmt.Errorf("%w: description: must be at least 5 characters", ErrInvalid))
	}
	if r.StartTime == 0 {
		err = multierr.Append(err, fmt.Errorf("%w: start_time: required", ErrInvalid))
	}
	if r.EndTime == 0 {
		err = multierr.Append(err, fmt.Errorf("%w: end_time: required", ErrInvalid))
	}
	if r.StartTime != 0 && r.EndTime != 0 && r.EndTime <= r.StartTime {
		err = multierr.Append(err, fmt.Errorf("%w: end_time: must be after start_time", ErrInvalid))
	}
	if r.Status != "" && !r.Status.Valid() {
		err = multierr.Append(err, fmt.Errorf("%w: status: unknown maintenance status %q", ErrInvalid, r.Status))
	}
	return err
}

// ScheduleMaintenance stores an advisory maintenance window. It never
// changes a component status.
func (m *Manager) ScheduleMaintenance(ctx context.Context, req MaintenanceRequest) (*domain.MaintenanceWindow, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = domain.MaintenanceScheduled
	}

	w, err := m.store.SaveMaintenance(ctx, &domain.MaintenanceWindow{
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.StartTime.Time(),
		EndTime:     req.EndTime.Time(),
		Status:      status,
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("maintenance scheduled",
		logger.String("maintenance_id", w.ID),
		logger.String("title", w.Title))
	return w, nil
}

// ActiveMaintenance lists windows that have not ended, earliest first.
func (m *Manager) ActiveMaintenance(ctx context.Context) ([]*domain.MaintenanceWindow, error) {
	return m.store.ActiveMaintenance(ctx)
}

// DeleteMaintenance removes a maintenance window.
func (m *Manager) DeleteMaintenance(ctx context.Context, id string) error {
	if err := m.store.DeleteMaintenance(ctx, id); err != nil {
		return err
	}
	m.logger.Info("maintenance deleted", logger.String("maintenance_id", id))
	return nil
}
