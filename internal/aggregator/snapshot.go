package aggregator

import (
	"maps"

	"github.com/MrSnakeDoc/statuspage/internal/domain"
)

// ComponentStatus is the public view of one component.
type ComponentStatus struct {
	ID       string                   `json:"id"`
	Name     string                   `json:"name"`
	URL      string                   `json:"url,omitempty"`
	Status   domain.Status            `json:"status"`
	Regions  map[string]domain.Status `json:"regions"`
	Incident *domain.Status           `json:"incident_status,omitempty"`
	History  []domain.DayRecord       `json:"history"`
}

// GroupStatus is one configured group with its components in order.
type GroupStatus struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Services []ComponentStatus `json:"services"`
}

// GetAllStatus returns a deep-copied snapshot in catalog order. It is safe
// to call concurrently with ingestion.
func (a *Aggregator) GetAllStatus() []GroupStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]GroupStatus, 0, len(a.catalog.Groups))
	for _, g := range a.catalog.Groups {
		gs := GroupStatus{ID: g.ID, Name: g.Name, Services: make([]ComponentStatus, 0, len(g.Components))}
		for _, c := range g.Components {
			st, ok := a.states[c.ID]
			if !ok {
				continue
			}
			gs.Services = append(gs.Services, st.snapshot())
		}
		out = append(out, gs)
	}
	return out
}

// Status returns the current status of a component.
func (a *Aggregator) Status(componentID string) (domain.Status, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st, ok := a.states[componentID]
	if !ok {
		return "", false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.status, true
}

// Snapshot returns the public view of one component.
func (a *Aggregator) Snapshot(componentID string) (ComponentStatus, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st, ok := a.states[componentID]
	if !ok {
		return ComponentStatus{}, false
	}
	return st.snapshot(), true
}

// Component returns the configured component.
func (a *Aggregator) Component(componentID string) (*domain.Component, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st, ok := a.states[componentID]
	if !ok {
		return nil, false
	}
	return st.component, true
}

// Catalog returns the live catalog. Callers must not modify it.
func (a *Aggregator) Catalog() *domain.Catalog {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.catalog
}

func (st *state) snapshot() ComponentStatus {
	st.mu.Lock()
	defer st.mu.Unlock()

	cs := ComponentStatus{
		ID:      st.component.ID,
		Name:    st.component.Name,
		URL:     st.component.URL,
		Status:  st.status,
		Regions: maps.Clone(st.regions),
		History: append([]domain.DayRecord{}, st.history...),
	}
	if st.override != nil {
		o := *st.override
		cs.Incident = &o
	}
	return cs
}
