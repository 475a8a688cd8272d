package domain

import "time"

// IncidentStatus is the lifecycle state an operator declares for an
// incident. The four severities are valid incident statuses and are the
// only ones that can override a component's status.
type IncidentStatus string

const (
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentIdentified    IncidentStatus = "identified"
	IncidentMonitoring    IncidentStatus = "monitoring"
	IncidentResolved      IncidentStatus = "resolved"
)

// Valid reports whether s is a known incident status.
func (s IncidentStatus) Valid() bool {
	switch s {
	case IncidentInvestigating, IncidentIdentified, IncidentMonitoring, IncidentResolved:
		return true
	default:
		return Status(s).Valid()
	}
}

// Resolved reports whether the incident reached its terminal state.
func (s IncidentStatus) Resolved() bool { return s == IncidentResolved }

// Override returns the component status an incident in state s imposes,
// or nil when it imposes none (resolved or a non-severity phase).
func (s IncidentStatus) Override() *Status {
	st := Status(s)
	if !st.Valid() {
		return nil
	}
	return &st
}

// Incident is an operator-declared event on one component.
type Incident struct {
	ID          string           `json:"id"`
	ComponentID string           `json:"component_id"`
	Title       string           `json:"title"`
	Status      IncidentStatus   `json:"status"`
	Description string           `json:"description"`
	Updates     []IncidentUpdate `json:"updates"`
	CreatedAt   time.Time        `json:"created_at"`
	ResolvedAt  *time.Time       `json:"resolved_at,omitempty"`
}

// IncidentUpdate is an append-only progress note on an incident.
type IncidentUpdate struct {
	Message   string         `json:"message"`
	Status    IncidentStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// MaintenanceStatus is the state of a maintenance window.
type MaintenanceStatus string

const (
	MaintenanceScheduled  MaintenanceStatus = "scheduled"
	MaintenanceInProgress MaintenanceStatus = "in_progress"
	MaintenanceCompleted  MaintenanceStatus = "completed"
)

// Valid reports whether s is a known maintenance status.
func (s MaintenanceStatus) Valid() bool {
	switch s {
	case MaintenanceScheduled, MaintenanceInProgress, MaintenanceCompleted:
		return true
	default:
		return false
	}
}

// MaintenanceWindow is advisory only. It never changes a component status.
type MaintenanceWindow struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     time.Time         `json:"end_time"`
	Status      MaintenanceStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
}

// PastEvent is a resolved incident or a finished maintenance window, as
// listed in the public history.
type PastEvent struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"` // "incident" | "maintenance"
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}
