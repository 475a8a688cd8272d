package domain

import (
	"errors"
	"fmt"
)

// Status is the public health of a component as shown on the status page.
type Status string

const (
	StatusOperational Status = "operational"
	StatusMaintenance Status = "maintenance"
	StatusDegraded    Status = "degraded"
	StatusOutage      Status = "outage"
)

// ErrInvalidStatus is returned when a string is not one of the four severities.
var ErrInvalidStatus = errors.New("invalid status")

// AllStatuses lists the severities from lowest to highest priority.
var AllStatuses = []Status{StatusOperational, StatusMaintenance, StatusDegraded, StatusOutage}

// ParseStatus converts a raw string into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Valid reports whether s is one of the four known severities.
func (s Status) Valid() bool {
	switch s {
	case StatusOperational, StatusMaintenance, StatusDegraded, StatusOutage:
		return true
	default:
		return false
	}
}

// Priority returns the fixed severity rank:
// outage(3) > degraded(2) > maintenance(1) > operational(0).
// Unknown values rank as operational.
func (s Status) Priority() int {
	switch s {
	case StatusOutage:
		return 3
	case StatusDegraded:
		return 2
	case StatusMaintenance:
		return 1
	default:
		return 0
	}
}

// Outranks reports whether s is strictly more severe than other.
func (s Status) Outranks(other Status) bool {
	return s.Priority() > other.Priority()
}

func (s Status) String() string { return string(s) }

// MaxStatus returns the most severe of the given statuses, or operational
// when none are given.
func MaxStatus(statuses ...Status) Status {
	out := StatusOperational
	for _, st := range statuses {
		if st.Outranks(out) {
			out = st
		}
	}
	return out
}
