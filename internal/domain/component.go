package domain

import "time"

const (
	// DefaultProbeInterval applies when a component does not set one.
	DefaultProbeInterval = 30 * time.Second
	// DefaultProbeTimeout applies when a component's probe config does not set one.
	DefaultProbeTimeout = 10 * time.Second
)

// Component is a monitored service as declared in the catalog.
//
// ID is the aggregator's primary key and must be unique across the whole
// catalog, not only within its group.
type Component struct {
	ID      string
	Name    string
	GroupID string

	// URL is the probe target. Components without one are labels only
	// and are never probed.
	URL string

	// Interval between two probes. Zero means the scheduler default.
	Interval time.Duration

	Probe *ProbeConfig
}

// ProbeConfig customises the outbound request of a probe.
type ProbeConfig struct {
	Method  string
	Headers map[string]string
	Body    any

	// ExpectedStatus is accepted for compatibility. Probes classify any
	// HTTP response as reachable regardless of its code.
	ExpectedStatus int

	Timeout time.Duration
}

// Probed reports whether the scheduler should run checks for c.
func (c *Component) Probed() bool {
	return c != nil && c.URL != ""
}

// EffectiveInterval returns the component interval or def when unset.
func (c *Component) EffectiveInterval(def time.Duration) time.Duration {
	if c.Interval > 0 {
		return c.Interval
	}
	if def > 0 {
		return def
	}
	return DefaultProbeInterval
}

// EffectiveTimeout returns the probe timeout or def when unset.
func (c *Component) EffectiveTimeout(def time.Duration) time.Duration {
	if c.Probe != nil && c.Probe.Timeout > 0 {
		return c.Probe.Timeout
	}
	if def > 0 {
		return def
	}
	return DefaultProbeTimeout
}

// Method returns the configured HTTP method, GET by default.
func (c *Component) Method() string {
	if c.Probe != nil && c.Probe.Method != "" {
		return c.Probe.Method
	}
	return "GET"
}

// Group is an ordered set of components shown together.
type Group struct {
	ID         string
	Name       string
	Components []*Component
}

// Catalog is the full monitored-component set. A reload replaces it as a
// whole.
type Catalog struct {
	Groups []*Group
}

// Components returns every component in configuration order.
func (c *Catalog) Components() []*Component {
	if c == nil {
		return nil
	}
	var out []*Component
	for _, g := range c.Groups {
		out = append(out, g.Components...)
	}
	return out
}

// Lookup finds a component by ID.
func (c *Catalog) Lookup(id string) (*Component, bool) {
	for _, comp := range c.Components() {
		if comp.ID == id {
			return comp, true
		}
	}
	return nil, false
}

// Len returns the number of components.
func (c *Catalog) Len() int {
	n := 0
	if c == nil {
		return n
	}
	for _, g := range c.Groups {
		n += len(g.Components)
	}
	return n
}
