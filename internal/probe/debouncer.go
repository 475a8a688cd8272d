package probe

import "github.com/MrSnakeDoc/statuspage/internal/domain"

// DefaultFailureThreshold is the number of consecutive raw failures needed
// before a component is reported as an outage.
const DefaultFailureThreshold = 3

// Result is the debounced classification of one probe.
type Result struct {
	Status   domain.Status
	Error    *string // set only for a confirmed outage
	Failures int     // consecutive raw failures so far
	Masked   bool    // a raw failure below the threshold

	// Recovered is the failure streak a success just ended.
	Recovered int
}

// Debouncer hides transient failures. It belongs to a single probe lineage
// and is not safe for concurrent use.
type Debouncer struct {
	threshold int
	failures  int
}

// NewDebouncer creates a debouncer. A threshold below 1 uses the default.
func NewDebouncer(threshold int) *Debouncer {
	if threshold < 1 {
		threshold = DefaultFailureThreshold
	}
	return &Debouncer{threshold: threshold}
}

// Observe feeds one raw probe outcome (nil err means reachable).
func (d *Debouncer) Observe(err error) Result {
	if err == nil {
		recovered := d.failures
		d.failures = 0
		return Result{Status: domain.StatusOperational, Recovered: recovered}
	}

	d.failures++
	if d.failures >= d.threshold {
		msg := err.Error()
		return Result{Status: domain.StatusOutage, Error: &msg, Failures: d.failures}
	}
	return Result{Status: domain.StatusOperational, Failures: d.failures, Masked: true}
}

// Failures returns the current consecutive failure count.
func (d *Debouncer) Failures() int { return d.failures }

// Threshold returns the confirmation bar.
func (d *Debouncer) Threshold() int { return d.threshold }
