package domain

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// ProbeResult is one component's debounced outcome as seen by one region.
type ProbeResult struct {
	Status  Status  `json:"status"`
	Latency float64 `json:"latency,omitempty"` // milliseconds
	Error   *string `json:"error,omitempty"`
}

// ProbeReport is the ingestion payload sent by a probe region.
type ProbeReport struct {
	Region  string                 `json:"region"`
	Results map[string]ProbeResult `json:"results"`
}

// Validate checks the payload shape and returns every violation.
func (r *ProbeReport) Validate() error {
	var err error
	if r.Region == "" {
		err = multierr.Append(err, errors.New("region: required"))
	}
	if r.Results == nil {
		err = multierr.Append(err, errors.New("results: required"))
	}
	for id, res := range r.Results {
		if !res.Status.Valid() {
			err = multierr.Append(err, fmt.Errorf("results.%s.status: %w: %q", id, ErrInvalidStatus, res.Status))
		}
		if res.Latency < 0 {
			err = multierr.Append(err, fmt.Errorf("results.%s.latency: must be >= 0", id))
		}
	}
	return err
}
