package catalog

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/multierr"
)

// ErrInvalid is wrapped by every ValidationError.
var ErrInvalid = errors.New("invalid catalog")

// ValidationError lists every violation found in a catalog.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalid, strings.Join(e.Violations, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

var allowedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// Validate checks the structural shape of a catalog. It never stops at the
// first problem: the returned *ValidationError lists all of them.
func Validate(f File) error {
	var err error
	groupIDs := make(map[string]int, len(f))
	componentIDs := make(map[string]string)

	for gi, g := range f {
		gp := fmt.Sprintf("[%d]", gi)
		if g.ID == "" {
			err = multierr.Append(err, fmt.Errorf("%s.id: required", gp))
		} else if prev, dup := groupIDs[g.ID]; dup {
			err = multierr.Append(err, fmt.Errorf("%s.id: duplicate group id %q (also at [%d])", gp, g.ID, prev))
		} else {
			groupIDs[g.ID] = gi
		}
		if g.Name == "" {
			err = multierr.Append(err, fmt.Errorf("%s.name: required", gp))
		}
		if g.Services == nil {
			err = multierr.Append(err, fmt.Errorf("%s.services: required", gp))
		}

		for ci, c := range g.Services {
			cp := fmt.Sprintf("%s.services[%d]", gp, ci)
			err = multierr.Append(err, validateComponent(cp, c))

			if c.ID == "" {
				continue
			}
			if prev, dup := componentIDs[c.ID]; dup {
				err = multierr.Append(err, fmt.Errorf("%s.id: duplicate service id %q (also at %s)", cp, c.ID, prev))
				continue
			}
			componentIDs[c.ID] = cp
		}
	}

	if err == nil {
		return nil
	}
	return newValidationError(multierr.Errors(err))
}

func validateComponent(path string, c ComponentSpec) error {
	var err error
	if c.ID == "" {
		err = multierr.Append(err, fmt.Errorf("%s.id: required", path))
	}
	if c.Name == "" {
		err = multierr.Append(err, fmt.Errorf("%s.name: required", path))
	}
	if c.URL != "" {
		u, perr := url.Parse(expandEnv(c.URL))
		switch {
		case perr != nil:
			err = multierr.Append(err, fmt.Errorf("%s.url: %v", path, perr))
		case u.Scheme != "http" && u.Scheme != "https":
			err = multierr.Append(err, fmt.Errorf("%s.url: scheme must be http or https", path))
		case u.Host == "":
			err = multierr.Append(err, fmt.Errorf("%s.url: host required", path))
		}
	}
	if c.Interval != nil && *c.Interval < 0 {
		err = multierr.Append(err, fmt.Errorf("%s.interval: must be >= 0", path))
	}

	if p := c.ProbeConfig; p != nil {
		if p.Method != "" && !allowedMethods[strings.ToUpper(p.Method)] {
			err = multierr.Append(err, fmt.Errorf("%s.probe_config.method: unsupported method %q", path, p.Method))
		}
		if p.Timeout != nil && *p.Timeout < 0 {
			err = multierr.Append(err, fmt.Errorf("%s.probe_config.timeout: must be >= 0", path))
		}
		if p.ExpectedStatus != nil && (*p.ExpectedStatus < 100 || *p.ExpectedStatus > 599) {
			err = multierr.Append(err, fmt.Errorf("%s.probe_config.expected_status: must be a valid HTTP status", path))
		}
	}
	return err
}

func newValidationError(errs []error) *ValidationError {
	v := &ValidationError{Violations: make([]string, 0, len(errs))}
	for _, e := range errs {
		v.Violations = append(v.Violations, e.Error())
	}
	return v
}
