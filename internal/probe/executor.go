package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/statuspage/internal/domain"
	"github.com/MrSnakeDoc/statuspage/internal/metrics"
	"github.com/MrSnakeDoc/statuspage/internal/utils"
	"github.com/MrSnakeDoc/statuspage/internal/version"
)

const (
	// MaxRedirects is the number of redirects a probe follows.
	MaxRedirects = 5

	maxHeaderBytes = 32 << 10
)

// Outcome is the raw result of one probe request.
type Outcome struct {
	Latency    time.Duration
	StatusCode int   // 0 when no response was received
	Err        error // transport error or timeout
}

// Checker runs one probe against a component.
type Checker interface {
	Execute(ctx context.Context, c *domain.Component) Outcome
}

// Executor issues probe requests. Any HTTP response counts as reachable,
// whatever its status code; only transport failures and timeouts fail.
type Executor struct {
	client  *http.Client
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewExecutor creates an executor. timeout applies to components whose
// probe config does not set one.
func NewExecutor(timeout time.Duration, m *metrics.Metrics) *Executor {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxResponseHeaderBytes = maxHeaderBytes

	return &Executor{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > MaxRedirects {
					return fmt.Errorf("stopped after %d redirects", MaxRedirects)
				}
				return nil
			},
		},
		timeout: timeout,
		metrics: m,
	}
}

// Execute sends the component's configured request and measures it.
func (e *Executor) Execute(ctx context.Context, c *domain.Component) Outcome {
	ctx, cancel := context.WithTimeout(ctx, c.EffectiveTimeout(e.timeout))
	defer cancel()

	start := time.Now()
	out := e.do(ctx, c)
	out.Latency = time.Since(start)

	e.metrics.ObserveProbe(c.ID, out.Latency, out.Err == nil)
	return out
}

func (e *Executor) do(ctx context.Context, c *domain.Component) Outcome {
	req, err := newRequest(ctx, c)
	if err != nil {
		return Outcome{Err: err}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Outcome{Err: fmt.Errorf("timeout of %s exceeded: %w", c.EffectiveTimeout(e.timeout), err)}
		}
		return Outcome{Err: err}
	}
	defer utils.DrainAndClose(resp.Body)

	return Outcome{StatusCode: resp.StatusCode}
}

func newRequest(ctx context.Context, c *domain.Component) (*http.Request, error) {
	var (
		body        io.Reader
		contentType string
	)
	if c.Probe != nil && c.Probe.Body != nil {
		switch b := c.Probe.Body.(type) {
		case string:
			body = strings.NewReader(b)
		case []byte:
			body = bytes.NewReader(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				return nil, fmt.Errorf("failed to encode probe body: %w", err)
			}
			body = bytes.NewReader(data)
			contentType = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, c.Method(), c.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build probe request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if c.Probe != nil {
		for k, v := range c.Probe.Headers {
			req.Header.Set(k, v)
		}
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}
