package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/statuspage/internal/domain"
	"github.com/MrSnakeDoc/statuspage/internal/logger"
	"github.com/MrSnakeDoc/statuspage/internal/metrics"
	"github.com/MrSnakeDoc/statuspage/internal/utils"
	"github.com/MrSnakeDoc/statuspage/internal/version"
)

// APIKeyHeader carries the shared ingestion secret.
const APIKeyHeader = "x-api-key"

// Sink receives debounced results.
type Sink interface {
	Report(ctx context.Context, componentID string, result domain.ProbeResult) error
}

// Reporter posts results to the central ingestion endpoint. Delivery is
// best effort: failures are logged and dropped, the next tick supersedes
// them.
type Reporter struct {
	client   *http.Client
	endpoint string
	region   string
	secret   string
	logger   logger.Logger
	metrics  *metrics.Metrics
}

// NewReporter creates a reporter for the central API at centralURL.
func NewReporter(centralURL, region, secret string, timeout time.Duration, log logger.Logger, m *metrics.Metrics) *Reporter {
	return &Reporter{
		client:   &http.Client{Timeout: timeout},
		endpoint: centralURL + "/api/check",
		region:   region,
		secret:   secret,
		logger:   log,
		metrics:  m,
	}
}

// Report sends one component result. The returned error is informational;
// it has already been logged.
func (r *Reporter) Report(ctx context.Context, componentID string, result domain.ProbeResult) error {
	err := r.send(ctx, componentID, result)
	r.metrics.ReportSent(err == nil)
	if err != nil {
		r.logger.Error("failed to report probe result",
			logger.String("component_id", componentID),
			logger.String("region", r.region),
			logger.Error(err))
	}
	return err
}

func (r *Reporter) send(ctx context.Context, componentID string, result domain.ProbeResult) error {
	payload, err := json.Marshal(domain.ProbeReport{
		Region:  r.region,
		Results: map[string]domain.ProbeResult{componentID: result},
	})
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set(APIKeyHeader, r.secret)

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer utils.DrainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("central API answered %s", resp.Status)
	}
	return nil
}
