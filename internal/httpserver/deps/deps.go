package deps

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MrSnakeDoc/statuspage/internal/aggregator"
	"github.com/MrSnakeDoc/statuspage/internal/incident"
	"github.com/MrSnakeDoc/statuspage/internal/logger"
	"github.com/MrSnakeDoc/statuspage/internal/metrics"
	"github.com/MrSnakeDoc/statuspage/internal/reload"
)

// Pinger reports whether a backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	Mode         string   // "central" | "probe"
	Region       string   // probe region (probe mode)
	AllowedCIDRS []string // IPs allowed to access healthz/readyz/metrics endpoints
	TrustProxy   bool     // true if running behind a trusted reverse proxy (e.g., cloudflared)
	APISecret    string   // x-api-key expected on probe reports
	AdminSecret  string   // x-admin-key expected on admin endpoints

	Store         Pinger                 // Redis readiness (nil in probe mode)
	Aggregator    *aggregator.Aggregator // live component statuses (nil in probe mode)
	Reload        *reload.Controller     // catalog reload path
	Incidents     *incident.Manager      // incident and maintenance lifecycle (nil in probe mode)
	Metrics       *metrics.Metrics       // nil disables recording
	Gatherer      prometheus.Gatherer    // source for /metrics, nil disables the endpoint
	ReloadTrigger chan struct{}          // Channel to trigger a manual catalog reload
	ProbeActive   func() int             // number of running probe lineages (probe mode)
}

// Central reports whether the aggregation API is served.
func (d Deps) Central() bool {
	return d.Aggregator != nil
}
