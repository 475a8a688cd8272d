package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/statuspage/internal/httpserver/deps"
)

type healthzResponse struct {
	Status        string  `json:"status"`
	Mode          string  `json:"mode"`
	Region        string  `json:"region,omitempty"`
	Components    *int    `json:"components,omitempty"`
	ActiveProbes  *int    `json:"active_probes,omitempty"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Version       string  `json:"version,omitempty"`
	Commit        string  `json:"commit,omitempty"`
	BuildDate     string  `json:"build_date,omitempty"`
	GoVersion     string  `json:"go_version,omitempty"`
}

func Healthz(d deps.Deps) http.HandlerFunc {
	start := d.StartTime
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthzResponse{
			Status:        "ok",
			Mode:          d.Mode,
			Region:        d.Region,
			Version:       d.Version,
			Commit:        d.Commit,
			BuildDate:     d.BuildDate,
			GoVersion:     d.GoVersion,
			UptimeSeconds: time.Since(start).Seconds(),
		}
		if d.Aggregator != nil {
			n := d.Aggregator.Catalog().Len()
			resp.Components = &n
		}
		if d.ProbeActive != nil {
			n := d.ProbeActive()
			resp.ActiveProbes = &n
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
