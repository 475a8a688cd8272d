package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/statuspage/internal/domain"
	"github.com/MrSnakeDoc/statuspage/internal/httpserver/deps"
	"github.com/MrSnakeDoc/statuspage/internal/logger"
)

type checkResponse struct {
	Success  bool `json:"success"`
	Accepted int  `json:"accepted"`
	Ignored  int  `json:"ignored"`
}

// Check ingests one probe report. Results for components the catalog does
// not know are ignored.
func Check(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var report domain.ProbeReport
		if err := decodeJSON(w, r, &report); err != nil {
			d.Metrics.IngestRejected("malformed")
			writeError(w, http.StatusBadRequest, "Invalid payload", err.Error())
			return
		}
		if err := report.Validate(); err != nil {
			d.Metrics.IngestRejected("invalid")
			writeError(w, http.StatusBadRequest, "Invalid payload", errorDetails(err)...)
			return
		}

		resp := checkResponse{Success: true}
		for id, res := range report.Results {
			if d.Aggregator.Ingest(id, report.Region, res.Status) {
				resp.Accepted++
			} else {
				resp.Ignored++
			}
		}
		d.Metrics.Ingested(report.Region, resp.Accepted)

		if resp.Ignored > 0 {
			d.Logger.Debug("probe report referenced unknown components",
				logger.String("region", report.Region),
				logger.Int("ignored", resp.Ignored))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// Status returns every group with its components in catalog order.
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Aggregator.GetAllStatus())
	}
}
