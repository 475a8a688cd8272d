package handlers

import (
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/statuspage/internal/catalog"
	"github.com/MrSnakeDoc/statuspage/internal/httpserver/deps"
	"github.com/MrSnakeDoc/statuspage/internal/logger"
)

// Reload triggers a manual re-read of the catalog file
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case d.ReloadTrigger <- struct{}{}:
			d.Logger.Info("manual catalog reload triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusAccepted, successResponse{Success: true, Message: "Reload triggered"})
		default:
			d.Logger.Warn("catalog reload already in progress",
				logger.String("remote_ip", r.RemoteAddr))
			writeError(w, http.StatusTooManyRequests, "Reload already in progress, please wait")
		}
	}
}

// UpdateConfig validates, persists and applies a new catalog. A rejected
// payload leaves the running configuration untouched.
func UpdateConfig(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid configuration", describeDecodeError(err).Error())
			return
		}

		cat, err := d.Reload.Apply(r.Context(), body)
		if err != nil {
			var verr *catalog.ValidationError
			if errors.As(err, &verr) {
				writeError(w, http.StatusBadRequest, "Invalid configuration", verr.Violations...)
				return
			}
			d.Logger.Error("failed to apply configuration", logger.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		n := cat.Len()
		writeJSON(w, http.StatusOK, successResponse{
			Success: true,
			Message: "Configuration saved and reloaded",
			Count:   &n,
		})
	}
}

// Config returns the catalog as currently installed.
func Config(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Reload.Current())
	}
}
