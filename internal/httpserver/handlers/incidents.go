package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/statuspage/internal/domain"
	"github.com/MrSnakeDoc/statuspage/internal/httpserver/deps"
	"github.com/MrSnakeDoc/statuspage/internal/incident"
	"github.com/MrSnakeDoc/statuspage/internal/logger"
)

type incidentUpdateRequest struct {
	UpdateText string                `json:"update_text"`
	Status     domain.IncidentStatus `json:"status"`
}

func CreateIncident(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req incident.CreateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid payload", err.Error())
			return
		}

		inc, err := d.Incidents.Create(r.Context(), req)
		if err != nil {
			writeIncidentError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, successResponse{Success: true, ID: inc.ID})
	}
}

func UpdateIncident(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req incidentUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid payload", err.Error())
			return
		}

		inc, err := d.Incidents.Update(r.Context(), chi.URLParam(r, "id"), req.UpdateText, req.Status)
		if err != nil {
			writeIncidentError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, inc)
	}
}

func DeleteIncident(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Incidents.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeIncidentError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, successResponse{Success: true})
	}
}

func ActiveIncidents(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := d.Incidents.Active(r.Context())
		if err != nil {
			writeIncidentError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func IncidentHistory(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := d.Incidents.History(r.Context())
		if err != nil {
			writeIncidentError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, events)
	}
}

func ClearIncidentHistory(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := d.Incidents.ClearResolved(r.Context())
		if err != nil {
			writeIncidentError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "History cleared", Count: &n})
	}
}

func ScheduleMaintenance(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req incident.MaintenanceRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid payload", err.Error())
			return
		}

		win, err := d.Incidents.ScheduleMaintenance(r.Context(), req)
		if err != nil {
			writeIncidentError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "Maintenance scheduled", ID: win.ID})
	}
}

func ActiveMaintenance(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := d.Incidents.ActiveMaintenance(r.Context())
		if err != nil {
			writeIncidentError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func DeleteMaintenance(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Incidents.DeleteMaintenance(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeIncidentError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, successResponse{Success: true})
	}
}

// writeIncidentError maps lifecycle errors to HTTP statuses.
func writeIncidentError(w http.ResponseWriter, d deps.Deps, err error) {
	switch {
	case errors.Is(err, incident.ErrInvalid):
		writeError(w, http.StatusBadRequest, "Invalid payload", errorDetails(err)...)
	case errors.Is(err, incident.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, incident.ErrResolved):
		writeError(w, http.StatusConflict, err.Error())
	default:
		d.Logger.Error("incident operation failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
