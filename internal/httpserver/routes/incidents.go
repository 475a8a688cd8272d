package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/statuspage/internal/httpserver/deps"
	"github.com/MrSnakeDoc/statuspage/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/statuspage/internal/httpserver/mw"
)

func init() { Register(registerIncidents) }

func registerIncidents(r chi.Router, d deps.Deps) {
	if d.Incidents == nil {
		return
	}
	admin := r.With(mw.RequireKey(mw.AdminKeyHeader, d.AdminSecret, d.TrustProxy, d.Logger))

	r.Get("/api/incidents/active", handlers.ActiveIncidents(d))
	r.Get("/api/incidents/history", handlers.IncidentHistory(d))
	admin.Delete("/api/incidents/history/clear", handlers.ClearIncidentHistory(d))

	admin.Post("/api/admin/incidents", handlers.CreateIncident(d))
	admin.Post("/api/admin/incidents/{id}/update", handlers.UpdateIncident(d))
	admin.Delete("/api/admin/incidents/{id}", handlers.DeleteIncident(d))

	r.Get("/api/maintenance/active", handlers.ActiveMaintenance(d))
	admin.Post("/api/maintenance/schedule", handlers.ScheduleMaintenance(d))
	admin.Delete("/api/maintenance/{id}", handlers.DeleteMaintenance(d))
}
