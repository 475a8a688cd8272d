package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/statuspage/internal/httpserver/deps"
	"github.com/MrSnakeDoc/statuspage/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/statuspage/internal/httpserver/mw"
)

func init() { Register(registerAdmin) }

func registerAdmin(r chi.Router, d deps.Deps) {
	admin := r.With(mw.RequireKey(mw.AdminKeyHeader, d.AdminSecret, d.TrustProxy, d.Logger))

	if d.ReloadTrigger != nil {
		admin.Post("/api/admin/reload", handlers.Reload(d))
	}
	if !d.Central() {
		return
	}
	admin.Post("/api/admin/config", handlers.UpdateConfig(d))
}
