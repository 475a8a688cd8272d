package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/statuspage/internal/httpserver/deps"
	"github.com/MrSnakeDoc/statuspage/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/statuspage/internal/httpserver/mw"
)

func init() { Register(registerStatus) }

func registerStatus(r chi.Router, d deps.Deps) {
	if !d.Central() {
		return
	}
	r.With(mw.RequireKey(mw.APIKeyHeader, d.APISecret, d.TrustProxy, d.Logger)).Post("/api/check", handlers.Check(d))
	r.Get("/api/status", handlers.Status(d))
	r.Get("/api/config", handlers.Config(d))
}
