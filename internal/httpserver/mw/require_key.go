package mw

import (
	"crypto/subtle"
	"net/http"

	"github.com/MrSnakeDoc/statuspage/internal/logger"
	"github.com/MrSnakeDoc/statuspage/internal/utils"
)

const (
	// APIKeyHeader carries the probe shared secret.
	APIKeyHeader = "x-api-key"
	// AdminKeyHeader carries the operator secret.
	AdminKeyHeader = "x-admin-key"
)

// RequireKey rejects requests whose header does not match secret with 403.
// An empty secret rejects everything.
func RequireKey(header, secret string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	want := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(header))
			if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
				log.Warn("rejected unauthorized request",
					logger.String("path", r.URL.Path),
					logger.String("header", header),
					logger.String("remote_ip", utils.ClientIP(r, trustProxy)))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"Unauthorized"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
