package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/MrSnakeDoc/statuspage/internal/aggregator"
	"github.com/MrSnakeDoc/statuspage/internal/config"
	"github.com/MrSnakeDoc/statuspage/internal/domain"
	"github.com/MrSnakeDoc/statuspage/internal/httpserver/deps"
	"github.com/MrSnakeDoc/statuspage/internal/incident"
	"github.com/MrSnakeDoc/statuspage/internal/logger"
	"github.com/MrSnakeDoc/statuspage/internal/metrics"
	"github.com/MrSnakeDoc/statuspage/internal/reload"
	redisstore "github.com/MrSnakeDoc/statuspage/internal/store/redis"
)

const (
	apiSecret   = "probe-secret"
	adminSecret = "admin-secret"
)

const catalogYAML = `- id: core
  name: Core
  services:
    - id: api
      name: API
      url: https://api.example.com
    - id: db
      name: Database
`

type testServer struct {
	handler http.Handler
	agg     *aggregator.Aggregator
	trigger chan struct{}
	mr      *miniredis.Miniredis
}

func newTestConfig() *config.Config {
	return &config.Config{
		ListenPort:      ":0",
		RateLimitBurst:  1000,
		RateLimitPerMin: 1000,
		CORSOrigins:     []string{"*"},
	}
}

func newCentral(t *testing.T, mutate func(*deps.Deps)) *testServer {
	t.Helper()
	log := logger.NewFromZap(zaptest.NewLogger(t))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := redisstore.NewStore(client)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	agg := aggregator.New(nil, store, log, aggregator.WithMetrics(m))
	t.Cleanup(agg.Wait)

	path := filepath.Join(t.TempDir(), "services.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o644))
	ctrl := reload.NewController(path, func(c *domain.Catalog) { agg.ReloadConfig(c) }, log, m)
	_, err := ctrl.ReloadFromSource(context.Background(), true)
	require.NoError(t, err)

	trigger := make(chan struct{}, 1)
	d := deps.Deps{
		Logger:        log,
		StartTime:     time.Now(),
		Mode:          "central",
		APISecret:     apiSecret,
		AdminSecret:   adminSecret,
		Store:         store,
		Aggregator:    agg,
		Reload:        ctrl,
		Incidents:     incident.NewManager(store, agg, log),
		Metrics:       m,
		Gatherer:      reg,
		ReloadTrigger: trigger,
	}
	if mutate != nil {
		mutate(&d)
	}

	srv := New(newTestConfig(), log, d)
	return &testServer{handler: srv.Handler(), agg: agg, trigger: trigger, mr: mr}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func probeKey() map[string]string { return map[string]string{"x-api-key": apiSecret} }
func adminKey() map[string]string { return map[string]string{"x-admin-key": adminSecret} }

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type apiError struct {
	Error   string   `json:"error"`
	Details []string `json:"details"`
}

func TestCheck_RequiresAPIKey(t *testing.T) {
	s := newCentral(t, nil)
	body := `{"region":"eu","results":{"api":{"status":"outage"}}}`

	rec := s.do(t, http.MethodPost, "/api/check", body, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/check", body, map[string]string{"x-api-key": "wrong"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	st, _ := s.agg.Status("api")
	assert.Equal(t, domain.StatusOperational, st)
}

func TestCheck_RejectsInvalidPayload(t *testing.T) {
	s := newCentral(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"bad status", `{"region":"eu","results":{"api":{"status":"broken"}}}`},
		{"missing region", `{"results":{"api":{"status":"outage"}}}`},
		{"negative latency", `{"region":"eu","results":{"api":{"status":"outage","latency":-1}}}`},
		{"malformed", `{"region":`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/check", tt.body, probeKey())
			require.Equal(t, http.StatusBadRequest, rec.Code)
			e := decode[apiError](t, rec)
			assert.Equal(t, "Invalid payload", e.Error)
			assert.NotEmpty(t, e.Details)
		})
	}

	st, _ := s.agg.Status("api")
	assert.Equal(t, domain.StatusOperational, st)
}

func TestCheck_IngestsAndStatusReflectsIt(t *testing.T) {
	s := newCentral(t, nil)

	rec := s.do(t, http.MethodPost, "/api/check",
		`{"region":"eu","results":{"api":{"status":"outage","latency":12.5,"error":"timeout"},"ghost":{"status":"outage"}}}`,
		probeKey())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[struct {
		Accepted int `json:"accepted"`
		Ignored  int `json:"ignored"`
	}](t, rec)
	assert.Equal(t, 1, resp.Accepted)
	assert.Equal(t, 1, resp.Ignored)

	rec = s.do(t, http.MethodGet, "/api/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	groups := decode[[]aggregator.GroupStatus](t, rec)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Services, 2)
	assert.Equal(t, "api", groups[0].Services[0].ID)
	assert.Equal(t, domain.StatusOutage, groups[0].Services[0].Status)
	assert.Equal(t, domain.StatusOutage, groups[0].Services[0].Regions["eu"])
	assert.Equal(t, domain.StatusOperational, groups[0].Services[1].Status)
}

func TestAdminConfig(t *testing.T) {
	s := newCentral(t, nil)

	rec := s.do(t, http.MethodPost, "/api/admin/config", `[{"id":"core"}]`, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/admin/config", `[{"id":"core","name":"Core"}]`, adminKey())
	require.Equal(t, http.StatusBadRequest, rec.Code)
	e := decode[apiError](t, rec)
	assert.Equal(t, "Invalid configuration", e.Error)
	assert.NotEmpty(t, e.Details)
	assert.Equal(t, 2, s.agg.Catalog().Len())

	rec = s.do(t, http.MethodPost, "/api/admin/config",
		`[{"id":"web","name":"Web","services":[{"id":"site","name":"Site","url":"https://example.com"}]}]`, adminKey())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, s.agg.Catalog().Len())

	rec = s.do(t, http.MethodGet, "/api/config", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"site"`)
}

func TestAdminReloadTrigger(t *testing.T) {
	s := newCentral(t, nil)

	rec := s.do(t, http.MethodPost, "/api/admin/reload", "", adminKey())
	assert.Equal(t, http.StatusAccepted, rec.Code)

	// Nobody drains the trigger in this test: the second request is refused
	rec = s.do(t, http.MethodPost, "/api/admin/reload", "", adminKey())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Len(t, s.trigger, 1)
}

func TestIncidentLifecycle(t *testing.T) {
	s := newCentral(t, nil)

	rec := s.do(t, http.MethodPost, "/api/admin/incidents",
		`{"component_id":"api","title":"API errors","status":"degraded","description":"Elevated 5xx"}`, adminKey())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[struct {
		ID string `json:"id"`
	}](t, rec)
	require.NotEmpty(t, created.ID)

	st, _ := s.agg.Status("api")
	assert.Equal(t, domain.StatusDegraded, st)

	rec = s.do(t, http.MethodGet, "/api/incidents/active", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	active := decode[[]domain.Incident](t, rec)
	require.Len(t, active, 1)
	assert.Equal(t, created.ID, active[0].ID)

	update := fmt.Sprintf("/api/admin/incidents/%s/update", created.ID)
	rec = s.do(t, http.MethodPost, update, `{"update_text":"Fixed","status":"resolved"}`, adminKey())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st, _ = s.agg.Status("api")
	assert.Equal(t, domain.StatusOperational, st)

	rec = s.do(t, http.MethodPost, update, `{"update_text":"Back","status":"outage"}`, adminKey())
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/incidents/history", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]domain.PastEvent](t, rec)
	require.Len(t, events, 1)
	assert.Equal(t, "incident", events[0].Type)

	rec = s.do(t, http.MethodDelete, "/api/incidents/history/clear", "", adminKey())
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/admin/incidents/"+created.ID, "", adminKey())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateIncident_Invalid(t *testing.T) {
	s := newCentral(t, nil)

	rec := s.do(t, http.MethodPost, "/api/admin/incidents", `{"component_id":"api"}`, adminKey())
	require.Equal(t, http.StatusBadRequest, rec.Code)
	e := decode[apiError](t, rec)
	assert.Len(t, e.Details, 2)
}

func TestMaintenance(t *testing.T) {
	s := newCentral(t, nil)
	start := time.Now().Add(time.Hour).UnixMilli()

	rec := s.do(t, http.MethodPost, "/api/maintenance/schedule",
		fmt.Sprintf(`{"title":"DB","description":"x","start_time":%d,"end_time":%d,"status":"scheduled"}`, start, start-1), adminKey())
	require.Equal(t, http.StatusBadRequest, rec.Code)
	e := decode[apiError](t, rec)
	assert.Len(t, e.Details, 3)

	rec = s.do(t, http.MethodPost, "/api/maintenance/schedule",
		fmt.Sprintf(`{"title":"DB upgrade","description":"Postgres 17","start_time":"%d","end_time":%d,"status":"scheduled"}`, start, start+3600000), adminKey())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/maintenance/active", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	windows := decode[[]domain.MaintenanceWindow](t, rec)
	require.Len(t, windows, 1)
	assert.Equal(t, "DB upgrade", windows[0].Title)

	st, _ := s.agg.Status("db")
	assert.Equal(t, domain.StatusOperational, st)

	rec = s.do(t, http.MethodDelete, "/api/maintenance/"+windows[0].ID, "", adminKey())
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/maintenance/"+windows[0].ID, "", adminKey())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndReadiness(t *testing.T) {
	s := newCentral(t, nil)

	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, float64(2), health["components"])

	rec = s.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	s.mr.Close()
	rec = s.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newCentral(t, nil)

	s.do(t, http.MethodPost, "/api/check", `{"region":"eu","results":{"api":{"status":"degraded"}}}`, probeKey())

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `statuspage_ingested_results_total{region="eu"} 1`)
}

func TestRestrictedEndpoints(t *testing.T) {
	s := newCentral(t, func(d *deps.Deps) { d.AllowedCIDRS = []string{"10.0.0.0/8"} })

	// httptest requests come from 192.0.2.1
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/readyz", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/metrics", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/healthz", "", nil).Code)
}

func TestProbeModeServesNoAggregationAPI(t *testing.T) {
	log := logger.NewNop()
	srv := New(newTestConfig(), log, deps.Deps{
		Logger:      log,
		StartTime:   time.Now(),
		Mode:        "probe",
		Region:      "eu-west",
		ProbeActive: func() int { return 3 },
	})
	s := &testServer{handler: srv.Handler()}

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/status", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/check", "{}", probeKey()).Code)

	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[map[string]any](t, rec)
	assert.Equal(t, "probe", health["mode"])
	assert.Equal(t, float64(3), health["active_probes"])
}
