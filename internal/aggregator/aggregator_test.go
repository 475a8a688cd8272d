package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/MrSnakeDoc/statuspage/internal/domain"
	"github.com/MrSnakeDoc/statuspage/internal/logger"
)

type recordedWrite struct {
	id     string
	status domain.Status
}

type fakeRecorder struct {
	mu      sync.Mutex
	writes  []recordedWrite
	fail    bool
	history map[string][]domain.DayRecord
}

func (f *fakeRecorder) RecordObservation(ctx context.Context, id string, status domain.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("redis down")
	}
	f.writes = append(f.writes, recordedWrite{id: id, status: status})
	return nil
}

func (f *fakeRecorder) GetHistory(ctx context.Context, id string, limit int) ([]domain.DayRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := f.history[id]
	if len(h) > limit {
		h = h[:limit]
	}
	return h, nil
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func catalogOf(groups map[string][]string, order ...string) *domain.Catalog {
	cat := &domain.Catalog{}
	for _, gid := range order {
		g := &domain.Group{ID: gid, Name: gid}
		for _, id := range groups[gid] {
			g.Components = append(g.Components, &domain.Component{ID: id, Name: id, GroupID: gid, URL: "https://" + id})
		}
		cat.Groups = append(cat.Groups, g)
	}
	return cat
}

func newTestAggregator(t *testing.T, rec HistoryRecorder, ids ...string) *Aggregator {
	t.Helper()
	log := logger.NewFromZap(zaptest.NewLogger(t))
	a := New(catalogOf(map[string][]string{"core": ids}, "core"), rec, log,
		WithClock(func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }))
	t.Cleanup(a.Wait)
	return a
}

func mustStatus(t *testing.T, a *Aggregator, id string) domain.Status {
	t.Helper()
	st, ok := a.Status(id)
	require.True(t, ok, "component %s not found", id)
	return st
}

func TestNew_InitialState(t *testing.T) {
	a := newTestAggregator(t, nil, "api")

	snap, ok := a.Snapshot("api")
	require.True(t, ok)
	assert.Equal(t, domain.StatusOperational, snap.Status)
	assert.Empty(t, snap.Regions)
	assert.Nil(t, snap.Incident)
}

func TestIngest_WorstRegionWins(t *testing.T) {
	a := newTestAggregator(t, nil, "api")

	a.Ingest("api", "eu", domain.StatusOutage)
	a.Ingest("api", "us", domain.StatusOperational)

	assert.Equal(t, domain.StatusOutage, mustStatus(t, a, "api"))
}

func TestIngest_OrderIndependent(t *testing.T) {
	values := map[string]domain.Status{"eu": domain.StatusDegraded, "us": domain.StatusMaintenance}

	ab := newTestAggregator(t, nil, "api")
	ab.Ingest("api", "eu", values["eu"])
	ab.Ingest("api", "us", values["us"])

	ba := newTestAggregator(t, nil, "api")
	ba.Ingest("api", "us", values["us"])
	ba.Ingest("api", "eu", values["eu"])

	assert.Equal(t, mustStatus(t, ab, "api"), mustStatus(t, ba, "api"))
	assert.Equal(t, domain.StatusDegraded, mustStatus(t, ab, "api"))
}

func TestIngest_RegionRecovers(t *testing.T) {
	a := newTestAggregator(t, nil, "api")

	a.Ingest("api", "eu", domain.StatusOutage)
	a.Ingest("api", "eu", domain.StatusOperational)

	assert.Equal(t, domain.StatusOperational, mustStatus(t, a, "api"))
}

func TestIngest_UnknownComponentIsNoop(t *testing.T) {
	rec := &fakeRecorder{}
	a := newTestAggregator(t, rec, "api")

	assert.False(t, a.Ingest("ghost", "eu", domain.StatusOutage))
	assert.False(t, a.Ingest("api", "eu", domain.Status("broken")))
	a.Wait()
	assert.Zero(t, rec.count())
}

func TestIncidentOverride(t *testing.T) {
	a := newTestAggregator(t, nil, "api")

	a.SetIncidentOverride("api", domain.IncidentStatus(domain.StatusDegraded))
	assert.Equal(t, domain.StatusDegraded, mustStatus(t, a, "api"))

	a.SetIncidentOverride("api", domain.IncidentResolved)
	assert.Equal(t, domain.StatusOperational, mustStatus(t, a, "api"))
}

func TestIncidentOverride_OnlyWinsWhenStrictlyHigher(t *testing.T) {
	a := newTestAggregator(t, nil, "api")

	a.Ingest("api", "eu", domain.StatusDegraded)
	a.SetIncidentOverride("api", domain.IncidentStatus(domain.StatusMaintenance))
	assert.Equal(t, domain.StatusDegraded, mustStatus(t, a, "api"))

	a.SetIncidentOverride("api", domain.IncidentStatus(domain.StatusOutage))
	assert.Equal(t, domain.StatusOutage, mustStatus(t, a, "api"))
}

func TestIncidentOverride_NonSeverityPhaseClears(t *testing.T) {
	a := newTestAggregator(t, nil, "api")

	a.SetIncidentOverride("api", domain.IncidentStatus(domain.StatusOutage))
	a.SetIncidentOverride("api", domain.IncidentMonitoring)

	assert.Equal(t, domain.StatusOperational, mustStatus(t, a, "api"))
}

func TestRecalculate_Idempotent(t *testing.T) {
	rec := &fakeRecorder{}
	a := newTestAggregator(t, rec, "api")

	a.Ingest("api", "eu", domain.StatusOutage)
	a.Wait()
	require.Equal(t, 1, rec.count())

	assert.False(t, a.Recalculate("api"))
	assert.False(t, a.Recalculate("api"))
	a.Ingest("api", "eu", domain.StatusOutage)
	a.Wait()
	assert.Equal(t, 1, rec.count())
}

func TestStatusChange_RecordsHistory(t *testing.T) {
	rec := &fakeRecorder{}
	a := newTestAggregator(t, rec, "api")

	a.Ingest("api", "eu", domain.StatusOutage)
	a.Ingest("api", "eu", domain.StatusDegraded)
	a.Wait()

	// Writes are fire-and-forget, their order is not guaranteed
	rec.mu.Lock()
	assert.ElementsMatch(t, []recordedWrite{
		{id: "api", status: domain.StatusOutage},
		{id: "api", status: domain.StatusDegraded},
	}, rec.writes)
	rec.mu.Unlock()

	// The in-memory day keeps its worst status
	snap, _ := a.Snapshot("api")
	require.Len(t, snap.History, 1)
	assert.Equal(t, "2026-06-01", snap.History[0].Date)
	assert.Equal(t, domain.StatusOutage, snap.History[0].Status)
}

func TestStatusChange_HistoryFailureKeepsStatus(t *testing.T) {
	rec := &fakeRecorder{fail: true}
	a := newTestAggregator(t, rec, "api")

	a.Ingest("api", "eu", domain.StatusOutage)
	a.Wait()

	assert.Equal(t, domain.StatusOutage, mustStatus(t, a, "api"))
}

func TestReloadConfig_CarriesStatusAndHistory(t *testing.T) {
	a := newTestAggregator(t, nil, "api", "db")

	a.Ingest("api", "eu", domain.StatusOutage)
	a.SetIncidentOverride("db", domain.IncidentStatus(domain.StatusDegraded))
	before, _ := a.Snapshot("api")

	summary := a.ReloadConfig(catalogOf(map[string][]string{"core": {"api", "db", "cache"}}, "core"))
	assert.Equal(t, []string{"cache"}, summary.Added)
	assert.Empty(t, summary.Removed)
	assert.Equal(t, 2, summary.Kept)

	api, ok := a.Snapshot("api")
	require.True(t, ok)
	assert.Equal(t, domain.StatusOutage, api.Status)
	assert.Equal(t, before.History, api.History)
	assert.Empty(t, api.Regions)
	assert.Nil(t, api.Incident)

	db, _ := a.Snapshot("db")
	assert.Equal(t, domain.StatusDegraded, db.Status)
	assert.Nil(t, db.Incident)

	cache, _ := a.Snapshot("cache")
	assert.Equal(t, domain.StatusOperational, cache.Status)
}

func TestReloadConfig_DropsRemovedComponents(t *testing.T) {
	a := newTestAggregator(t, nil, "api", "old")

	summary := a.ReloadConfig(catalogOf(map[string][]string{"core": {"api"}}, "core"))
	assert.Equal(t, []string{"old"}, summary.Removed)

	_, ok := a.Status("old")
	assert.False(t, ok)
	assert.False(t, a.Ingest("old", "eu", domain.StatusOutage))
}

func TestGetAllStatus_OrderedDeepCopy(t *testing.T) {
	log := logger.NewNop()
	a := New(catalogOf(map[string][]string{
		"web":  {"site", "cdn"},
		"data": {"db"},
	}, "web", "data"), nil, log)

	a.Ingest("cdn", "eu", domain.StatusDegraded)

	groups := a.GetAllStatus()
	require.Len(t, groups, 2)
	assert.Equal(t, "web", groups[0].ID)
	assert.Equal(t, "data", groups[1].ID)
	require.Len(t, groups[0].Services, 2)
	assert.Equal(t, "site", groups[0].Services[0].ID)
	assert.Equal(t, "cdn", groups[0].Services[1].ID)
	assert.Equal(t, domain.StatusDegraded, groups[0].Services[1].Status)

	groups[0].Services[1].Regions["eu"] = domain.StatusOutage
	again := a.GetAllStatus()
	assert.Equal(t, domain.StatusDegraded, again[0].Services[1].Regions["eu"])
}

func TestHydrate(t *testing.T) {
	rec := &fakeRecorder{history: map[string][]domain.DayRecord{
		"api": {
			{Date: "2026-06-01", ComponentID: "api", Status: domain.StatusOperational, UptimePct: 100},
			{Date: "2026-05-31", ComponentID: "api", Status: domain.StatusOutage, UptimePct: 100},
		},
	}}
	a := newTestAggregator(t, rec, "api", "db")

	require.NoError(t, a.Hydrate(context.Background(), rec, 90))

	assert.Equal(t, 2, rec.count(), "today's record is seeded for every component")
	snap, _ := a.Snapshot("api")
	require.Len(t, snap.History, 2)
	assert.Equal(t, domain.StatusOutage, snap.History[1].Status)
}

func TestConcurrentIngestAndReload(t *testing.T) {
	ids := make([]string, 20)
	for i := range ids {
		ids[i] = fmt.Sprintf("svc-%d", i)
	}
	rec := &fakeRecorder{}
	a := newTestAggregator(t, rec, ids...)
	statuses := domain.AllStatuses

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := ids[(w+i)%len(ids)]
				a.Ingest(id, fmt.Sprintf("r%d", w), statuses[i%len(statuses)])
				_ = a.GetAllStatus()
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			a.ReloadConfig(catalogOf(map[string][]string{"core": ids}, "core"))
		}
	}()
	wg.Wait()
	a.Wait()

	for _, id := range ids {
		_, ok := a.Status(id)
		assert.True(t, ok)
	}
}
