package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/statuspage/internal/domain"
)

// clock is a settable time source shared with the store under test.
type clock struct{ t time.Time }

func (c *clock) now() time.Time      { return c.t }
func (c *clock) set(t time.Time)     { c.t = t }
func (c *clock) add(d time.Duration) { c.t = c.t.Add(d) }

func newClock(t time.Time) *clock { return &clock{t: t} }

func day(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(domain.DateLayout, s)
	require.NoError(t, err)
	return d.Add(12 * time.Hour)
}

func newTestStore(t *testing.T, clk *clock) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, WithClock(clk.now))
}

func TestRecordObservation_DayNeverDecreases(t *testing.T) {
	ctx := context.Background()
	clk := newClock(mustDate(t, "2026-03-10"))
	s := newTestStore(t, clk)

	for _, st := range []domain.Status{domain.StatusOperational, domain.StatusOutage, domain.StatusDegraded} {
		require.NoError(t, s.RecordObservation(ctx, "api", st))
		clk.add(time.Minute)
	}

	history, err := s.GetHistory(ctx, "api", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "2026-03-10", history[0].Date)
	assert.Equal(t, domain.StatusOutage, history[0].Status)
	assert.Equal(t, domain.DefaultUptimePct, history[0].UptimePct)
}

func TestRecordObservation_NewDaySeedsUptime(t *testing.T) {
	ctx := context.Background()
	clk := newClock(mustDate(t, "2026-03-10"))
	s := newTestStore(t, clk)

	require.NoError(t, s.RecordObservation(ctx, "api", domain.StatusOutage))

	history, err := s.GetHistory(ctx, "api", 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 100.0, history[0].UptimePct)
	assert.Equal(t, "api", history[0].ComponentID)
}

func TestRecordObservation_RejectsInvalidStatus(t *testing.T) {
	s := newTestStore(t, newClock(time.Now()))
	err := s.RecordObservation(context.Background(), "api", domain.Status("flaky"))
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestGetHistory_NewestFirstAndLimit(t *testing.T) {
	ctx := context.Background()
	clk := newClock(mustDate(t, "2026-03-01"))
	s := newTestStore(t, clk)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordObservation(ctx, "api", domain.StatusOperational))
		clk.add(day(1))
	}

	history, err := s.GetHistory(ctx, "api", 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "2026-03-05", history[0].Date)
	assert.Equal(t, "2026-03-04", history[1].Date)
	assert.Equal(t, "2026-03-03", history[2].Date)

	empty, err := s.GetHistory(ctx, "unknown", 3)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPurgeOlderThan_Boundary(t *testing.T) {
	ctx := context.Background()
	today := mustDate(t, "2026-10-16")
	clk := newClock(today.Add(-day(366)))
	s := newTestStore(t, clk)

	require.NoError(t, s.RecordObservation(ctx, "api", domain.StatusDegraded))
	clk.set(today.Add(-day(364)))
	require.NoError(t, s.RecordObservation(ctx, "api", domain.StatusOperational))
	clk.set(today)

	purged, err := s.PurgeOlderThan(ctx, 365)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	history, err := s.GetHistory(ctx, "api", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.DateOf(today.Add(-day(364))), history[0].Date)
}

func TestPurgeOlderThan_KeepsCutoffDay(t *testing.T) {
	ctx := context.Background()
	today := mustDate(t, "2026-10-16")
	clk := newClock(today.Add(-day(365)))
	s := newTestStore(t, clk)

	require.NoError(t, s.RecordObservation(ctx, "api", domain.StatusOperational))
	clk.set(today)

	purged, err := s.PurgeOlderThan(ctx, 365)
	require.NoError(t, err)
	assert.Zero(t, purged)
}

func TestIncidentLifecycle(t *testing.T) {
	ctx := context.Background()
	clk := newClock(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	s := newTestStore(t, clk)

	inc, err := s.CreateIncident(ctx, NewIncident{
		ComponentID: "api",
		Title:       "API errors",
		Status:      domain.IncidentStatus(domain.StatusDegraded),
		Description: "Elevated error rates",
	})
	require.NoError(t, err)
	require.NotEmpty(t, inc.ID)
	require.Len(t, inc.Updates, 1)
	assert.Equal(t, "Elevated error rates", inc.Updates[0].Message)

	clk.add(time.Minute)
	_, err = s.AppendIncidentUpdate(ctx, inc.ID, "Fix rolling out", domain.IncidentMonitoring)
	require.NoError(t, err)

	open, err := s.OpenIncidents(ctx, 3)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, domain.IncidentMonitoring, open[0].Status)
	require.Len(t, open[0].Updates, 2)
	assert.Equal(t, "Fix rolling out", open[0].Updates[0].Message)

	clk.add(time.Minute)
	resolved, err := s.AppendIncidentUpdate(ctx, inc.ID, "All good", domain.IncidentResolved)
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, clk.now().UTC(), resolved.ResolvedAt.UTC())

	_, err = s.AppendIncidentUpdate(ctx, inc.ID, "again", domain.IncidentInvestigating)
	assert.ErrorIs(t, err, ErrIncidentResolved)

	open, err = s.OpenIncidents(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, open)

	history, err := s.ResolvedIncidentsSince(ctx, clk.now().Add(-day(14)), 5)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Len(t, history[0].Updates, 3)

	n, err := s.ClearResolvedIncidents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.GetIncident(ctx, inc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteIncident_NotFound(t *testing.T) {
	s := newTestStore(t, newClock(time.Now()))
	_, err := s.DeleteIncident(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMaintenanceWindows(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	clk := newClock(now)
	s := newTestStore(t, clk)

	later, err := s.SaveMaintenance(ctx, &domain.MaintenanceWindow{
		Title:     "DB upgrade",
		StartTime: now.Add(2 * time.Hour),
		EndTime:   now.Add(3 * time.Hour),
		Status:    domain.MaintenanceScheduled,
	})
	require.NoError(t, err)
	sooner, err := s.SaveMaintenance(ctx, &domain.MaintenanceWindow{
		Title:     "Network work",
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(4 * time.Hour),
		Status:    domain.MaintenanceInProgress,
	})
	require.NoError(t, err)
	past, err := s.SaveMaintenance(ctx, &domain.MaintenanceWindow{
		Title:     "Old window",
		StartTime: now.Add(-day(2)),
		EndTime:   now.Add(-day(1)),
		Status:    domain.MaintenanceCompleted,
	})
	require.NoError(t, err)

	active, err := s.ActiveMaintenance(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, sooner.ID, active[0].ID)
	assert.Equal(t, later.ID, active[1].ID)

	done, err := s.PastMaintenanceSince(ctx, now.Add(-day(14)), 5)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, past.ID, done[0].ID)

	require.NoError(t, s.DeleteMaintenance(ctx, later.ID))
	assert.ErrorIs(t, s.DeleteMaintenance(ctx, later.ID), ErrNotFound)

	n, err := s.ClearFinishedMaintenance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
