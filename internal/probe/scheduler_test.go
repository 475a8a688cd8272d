package probe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/MrSnakeDoc/statuspage/internal/domain"
	"github.com/MrSnakeDoc/statuspage/internal/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// Keep-alive connections of the executor and reporter transports
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

type fakeChecker struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

func newFakeChecker() *fakeChecker {
	return &fakeChecker{calls: map[string]int{}, fail: map[string]bool{}}
}

func (f *fakeChecker) Execute(ctx context.Context, c *domain.Component) Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[c.ID]++
	if f.fail[c.ID] {
		return Outcome{Latency: time.Millisecond, Err: errors.New("refused")}
	}
	return Outcome{Latency: time.Millisecond, StatusCode: 200}
}

func (f *fakeChecker) count(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

type report struct {
	id     string
	result domain.ProbeResult
}

type fakeSink struct {
	mu      sync.Mutex
	reports []report
}

func (f *fakeSink) Report(ctx context.Context, id string, res domain.ProbeResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report{id: id, result: res})
	return nil
}

func (f *fakeSink) snapshot() []report {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]report(nil), f.reports...)
}

func testCatalog(components ...*domain.Component) *domain.Catalog {
	return &domain.Catalog{Groups: []*domain.Group{{ID: "core", Name: "Core", Components: components}}}
}

func TestScheduler_SkipsComponentsWithoutURL(t *testing.T) {
	checker := newFakeChecker()
	sink := &fakeSink{}
	s := NewScheduler(checker, sink, logger.NewFromZap(zaptest.NewLogger(t)), nil, SchedulerConfig{
		Interval: time.Hour,
		Jitter:   -1,
	})

	s.Start(context.Background(), testCatalog(
		&domain.Component{ID: "api", URL: "http://api"},
		&domain.Component{ID: "label"},
	))
	defer s.Stop()

	assert.Equal(t, 1, s.Active())
	require.Eventually(t, func() bool { return checker.count("api") == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, checker.count("label"))
}

func TestScheduler_TicksAndDebounces(t *testing.T) {
	checker := newFakeChecker()
	checker.fail["api"] = true
	sink := &fakeSink{}
	s := NewScheduler(checker, sink, logger.NewNop(), nil, SchedulerConfig{
		Interval: 10 * time.Millisecond,
		Jitter:   -1,
	})

	s.Start(context.Background(), testCatalog(&domain.Component{ID: "api", URL: "http://api"}))
	require.Eventually(t, func() bool { return len(sink.snapshot()) >= 3 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	reports := sink.snapshot()
	assert.Equal(t, domain.StatusOperational, reports[0].result.Status)
	assert.Equal(t, domain.StatusOperational, reports[1].result.Status)
	assert.Equal(t, domain.StatusOutage, reports[2].result.Status)
	require.NotNil(t, reports[2].result.Error)
	assert.Equal(t, "refused", *reports[2].result.Error)
}

func TestScheduler_ReconfigureReplacesLineages(t *testing.T) {
	checker := newFakeChecker()
	sink := &fakeSink{}
	s := NewScheduler(checker, sink, logger.NewNop(), nil, SchedulerConfig{
		Interval: 5 * time.Millisecond,
		Jitter:   -1,
	})

	s.Start(context.Background(), testCatalog(
		&domain.Component{ID: "old-a", URL: "http://a"},
		&domain.Component{ID: "old-b", URL: "http://b"},
	))
	require.Eventually(t, func() bool { return checker.count("old-a") > 0 }, time.Second, 5*time.Millisecond)

	s.Reconfigure(testCatalog(&domain.Component{ID: "new", URL: "http://new"}))
	assert.Equal(t, 1, s.Active())

	// Nothing of the retired generation may run after Reconfigure returns
	retired := checker.count("old-a")
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, retired, checker.count("old-a"))
	assert.Greater(t, checker.count("new"), 0)

	s.Stop()
	assert.Zero(t, s.Active())
}

func TestScheduler_StopBeforeJitterElapses(t *testing.T) {
	checker := newFakeChecker()
	sink := &fakeSink{}
	s := NewScheduler(checker, sink, logger.NewNop(), nil, SchedulerConfig{
		Interval: time.Hour,
		Jitter:   time.Hour,
	})

	s.Start(context.Background(), testCatalog(&domain.Component{ID: "api", URL: "http://api"}))
	s.Stop()

	assert.Zero(t, checker.count("api"))
	assert.Empty(t, sink.snapshot())
}

func TestScheduler_ParentCancelStopsLineages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(newFakeChecker(), &fakeSink{}, logger.NewNop(), nil, SchedulerConfig{
		Interval: time.Millisecond,
		Jitter:   -1,
	})
	s.Start(ctx, testCatalog(&domain.Component{ID: "api", URL: "http://api"}))

	cancel()
	require.Eventually(t, func() bool { return s.Active() == 0 }, time.Second, 5*time.Millisecond)
	s.Stop()
}
