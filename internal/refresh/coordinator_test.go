// internal/refresh/coordinator_test.go
//
// Coordinator tests.  Failure injection goes through fakeOps; the
// isolation test drives the real scheduler on a clockwork fake clock.
//
// Run: go test ./internal/refresh -v

package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yanizio/hotelstats/internal/hotel"
	"github.com/yanizio/hotelstats/internal/repository"
	"github.com/yanizio/hotelstats/internal/scheduler"
	"github.com/yanizio/hotelstats/internal/stats"
	"github.com/yanizio/hotelstats/internal/tenant"
)

/* ------------------------------------------------------------------ */
/* fakes                                                              */
/* ------------------------------------------------------------------ */

type fakeOps struct {
	mu    sync.Mutex
	calls map[string][]int64

	// fail maps an operation name to the error it returns; panics maps it
	// to a panic value.
	fail   map[string]error
	panics map[string]any
	// failHotel fails only the listed hotel.
	failHotel map[int64]error
	// block, when set, is waited on by RefreshRealtime.
	block   chan struct{}
	entered chan struct{}

	clears atomic.Int32
}

func newFakeOps() *fakeOps {
	return &fakeOps{
		calls:     map[string][]int64{},
		fail:      map[string]error{},
		panics:    map[string]any{},
		failHotel: map[int64]error{},
	}
}

func (f *fakeOps) do(op string, tc tenant.Context, id int64) error {
	f.mu.Lock()
	f.calls[op] = append(f.calls[op], id)
	err, p := f.fail[op], f.panics[op]
	hotelErr := f.failHotel[id]
	f.mu.Unlock()

	if !tc.IsAdmin() {
		return errors.New("job ran without the system context")
	}
	if p != nil {
		panic(p)
	}
	if err != nil {
		return err
	}
	return hotelErr
}

func (f *fakeOps) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls[op])
}

func (f *fakeOps) RefreshRealtime(_ context.Context, tc tenant.Context, id int64) error {
	if f.block != nil {
		f.entered <- struct{}{}
		<-f.block
	}
	return f.do("realtime", tc, id)
}

func (f *fakeOps) RefreshCoreMetrics(_ context.Context, tc tenant.Context, id int64) error {
	return f.do("core", tc, id)
}

func (f *fakeOps) RefreshRevenueStatistics(_ context.Context, tc tenant.Context, id int64) error {
	return f.do("revenue", tc, id)
}

func (f *fakeOps) PreprocessTrendData(_ context.Context, tc tenant.Context, id int64) (stats.TrendReport, error) {
	return stats.TrendReport{}, f.do("trend", tc, id)
}

func (f *fakeOps) PreprocessTodayMetrics(_ context.Context, tc tenant.Context, id int64) error {
	return f.do("today", tc, id)
}

func (f *fakeOps) ClearDashboardCache(context.Context) (int, error) {
	f.clears.Add(1)
	f.mu.Lock()
	err := f.fail["cleanup"]
	f.mu.Unlock()
	return 0, err
}

type fakeHotels struct {
	ids []int64
	err error
}

func (h fakeHotels) ActiveHotels(context.Context) ([]hotel.Record, error) {
	if h.err != nil {
		return nil, h.err
	}
	out := make([]hotel.Record, len(h.ids))
	for i, id := range h.ids {
		out[i] = hotel.Record{ID: id}
	}
	return out, nil
}

type captured struct {
	kind  TriggerKind
	every time.Duration
	spec  string
	fn    func()
}

type fakeRegistrar struct{ m map[string]captured }

func (r *fakeRegistrar) EveryInterval(name string, d time.Duration, fn func()) error {
	r.m[name] = captured{kind: TriggerInterval, every: d, fn: fn}
	return nil
}

func (r *fakeRegistrar) Calendar(name, spec string, fn func()) error {
	r.m[name] = captured{kind: TriggerCalendar, spec: spec, fn: fn}
	return nil
}

func newCoordinator(ops *fakeOps, hotels HotelLister, sc Schedule, clk clockwork.Clock) *Coordinator {
	return NewCoordinator(Catalog(ops, hotels, CatalogConfig{Schedule: sc, Concurrency: 2}), clk, nil)
}

var transient = &repository.DataAccessError{Source: "orders", Op: "RevenueTrend", Err: errors.New("lost connection")}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func resultOf(c *Coordinator, job string) (Result, bool) {
	for _, r := range c.Results() {
		if r.Job == job {
			return r, true
		}
	}
	return Result{}, false
}

/* ------------------------------------------------------------------ */
/* tests                                                              */
/* ------------------------------------------------------------------ */

func TestCatalogContract(t *testing.T) {
	jobs := Catalog(newFakeOps(), fakeHotels{}, CatalogConfig{})
	want := []struct {
		name     string
		trigger  string
		severity Severity
	}{
		{JobRealtime, "every 300000ms", SeverityInfo},
		{JobCoreMetrics, "every 900000ms", SeverityInfo},
		{JobRevenueStats, "every 3600000ms", SeverityInfo},
		{JobTrend, "0 1 * * *", SeverityPreprocess},
		{JobTodayMetrics, "0 2 * * *", SeverityPreprocess},
		{JobCleanup, "0 3 * * 1", SeverityPreprocess},
	}
	if len(jobs) != len(want) {
		t.Fatalf("catalog has %d jobs, want %d", len(jobs), len(want))
	}
	for i, w := range want {
		j := jobs[i]
		if j.Name != w.name || j.Trigger.String() != w.trigger || j.Severity != w.severity {
			t.Fatalf("job %d = %s %s %s, want %s %s %s",
				i, j.Name, j.Trigger, j.Severity, w.name, w.trigger, w.severity)
		}
	}
}

func TestRun_OK(t *testing.T) {
	ops := newFakeOps()
	c := newCoordinator(ops, fakeHotels{ids: []int64{1, 2, 3}}, Schedule{}, nil)

	res, err := c.Run(context.Background(), JobTodayMetrics)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusOK || res.Kind != KindNone || res.RunID == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if ops.count("today") != 3 {
		t.Fatalf("hotels processed = %d, want 3", ops.count("today"))
	}
	if got, ok := resultOf(c, JobTodayMetrics); !ok || got.RunID != res.RunID {
		t.Fatalf("result not recorded: %+v", got)
	}
}

func TestRun_FailureIsContained(t *testing.T) {
	cases := []struct {
		name  string
		setup func(*fakeOps)
		kind  Kind
	}{
		{"transient", func(f *fakeOps) { f.fail["revenue"] = transient }, KindTransient},
		{"panic", func(f *fakeOps) { f.panics["revenue"] = "nil map" }, KindPanic},
		{"access", func(f *fakeOps) { f.fail["revenue"] = &tenant.AccessDeniedError{HotelID: 1} }, KindAccess},
		{"aggregation", func(f *fakeOps) { f.fail["revenue"] = &stats.AggregationError{Op: "x", Err: transient} }, KindAggregation},
		{"unknown", func(f *fakeOps) { f.fail["revenue"] = errors.New("odd") }, KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ops := newFakeOps()
			tc.setup(ops)
			c := newCoordinator(ops, fakeHotels{ids: []int64{1}}, Schedule{}, nil)

			res, err := c.Run(context.Background(), JobRevenueStats)
			if err != nil {
				t.Fatalf("failure escaped the boundary: %v", err)
			}
			if res.Status != StatusFailed || res.Kind != tc.kind || res.Err == nil {
				t.Fatalf("result = %+v, want failed/%s", res, tc.kind)
			}
		})
	}
}

func TestRun_HotelFailureDoesNotStopOthers(t *testing.T) {
	ops := newFakeOps()
	ops.failHotel[2] = transient
	c := newCoordinator(ops, fakeHotels{ids: []int64{1, 2, 3}}, Schedule{}, nil)

	res, _ := c.Run(context.Background(), JobCoreMetrics)
	if res.Status != StatusFailed || !errors.Is(res.Err, repository.ErrTransient) {
		t.Fatalf("result = %+v, want failed with transient cause", res)
	}
	if ops.count("core") != 3 {
		t.Fatalf("hotels attempted = %d, want 3", ops.count("core"))
	}
}

func TestRun_HotelListFailure(t *testing.T) {
	c := newCoordinator(newFakeOps(), fakeHotels{err: errors.New("db down")}, Schedule{}, nil)
	if res, _ := c.Run(context.Background(), JobTrend); res.Status != StatusFailed {
		t.Fatalf("result = %+v, want failed", res)
	}
}

func TestRun_SkipsOverlap(t *testing.T) {
	ops := newFakeOps()
	ops.block = make(chan struct{})
	ops.entered = make(chan struct{}, 1)
	c := newCoordinator(ops, fakeHotels{ids: []int64{1}}, Schedule{}, nil)

	done := make(chan Result, 1)
	go func() {
		res, _ := c.Run(context.Background(), JobRealtime)
		done <- res
	}()
	<-ops.entered

	res, _ := c.Run(context.Background(), JobRealtime)
	if res.Status != StatusSkipped {
		t.Fatalf("overlapping run = %s, want skipped", res.Status)
	}

	close(ops.block)
	if first := <-done; first.Status != StatusOK {
		t.Fatalf("first run = %+v, want ok", first)
	}
	if got, _ := resultOf(c, JobRealtime); got.Status != StatusOK {
		t.Fatalf("skipped run replaced the recorded result: %+v", got)
	}
	if res, _ := c.Run(context.Background(), JobRealtime); res.Status != StatusOK {
		t.Fatalf("run after overlap = %s, want ok", res.Status)
	}
}

func TestRun_UnknownJob(t *testing.T) {
	c := newCoordinator(newFakeOps(), fakeHotels{}, Schedule{}, nil)
	if _, err := c.Run(context.Background(), "nightly-backup"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("err = %v, want ErrUnknownJob", err)
	}
}

func TestCleanupClearsOncePerFiring(t *testing.T) {
	ops := newFakeOps()
	c := newCoordinator(ops, fakeHotels{ids: []int64{1}}, Schedule{}, nil)
	reg := &fakeRegistrar{m: map[string]captured{}}
	if err := c.Schedule(context.Background(), reg); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	cleanup, ok := reg.m[JobCleanup]
	if !ok || cleanup.kind != TriggerCalendar || cleanup.spec != "0 3 * * 1" {
		t.Fatalf("cleanup registration = %+v", cleanup)
	}
	if rt := reg.m[JobRealtime]; rt.kind != TriggerInterval || rt.every != 300000*time.Millisecond {
		t.Fatalf("realtime registration = %+v", rt)
	}

	for i := 1; i <= 3; i++ {
		cleanup.fn()
		if n := ops.clears.Load(); n != int32(i) {
			t.Fatalf("after %d firings ClearDashboardCache ran %d times", i, n)
		}
	}
}

// A revenue job that always fails must not keep the core-metrics job from
// running on its own schedule.
func TestIsolation_RevenueFailureOnScheduler(t *testing.T) {
	ops := newFakeOps()
	ops.fail["revenue"] = transient
	clk := clockwork.NewFakeClockAt(time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC))
	sc := Schedule{
		Realtime:     time.Hour,
		CoreMetrics:  2 * time.Minute,
		RevenueStats: time.Minute,
		Trend:        "0 1 1 1 *",
		TodayMetrics: "0 2 1 1 *",
		Cleanup:      "0 3 1 1 *",
	}
	c := newCoordinator(ops, fakeHotels{ids: []int64{1, 2}}, sc, clk)

	s := scheduler.New(clk, time.UTC, nil)
	if err := c.Schedule(context.Background(), s); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	s.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})

	park := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := clk.BlockUntilContext(ctx, 6); err != nil {
			t.Fatalf("triggers did not park: %v", err)
		}
	}

	park()
	clk.Advance(time.Minute)
	eventually(t, "revenue failure recorded", func() bool {
		r, ok := resultOf(c, JobRevenueStats)
		return ok && r.Status == StatusFailed
	})

	park()
	clk.Advance(time.Minute)
	eventually(t, "core metrics success", func() bool {
		r, ok := resultOf(c, JobCoreMetrics)
		return ok && r.Status == StatusOK
	})
	eventually(t, "second revenue firing", func() bool { return ops.count("revenue") >= 4 })

	if r, _ := resultOf(c, JobRevenueStats); r.Kind != KindTransient {
		t.Fatalf("revenue kind = %s, want transient", r.Kind)
	}
}
