// internal/stats/aggregator_test.go
//
// Aggregator tests over in-package fake sources, the in-memory store, the
// real tenant guard, and a fake clock pinned to 2024-01-05 12:00 UTC.
//
// Run: go test ./internal/stats -v

package stats

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/yanizio/hotelstats/internal/cache"
	"github.com/yanizio/hotelstats/internal/calendar"
	"github.com/yanizio/hotelstats/internal/tenant"
)

/* ------------------------------------------------------------------ */
/* fakes                                                              */
/* ------------------------------------------------------------------ */

type fakeSources struct {
	orders  map[string]int64
	revenue map[string]decimal.Decimal
	users   map[string]int64
	rooms   map[string]int64

	// fail is keyed by method name or "Method@date".
	fail  map[string]error
	short bool

	mu    sync.Mutex
	calls []string
}

func newFakeSources() *fakeSources {
	return &fakeSources{
		orders:  map[string]int64{},
		revenue: map[string]decimal.Decimal{},
		users:   map[string]int64{},
		rooms:   map[string]int64{"OCCUPIED": 6, "VACANT": 2, "OUT_OF_SERVICE": 4},
		fail:    map[string]error{},
	}
}

func (f *fakeSources) hit(method, date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method+"@"+date)
	if err := f.fail[method+"@"+date]; err != nil {
		return err
	}
	return f.fail[method]
}

func (f *fakeSources) callsOf(method string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if len(c) > len(method) && c[:len(method)+1] == method+"@" {
			out = append(out, c[len(method)+1:])
		}
	}
	return out
}

func fill[T any](short bool, start, end time.Time, v func(date string) T) []T {
	var out []T
	for _, d := range calendar.Days(start, end) {
		out = append(out, v(calendar.Format(d)))
	}
	if short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out
}

func (f *fakeSources) CountOrdersByDate(_ context.Context, _ int64, day time.Time) (int64, error) {
	date := calendar.Format(day)
	if err := f.hit("CountOrdersByDate", date); err != nil {
		return 0, err
	}
	return f.orders[date], nil
}

func (f *fakeSources) RevenueByDate(_ context.Context, _ int64, day time.Time) (decimal.Decimal, error) {
	date := calendar.Format(day)
	if err := f.hit("RevenueByDate", date); err != nil {
		return decimal.Zero, err
	}
	return f.revenue[date], nil
}

func (f *fakeSources) OccupancyHistory(_ context.Context, _ int64, start, end time.Time) ([]float64, error) {
	if err := f.hit("OccupancyHistory", calendar.Format(start)); err != nil {
		return nil, err
	}
	return fill(f.short, start, end, func(string) float64 { return 0.5 }), nil
}

func (f *fakeSources) RevenueTrend(_ context.Context, _ int64, start, end time.Time) ([]decimal.Decimal, error) {
	if err := f.hit("RevenueTrend", calendar.Format(start)); err != nil {
		return nil, err
	}
	return fill(f.short, start, end, func(date string) decimal.Decimal { return f.revenue[date] }), nil
}

func (f *fakeSources) RoomStatusCounts(_ context.Context, _ int64) (map[string]int64, error) {
	if err := f.hit("RoomStatusCounts", ""); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(f.rooms))
	for k, v := range f.rooms {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSources) CountUsersByDate(_ context.Context, _ int64, day time.Time) (int64, error) {
	date := calendar.Format(day)
	if err := f.hit("CountUsersByDate", date); err != nil {
		return 0, err
	}
	return f.users[date], nil
}

func (f *fakeSources) UserActivityTrend(_ context.Context, _ int64, start, end time.Time) ([]int64, error) {
	if err := f.hit("UserActivityTrend", calendar.Format(start)); err != nil {
		return nil, err
	}
	return fill(f.short, start, end, func(date string) int64 { return f.users[date] }), nil
}

func (f *fakeSources) RatingDistribution(_ context.Context, _ int64, start, end time.Time) ([]int64, error) {
	if err := f.hit("RatingDistribution", calendar.Format(start)); err != nil {
		return nil, err
	}
	out := []int64{1, 0, 3, 8, 21}
	if f.short {
		out = out[:4]
	}
	return out, nil
}

type zones map[int64]*time.Location

func (z zones) Location(_ context.Context, hotelID int64) (*time.Location, error) {
	if loc, ok := z[hotelID]; ok {
		return loc, nil
	}
	return time.UTC, nil
}

type fixture struct {
	agg   *Aggregator
	src   *fakeSources
	store *cache.MemoryStore
	clock *clockwork.FakeClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	src := newFakeSources()
	store := cache.NewMemoryStore()
	clk := clockwork.NewFakeClockAt(time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC))
	agg := New(Deps{
		Orders:  src,
		Rooms:   src,
		Users:   src,
		Reviews: src,
		Store:   store,
		Access:  tenant.NewGuard(nil, nil),
		Zones:   zones{},
		Clock:   clk,
	})
	return fixture{agg: agg, src: src, store: store, clock: clk}
}

var (
	system = tenant.SystemContext()
	boom   = errors.New("connection reset")
)

func d(y int, m time.Month, day int) time.Time { return time.Date(y, m, day, 0, 0, 0, 0, time.UTC) }

func ptr(v int64) *int64 { return &v }

/* ------------------------------------------------------------------ */
/* preprocessing                                                      */
/* ------------------------------------------------------------------ */

// manyRooms spreads rooms over enough statuses that an unsorted map
// encoding would show up within a few runs.
var manyRooms = map[string]int64{
	"OCCUPIED": 6, "VACANT": 2, "OUT_OF_SERVICE": 4,
	"CLEANING": 1, "RESERVED": 3, "MAINTENANCE": 5, "INSPECTING": 7,
}

func TestPreprocessTodayMetrics_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.src.orders["2024-01-05"] = 14
	f.src.revenue["2024-01-05"] = decimal.RequireFromString("1520.40")
	f.src.users["2024-01-05"] = 3
	f.src.rooms = manyRooms
	ctx := context.Background()
	prefix := cache.Prefix{Namespace: cache.NamespaceStats, HotelID: 1}

	for round := 0; round < 20; round++ {
		if err := f.agg.PreprocessTodayMetrics(ctx, system, 1); err != nil {
			t.Fatalf("round %d first run: %v", round, err)
		}
		first, err := f.store.Scan(ctx, prefix)
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		if len(first) != 5 {
			t.Fatalf("entries = %d, want 5 (four metrics and the snapshot)", len(first))
		}

		f.clock.Advance(time.Minute)
		if err := f.agg.PreprocessTodayMetrics(ctx, system, 1); err != nil {
			t.Fatalf("round %d second run: %v", round, err)
		}
		second, _ := f.store.Scan(ctx, prefix)
		if len(second) != len(first) {
			t.Fatalf("entries changed from %d to %d", len(first), len(second))
		}
		for i := range first {
			if first[i].Key != second[i].Key || !bytes.Equal(first[i].Value, second[i].Value) {
				t.Fatalf("round %d: entry %s differs between runs", round, first[i].Key)
			}
			if !second[i].ComputedAt.After(first[i].ComputedAt) {
				t.Fatalf("entry %s was not overwritten", first[i].Key)
			}
		}
		f.clock.Advance(time.Minute)
	}

	var snap DailySnapshot
	e, _ := f.store.Get(ctx, cache.Key{Namespace: cache.NamespaceStats, HotelID: 1, Metric: MetricSnapshot, Period: "2024-01-05"})
	if err := cache.Decode(e.Value, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.OrderCount != 14 || snap.NewUserCount != 3 || !snap.Revenue.Equal(decimal.RequireFromString("1520.4")) {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if len(snap.RoomStatusCounts) != len(manyRooms) || snap.RoomStatusCounts["OCCUPIED"] != 6 {
		t.Fatalf("room status not carried: %+v", snap.RoomStatusCounts)
	}
}

func TestRefreshRealtime_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.src.rooms = manyRooms
	ctx := context.Background()
	key := cache.Key{Namespace: cache.NamespaceDashboard, HotelID: 1, Metric: MetricRealtime, Period: "2024-01-05"}

	var prev []byte
	for round := 0; round < 20; round++ {
		if err := f.agg.RefreshRealtime(ctx, system, 1); err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		e, err := f.store.Get(ctx, key)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if prev != nil && !bytes.Equal(prev, e.Value) {
			t.Fatalf("round %d: realtime payload differs from previous refresh", round)
		}
		prev = e.Value
	}
}

func TestPreprocessTodayMetrics_IsolatesSteps(t *testing.T) {
	f := newFixture(t)
	f.src.fail["RevenueByDate"] = boom
	ctx := context.Background()

	err := f.agg.PreprocessTodayMetrics(ctx, system, 1)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want revenue failure", err)
	}

	for _, metric := range []string{MetricOrders, MetricNewUsers, MetricRoomStatus} {
		if _, err := f.store.Get(ctx, cache.Key{Namespace: cache.NamespaceStats, HotelID: 1, Metric: metric, Period: "2024-01-05"}); err != nil {
			t.Fatalf("%s not cached after sibling failure: %v", metric, err)
		}
	}
	for _, metric := range []string{MetricRevenue, MetricSnapshot} {
		if _, err := f.store.Get(ctx, cache.Key{Namespace: cache.NamespaceStats, HotelID: 1, Metric: metric, Period: "2024-01-05"}); !errors.Is(err, cache.ErrNotFound) {
			t.Fatalf("%s cached despite failure (err=%v)", metric, err)
		}
	}
}

func TestPreprocessTodayMetrics_UsesHotelZone(t *testing.T) {
	f := newFixture(t)
	f.agg.zones = zones{2: time.FixedZone("UTC+9", 9*3600)}
	f.clock.Advance(8 * time.Hour) // 20:00 UTC, 05:00 next day at UTC+9

	if err := f.agg.PreprocessTodayMetrics(context.Background(), system, 2); err != nil {
		t.Fatalf("PreprocessTodayMetrics: %v", err)
	}
	if got := f.src.callsOf("CountOrdersByDate"); len(got) != 1 || got[0] != "2024-01-06" {
		t.Fatalf("orders counted for %v, want [2024-01-06]", got)
	}
}

func TestPreprocessTrendData_CoversWindow(t *testing.T) {
	f := newFixture(t)
	f.src.fail["CountUsersByDate@2023-12-20"] = boom
	ctx := context.Background()

	rep, err := f.agg.PreprocessTrendData(ctx, system, 1)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the failed date's cause", err)
	}
	if len(rep.Dates) != TrendDays {
		t.Fatalf("visited %d dates, want %d", len(rep.Dates), TrendDays)
	}
	if rep.Dates[0] != "2023-12-07" || rep.Dates[TrendDays-1] != "2024-01-05" {
		t.Fatalf("window = %s..%s, want 2023-12-07..2024-01-05", rep.Dates[0], rep.Dates[TrendDays-1])
	}
	for i := 1; i < len(rep.Dates); i++ {
		if rep.Dates[i] <= rep.Dates[i-1] {
			t.Fatalf("dates not ascending at %d: %v", i, rep.Dates)
		}
	}
	if len(rep.Failed) != 1 || rep.Failed[0] != "2023-12-20" {
		t.Fatalf("failed = %v, want [2023-12-20]", rep.Failed)
	}

	// The sources saw the dates in the same order.
	calls := f.src.callsOf("CountOrdersByDate")
	for i := range rep.Dates {
		if calls[i] != rep.Dates[i] {
			t.Fatalf("source call %d for %s, want %s", i, calls[i], rep.Dates[i])
		}
	}

	entries, _ := f.store.Scan(ctx, cache.Prefix{Namespace: cache.NamespaceStats, HotelID: 1, Metric: MetricTrend})
	if len(entries) != TrendDays-1 {
		t.Fatalf("trend entries = %d, want %d", len(entries), TrendDays-1)
	}
	for _, e := range entries {
		if e.Key.Period == "2023-12-20" {
			t.Fatalf("failed date was written")
		}
	}
}

func TestPreprocess_AccessDenied(t *testing.T) {
	f := newFixture(t)
	clerk := tenant.NewContext("clerk", tenant.RoleStandard, ptr(2))

	if err := f.agg.PreprocessTodayMetrics(context.Background(), clerk, 1); !errors.Is(err, tenant.ErrAccessDenied) {
		t.Fatalf("today err = %v, want ErrAccessDenied", err)
	}
	if _, err := f.agg.PreprocessTrendData(context.Background(), clerk, 1); !errors.Is(err, tenant.ErrAccessDenied) {
		t.Fatalf("trend err = %v, want ErrAccessDenied", err)
	}
	if len(f.src.calls) != 0 {
		t.Fatalf("sources queried without access: %v", f.src.calls)
	}
}

/* ------------------------------------------------------------------ */
/* range queries                                                      */
/* ------------------------------------------------------------------ */

func TestOccupancyHistory_RangeLengthLaw(t *testing.T) {
	f := newFixture(t)
	cases := []struct{ start, end time.Time }{
		{d(2024, 1, 1), d(2024, 1, 1)},
		{d(2024, 1, 1), d(2024, 1, 5)},
		{d(2024, 2, 27), d(2024, 3, 2)},
		{d(2023, 12, 1), d(2024, 1, 31)},
	}
	for _, c := range cases {
		got, err := f.agg.OccupancyHistory(context.Background(), system, 1, c.start, c.end)
		if err != nil {
			t.Fatalf("%s..%s: %v", calendar.Format(c.start), calendar.Format(c.end), err)
		}
		want := int(c.end.Sub(c.start).Hours()/24) + 1
		if len(got) != want {
			t.Fatalf("%s..%s: len = %d, want %d", calendar.Format(c.start), calendar.Format(c.end), len(got), want)
		}
	}
}

func TestRevenueGrowthTrend_FiveDays(t *testing.T) {
	f := newFixture(t)
	for i, v := range []string{"10", "20", "30", "40", "50"} {
		f.src.revenue[calendar.Format(d(2024, 1, 1+i))] = decimal.RequireFromString(v)
	}

	got, err := f.agg.RevenueGrowthTrend(context.Background(), system, 1, d(2024, 1, 1), d(2024, 1, 5))
	if err != nil {
		t.Fatalf("RevenueGrowthTrend: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	for i, v := range []int64{10, 20, 30, 40, 50} {
		if !got[i].Equal(decimal.NewFromInt(v)) {
			t.Fatalf("day %d = %s, want %d", i+1, got[i], v)
		}
	}
}

func TestRangeQueries_InvalidRange(t *testing.T) {
	f := newFixture(t)
	_, err := f.agg.UserActivityTrend(context.Background(), system, 1, d(2024, 1, 5), d(2024, 1, 1))
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("err = %v, want ErrInvalidRange", err)
	}
}

func TestRangeQueries_FailuresAreAggregationErrors(t *testing.T) {
	f := newFixture(t)
	f.src.fail["RevenueTrend"] = boom

	_, err := f.agg.RevenueGrowthTrend(context.Background(), system, 4, d(2024, 1, 1), d(2024, 1, 5))
	var ae *AggregationError
	if !errors.As(err, &ae) || ae.Op != "RevenueGrowthTrend" || ae.HotelID != 4 || !errors.Is(err, boom) {
		t.Fatalf("err = %#v, want AggregationError wrapping cause", err)
	}

	f.src.fail = map[string]error{}
	f.src.short = true
	if got, err := f.agg.UserActivityTrend(context.Background(), system, 4, d(2024, 1, 1), d(2024, 1, 5)); !errors.As(err, &ae) || got != nil {
		t.Fatalf("short sequence: got %v, err %v; want AggregationError and no values", got, err)
	}
	if _, err := f.agg.ReviewQualityStats(context.Background(), system, 4, d(2024, 1, 1), d(2024, 1, 5)); !errors.As(err, &ae) {
		t.Fatalf("short buckets: err = %v, want AggregationError", err)
	}
}

func TestReviewQualityStats(t *testing.T) {
	f := newFixture(t)
	got, err := f.agg.ReviewQualityStats(context.Background(), system, 1, d(2024, 1, 1), d(2024, 1, 31))
	if err != nil {
		t.Fatalf("ReviewQualityStats: %v", err)
	}
	if len(got) != 5 || got[4] != 21 {
		t.Fatalf("buckets = %v", got)
	}
}

func TestRangeQueries_AccessDenied(t *testing.T) {
	f := newFixture(t)
	clerk := tenant.NewContext("clerk", tenant.RoleStandard, ptr(2))

	if _, err := f.agg.OccupancyHistory(context.Background(), clerk, 1, d(2024, 1, 1), d(2024, 1, 2)); !errors.Is(err, tenant.ErrAccessDenied) {
		t.Fatalf("err = %v, want ErrAccessDenied", err)
	}
	if _, err := f.agg.OccupancyHistory(context.Background(), clerk, 2, d(2024, 1, 1), d(2024, 1, 2)); err != nil {
		t.Fatalf("own hotel refused: %v", err)
	}
}

/* ------------------------------------------------------------------ */
/* dashboard                                                          */
/* ------------------------------------------------------------------ */

func TestRefreshCoreMetrics(t *testing.T) {
	f := newFixture(t)
	f.src.orders["2024-01-05"] = 9
	f.src.revenue["2024-01-05"] = decimal.RequireFromString("300")
	ctx := context.Background()

	if err := f.agg.RefreshCoreMetrics(ctx, system, 1); err != nil {
		t.Fatalf("RefreshCoreMetrics: %v", err)
	}
	e, err := f.store.Get(ctx, cache.Key{Namespace: cache.NamespaceDashboard, HotelID: 1, Metric: MetricCore, Period: "2024-01-05"})
	if err != nil {
		t.Fatalf("core entry missing: %v", err)
	}
	var cm CoreMetrics
	if err := cache.Decode(e.Value, &cm); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cm.OrderCount != 9 || cm.OccupancyRate != 0.75 || !cm.Revenue.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("unexpected core metrics: %+v", cm)
	}
}

func TestRefreshRealtime_FailureKeepsPreviousEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := cache.Key{Namespace: cache.NamespaceDashboard, HotelID: 1, Metric: MetricRealtime, Period: "2024-01-05"}

	if err := f.agg.RefreshRealtime(ctx, system, 1); err != nil {
		t.Fatalf("RefreshRealtime: %v", err)
	}
	before, _ := f.store.Get(ctx, key)

	f.src.fail["RoomStatusCounts"] = boom
	f.clock.Advance(5 * time.Minute)
	if err := f.agg.RefreshRealtime(ctx, system, 1); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want room failure", err)
	}
	after, _ := f.store.Get(ctx, key)
	if !after.ComputedAt.Equal(before.ComputedAt) {
		t.Fatalf("entry overwritten by a failed refresh")
	}
}

func TestRefreshRevenueStatistics(t *testing.T) {
	f := newFixture(t)
	f.src.revenue["2023-12-30"] = decimal.NewFromInt(100)
	f.src.revenue["2024-01-05"] = decimal.NewFromInt(700)
	ctx := context.Background()

	if err := f.agg.RefreshRevenueStatistics(ctx, system, 1); err != nil {
		t.Fatalf("RefreshRevenueStatistics: %v", err)
	}
	e, err := f.store.Get(ctx, cache.Key{Namespace: cache.NamespaceDashboard, HotelID: 1, Metric: MetricRevenueStats, Period: "2024-01-05"})
	if err != nil {
		t.Fatalf("revenue entry missing: %v", err)
	}
	var rs RevenueStats
	if err := cache.Decode(e.Value, &rs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rs.Start != "2023-12-30" || len(rs.Daily) != RevenueWindowDays {
		t.Fatalf("window = %s (%d days)", rs.Start, len(rs.Daily))
	}
	if !rs.Total.Equal(decimal.NewFromInt(800)) || !rs.Growth.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("total %s growth %s, want 800 and 6", rs.Total, rs.Growth)
	}
}

func TestClearDashboardCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, h := range []int64{1, 2} {
		if err := f.agg.RefreshRealtime(ctx, system, h); err != nil {
			t.Fatalf("RefreshRealtime(%d): %v", h, err)
		}
	}
	if err := f.agg.PreprocessTodayMetrics(ctx, system, 1); err != nil {
		t.Fatalf("PreprocessTodayMetrics: %v", err)
	}

	n, err := f.agg.ClearDashboardCache(ctx)
	if err != nil || n != 2 {
		t.Fatalf("ClearDashboardCache = %d, %v; want 2", n, err)
	}
	if f.store.Len() != 5 {
		t.Fatalf("stats entries touched: %d left, want 5", f.store.Len())
	}
}
