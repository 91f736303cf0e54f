// internal/refresh/catalog.go
//
// The static job catalog.
//
// Context
// -------
// Six jobs are defined once at startup and never change at runtime:
//
//	realtime-refresh            every 300000 ms   info
//	core-metrics-refresh        every 900000 ms   info
//	revenue-statistics-refresh  every 3600000 ms  info
//	trend-preprocess            0 1 * * *         preprocess
//	today-metrics-preprocess    0 2 * * *         preprocess
//	cache-cleanup               0 3 * * 1         preprocess
//
// Every per-hotel job lists the active hotels on each run and fans out
// with a bounded errgroup.  A hotel that fails is reported in the joined
// error; the other hotels still run.  Jobs act under the system tenant
// context and always name the hotel explicitly.
//
// Notes
// -----
// • Cadences come from the scheduler config section and default to
//   DefaultSchedule.
// • Oxford commas, two spaces after periods.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/hotelstats/internal/hotel"
	"github.com/yanizio/hotelstats/internal/stats"
	"github.com/yanizio/hotelstats/internal/tenant"
)

// Job names.
const (
	JobRealtime     = "realtime-refresh"
	JobCoreMetrics  = "core-metrics-refresh"
	JobRevenueStats = "revenue-statistics-refresh"
	JobTrend        = "trend-preprocess"
	JobTodayMetrics = "today-metrics-preprocess"
	JobCleanup      = "cache-cleanup"
)

// Severity decides the log level of a failed run.
type Severity string

const (
	SeverityInfo       Severity = "info"
	SeverityPreprocess Severity = "preprocess"
)

// TriggerKind is the firing rule of a job.
type TriggerKind string

const (
	TriggerInterval TriggerKind = "interval"
	TriggerCalendar TriggerKind = "calendar"
)

// Trigger carries Interval for interval jobs and Calendar (a five-field
// cron spec) for calendar jobs.
type Trigger struct {
	Kind     TriggerKind
	Interval time.Duration
	Calendar string
}

func (t Trigger) String() string {
	if t.Kind == TriggerInterval {
		return fmt.Sprintf("every %dms", t.Interval.Milliseconds())
	}
	return t.Calendar
}

// Job is one catalog entry.
type Job struct {
	Name     string
	Trigger  Trigger
	Severity Severity
	Run      func(ctx context.Context) error
}

// Operations is the aggregator surface the jobs drive.  *stats.Aggregator
// satisfies it.
type Operations interface {
	RefreshRealtime(ctx context.Context, tc tenant.Context, hotelID int64) error
	RefreshCoreMetrics(ctx context.Context, tc tenant.Context, hotelID int64) error
	RefreshRevenueStatistics(ctx context.Context, tc tenant.Context, hotelID int64) error
	PreprocessTrendData(ctx context.Context, tc tenant.Context, hotelID int64) (stats.TrendReport, error)
	PreprocessTodayMetrics(ctx context.Context, tc tenant.Context, hotelID int64) error
	ClearDashboardCache(ctx context.Context) (int, error)
}

// HotelLister enumerates the hotels a job runs for.  *hotel.Catalog
// satisfies it.
type HotelLister interface {
	ActiveHotels(ctx context.Context) ([]hotel.Record, error)
}

// Schedule holds the cadence of every job.
type Schedule struct {
	Realtime     time.Duration
	CoreMetrics  time.Duration
	RevenueStats time.Duration
	Trend        string
	TodayMetrics string
	Cleanup      string
}

// DefaultSchedule is the production cadence.
func DefaultSchedule() Schedule {
	return Schedule{
		Realtime:     300000 * time.Millisecond,
		CoreMetrics:  900000 * time.Millisecond,
		RevenueStats: 3600000 * time.Millisecond,
		Trend:        "0 1 * * *",
		TodayMetrics: "0 2 * * *",
		Cleanup:      "0 3 * * 1",
	}
}

// CatalogConfig tunes Catalog.  Zero values mean DefaultSchedule and a
// concurrency of 4.
type CatalogConfig struct {
	Schedule    Schedule
	Concurrency int
	Log         *zap.SugaredLogger
}

// Catalog builds the job list bound to ops.
func Catalog(ops Operations, hotels HotelLister, cfg CatalogConfig) []Job {
	if cfg.Schedule == (Schedule{}) {
		cfg.Schedule = DefaultSchedule()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop().Sugar()
	}
	sc, log := cfg.Schedule, cfg.Log

	perHotel := func(fn func(ctx context.Context, tc tenant.Context, id int64) error) func(context.Context) error {
		return func(ctx context.Context) error {
			return forEachHotel(ctx, hotels, cfg.Concurrency, fn)
		}
	}

	return []Job{
		{
			Name:     JobRealtime,
			Trigger:  Trigger{Kind: TriggerInterval, Interval: sc.Realtime},
			Severity: SeverityInfo,
			Run:      perHotel(ops.RefreshRealtime),
		},
		{
			Name:     JobCoreMetrics,
			Trigger:  Trigger{Kind: TriggerInterval, Interval: sc.CoreMetrics},
			Severity: SeverityInfo,
			Run:      perHotel(ops.RefreshCoreMetrics),
		},
		{
			Name:     JobRevenueStats,
			Trigger:  Trigger{Kind: TriggerInterval, Interval: sc.RevenueStats},
			Severity: SeverityInfo,
			Run:      perHotel(ops.RefreshRevenueStatistics),
		},
		{
			Name:     JobTrend,
			Trigger:  Trigger{Kind: TriggerCalendar, Calendar: sc.Trend},
			Severity: SeverityPreprocess,
			Run: perHotel(func(ctx context.Context, tc tenant.Context, id int64) error {
				rep, err := ops.PreprocessTrendData(ctx, tc, id)
				if err == nil {
					log.Debugw("trend window refreshed", "hotel_id", id, "dates", len(rep.Dates))
				}
				return err
			}),
		},
		{
			Name:     JobTodayMetrics,
			Trigger:  Trigger{Kind: TriggerCalendar, Calendar: sc.TodayMetrics},
			Severity: SeverityPreprocess,
			Run:      perHotel(ops.PreprocessTodayMetrics),
		},
		{
			Name:     JobCleanup,
			Trigger:  Trigger{Kind: TriggerCalendar, Calendar: sc.Cleanup},
			Severity: SeverityPreprocess,
			Run: func(ctx context.Context) error {
				_, err := ops.ClearDashboardCache(ctx)
				return err
			},
		},
	}
}

// forEachHotel runs fn for every active hotel with at most limit in
// flight.  Every hotel runs regardless of the others; failures and panics
// come back joined.
func forEachHotel(ctx context.Context, hotels HotelLister, limit int, fn func(context.Context, tenant.Context, int64) error) error {
	recs, err := hotels.ActiveHotels(ctx)
	if err != nil {
		return err
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(limit)
	tc := tenant.SystemContext()
	for _, rec := range recs {
		id := rec.ID
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &PanicError{Value: r, Stack: debug.Stack()}
				}
				if err != nil {
					mu.Lock()
					errs = append(errs, fmt.Errorf("hotel %d: %w", id, err))
					mu.Unlock()
				}
			}()
			return fn(ctx, tc, id)
		})
	}
	_ = g.Wait() // collected in errs
	return errors.Join(errs...)
}
