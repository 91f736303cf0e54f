package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yanizio/hotelstats/internal/cache"
	"github.com/yanizio/hotelstats/internal/calendar"
	"github.com/yanizio/hotelstats/internal/tenant"
)

// PreprocessTodayMetrics recomputes today's order count, revenue, new-user
// count, and room status distribution for hotelID.  The four steps are
// independent: each one that succeeds is cached even when a sibling fails,
// and the returned error joins every failure.  When all four succeed the
// combined DailySnapshot is cached as well.
func (a *Aggregator) PreprocessTodayMetrics(ctx context.Context, tc tenant.Context, hotelID int64) error {
	day, err := a.today(ctx, tc, hotelID)
	if err != nil {
		return err
	}
	date := calendar.Format(day)
	snap := DailySnapshot{HotelID: hotelID, Date: date}

	steps := []struct {
		metric string
		run    func() (any, error)
	}{
		{MetricOrders, func() (any, error) {
			n, err := a.orders.CountOrdersByDate(ctx, hotelID, day)
			snap.OrderCount = n
			return n, err
		}},
		{MetricRevenue, func() (any, error) {
			rev, err := a.orders.RevenueByDate(ctx, hotelID, day)
			snap.Revenue = rev
			return rev, err
		}},
		{MetricNewUsers, func() (any, error) {
			n, err := a.users.CountUsersByDate(ctx, hotelID, day)
			snap.NewUserCount = n
			return n, err
		}},
		{MetricRoomStatus, func() (any, error) {
			counts, err := a.rooms.RoomStatusCounts(ctx, hotelID)
			snap.RoomStatusCounts = cache.Counts(counts)
			return snap.RoomStatusCounts, err
		}},
	}

	var errs []error
	for _, s := range steps {
		v, err := s.run()
		if err == nil {
			err = a.put(ctx, cache.NamespaceStats, hotelID, s.metric, date, v)
		}
		if err != nil {
			a.failed("today."+s.metric, hotelID, err, "date", date)
			errs = append(errs, fmt.Errorf("%s: %w", s.metric, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return a.put(ctx, cache.NamespaceStats, hotelID, MetricSnapshot, date, snap)
}

// PreprocessTrendData recomputes the TrendDays dates ending today, oldest
// first, one at a time.  A failed date is logged, reported, and skipped;
// the run always visits every date.
func (a *Aggregator) PreprocessTrendData(ctx context.Context, tc tenant.Context, hotelID int64) (TrendReport, error) {
	today, err := a.today(ctx, tc, hotelID)
	if err != nil {
		return TrendReport{}, err
	}

	var (
		rep  TrendReport
		errs []error
	)
	for _, d := range calendar.Days(calendar.Window(today, TrendDays), today) {
		date := calendar.Format(d)
		rep.Dates = append(rep.Dates, date)
		if err := a.trendDate(ctx, hotelID, d); err != nil {
			a.failed("trend", hotelID, err, "date", date)
			rep.Failed = append(rep.Failed, date)
			errs = append(errs, fmt.Errorf("%s: %w", date, err))
		}
	}
	if len(rep.Failed) > 0 {
		a.log.Warnw("trend window incomplete",
			"hotel_id", hotelID, "failed", len(rep.Failed), "dates", len(rep.Dates))
	}
	return rep, errors.Join(errs...)
}

func (a *Aggregator) trendDate(ctx context.Context, hotelID int64, day time.Time) error {
	orders, err := a.orders.CountOrdersByDate(ctx, hotelID, day)
	if err != nil {
		return err
	}
	revenue, err := a.orders.RevenueByDate(ctx, hotelID, day)
	if err != nil {
		return err
	}
	users, err := a.users.CountUsersByDate(ctx, hotelID, day)
	if err != nil {
		return err
	}
	date := calendar.Format(day)
	return a.put(ctx, cache.NamespaceStats, hotelID, MetricTrend, date, DailySnapshot{
		HotelID:      hotelID,
		Date:         date,
		OrderCount:   orders,
		Revenue:      revenue,
		NewUserCount: users,
	})
}
