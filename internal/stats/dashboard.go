package stats

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/yanizio/hotelstats/internal/cache"
	"github.com/yanizio/hotelstats/internal/calendar"
	"github.com/yanizio/hotelstats/internal/tenant"
)

// Room statuses the occupancy rate cares about.  Out-of-service rooms are
// not sellable and stay out of the denominator.
const (
	statusOccupied     = "OCCUPIED"
	statusOutOfService = "OUT_OF_SERVICE"
)

// RefreshRealtime caches today's order count and room status distribution
// in the dashboard namespace.  Either source failing leaves the previous
// entry in place.
func (a *Aggregator) RefreshRealtime(ctx context.Context, tc tenant.Context, hotelID int64) error {
	day, err := a.today(ctx, tc, hotelID)
	if err != nil {
		return err
	}
	orders, err := a.orders.CountOrdersByDate(ctx, hotelID, day)
	if err != nil {
		return a.refreshFailed(MetricRealtime, hotelID, err)
	}
	rooms, err := a.rooms.RoomStatusCounts(ctx, hotelID)
	if err != nil {
		return a.refreshFailed(MetricRealtime, hotelID, err)
	}
	date := calendar.Format(day)
	return a.put(ctx, cache.NamespaceDashboard, hotelID, MetricRealtime, date, Realtime{
		Date:             date,
		OrderCount:       orders,
		RoomStatusCounts: cache.Counts(rooms),
	})
}

// RefreshCoreMetrics caches today's orders, revenue, new users, and the
// occupancy rate (occupied rooms over sellable rooms).
func (a *Aggregator) RefreshCoreMetrics(ctx context.Context, tc tenant.Context, hotelID int64) error {
	day, err := a.today(ctx, tc, hotelID)
	if err != nil {
		return err
	}
	orders, err := a.orders.CountOrdersByDate(ctx, hotelID, day)
	if err != nil {
		return a.refreshFailed(MetricCore, hotelID, err)
	}
	revenue, err := a.orders.RevenueByDate(ctx, hotelID, day)
	if err != nil {
		return a.refreshFailed(MetricCore, hotelID, err)
	}
	users, err := a.users.CountUsersByDate(ctx, hotelID, day)
	if err != nil {
		return a.refreshFailed(MetricCore, hotelID, err)
	}
	rooms, err := a.rooms.RoomStatusCounts(ctx, hotelID)
	if err != nil {
		return a.refreshFailed(MetricCore, hotelID, err)
	}
	date := calendar.Format(day)
	return a.put(ctx, cache.NamespaceDashboard, hotelID, MetricCore, date, CoreMetrics{
		Date:          date,
		OrderCount:    orders,
		Revenue:       revenue,
		NewUserCount:  users,
		OccupancyRate: occupancyRate(rooms),
	})
}

// RefreshRevenueStatistics caches the RevenueWindowDays revenue series
// ending today with its total and growth.
func (a *Aggregator) RefreshRevenueStatistics(ctx context.Context, tc tenant.Context, hotelID int64) error {
	end, err := a.today(ctx, tc, hotelID)
	if err != nil {
		return err
	}
	start := calendar.Window(end, RevenueWindowDays)
	daily, err := a.orders.RevenueTrend(ctx, hotelID, start, end)
	if err != nil {
		return a.refreshFailed(MetricRevenueStats, hotelID, err)
	}
	if len(daily) != RevenueWindowDays {
		return a.refreshFailed(MetricRevenueStats, hotelID, lengthError(len(daily), RevenueWindowDays))
	}

	rs := RevenueStats{
		Start: calendar.Format(start),
		End:   calendar.Format(end),
		Daily: daily,
		Total: decimal.Sum(decimal.Zero, daily...),
	}
	if first := daily[0]; !first.IsZero() {
		rs.Growth = daily[len(daily)-1].Sub(first).Div(first).Round(4)
	}
	return a.put(ctx, cache.NamespaceDashboard, hotelID, MetricRevenueStats, rs.End, rs)
}

// ClearDashboardCache removes every dashboard entry across all hotels.
// It is a maintenance operation and carries no tenant scope.
func (a *Aggregator) ClearDashboardCache(ctx context.Context) (int, error) {
	n, err := a.store.Clear(ctx, cache.NamespaceDashboard)
	if err != nil {
		return n, fmt.Errorf("stats: clear dashboard cache: %w", err)
	}
	a.log.Infow("dashboard cache cleared", "removed", n)
	return n, nil
}

func (a *Aggregator) refreshFailed(metric string, hotelID int64, err error) error {
	a.failed("refresh."+metric, hotelID, err)
	return fmt.Errorf("stats: refresh %s for hotel %d: %w", metric, hotelID, err)
}

func occupancyRate(rooms map[string]int64) float64 {
	var total int64
	for status, n := range rooms {
		if status != statusOutOfService {
			total += n
		}
	}
	if total == 0 {
		return 0
	}
	return float64(rooms[statusOccupied]) / float64(total)
}
