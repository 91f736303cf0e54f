package stats

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yanizio/hotelstats/internal/calendar"
	"github.com/yanizio/hotelstats/internal/metrics"
	"github.com/yanizio/hotelstats/internal/repository"
	"github.com/yanizio/hotelstats/internal/tenant"
)

// OccupancyHistory returns the nightly occupancy ratio of hotelID for every
// date in [start, end], ascending.  Nothing is cached.
func (a *Aggregator) OccupancyHistory(ctx context.Context, tc tenant.Context, hotelID int64, start, end time.Time) ([]float64, error) {
	return perDay(ctx, a, tc, "OccupancyHistory", hotelID, start, end, a.orders.OccupancyHistory)
}

// RevenueGrowthTrend returns settled revenue per date in [start, end].
func (a *Aggregator) RevenueGrowthTrend(ctx context.Context, tc tenant.Context, hotelID int64, start, end time.Time) ([]decimal.Decimal, error) {
	return perDay(ctx, a, tc, "RevenueGrowthTrend", hotelID, start, end, a.orders.RevenueTrend)
}

// UserActivityTrend returns distinct active users per date in [start, end].
func (a *Aggregator) UserActivityTrend(ctx context.Context, tc tenant.Context, hotelID int64, start, end time.Time) ([]int64, error) {
	return perDay(ctx, a, tc, "UserActivityTrend", hotelID, start, end, a.users.UserActivityTrend)
}

// ReviewQualityStats returns review counts per rating over [start, end];
// index 0 is rating 1.
func (a *Aggregator) ReviewQualityStats(ctx context.Context, tc tenant.Context, hotelID int64, start, end time.Time) ([]int64, error) {
	return ranged(ctx, a, tc, "ReviewQualityStats", hotelID, start, end, repository.RatingBuckets, a.reviews.RatingDistribution)
}

type fetchFunc[T any] func(ctx context.Context, hotelID int64, start, end time.Time) ([]T, error)

func perDay[T any](ctx context.Context, a *Aggregator, tc tenant.Context, op string, hotelID int64, start, end time.Time, fetch fetchFunc[T]) ([]T, error) {
	return ranged(ctx, a, tc, op, hotelID, start, end, calendar.Span(start, end), fetch)
}

// ranged authorises, checks the range, runs fetch, and insists on exactly
// want values.  A short or long sequence is an error, never a partial
// result.
func ranged[T any](ctx context.Context, a *Aggregator, tc tenant.Context, op string, hotelID int64, start, end time.Time, want int, fetch fetchFunc[T]) ([]T, error) {
	if err := a.access.ValidateHotelAccess(tc, hotelID); err != nil {
		return nil, err
	}
	start, end = calendar.Day(start), calendar.Day(end)
	if start.After(end) {
		return nil, ErrInvalidRange
	}

	out, err := fetch(ctx, hotelID, start, end)
	if err == nil && len(out) != want {
		err = lengthError(len(out), want)
	}
	if err != nil {
		metrics.AggregationErrorsTotal.WithLabelValues(op).Inc()
		a.log.Warnw("range query failed", "op", op, "hotel_id", hotelID,
			"start", calendar.Format(start), "end", calendar.Format(end), "err", err)
		return nil, &AggregationError{Op: op, HotelID: hotelID, Err: err}
	}
	return out, nil
}
