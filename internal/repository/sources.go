// Package repository defines the data sources the aggregator reads and a
// MySQL implementation of each.
//
// Every method is hotel scoped and takes calendar dates (midnights in the
// hotel's reference location).  Range methods return one value per date in
// [start, end], ascending, with zero for dates that have no rows.
package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RatingBuckets is the number of review rating buckets (ratings 1..5).
const RatingBuckets = 5

type OrderSource interface {
	CountOrdersByDate(ctx context.Context, hotelID int64, day time.Time) (int64, error)
	RevenueByDate(ctx context.Context, hotelID int64, day time.Time) (decimal.Decimal, error)
	OccupancyHistory(ctx context.Context, hotelID int64, start, end time.Time) ([]float64, error)
	RevenueTrend(ctx context.Context, hotelID int64, start, end time.Time) ([]decimal.Decimal, error)
}

type RoomSource interface {
	RoomStatusCounts(ctx context.Context, hotelID int64) (map[string]int64, error)
}

type UserSource interface {
	CountUsersByDate(ctx context.Context, hotelID int64, day time.Time) (int64, error)
	UserActivityTrend(ctx context.Context, hotelID int64, start, end time.Time) ([]int64, error)
}

// ReviewSource returns RatingBuckets counts; index 0 is rating 1.
type ReviewSource interface {
	RatingDistribution(ctx context.Context, hotelID int64, start, end time.Time) ([]int64, error)
}
