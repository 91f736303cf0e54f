// internal/stats/model.go
//
// Cached value shapes.
//
// Context
// -------
// Every struct here is written to the cache with cache.Encode, so field
// order and msgpack tags are part of the stored format.  Room status maps
// are cache.Counts, which encode with sorted keys, so a recomputation over
// unchanged data is byte-identical to the previous write.
//
// Metric names
//
//	stats      orders, revenue, new_users, room_status, snapshot, trend
//	dashboard  realtime, core, revenue_stats
//
// Notes
// -----
// • Dates are Layout strings in the hotel's reference time zone.
// • Oxford commas, two spaces after periods.
package stats

import (
	"github.com/shopspring/decimal"

	"github.com/yanizio/hotelstats/internal/cache"
)

const (
	MetricOrders       = "orders"
	MetricRevenue      = "revenue"
	MetricNewUsers     = "new_users"
	MetricRoomStatus   = "room_status"
	MetricSnapshot     = "snapshot"
	MetricTrend        = "trend"
	MetricRealtime     = "realtime"
	MetricCore         = "core"
	MetricRevenueStats = "revenue_stats"
)

// TrendDays is the length of the rolling trend window ending today.
const TrendDays = 30

// RevenueWindowDays is the length of the dashboard revenue series.
const RevenueWindowDays = 7

// DailySnapshot is one hotel's figures for one date.  RoomStatusCounts is
// only populated for today's snapshot; room status has no history.
type DailySnapshot struct {
	HotelID          int64           `msgpack:"hotel_id"`
	Date             string          `msgpack:"date"`
	OrderCount       int64           `msgpack:"order_count"`
	Revenue          decimal.Decimal `msgpack:"revenue"`
	NewUserCount     int64           `msgpack:"new_user_count"`
	RoomStatusCounts cache.Counts    `msgpack:"room_status_counts,omitempty"`
}

// TrendReport lists the dates a trend run visited, ascending, and the
// subset that failed and were not written.
type TrendReport struct {
	Dates  []string
	Failed []string
}

// Realtime is the payload of the realtime dashboard refresh.
type Realtime struct {
	Date             string       `msgpack:"date"`
	OrderCount       int64        `msgpack:"order_count"`
	RoomStatusCounts cache.Counts `msgpack:"room_status_counts"`
}

// CoreMetrics is the payload of the core dashboard refresh.
type CoreMetrics struct {
	Date          string          `msgpack:"date"`
	OrderCount    int64           `msgpack:"order_count"`
	Revenue       decimal.Decimal `msgpack:"revenue"`
	NewUserCount  int64           `msgpack:"new_user_count"`
	OccupancyRate float64         `msgpack:"occupancy_rate"`
}

// RevenueStats is the payload of the revenue statistics refresh.  Growth
// compares the last day of the window with the first and is zero when the
// first day had no revenue.
type RevenueStats struct {
	Start  string            `msgpack:"start"`
	End    string            `msgpack:"end"`
	Daily  []decimal.Decimal `msgpack:"daily"`
	Total  decimal.Decimal   `msgpack:"total"`
	Growth decimal.Decimal   `msgpack:"growth"`
}
