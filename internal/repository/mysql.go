// internal/repository/mysql.go
//
// MySQL implementation of the four data sources.
//
// Context
// -------
// Schema (hotel-local timestamps, one schema for all hotels):
//
//	orders      (id, hotel_id, status, total_amount DECIMAL(12,2),
//	             check_in DATE, check_out DATE, created_at DATETIME)
//	room        (id, hotel_id, status)
//	app_user    (id, username, role, hotel_id NULL, enabled, created_at)
//	user_login  (id, user_id, hotel_id, login_at DATETIME)
//	review      (id, hotel_id, rating TINYINT, created_at DATETIME)
//
// Dates are bound as 'YYYY-MM-DD' strings and grouped with DATE_FORMAT, so
// the driver's loc setting never shifts a hotel-local midnight.  Range
// queries return only dates that have rows; densify fills the gaps.
//
// Each source has its own circuit breaker, so a failing review table does
// not trip the order queries.
//
// Notes
// -----
// • All queries are parameterised; no string building from input.
// • Oxford commas, two spaces after periods.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/yanizio/hotelstats/internal/calendar"
)

// Orders that count as revenue and as occupied room nights.
const settledStatuses = `('PAID', 'CHECKED_IN', 'COMPLETED')`

// MySQL serves every source interface from one pool.
type MySQL struct {
	db      *sqlx.DB
	orders  *gobreaker.CircuitBreaker
	rooms   *gobreaker.CircuitBreaker
	users   *gobreaker.CircuitBreaker
	reviews *gobreaker.CircuitBreaker
}

var (
	_ OrderSource  = (*MySQL)(nil)
	_ RoomSource   = (*MySQL)(nil)
	_ UserSource   = (*MySQL)(nil)
	_ ReviewSource = (*MySQL)(nil)
)

// NewMySQL wraps db.  A zero BreakerSettings selects the defaults.
func NewMySQL(db *sqlx.DB, bs BreakerSettings, log *zap.SugaredLogger) *MySQL {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &MySQL{
		db:      db,
		orders:  newBreaker("orders", bs, log),
		rooms:   newBreaker("rooms", bs, log),
		users:   newBreaker("users", bs, log),
		reviews: newBreaker("reviews", bs, log),
	}
}

/*──────────────────────────── orders ──────────────────────────────────────*/

func (r *MySQL) CountOrdersByDate(ctx context.Context, hotelID int64, day time.Time) (int64, error) {
	return guarded(r.orders, "CountOrdersByDate", func() (int64, error) {
		const q = `SELECT COUNT(*)
                     FROM orders
                    WHERE hotel_id = ? AND created_at >= ? AND created_at < ?`
		var n int64
		err := r.db.GetContext(ctx, &n, q, hotelID, calendar.Format(day), calendar.Format(calendar.Next(day)))
		return n, err
	})
}

func (r *MySQL) RevenueByDate(ctx context.Context, hotelID int64, day time.Time) (decimal.Decimal, error) {
	return guarded(r.orders, "RevenueByDate", func() (decimal.Decimal, error) {
		const q = `SELECT COALESCE(SUM(total_amount), 0)
                     FROM orders
                    WHERE hotel_id = ? AND status IN ` + settledStatuses + `
                      AND created_at >= ? AND created_at < ?`
		var d decimal.Decimal
		err := r.db.GetContext(ctx, &d, q, hotelID, calendar.Format(day), calendar.Format(calendar.Next(day)))
		return d, err
	})
}

// OccupancyHistory is occupied rooms over sellable rooms per night.  A
// stay occupies the nights check_in <= d < check_out.
func (r *MySQL) OccupancyHistory(ctx context.Context, hotelID int64, start, end time.Time) ([]float64, error) {
	return guarded(r.orders, "OccupancyHistory", func() ([]float64, error) {
		const roomsQ = `SELECT COUNT(*)
                          FROM room
                         WHERE hotel_id = ? AND status <> 'OUT_OF_SERVICE'`
		var total int64
		if err := r.db.GetContext(ctx, &total, roomsQ, hotelID); err != nil {
			return nil, err
		}

		const staysQ = `SELECT DATE_FORMAT(check_in, '%Y-%m-%d')  AS check_in,
                               DATE_FORMAT(check_out, '%Y-%m-%d') AS check_out
                          FROM orders
                         WHERE hotel_id = ? AND status IN ` + settledStatuses + `
                           AND check_in <= ? AND check_out > ?`
		var stays []struct {
			CheckIn  string `db:"check_in"`
			CheckOut string `db:"check_out"`
		}
		if err := r.db.SelectContext(ctx, &stays, staysQ, hotelID,
			calendar.Format(end), calendar.Format(start)); err != nil {
			return nil, err
		}

		days := calendar.Days(start, end)
		occupied := make([]int64, len(days))
		for _, s := range stays {
			in, err := calendar.Parse(s.CheckIn, start.Location())
			if err != nil {
				return nil, fmt.Errorf("check_in %q: %w", s.CheckIn, err)
			}
			out, err := calendar.Parse(s.CheckOut, start.Location())
			if err != nil {
				return nil, fmt.Errorf("check_out %q: %w", s.CheckOut, err)
			}
			for i, d := range days {
				if !d.Before(in) && d.Before(out) {
					occupied[i]++
				}
			}
		}

		rates := make([]float64, len(days))
		if total == 0 {
			return rates, nil
		}
		for i, n := range occupied {
			rates[i] = float64(n) / float64(total)
		}
		return rates, nil
	})
}

func (r *MySQL) RevenueTrend(ctx context.Context, hotelID int64, start, end time.Time) ([]decimal.Decimal, error) {
	return guarded(r.orders, "RevenueTrend", func() ([]decimal.Decimal, error) {
		const q = `SELECT DATE_FORMAT(created_at, '%Y-%m-%d') AS day,
                          COALESCE(SUM(total_amount), 0)       AS amount
                     FROM orders
                    WHERE hotel_id = ? AND status IN ` + settledStatuses + `
                      AND created_at >= ? AND created_at < ?
                 GROUP BY day
                 ORDER BY day`
		var rows []struct {
			Day    string          `db:"day"`
			Amount decimal.Decimal `db:"amount"`
		}
		if err := r.db.SelectContext(ctx, &rows, q, hotelID,
			calendar.Format(start), calendar.Format(calendar.Next(end))); err != nil {
			return nil, err
		}
		byDay := make(map[string]decimal.Decimal, len(rows))
		for _, row := range rows {
			byDay[row.Day] = row.Amount
		}
		return densify(start, end, byDay, decimal.Zero), nil
	})
}

/*──────────────────────────── rooms ───────────────────────────────────────*/

func (r *MySQL) RoomStatusCounts(ctx context.Context, hotelID int64) (map[string]int64, error) {
	return guarded(r.rooms, "RoomStatusCounts", func() (map[string]int64, error) {
		const q = `SELECT status, COUNT(*) AS n
                     FROM room
                    WHERE hotel_id = ?
                 GROUP BY status`
		var rows []struct {
			Status string `db:"status"`
			N      int64  `db:"n"`
		}
		if err := r.db.SelectContext(ctx, &rows, q, hotelID); err != nil {
			return nil, err
		}
		out := make(map[string]int64, len(rows))
		for _, row := range rows {
			out[row.Status] = row.N
		}
		return out, nil
	})
}

/*──────────────────────────── users ───────────────────────────────────────*/

func (r *MySQL) CountUsersByDate(ctx context.Context, hotelID int64, day time.Time) (int64, error) {
	return guarded(r.users, "CountUsersByDate", func() (int64, error) {
		const q = `SELECT COUNT(*)
                     FROM app_user
                    WHERE hotel_id = ? AND created_at >= ? AND created_at < ?`
		var n int64
		err := r.db.GetContext(ctx, &n, q, hotelID, calendar.Format(day), calendar.Format(calendar.Next(day)))
		return n, err
	})
}

// UserActivityTrend counts distinct users that logged in per day.
func (r *MySQL) UserActivityTrend(ctx context.Context, hotelID int64, start, end time.Time) ([]int64, error) {
	return guarded(r.users, "UserActivityTrend", func() ([]int64, error) {
		const q = `SELECT DATE_FORMAT(login_at, '%Y-%m-%d') AS day,
                          COUNT(DISTINCT user_id)            AS n
                     FROM user_login
                    WHERE hotel_id = ? AND login_at >= ? AND login_at < ?
                 GROUP BY day
                 ORDER BY day`
		var rows []struct {
			Day string `db:"day"`
			N   int64  `db:"n"`
		}
		if err := r.db.SelectContext(ctx, &rows, q, hotelID,
			calendar.Format(start), calendar.Format(calendar.Next(end))); err != nil {
			return nil, err
		}
		byDay := make(map[string]int64, len(rows))
		for _, row := range rows {
			byDay[row.Day] = row.N
		}
		return densify(start, end, byDay, 0), nil
	})
}

/*──────────────────────────── reviews ─────────────────────────────────────*/

// RatingDistribution ignores ratings outside 1..RatingBuckets.
func (r *MySQL) RatingDistribution(ctx context.Context, hotelID int64, start, end time.Time) ([]int64, error) {
	return guarded(r.reviews, "RatingDistribution", func() ([]int64, error) {
		const q = `SELECT rating, COUNT(*) AS n
                     FROM review
                    WHERE hotel_id = ? AND created_at >= ? AND created_at < ?
                 GROUP BY rating
                 ORDER BY rating`
		var rows []struct {
			Rating int   `db:"rating"`
			N      int64 `db:"n"`
		}
		if err := r.db.SelectContext(ctx, &rows, q, hotelID,
			calendar.Format(start), calendar.Format(calendar.Next(end))); err != nil {
			return nil, err
		}
		buckets := make([]int64, RatingBuckets)
		for _, row := range rows {
			if row.Rating >= 1 && row.Rating <= RatingBuckets {
				buckets[row.Rating-1] = row.N
			}
		}
		return buckets, nil
	})
}

// densify lays byDay over every date in [start, end].
func densify[T any](start, end time.Time, byDay map[string]T, zero T) []T {
	days := calendar.Days(start, end)
	out := make([]T, len(days))
	for i, d := range days {
		if v, ok := byDay[calendar.Format(d)]; ok {
			out[i] = v
		} else {
			out[i] = zero
		}
	}
	return out
}
