// internal/stats/aggregator.go
//
// StatisticsAggregator.
//
// Context
// -------
// The aggregator reads the order, room, user, and review sources and writes
// the results into the cache store.  Every operation takes an explicit
// tenant.Context and validates it against the target hotel before touching
// a source; scheduled jobs pass tenant.SystemContext().
//
// "Today" is the current calendar date in the hotel's reference time zone,
// taken from the injected clock, so tests can pin it with a fake clock.
//
// Files
//
//	preprocess.go  today snapshot and the 30-day trend window
//	dashboard.go   interval refreshes and the weekly clear
//	query.go       on-demand range queries
//
// Notes
// -----
// • Writes are plain overwrites.  Nothing here reads a cached value before
//   writing one.
// • Oxford commas, two spaces after periods.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/yanizio/hotelstats/internal/cache"
	"github.com/yanizio/hotelstats/internal/calendar"
	"github.com/yanizio/hotelstats/internal/metrics"
	"github.com/yanizio/hotelstats/internal/repository"
	"github.com/yanizio/hotelstats/internal/tenant"
)

// AccessValidator authorises a tenant scope for one hotel.  *tenant.Guard
// satisfies it.
type AccessValidator interface {
	ValidateHotelAccess(tc tenant.Context, hotelID int64) error
}

// ZoneResolver returns a hotel's reference time zone.  *hotel.Catalog
// satisfies it.
type ZoneResolver interface {
	Location(ctx context.Context, hotelID int64) (*time.Location, error)
}

// Deps bundles the collaborators of an Aggregator.  Clock and Log are
// optional.
type Deps struct {
	Orders  repository.OrderSource
	Rooms   repository.RoomSource
	Users   repository.UserSource
	Reviews repository.ReviewSource

	Store  cache.Store
	Access AccessValidator
	Zones  ZoneResolver

	Clock clockwork.Clock
	Log   *zap.SugaredLogger
}

// Aggregator is safe for concurrent use; it holds no mutable state.
type Aggregator struct {
	orders  repository.OrderSource
	rooms   repository.RoomSource
	users   repository.UserSource
	reviews repository.ReviewSource

	store  cache.Store
	access AccessValidator
	zones  ZoneResolver
	clock  clockwork.Clock
	log    *zap.SugaredLogger
}

// New constructs an Aggregator.
func New(d Deps) *Aggregator {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Log == nil {
		d.Log = zap.NewNop().Sugar()
	}
	return &Aggregator{
		orders:  d.Orders,
		rooms:   d.Rooms,
		users:   d.Users,
		reviews: d.Reviews,
		store:   d.Store,
		access:  d.Access,
		zones:   d.Zones,
		clock:   d.Clock,
		log:     d.Log,
	}
}

// today authorises tc for hotelID and returns the hotel's current date.
func (a *Aggregator) today(ctx context.Context, tc tenant.Context, hotelID int64) (time.Time, error) {
	if err := a.access.ValidateHotelAccess(tc, hotelID); err != nil {
		return time.Time{}, err
	}
	loc, err := a.location(ctx, hotelID)
	if err != nil {
		return time.Time{}, err
	}
	return calendar.Today(a.clock, loc), nil
}

func (a *Aggregator) location(ctx context.Context, hotelID int64) (*time.Location, error) {
	if a.zones == nil {
		return time.UTC, nil
	}
	loc, err := a.zones.Location(ctx, hotelID)
	if err != nil {
		return nil, fmt.Errorf("stats: time zone of hotel %d: %w", hotelID, err)
	}
	return loc, nil
}

// put encodes v and overwrites the entry at (ns, hotelID, metric, period).
func (a *Aggregator) put(ctx context.Context, ns cache.Namespace, hotelID int64, metric, period string, v any) error {
	b, err := cache.Encode(v)
	if err != nil {
		return err
	}
	key := cache.Key{Namespace: ns, HotelID: hotelID, Metric: metric, Period: period}
	if err := a.store.Put(ctx, key, b, a.clock.Now()); err != nil {
		return fmt.Errorf("stats: write %s: %w", key, err)
	}
	return nil
}

// failed records a failed sub-computation.
func (a *Aggregator) failed(op string, hotelID int64, err error, kv ...any) {
	metrics.AggregationErrorsTotal.WithLabelValues(op).Inc()
	a.log.Warnw("aggregation step failed",
		append([]any{"op", op, "hotel_id", hotelID, "err", err}, kv...)...)
}
