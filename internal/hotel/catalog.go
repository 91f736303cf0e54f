// catalog.go houses the Catalog: the list of active hotels for scheduled
// jobs and a lazily filled id → time zone cache for on-demand queries.
//
// Zone lookups sit on the read path of every range query, so records are
// kept in a sync.Map and cold loads are collapsed with singleflight.  An
// entry older than the refresh TTL is reloaded on next use; a hotel that
// moves time zone picks it up within one TTL.
package hotel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/hotelstats/internal/metrics"
)

// RefreshTTL is how long a cached record is trusted.
const RefreshTTL = 30 * time.Minute

// LoadTimeout bounds one shared cold load.
const LoadTimeout = 5 * time.Second

// ErrNotFound is returned when an id is not present in the hotel table.
var ErrNotFound = errors.New("hotel not found")

type entry struct {
	rec      Record
	loc      *time.Location
	loadedAt time.Time
}

// Catalog is safe for concurrent use.
type Catalog struct {
	db    *sqlx.DB
	clock clockwork.Clock
	ttl   time.Duration
	log   *zap.SugaredLogger

	sfg singleflight.Group
	m   sync.Map // int64 → *entry
}

// NewCatalog constructs a Catalog over the platform database.
func NewCatalog(db *sqlx.DB, clock clockwork.Clock, log *zap.SugaredLogger) *Catalog {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Catalog{db: db, clock: clock, ttl: RefreshTTL, log: log}
}

// ActiveHotels lists every active hotel and refreshes the cache with the
// rows it read.
func (c *Catalog) ActiveHotels(ctx context.Context) ([]Record, error) {
	recs, err := AllActive(ctx, c.db)
	if err != nil {
		metrics.HotelLoadErrorsTotal.Inc()
		return nil, fmt.Errorf("hotel catalog: %w", err)
	}
	now := c.clock.Now()
	for _, r := range recs {
		c.store(r, now)
	}
	return recs, nil
}

// Location returns the reference time zone of hotelID.
func (c *Catalog) Location(ctx context.Context, hotelID int64) (*time.Location, error) {
	if v, ok := c.m.Load(hotelID); ok {
		ent := v.(*entry)
		if c.clock.Since(ent.loadedAt) < c.ttl {
			return ent.loc, nil
		}
	}

	v, err, _ := c.sfg.Do(strconv.FormatInt(hotelID, 10), func() (any, error) {
		// Shared by every waiter; detach from the first caller.
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LoadTimeout)
		defer cancel()
		rec, err := ByID(lctx, c.db, hotelID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			metrics.HotelLoadErrorsTotal.Inc()
			return nil, fmt.Errorf("hotel catalog: load %d: %w", hotelID, err)
		}
		return c.store(*rec, c.clock.Now()), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entry).loc, nil
}

func (c *Catalog) store(rec Record, now time.Time) *entry {
	loc, ok := rec.Location()
	if !ok && rec.Timezone != "" {
		c.log.Warnw("unknown hotel time zone, using UTC", "hotel_id", rec.ID, "timezone", rec.Timezone)
	}
	ent := &entry{rec: rec, loc: loc, loadedAt: now}
	c.m.Store(rec.ID, ent)
	metrics.HotelsLoadedTotal.Inc()
	return ent
}
