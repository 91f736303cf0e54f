// internal/hotel/model.go
//
// `hotel` table row model.
//
// Context
// -------
// Each tenant of the platform is one hotel.  The row carries the hotel's
// reference time zone, which defines what "today" means for its
// statistics, plus the soft-delete and suspension flags that take a hotel
// out of the scheduled jobs.
//
// Schema reference
//
//	CREATE TABLE hotel (
//	    id            BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
//	    name          VARCHAR(256)  NOT NULL,
//	    timezone      VARCHAR(64)   NOT NULL DEFAULT 'UTC',
//	    suspended_at  TIMESTAMP NULL,
//	    deleted_at    TIMESTAMP NULL,
//	    created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
//	    updated_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
//	);
//
// Notes
// -----
// • Nullable timestamps are `*time.Time`; callers must nil-check before use.
// • Oxford commas, two spaces after periods.
package hotel

import "time"

// Record mirrors one row in the `hotel` table.
type Record struct {
	ID          int64      `db:"id"`
	Name        string     `db:"name"`
	Timezone    string     `db:"timezone"`
	SuspendedAt *time.Time `db:"suspended_at"`
	DeletedAt   *time.Time `db:"deleted_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// Location parses Timezone, falling back to UTC for empty or unknown
// names.  The boolean is false when the fallback was used.
func (r Record) Location() (*time.Location, bool) {
	if r.Timezone == "" {
		return time.UTC, false
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC, false
	}
	return loc, true
}
