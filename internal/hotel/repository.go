package hotel

import (
	"context"

	"github.com/jmoiron/sqlx"
)

const columns = `id, name, timezone, suspended_at, deleted_at, created_at, updated_at`

// AllActive returns every hotel that is neither suspended nor deleted,
// ordered by id.  Used by the scheduled jobs to enumerate tenants.
func AllActive(ctx context.Context, db *sqlx.DB) ([]Record, error) {
	const q = `
        SELECT ` + columns + `
        FROM   hotel
        WHERE  suspended_at IS NULL
          AND  deleted_at   IS NULL
        ORDER  BY id`
	var rows []Record
	if err := db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

// ByID fetches a single hotel row that is not deleted.  Suspended hotels
// are returned so on-demand queries can still resolve their time zone.
func ByID(ctx context.Context, db *sqlx.DB, id int64) (*Record, error) {
	const q = `
        SELECT ` + columns + `
        FROM   hotel
        WHERE  id = ?
          AND  deleted_at IS NULL
        LIMIT  1`
	var rec Record
	if err := db.GetContext(ctx, &rec, q, id); err != nil {
		return nil, err
	}
	return &rec, nil
}
