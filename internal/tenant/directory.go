// internal/tenant/directory.go
//
// SQL-backed user directory.
//
// Context
// -------
// Identity lives in the platform database:
//
//	app_user  (id PK, username UNIQUE, role, hotel_id NULL, enabled)
//
// The guard calls UserByName only for unresolved principals, i.e. when the
// upstream authenticator attached nothing but a user name.  One indexed
// lookup per name; the guard collapses concurrent lookups.
//
// Notes
// -----
// • Disabled users are returned, not filtered, so the guard can tell
//   "disabled" apart from "unknown" in its error.
// • Oxford commas, two spaces after periods.
package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/hotelstats/internal/auth"
)

// SQLDirectory implements Directory over the app_user table.
type SQLDirectory struct {
	db *sqlx.DB
}

// NewSQLDirectory wraps db.
func NewSQLDirectory(db *sqlx.DB) *SQLDirectory { return &SQLDirectory{db: db} }

// UserByName returns the user row for name, or ErrUserNotFound.
func (d *SQLDirectory) UserByName(ctx context.Context, name string) (auth.User, error) {
	const q = `SELECT id, username, role, hotel_id, enabled
                 FROM app_user
                WHERE username = ?
                LIMIT 1`

	var u auth.User
	err := d.db.GetContext(ctx, &u, q, name)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, ErrUserNotFound
	}
	if err != nil {
		return auth.User{}, fmt.Errorf("user directory: %w", err)
	}
	return u, nil
}
