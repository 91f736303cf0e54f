// Package database centralises sqlx connection helpers for the platform
// database.  The driver is go-sql-driver/mysql.
//
// Public entry points:
//
//	Open(ctx, dsn)                 – defaults from DefaultOptions.
//	OpenWithOptions(ctx, dsn, o)   – pool sizes, password, and ping retries.
//
// Both helpers ping before returning so bootstrap fails fast.  The ping is
// retried with a doubling backoff because statsd often starts alongside
// its database in the same deploy.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Options tunes OpenWithOptions.
type Options struct {
	// Password, when set, replaces the password embedded in the DSN.
	Password        string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	PingAttempts    int
	PingBackoff     time.Duration
	Log             *zap.SugaredLogger
}

// DefaultOptions: 15 max open, 5 idle, a 30-minute connection lifetime,
// and five ping attempts starting at 500ms apart.
func DefaultOptions() Options {
	return Options{
		MaxOpen:         15,
		MaxIdle:         5,
		ConnMaxLifetime: 30 * time.Minute,
		PingAttempts:    5,
		PingBackoff:     500 * time.Millisecond,
	}
}

// Open returns a pool configured with DefaultOptions.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	return OpenWithOptions(ctx, dsn, DefaultOptions())
}

// OpenWithOptions parses dsn, applies o, and pings until the database
// answers or the attempts run out.
func OpenWithOptions(ctx context.Context, dsn string, o Options) (*sqlx.DB, error) {
	if o.Log == nil {
		o.Log = zap.NewNop().Sugar()
	}
	if o.PingAttempts < 1 {
		o.PingAttempts = 1
	}

	dsn, err := withDriverDefaults(dsn, o.Password)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(o.MaxOpen)
	db.SetMaxIdleConns(o.MaxIdle)
	db.SetConnMaxLifetime(o.ConnMaxLifetime)

	wait := o.PingBackoff
	for attempt := 1; ; attempt++ {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		if attempt >= o.PingAttempts || ctx.Err() != nil {
			break
		}
		o.Log.Warnw("database ping failed, retrying", "attempt", attempt, "wait", wait, "err", err)
		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
		wait *= 2
	}
	_ = db.Close()
	return nil, fmt.Errorf("database: ping: %w", err)
}

// withDriverDefaults injects the password and forces the settings the
// repositories rely on: parseTime for TIMESTAMP columns and UTC on the
// session.
func withDriverDefaults(dsn, password string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("database: parse dsn: %w", err)
	}
	if password != "" {
		cfg.Passwd = password
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}
