// internal/config/model.go
//
// Typed configuration model for statsd.
//
// Context
// -------
// These structs define the tree that `internal/config/loader.go` builds
// from three overlay layers:
//
//   • optional `conf/.env`                     – dotenv values,
//   • `conf/stats.yaml`                        – primary static file,
//   • `HSTATS_`-prefixed environment overrides – highest precedence.
//
// Any string value that begins with `vault:` is resolved through the
// Vault client before unmarshalling, so the model only ever holds plain
// strings.
//
// Validation runs straight after unmarshal and defaults; the service
// refuses to start on a missing DSN, an unknown time zone, or a calendar
// spec robfig/cron cannot parse.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`; Koanf ignores `yaml` tags.
//   • Durations accept Go syntax ("5m", "300000ms").
//   • `Paths` is filled at runtime; YAML must not set it.
//   • Oxford commas, two spaces after periods.

package config

import "time"

//
// Ops section
//

// Ops is the operational HTTP listener (/metrics, /healthz, /jobs).
type Ops struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
}

//
// Database section
//

// Database holds the platform DSN and its secret.  The DSN lives in YAML so
// operators can change host or flags; Password normally comes from Vault
// and replaces whatever password the DSN carries.
type Database struct {
	DSN             string        `koanf:"dsn"               validate:"required"`
	Password        string        `koanf:"password"`
	MaxOpen         int           `koanf:"max_open"          validate:"gte=1"`
	MaxIdle         int           `koanf:"max_idle"          validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	PingAttempts    int           `koanf:"ping_attempts"     validate:"gte=1"`
}

//
// Cache section
//

// Cache selects the CacheStore backend.
type Cache struct {
	Backend       string `koanf:"backend"        validate:"oneof=memory redis"`
	RedisAddr     string `koanf:"redis_addr"     validate:"required_if=Backend redis"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"       validate:"gte=0"`
	KeyPrefix     string `koanf:"key_prefix"`
}

//
// Scheduler section
//

// Scheduler holds the reference time zone for calendar triggers and the
// job cadences.  Empty cadences fall back to the production catalog.
type Scheduler struct {
	Timezone     string        `koanf:"timezone"      validate:"required,timezone"`
	Realtime     time.Duration `koanf:"realtime"      validate:"gt=0"`
	CoreMetrics  time.Duration `koanf:"core_metrics"  validate:"gt=0"`
	RevenueStats time.Duration `koanf:"revenue_stats" validate:"gt=0"`
	Trend        string        `koanf:"trend"         validate:"cronspec"`
	TodayMetrics string        `koanf:"today_metrics" validate:"cronspec"`
	Cleanup      string        `koanf:"cleanup"       validate:"cronspec"`
}

//
// Aggregation section
//

// Aggregation bounds per-job hotel fan-out.
type Aggregation struct {
	Concurrency int `koanf:"concurrency" validate:"gte=1,lte=64"`
}

//
// Log section
//

// Log configures internal/logger.
type Log struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	Tee   bool   `koanf:"tee"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime: HSTATS_ROOT or the discovered parent that
// holds conf/stats.yaml.
type Paths struct {
	Root string
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads.
type Config struct {
	Ops         Ops         `koanf:"ops"`
	Database    Database    `koanf:"database"`
	Cache       Cache       `koanf:"cache"`
	Scheduler   Scheduler   `koanf:"scheduler"`
	Aggregation Aggregation `koanf:"aggregation"`
	Log         Log         `koanf:"log"`
	Paths       Paths       `koanf:"-"`
}

// Location returns the scheduler time zone.  Validation guarantees it
// loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// applyDefaults fills every zero value with the production default.
func (c *Config) applyDefaults() {
	def := func(s *string, v string) {
		if *s == "" {
			*s = v
		}
	}
	defInt := func(n *int, v int) {
		if *n == 0 {
			*n = v
		}
	}
	defDur := func(d *time.Duration, v time.Duration) {
		if *d == 0 {
			*d = v
		}
	}

	def(&c.Ops.ListenAddr, "127.0.0.1:9464")

	defInt(&c.Database.MaxOpen, 15)
	defInt(&c.Database.MaxIdle, 5)
	defInt(&c.Database.PingAttempts, 5)
	defDur(&c.Database.ConnMaxLifetime, 30*time.Minute)

	def(&c.Cache.Backend, "memory")
	def(&c.Cache.KeyPrefix, "hstats:")

	def(&c.Scheduler.Timezone, "UTC")
	defDur(&c.Scheduler.Realtime, 300000*time.Millisecond)
	defDur(&c.Scheduler.CoreMetrics, 900000*time.Millisecond)
	defDur(&c.Scheduler.RevenueStats, 3600000*time.Millisecond)
	def(&c.Scheduler.Trend, "0 1 * * *")
	def(&c.Scheduler.TodayMetrics, "0 2 * * *")
	def(&c.Scheduler.Cleanup, "0 3 * * 1")

	defInt(&c.Aggregation.Concurrency, 4)

	def(&c.Log.Level, "info")
}
