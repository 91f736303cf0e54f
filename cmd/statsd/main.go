// cmd/statsd/main.go
//
// Hotel statistics daemon – process entry point.
//
// Boot sequence
// -------------
//
//  1. Load config (.env → stats.yaml → HSTATS_* env), resolving vault:
//     references when VAULT_ADDR is set.
//
//  2. Start the rotating JSON logger (tees to console in a TTY or when
//     log.tee is set).
//
//  3. Open the platform DB and log the active-hotel count.
//
//  4. Build the cache store (memory or Redis).
//
//  5. Wire repository → hotel catalog → tenant guard → aggregator.
//
//  6. Build the job catalog, hand it to the coordinator, and register
//     every job with the scheduler.
//
//  7. Serve the ops router (/metrics, /healthz, /jobs) until SIGINT or
//     SIGTERM, then stop the scheduler and wait for in-flight runs.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yanizio/hotelstats/internal/cache"
	"github.com/yanizio/hotelstats/internal/config"
	"github.com/yanizio/hotelstats/internal/database"
	"github.com/yanizio/hotelstats/internal/hotel"
	"github.com/yanizio/hotelstats/internal/logger"
	"github.com/yanizio/hotelstats/internal/refresh"
	"github.com/yanizio/hotelstats/internal/repository"
	"github.com/yanizio/hotelstats/internal/scheduler"
	"github.com/yanizio/hotelstats/internal/server"
	"github.com/yanizio/hotelstats/internal/stats"
	"github.com/yanizio/hotelstats/internal/tenant"
	"github.com/yanizio/hotelstats/internal/vault"

	_ "time/tzdata" // hotel zones must resolve on minimal images
)

// stopGrace bounds how long shutdown waits for running jobs.
const stopGrace = 30 * time.Second

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("statsd: %v", err)
	}
}

func run(ctx context.Context) error {
	//
	// ── 1.  Config (+ Vault) ────────────────────────────────────────────
	//
	var secrets config.SecretResolver
	if os.Getenv("VAULT_ADDR") != "" {
		vc, err := vault.New(ctx, zap.S())
		if err != nil {
			return err
		}
		secrets = vc
	}
	cfg, err := config.Load(ctx, secrets)
	if err != nil {
		return err
	}

	//
	// ── 2.  Logger ──────────────────────────────────────────────────────
	//
	lg, err := logger.New(cfg.Paths.Root, cfg.Log.Tee || runningInTTY(), cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	//
	// ── 3.  Platform DB ─────────────────────────────────────────────────
	//
	lg.Infow("connecting to platform DB")
	opts := database.DefaultOptions()
	opts.Password = cfg.Database.Password
	opts.MaxOpen = cfg.Database.MaxOpen
	opts.MaxIdle = cfg.Database.MaxIdle
	opts.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	opts.PingAttempts = cfg.Database.PingAttempts
	opts.Log = logger.Named(lg, "database")
	db, err := database.OpenWithOptions(ctx, cfg.Database.DSN, opts)
	if err != nil {
		return err
	}
	defer db.Close()
	lg.Infow("platform DB online")

	clock := clockwork.NewRealClock()
	hotels := hotel.NewCatalog(db, clock, logger.Named(lg, "hotel"))

	// Active-hotel count as an early sanity check; also primes the zone cache.
	if active, err := hotels.ActiveHotels(ctx); err != nil {
		lg.Warnw("active hotel lookup failed", "err", err)
	} else {
		lg.Infow("active hotels found", "count", len(active))
	}

	//
	// ── 4.  Cache store ─────────────────────────────────────────────────
	//
	var store cache.Store
	switch cfg.Cache.Backend {
	case "redis":
		rc := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Cache.RedisAddr},
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			return err
		}
		store = cache.NewRedisStore(rc, cfg.Cache.KeyPrefix)
		lg.Infow("cache store online", "backend", "redis", "addr", cfg.Cache.RedisAddr)
	default:
		store = cache.NewMemoryStore()
		lg.Infow("cache store online", "backend", "memory")
	}

	//
	// ── 5.  Data sources, guard, aggregator ─────────────────────────────
	//
	repo := repository.NewMySQL(db, repository.DefaultBreakerSettings(), logger.Named(lg, "repository"))
	guard := tenant.NewGuard(tenant.NewSQLDirectory(db), logger.Named(lg, "tenant"))
	agg := stats.New(stats.Deps{
		Orders:  repo,
		Rooms:   repo,
		Users:   repo,
		Reviews: repo,
		Store:   store,
		Access:  guard,
		Zones:   hotels,
		Clock:   clock,
		Log:     logger.Named(lg, "stats"),
	})

	//
	// ── 6.  Jobs, coordinator, scheduler ────────────────────────────────
	//
	jobs := refresh.Catalog(agg, hotels, refresh.CatalogConfig{
		Schedule: refresh.Schedule{
			Realtime:     cfg.Scheduler.Realtime,
			CoreMetrics:  cfg.Scheduler.CoreMetrics,
			RevenueStats: cfg.Scheduler.RevenueStats,
			Trend:        cfg.Scheduler.Trend,
			TodayMetrics: cfg.Scheduler.TodayMetrics,
			Cleanup:      cfg.Scheduler.Cleanup,
		},
		Concurrency: cfg.Aggregation.Concurrency,
		Log:         logger.Named(lg, "refresh"),
	})
	coord := refresh.NewCoordinator(jobs, clock, logger.Named(lg, "refresh"))

	sched := scheduler.New(clock, cfg.Location(), logger.Named(lg, "scheduler"))
	if err := coord.Schedule(ctx, sched); err != nil {
		return err
	}
	sched.Start()
	lg.Infow("scheduler started", "jobs", len(jobs), "timezone", cfg.Scheduler.Timezone)

	//
	// ── 7.  Ops listener until signal ───────────────────────────────────
	//
	srv := server.New(cfg.Ops.ListenAddr, server.Routes(server.OpsDeps{
		Jobs:     coord,
		DB:       db,
		Guard:    guard,
		Log:      logger.Named(lg, "ops"),
		RunCtx:   ctx,
		Clock:    clock,
		Location: cfg.Location(),
	}))
	serveErr := server.Serve(ctx, srv, lg)

	stopCtx, cancel := context.WithTimeout(context.Background(), stopGrace)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		lg.Warnw("scheduler stop incomplete", "err", err)
	}
	lg.Infow("statsd stopped")
	return serveErr
}
