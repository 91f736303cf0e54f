// internal/server/ops.go
//
// Ops router (chi).
//
// Routes
// ------
//
//	GET  /metrics          Prometheus exposition
//	GET  /healthz          database ping; 503 when it fails
//	GET  /jobs             catalog with the latest result per job and the
//	                       next firing of each calendar job
//	POST /jobs/{name}/run  manual run through the coordinator boundary
//	                       (ADMIN only, answers 202 and runs in background)
//
// Notes
// -----
// • Manual runs share the per-job overlap guard with the scheduler; a run
//   requested while the job is busy is recorded as skipped.
// • Oxford commas, two spaces after periods.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yanizio/hotelstats/internal/middleware"
	"github.com/yanizio/hotelstats/internal/refresh"
	"github.com/yanizio/hotelstats/internal/scheduler"
)

// JobRunner is the coordinator surface the router needs.
type JobRunner interface {
	Jobs() []refresh.Job
	Results() []refresh.Result
	Run(ctx context.Context, name string) (refresh.Result, error)
}

// Pinger reports database health.  *sqlx.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// OpsDeps bundles the router's collaborators.
type OpsDeps struct {
	Jobs   JobRunner
	DB     Pinger
	Guard  middleware.Resolver
	Log    *zap.SugaredLogger
	RunCtx context.Context // parent of manual runs; outlives the request

	// Clock and Location evaluate calendar triggers the way the scheduler
	// does.  Defaults: real clock, UTC.
	Clock    clockwork.Clock
	Location *time.Location
}

type jobView struct {
	Name     string          `json:"name"`
	Trigger  string          `json:"trigger"`
	Severity string          `json:"severity"`
	NextRun  *time.Time      `json:"next_run,omitempty"`
	Last     *refresh.Result `json:"last,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Routes builds the ops handler.
func Routes(d OpsDeps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop().Sugar()
	}
	if d.RunCtx == nil {
		d.RunCtx = context.Background()
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.Security)
	r.Use(middleware.Principal)

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := d.DB.PingContext(ctx); err != nil {
			d.Log.Warnw("health check failed", "err", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/jobs", func(w http.ResponseWriter, _ *http.Request) {
		last := make(map[string]refresh.Result)
		for _, res := range d.Jobs.Results() {
			last[res.Job] = res
		}
		views := make([]jobView, 0, len(last))
		for _, j := range d.Jobs.Jobs() {
			v := jobView{Name: j.Name, Trigger: j.Trigger.String(), Severity: string(j.Severity)}
			if j.Trigger.Kind == refresh.TriggerCalendar {
				if next, err := scheduler.NextFire(j.Trigger.Calendar, d.Clock.Now().In(d.Location)); err == nil {
					v.NextRun = &next
				}
			}
			if res, ok := last[j.Name]; ok {
				v.Last = &res
				if res.Err != nil {
					v.Error = res.Err.Error()
				}
			}
			views = append(views, v)
		}
		writeJSON(w, http.StatusOK, views)
	})

	r.With(middleware.RequireAdmin(d.Guard, d.Log)).
		Post("/jobs/{name}/run", func(w http.ResponseWriter, req *http.Request) {
			name := chi.URLParam(req, "name")
			if !known(d.Jobs, name) {
				http.NotFound(w, req)
				return
			}
			d.Log.Infow("manual job run requested", "job", name, "by", req.Header.Get(middleware.UserHeader))
			go func() { _, _ = d.Jobs.Run(d.RunCtx, name) }()
			writeJSON(w, http.StatusAccepted, map[string]string{"job": name, "status": "accepted"})
		})

	return r
}

func known(jr JobRunner, name string) bool {
	for _, j := range jr.Jobs() {
		if j.Name == name {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
