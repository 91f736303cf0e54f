// internal/refresh/coordinator.go
//
// CacheRefreshCoordinator.
//
// Context
// -------
// The coordinator owns the catalog and runs each job behind a failure
// boundary.  Run never propagates a job failure: errors and panics are
// caught, classified, logged (info jobs at WARN, preprocessing jobs at
// ERROR), counted in Prometheus, and returned as a Result.  There is no
// retry; the next firing is the retry.
//
// Each job carries a non-blocking in-progress flag.  A firing that finds
// its job still running returns a skipped Result at once instead of
// queueing duplicate repository load.
//
// Notes
// -----
// • The latest completed Result per job is kept for the ops endpoint.
//   Skipped firings are counted but do not replace it.
// • Oxford commas, two spaces after periods.
package refresh

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/yanizio/hotelstats/internal/metrics"
)

// Status is the outcome of one Run.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result records one job execution.
type Result struct {
	RunID      string    `json:"run_id"`
	Job        string    `json:"job"`
	Status     Status    `json:"status"`
	Kind       Kind      `json:"kind,omitempty"`
	Err        error     `json:"-"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Registrar is the scheduler surface the coordinator registers on.
// *scheduler.Scheduler satisfies it.
type Registrar interface {
	EveryInterval(name string, d time.Duration, fn func()) error
	Calendar(name, spec string, fn func()) error
}

type jobState struct {
	job     Job
	running atomic.Bool
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	jobs   []*jobState
	byName map[string]*jobState
	clock  clockwork.Clock
	log    *zap.SugaredLogger

	mu   sync.RWMutex
	last map[string]Result
}

// NewCoordinator wraps jobs, usually the output of Catalog.
func NewCoordinator(jobs []Job, clock clockwork.Clock, log *zap.SugaredLogger) *Coordinator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	c := &Coordinator{
		byName: make(map[string]*jobState, len(jobs)),
		clock:  clock,
		log:    log,
		last:   make(map[string]Result, len(jobs)),
	}
	for _, j := range jobs {
		st := &jobState{job: j}
		c.jobs = append(c.jobs, st)
		c.byName[j.Name] = st
	}
	return c
}

// Jobs lists the catalog in registration order.
func (c *Coordinator) Jobs() []Job {
	out := make([]Job, len(c.jobs))
	for i, st := range c.jobs {
		out[i] = st.job
	}
	return out
}

// Results returns the latest completed Result of every job that has run,
// in catalog order.
func (c *Coordinator) Results() []Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Result, 0, len(c.last))
	for _, st := range c.jobs {
		if r, ok := c.last[st.job.Name]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Schedule registers every job on r.  Firings run under ctx.
func (c *Coordinator) Schedule(ctx context.Context, r Registrar) error {
	for _, st := range c.jobs {
		name := st.job.Name
		fire := func() { _, _ = c.Run(ctx, name) }

		var err error
		switch st.job.Trigger.Kind {
		case TriggerInterval:
			err = r.EveryInterval(name, st.job.Trigger.Interval, fire)
		case TriggerCalendar:
			err = r.Calendar(name, st.job.Trigger.Calendar, fire)
		default:
			err = fmt.Errorf("refresh: job %s has no trigger", name)
		}
		if err != nil {
			return err
		}
		c.log.Infow("job scheduled", "job", name, "trigger", st.job.Trigger.String())
	}
	return nil
}

// Run executes the named job once behind the failure boundary.  The only
// error it returns is ErrUnknownJob; job failures live in the Result.
func (c *Coordinator) Run(ctx context.Context, name string) (Result, error) {
	st, ok := c.byName[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	res := Result{RunID: uuid.NewString(), Job: name, StartedAt: c.clock.Now()}

	if !st.running.CompareAndSwap(false, true) {
		res.Status, res.FinishedAt = StatusSkipped, res.StartedAt
		metrics.JobRunsTotal.WithLabelValues(name, string(StatusSkipped)).Inc()
		c.log.Infow("job still running, firing skipped", "job", name, "run_id", res.RunID)
		return res, nil
	}
	defer st.running.Store(false)

	err := invoke(ctx, st.job)
	res.FinishedAt = c.clock.Now()
	res.Err, res.Kind = err, classify(err)
	res.Status = StatusOK
	if err != nil {
		res.Status = StatusFailed
	}
	c.record(st.job, res)
	return res, nil
}

func invoke(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return job.Run(ctx)
}

func (c *Coordinator) record(job Job, res Result) {
	took := res.FinishedAt.Sub(res.StartedAt)
	metrics.JobRunsTotal.WithLabelValues(job.Name, string(res.Status)).Inc()
	metrics.JobDurationSeconds.WithLabelValues(job.Name).Observe(took.Seconds())

	c.mu.Lock()
	c.last[job.Name] = res
	c.mu.Unlock()

	kv := []any{"job", job.Name, "run_id", res.RunID, "took", took}
	if res.Status == StatusOK {
		metrics.JobLastSuccess.WithLabelValues(job.Name).Set(float64(res.FinishedAt.Unix()))
		c.log.Infow("job finished", kv...)
		return
	}

	kv = append(kv, "kind", string(res.Kind), "err", res.Err)
	if job.Severity == SeverityPreprocess {
		c.log.Errorw("preprocessing job failed", kv...)
		return
	}
	c.log.Warnw("refresh job failed", kv...)
}
