// internal/scheduler/scheduler.go
//
// Trigger scheduler.
//
// Context
// -------
// Two trigger kinds fire argument-less callbacks:
//
//   - EveryInterval – fires every d, measured from the previous firing's
//     start, driven by a clockwork ticker.
//   - Calendar      – fires at the next match of a standard five-field cron
//     spec ("0 1 * * *", "0 3 * * 1") evaluated in the scheduler's
//     location.  Specs are parsed with robfig/cron; the wait itself runs
//     on the same clockwork clock so tests can drive both kinds with a
//     fake clock.
//
// Every firing runs on its own goroutine.  A callback that outlives its
// interval overlaps the next firing; the scheduler does not prevent that.
// A panicking callback is recovered and logged; its trigger and every
// other trigger keep firing.
//
// Notes
// -----
// • The scheduler owns no business logic and never inspects callbacks.
// • Oxford commas, two spaces after periods.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrStopped is returned when registering on a stopped scheduler.
var ErrStopped = errors.New("scheduler: stopped")

type trigger struct {
	name  string
	every time.Duration // interval triggers
	sched cron.Schedule // calendar triggers
	fn    func()
}

// Scheduler is safe for concurrent use.
type Scheduler struct {
	clock clockwork.Clock
	loc   *time.Location
	log   *zap.SugaredLogger

	mu       sync.Mutex
	triggers []trigger
	started  bool
	stopped  bool
	stop     chan struct{}

	loops   sync.WaitGroup
	firings sync.WaitGroup
}

// New constructs a Scheduler.  Calendar specs are evaluated in loc.
func New(clock clockwork.Clock, loc *time.Location, log *zap.SugaredLogger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Scheduler{clock: clock, loc: loc, log: log, stop: make(chan struct{})}
}

// EveryInterval registers fn to fire every d.
func (s *Scheduler) EveryInterval(name string, d time.Duration, fn func()) error {
	if d <= 0 {
		return fmt.Errorf("scheduler: %s: interval must be positive, got %v", name, d)
	}
	return s.add(trigger{name: name, every: d, fn: fn})
}

// Calendar registers fn to fire at every match of spec.
func (s *Scheduler) Calendar(name, spec string, fn func()) error {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("scheduler: %s: %w", name, err)
	}
	return s.add(trigger{name: name, sched: sched, fn: fn})
}

func (s *Scheduler) add(t trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	s.triggers = append(s.triggers, t)
	if s.started {
		s.launch(t)
	}
	return nil
}

// Start begins firing every registered trigger.  Triggers registered
// afterwards start immediately.  Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	for _, t := range s.triggers {
		s.launch(t)
	}
	s.log.Infow("scheduler started", "triggers", len(s.triggers), "location", s.loc.String())
}

// Stop halts every trigger and waits for in-flight callbacks, or for ctx,
// whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.stop)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.loops.Wait()
		s.firings.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Infow("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler: waiting for callbacks: %w", ctx.Err())
	}
}

// launch is called with s.mu held.
func (s *Scheduler) launch(t trigger) {
	s.loops.Add(1)
	if t.sched != nil {
		go s.calendarLoop(t)
		return
	}
	go s.intervalLoop(t)
}

func (s *Scheduler) intervalLoop(t trigger) {
	defer s.loops.Done()
	tk := s.clock.NewTicker(t.every)
	defer tk.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-tk.Chan():
			s.fire(t)
		}
	}
}

func (s *Scheduler) calendarLoop(t trigger) {
	defer s.loops.Done()
	for {
		now := s.clock.Now().In(s.loc)
		next := t.sched.Next(now)
		timer := s.clock.NewTimer(next.Sub(now))
		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-timer.Chan():
			s.fire(t)
		}
	}
}

// fire runs t.fn on its own goroutine behind a recover.
func (s *Scheduler) fire(t trigger) {
	s.firings.Add(1)
	go func() {
		defer s.firings.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Errorw("trigger callback panicked",
					"trigger", t.name, "panic", r, "stack", string(debug.Stack()))
			}
		}()
		t.fn()
	}()
}

// NextFire reports when spec next matches after t, evaluated in t's
// location.
func NextFire(spec string, after time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after), nil
}
