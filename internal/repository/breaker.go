package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/yanizio/hotelstats/internal/metrics"
)

// BreakerSettings tunes the per-source circuit breakers.
type BreakerSettings struct {
	FailureThreshold uint32        // consecutive failures that open the breaker
	MaxRequests      uint32        // probes allowed while half-open
	Interval         time.Duration // closed-state counter reset period
	Timeout          time.Duration // open-state duration
}

// DefaultBreakerSettings opens after five consecutive failures for 30s.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		FailureThreshold: 5,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
	}
}

func newBreaker(source string, s BreakerSettings, log *zap.SugaredLogger) *gobreaker.CircuitBreaker {
	if s.FailureThreshold == 0 {
		s = DefaultBreakerSettings()
	}
	metrics.SourceBreakerState.WithLabelValues(source).Set(0)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        source,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.FailureThreshold
		},
		IsSuccessful: callerGaveUp,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnw("source breaker state changed", "source", name, "from", from.String(), "to", to.String())
			metrics.SourceBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
}

// callerGaveUp treats a cancelled or expired context as a healthy source.
// Shutdown and abandoned jobs must not open the breaker.
func callerGaveUp(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// guarded runs fn through cb and wraps any failure in a DataAccessError.
func guarded[T any](cb *gobreaker.CircuitBreaker, op string, fn func() (T, error)) (T, error) {
	v, err := cb.Execute(func() (any, error) {
		res, err := fn()
		return res, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		var zero T
		return zero, &DataAccessError{Source: cb.Name(), Op: op, Err: err}
	}
	return v.(T), nil
}
