package refresh

import (
	"errors"
	"fmt"

	"github.com/yanizio/hotelstats/internal/repository"
	"github.com/yanizio/hotelstats/internal/stats"
	"github.com/yanizio/hotelstats/internal/tenant"
)

// ErrUnknownJob is returned by Run for a name outside the catalog.
var ErrUnknownJob = errors.New("refresh: unknown job")

// PanicError is a recovered panic from a job or one of its hotels.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Kind classifies a failed run.
type Kind string

const (
	KindNone        Kind = ""
	KindTransient   Kind = "transient"
	KindAccess      Kind = "access"
	KindAggregation Kind = "aggregation"
	KindPanic       Kind = "panic"
	KindUnknown     Kind = "unknown"
)

// classify picks the most specific kind present anywhere in err's tree.
// A panic outranks everything else.
func classify(err error) Kind {
	var (
		pe *PanicError
		ae *stats.AggregationError
	)
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &pe):
		return KindPanic
	case errors.Is(err, tenant.ErrAccessDenied),
		errors.Is(err, tenant.ErrUnauthenticated),
		errors.Is(err, tenant.ErrUnresolvedPrincipal):
		return KindAccess
	case errors.As(err, &ae):
		return KindAggregation
	case errors.Is(err, repository.ErrTransient):
		return KindTransient
	}
	return KindUnknown
}
