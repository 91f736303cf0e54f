package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrTransient matches every DataAccessError.  The next scheduled run
	// is the recovery path.
	ErrTransient = errors.New("repository: transient data access failure")

	// ErrSourceUnavailable means the source's circuit breaker is open.
	ErrSourceUnavailable = errors.New("repository: source unavailable")
)

// DataAccessError wraps a failed repository call.
type DataAccessError struct {
	Source string
	Op     string
	Err    error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("repository: %s.%s: %v", e.Source, e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error { return e.Err }

func (e *DataAccessError) Is(target error) bool { return target == ErrTransient }
