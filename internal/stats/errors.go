package stats

import (
	"errors"
	"fmt"
)

// ErrInvalidRange is returned by range queries whose start is after end.
var ErrInvalidRange = errors.New("stats: start is after end")

// AggregationError wraps a failed on-demand query.  It is always surfaced
// to the caller; range queries never return a partial sequence.
type AggregationError struct {
	Op      string
	HotelID int64
	Err     error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("stats: %s for hotel %d: %v", e.Op, e.HotelID, e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

// lengthError reports a repository sequence that does not line up with the
// requested range.
func lengthError(got, want int) error {
	return fmt.Errorf("source returned %d values, want %d", got, want)
}
