package temporal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hrsignal/temporal-engine/pkg/interval"
)

// ErrInvalidRange is the interval model's range error, re-exported so store
// callers can match it without importing pkg/interval.
var ErrInvalidRange = interval.ErrInvalidRange

var (
	// ErrNotFound is returned when a record ID does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyClosed is returned when closing a record whose effective_end
	// is already set.
	ErrAlreadyClosed = errors.New("record already closed")

	// ErrOverlapConflict is returned when an inserted interval overlaps an
	// existing record in the same series. The concrete error is an
	// *OverlapError carrying the conflicting record IDs.
	ErrOverlapConflict = errors.New("overlap conflict")

	// ErrInvariantViolation signals that the no-overlap guarantee itself is
	// broken for a series. It is a store bug, never a caller error: the
	// operation fails, the violation is logged loudly, and further writes to
	// the series are refused pending investigation.
	ErrInvariantViolation = errors.New("invariant violation: series has overlapping records")
)

// OverlapError reports which existing records an insert collided with.
type OverlapError struct {
	Key         SeriesKey
	Candidate   interval.Interval
	ConflictIDs []string
}

// Error implements the error interface.
func (e *OverlapError) Error() string {
	return fmt.Sprintf("overlap conflict in series %s: %s overlaps records [%s]",
		e.Key, e.Candidate, strings.Join(e.ConflictIDs, ", "))
}

// Unwrap lets errors.Is(err, ErrOverlapConflict) match.
func (e *OverlapError) Unwrap() error { return ErrOverlapConflict }
