// Package interval implements the half-open effective-time range used by
// every versioned record series. Start is inclusive, End is exclusive, and a
// nil End means the interval is open-ended (unbounded into the future).
//
// This package is the single source of truth for the half-open convention:
// higher layers delegate all overlap and containment decisions here instead
// of comparing timestamps themselves.
package interval

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRange is returned when an interval's end is not strictly after
// its start.
var ErrInvalidRange = errors.New("invalid range: end must be after start")

// Interval is a half-open time range [Start, End). A nil End marks the
// interval as open-ended.
type Interval struct {
	Start time.Time
	End   *time.Time
}

// New creates an interval. end may be nil for an open-ended interval.
// Returns ErrInvalidRange if end is present and not after start.
func New(start time.Time, end *time.Time) (Interval, error) {
	if end != nil && !end.After(start) {
		return Interval{}, fmt.Errorf("%w (start=%s end=%s)",
			ErrInvalidRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Interval{Start: start, End: end}, nil
}

// Open reports whether the interval is open-ended.
func (iv Interval) Open() bool { return iv.End == nil }

// Contains reports whether at falls inside [Start, End).
func (iv Interval) Contains(at time.Time) bool {
	if at.Before(iv.Start) {
		return false
	}
	return iv.End == nil || at.Before(*iv.End)
}

// Overlaps reports whether two half-open intervals intersect. An absent end
// is treated as +infinity, so two open intervals always overlap and exactly
// adjacent intervals (a.End == b.Start) do not.
func (iv Interval) Overlaps(other Interval) bool {
	startsBeforeOtherEnds := other.End == nil || iv.Start.Before(*other.End)
	otherStartsBeforeEnds := iv.End == nil || other.Start.Before(*iv.End)
	return startsBeforeOtherEnds && otherStartsBeforeEnds
}

// Close returns a copy of the interval ended at the given instant.
// Returns ErrInvalidRange if at is not after Start. Closing an already
// closed interval is allowed here; callers that need to forbid it do so
// themselves (the store reports AlreadyClosed).
func (iv Interval) Close(at time.Time) (Interval, error) {
	if !at.After(iv.Start) {
		return Interval{}, fmt.Errorf("%w (start=%s close=%s)",
			ErrInvalidRange, iv.Start.Format(time.RFC3339), at.Format(time.RFC3339))
	}
	end := at
	return Interval{Start: iv.Start, End: &end}, nil
}

// String renders the interval for logs and error messages.
func (iv Interval) String() string {
	if iv.End == nil {
		return fmt.Sprintf("[%s, open)", iv.Start.Format("2006-01-02"))
	}
	return fmt.Sprintf("[%s, %s)", iv.Start.Format("2006-01-02"), iv.End.Format("2006-01-02"))
}
