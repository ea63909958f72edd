package temporal

import (
	"sync"
	"time"
)

// Store is the versioned-record contract shared by the SQL and in-memory
// backends. All methods treat a series (tenant, subject, scope fingerprint)
// as the unit of consistency: writes to one series are serialized, writes to
// different series proceed in parallel, and reads racing a write observe
// either the pre-write or post-write state.
type Store interface {
	// Insert persists a new record. It fails with ErrInvalidRange when the
	// interval is malformed and with an *OverlapError when the interval
	// overlaps any existing record in the series. It never truncates or
	// splits neighbors: callers close a predecessor explicitly first.
	Insert(rec NewRecord) (*Record, error)

	// Close sets effective_end on an open record. Fails with ErrNotFound,
	// ErrInvalidRange (at not after the record's start), or ErrAlreadyClosed.
	Close(recordID string, at time.Time) error

	// Get returns a record by ID, or nil when absent.
	Get(recordID string) (*Record, error)

	// ActiveAsOf returns the unique record whose interval contains at, or
	// nil when no record is active. Multiple matches mean the no-overlap
	// invariant broke: the call fails with ErrInvariantViolation and the
	// series refuses further writes.
	ActiveAsOf(key SeriesKey, at time.Time) (*Record, error)

	// OpenRecord returns the series' open-ended record, or nil when the
	// series has none. Two open records fail with ErrInvariantViolation.
	OpenRecord(key SeriesKey) (*Record, error)

	// Intersecting returns records whose intervals overlap [start, end),
	// ordered by effective_start ascending. pageToken is the RFC3339Nano
	// effective_start to resume after; an empty next token means done.
	Intersecting(key SeriesKey, start, end time.Time, pageSize int, pageToken string) ([]Record, string, error)

	// SeriesPage returns one page of the series' full ordered history.
	SeriesPage(key SeriesKey, pageSize int, pageToken string) ([]Record, string, error)

	// ActiveCount counts records active at the given instant across all
	// subjects of a tenant for one scope fingerprint. Feeds headcount-style
	// reporting.
	ActiveCount(tenant, fingerprint string, at time.Time) (int64, error)

	// ClosedCount counts records whose effective_end falls inside
	// [start, end) across all subjects of a tenant for one fingerprint.
	ClosedCount(tenant, fingerprint string, start, end time.Time) (int64, error)

	// Transact runs fn with a store view bound to one series, holding that
	// series' write lock for the duration. Every mutation fn performs is
	// committed atomically when fn returns nil and discarded entirely when
	// it returns an error; concurrent readers never observe intermediates.
	Transact(key SeriesKey, fn func(tx Store) error) error
}

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

func clampPageSize(pageSize int) int {
	if pageSize <= 0 {
		return defaultPageSize
	}
	if pageSize > maxPageSize {
		return maxPageSize
	}
	return pageSize
}

// seriesLocks serializes writers per series key and tracks series that were
// halted after an invariant violation. Shared between a DBStore and the
// transactional views it hands out.
type seriesLocks struct {
	mu     sync.Mutex
	locks  map[SeriesKey]*sync.Mutex
	halted map[SeriesKey]struct{}
}

func newSeriesLocks() *seriesLocks {
	return &seriesLocks{
		locks:  make(map[SeriesKey]*sync.Mutex),
		halted: make(map[SeriesKey]struct{}),
	}
}

func (s *seriesLocks) lock(key SeriesKey) *sync.Mutex {
	s.mu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m
}

func (s *seriesLocks) halt(key SeriesKey) {
	s.mu.Lock()
	s.halted[key] = struct{}{}
	s.mu.Unlock()
}

func (s *seriesLocks) isHalted(key SeriesKey) bool {
	s.mu.Lock()
	_, ok := s.halted[key]
	s.mu.Unlock()
	return ok
}
