package temporal

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hrsignal/temporal-engine/pkg/interval"
)

// MemoryStore is the reference in-memory Store: an interval index of sorted
// per-series slices. Committed slices are immutable; a series transaction
// stages a cloned slice and installs it wholesale on commit, so concurrent
// readers always see either the pre-write or the post-write history, never
// an intermediate.
type MemoryStore struct {
	mu     sync.RWMutex
	series map[SeriesKey][]*Record
	byID   map[string]SeriesKey
	locks  *seriesLocks
	logger *slog.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		series: make(map[SeriesKey][]*Record),
		byID:   make(map[string]SeriesKey),
		locks:  newSeriesLocks(),
		logger: logger,
	}
}

// Insert implements Store.
func (s *MemoryStore) Insert(rec NewRecord) (*Record, error) {
	var out *Record
	err := s.Transact(rec.Key(), func(tx Store) error {
		r, err := tx.Insert(rec)
		out = r
		return err
	})
	return out, err
}

// Close implements Store.
func (s *MemoryStore) Close(recordID string, at time.Time) error {
	s.mu.RLock()
	key, ok := s.byID[recordID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("close %s: %w", recordID, ErrNotFound)
	}
	return s.Transact(key, func(tx Store) error {
		return tx.Close(recordID, at)
	})
}

// Get implements Store.
func (s *MemoryStore) Get(recordID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.byID[recordID]
	if !ok {
		return nil, nil
	}
	for _, r := range s.series[key] {
		if r.ID == recordID {
			out := *r
			return &out, nil
		}
	}
	return nil, nil
}

// ActiveAsOf implements Store.
func (s *MemoryStore) ActiveAsOf(key SeriesKey, at time.Time) (*Record, error) {
	return activeAsOf(s, key, at, s.snapshot(key))
}

// OpenRecord implements Store.
func (s *MemoryStore) OpenRecord(key SeriesKey) (*Record, error) {
	return openRecord(s, key, s.snapshot(key))
}

// Intersecting implements Store.
func (s *MemoryStore) Intersecting(key SeriesKey, start, end time.Time, pageSize int, pageToken string) ([]Record, string, error) {
	return pageRecords(s.snapshot(key), pageSize, pageToken, func(r *Record) bool {
		q := interval.Interval{Start: start, End: &end}
		return r.Interval().Overlaps(q)
	})
}

// SeriesPage implements Store.
func (s *MemoryStore) SeriesPage(key SeriesKey, pageSize int, pageToken string) ([]Record, string, error) {
	return pageRecords(s.snapshot(key), pageSize, pageToken, nil)
}

// ActiveCount implements Store.
func (s *MemoryStore) ActiveCount(tenant, fingerprint string, at time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for key, records := range s.series {
		if key.Tenant != tenant || key.Fingerprint != fingerprint {
			continue
		}
		for _, r := range records {
			if r.Interval().Contains(at) {
				count++
			}
		}
	}
	return count, nil
}

// ClosedCount implements Store.
func (s *MemoryStore) ClosedCount(tenant, fingerprint string, start, end time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for key, records := range s.series {
		if key.Tenant != tenant || key.Fingerprint != fingerprint {
			continue
		}
		for _, r := range records {
			if r.EffectiveEnd == nil {
				continue
			}
			if !r.EffectiveEnd.Before(start) && r.EffectiveEnd.Before(end) {
				count++
			}
		}
	}
	return count, nil
}

// Transact implements Store.
func (s *MemoryStore) Transact(key SeriesKey, fn func(tx Store) error) error {
	if s.locks.isHalted(key) {
		return fmt.Errorf("series %s: writes halted: %w", key, ErrInvariantViolation)
	}

	m := s.locks.lock(key)
	defer m.Unlock()

	tx := &memTx{
		store:  s,
		staged: make(map[SeriesKey][]*Record),
		ids:    make(map[string]SeriesKey),
	}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	for k, records := range tx.staged {
		s.series[k] = records
	}
	for id, k := range tx.ids {
		s.byID[id] = k
	}
	s.mu.Unlock()
	return nil
}

// snapshot returns the committed slice for a series. The slice is immutable
// once published, so callers may read it without holding the lock.
func (s *MemoryStore) snapshot(key SeriesKey) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.series[key]
}

// memTx is the staged view handed to Transact callbacks. Mutations build
// cloned slices; nothing is visible outside the transaction until commit.
type memTx struct {
	store  *MemoryStore
	staged map[SeriesKey][]*Record
	ids    map[string]SeriesKey
}

func (t *memTx) view(key SeriesKey) []*Record {
	if records, ok := t.staged[key]; ok {
		return records
	}
	return t.store.snapshot(key)
}

// Insert implements Store.
func (t *memTx) Insert(rec NewRecord) (*Record, error) {
	iv, err := interval.New(rec.EffectiveStart, rec.EffectiveEnd)
	if err != nil {
		return nil, err
	}
	key := rec.Key()

	records := t.view(key)
	var conflicts []string
	for _, r := range records {
		if iv.Overlaps(r.Interval()) {
			conflicts = append(conflicts, r.ID)
		}
	}
	if len(conflicts) > 0 {
		return nil, &OverlapError{Key: key, Candidate: iv, ConflictIDs: conflicts}
	}

	record := &Record{
		ID:               uuid.New().String(),
		Tenant:           rec.Tenant,
		SubjectID:        rec.SubjectID,
		ScopeFingerprint: key.Fingerprint,
		ScopeDims:        JSONMap(rec.Scope),
		Payload:          JSONMap(rec.Payload),
		EffectiveStart:   rec.EffectiveStart,
		EffectiveEnd:     rec.EffectiveEnd,
		CreatedAt:        time.Now().UTC(),
	}

	next := make([]*Record, 0, len(records)+1)
	next = append(next, records...)
	next = append(next, record)
	sort.Slice(next, func(i, j int) bool {
		return next[i].EffectiveStart.Before(next[j].EffectiveStart)
	})

	t.staged[key] = next
	t.ids[record.ID] = key
	return record, nil
}

// Close implements Store.
func (t *memTx) Close(recordID string, at time.Time) error {
	key, ok := t.ids[recordID]
	if !ok {
		t.store.mu.RLock()
		key, ok = t.store.byID[recordID]
		t.store.mu.RUnlock()
	}
	if !ok {
		return fmt.Errorf("close %s: %w", recordID, ErrNotFound)
	}

	records := t.view(key)
	next := make([]*Record, len(records))
	copy(next, records)

	for i, r := range next {
		if r.ID != recordID {
			continue
		}
		if r.EffectiveEnd != nil {
			return fmt.Errorf("close %s: %w", recordID, ErrAlreadyClosed)
		}
		closed, err := r.Interval().Close(at)
		if err != nil {
			return err
		}
		updated := *r
		updated.EffectiveEnd = closed.End
		next[i] = &updated
		t.staged[key] = next
		return nil
	}
	return fmt.Errorf("close %s: %w", recordID, ErrNotFound)
}

// Get implements Store.
func (t *memTx) Get(recordID string) (*Record, error) {
	key, ok := t.ids[recordID]
	if !ok {
		t.store.mu.RLock()
		key, ok = t.store.byID[recordID]
		t.store.mu.RUnlock()
	}
	if !ok {
		return nil, nil
	}
	for _, r := range t.view(key) {
		if r.ID == recordID {
			out := *r
			return &out, nil
		}
	}
	return nil, nil
}

// ActiveAsOf implements Store.
func (t *memTx) ActiveAsOf(key SeriesKey, at time.Time) (*Record, error) {
	return activeAsOf(t.store, key, at, t.view(key))
}

// OpenRecord implements Store.
func (t *memTx) OpenRecord(key SeriesKey) (*Record, error) {
	return openRecord(t.store, key, t.view(key))
}

// Intersecting implements Store.
func (t *memTx) Intersecting(key SeriesKey, start, end time.Time, pageSize int, pageToken string) ([]Record, string, error) {
	return pageRecords(t.view(key), pageSize, pageToken, func(r *Record) bool {
		q := interval.Interval{Start: start, End: &end}
		return r.Interval().Overlaps(q)
	})
}

// SeriesPage implements Store.
func (t *memTx) SeriesPage(key SeriesKey, pageSize int, pageToken string) ([]Record, string, error) {
	return pageRecords(t.view(key), pageSize, pageToken, nil)
}

// ActiveCount implements Store.
func (t *memTx) ActiveCount(tenant, fingerprint string, at time.Time) (int64, error) {
	return t.store.ActiveCount(tenant, fingerprint, at)
}

// ClosedCount implements Store.
func (t *memTx) ClosedCount(tenant, fingerprint string, start, end time.Time) (int64, error) {
	return t.store.ClosedCount(tenant, fingerprint, start, end)
}

// Transact implements Store. Nested series transactions reuse the outer scope.
func (t *memTx) Transact(_ SeriesKey, fn func(tx Store) error) error {
	return fn(t)
}

// activeAsOf scans a series snapshot for the record containing at, failing
// loudly when more than one matches.
func activeAsOf(s *MemoryStore, key SeriesKey, at time.Time, records []*Record) (*Record, error) {
	var matches []*Record
	for _, r := range records {
		if r.Interval().Contains(at) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		out := *matches[0]
		return &out, nil
	default:
		return nil, invariantBrokenMem(s, key, at, matches)
	}
}

func openRecord(s *MemoryStore, key SeriesKey, records []*Record) (*Record, error) {
	var matches []*Record
	for _, r := range records {
		if r.EffectiveEnd == nil {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		out := *matches[0]
		return &out, nil
	default:
		return nil, invariantBrokenMem(s, key, time.Time{}, matches)
	}
}

func invariantBrokenMem(s *MemoryStore, key SeriesKey, at time.Time, matches []*Record) error {
	ids := make([]string, len(matches))
	for i := range matches {
		ids[i] = matches[i].ID
	}
	s.locks.halt(key)
	s.logger.Error("no-overlap invariant broken, halting series writes",
		"series", key.String(),
		"asOf", at,
		"records", ids)
	return fmt.Errorf("series %s has %d records active at once: %w", key, len(matches), ErrInvariantViolation)
}

// pageRecords applies an optional filter then an effective_start keyset page
// over an already-sorted snapshot.
func pageRecords(records []*Record, pageSize int, pageToken string, keep func(*Record) bool) ([]Record, string, error) {
	pageSize = clampPageSize(pageSize)

	var after time.Time
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
		after = t
	}

	out := make([]Record, 0, pageSize)
	var nextToken string
	for _, r := range records {
		if keep != nil && !keep(r) {
			continue
		}
		if pageToken != "" && !r.EffectiveStart.After(after) {
			continue
		}
		if len(out) == pageSize {
			nextToken = out[pageSize-1].EffectiveStart.Format(time.RFC3339Nano)
			break
		}
		out = append(out, *r)
	}
	return out, nextToken, nil
}
