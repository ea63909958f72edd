package temporal

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hrsignal/temporal-engine/pkg/interval"
)

// DBStore is the SQL-backed Store. Overlap checking happens inside a
// database transaction, and an in-process per-series mutex serializes
// writers so a supersession (close predecessor, insert successor) is
// observed as one atomic unit.
type DBStore struct {
	db     *gorm.DB
	locks  *seriesLocks
	logger *slog.Logger

	// inTx marks a view handed to a Transact callback; such views reuse the
	// caller's transaction and series lock instead of taking their own.
	inTx bool
}

// NewDBStore creates a DBStore on the given gorm DB.
func NewDBStore(db *gorm.DB, logger *slog.Logger) *DBStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DBStore{db: db, locks: newSeriesLocks(), logger: logger}
}

// AutoMigrate creates or updates the versioned_records table.
func (s *DBStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("auto-migrate versioned_records: %w", err)
	}
	return nil
}

// Insert implements Store.
func (s *DBStore) Insert(rec NewRecord) (*Record, error) {
	iv, err := interval.New(rec.EffectiveStart, rec.EffectiveEnd)
	if err != nil {
		return nil, err
	}
	key := rec.Key()

	if !s.inTx {
		var out *Record
		err := s.Transact(key, func(tx Store) error {
			r, err := tx.Insert(rec)
			out = r
			return err
		})
		return out, err
	}

	var existing []Record
	if err := s.seriesQuery(key).Find(&existing).Error; err != nil {
		return nil, fmt.Errorf("load series %s: %w", key, err)
	}

	var conflicts []string
	for i := range existing {
		if iv.Overlaps(existing[i].Interval()) {
			conflicts = append(conflicts, existing[i].ID)
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
	}
	if err := s.db.Create(record).Error; err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}
	return record, nil
}

// Close implements Store.
func (s *DBStore) Close(recordID string, at time.Time) error {
	record, err := s.Get(recordID)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("close %s: %w", recordID, ErrNotFound)
	}

	if !s.inTx {
		return s.Transact(record.Key(), func(tx Store) error {
			return tx.Close(recordID, at)
		})
	}

	// Re-read inside the transaction; the record may have been closed
	// between the lookup and the lock acquisition.
	var current Record
	if err := s.db.Where("id = ?", recordID).First(&current).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("close %s: %w", recordID, ErrNotFound)
		}
		return fmt.Errorf("close %s: %w", recordID, err)
	}
	if current.EffectiveEnd != nil {
		return fmt.Errorf("close %s: %w", recordID, ErrAlreadyClosed)
	}
	closed, err := current.Interval().Close(at)
	if err != nil {
		return err
	}

	result := s.db.Model(&Record{}).
		Where("id = ? AND effective_end IS NULL", recordID).
		Update("effective_end", *closed.End)
	if result.Error != nil {
		return fmt.Errorf("close %s: %w", recordID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("close %s: %w", recordID, ErrAlreadyClosed)
	}
	return nil
}

// Get implements Store.
func (s *DBStore) Get(recordID string) (*Record, error) {
	var record Record
	if err := s.db.Where("id = ?", recordID).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return &record, nil
}

// ActiveAsOf implements Store.
func (s *DBStore) ActiveAsOf(key SeriesKey, at time.Time) (*Record, error) {
	var records []Record
	err := s.seriesQuery(key).
		Where("effective_start <= ? AND (effective_end IS NULL OR effective_end > ?)", at, at).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("active as of: %w", err)
	}
	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		return &records[0], nil
	default:
		return nil, s.invariantBroken(key, at, records)
	}
}

// OpenRecord implements Store.
func (s *DBStore) OpenRecord(key SeriesKey) (*Record, error) {
	var records []Record
	err := s.seriesQuery(key).Where("effective_end IS NULL").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("open record: %w", err)
	}
	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		return &records[0], nil
	default:
		return nil, s.invariantBroken(key, time.Time{}, records)
	}
}

// Intersecting implements Store.
func (s *DBStore) Intersecting(key SeriesKey, start, end time.Time, pageSize int, pageToken string) ([]Record, string, error) {
	q := s.seriesQuery(key).
		Where("effective_start < ? AND (effective_end IS NULL OR effective_end > ?)", end, start)
	return s.page(q, pageSize, pageToken)
}

// SeriesPage implements Store.
func (s *DBStore) SeriesPage(key SeriesKey, pageSize int, pageToken string) ([]Record, string, error) {
	return s.page(s.seriesQuery(key), pageSize, pageToken)
}

// ActiveCount implements Store.
func (s *DBStore) ActiveCount(tenant, fingerprint string, at time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&Record{}).
		Where("tenant = ? AND scope_fingerprint = ?", tenant, fingerprint).
		Where("effective_start <= ? AND (effective_end IS NULL OR effective_end > ?)", at, at).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("active count: %w", err)
	}
	return count, nil
}

// ClosedCount implements Store.
func (s *DBStore) ClosedCount(tenant, fingerprint string, start, end time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&Record{}).
		Where("tenant = ? AND scope_fingerprint = ?", tenant, fingerprint).
		Where("effective_end >= ? AND effective_end < ?", start, end).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("closed count: %w", err)
	}
	return count, nil
}

// Transact implements Store.
func (s *DBStore) Transact(key SeriesKey, fn func(tx Store) error) error {
	if s.locks.isHalted(key) {
		return fmt.Errorf("series %s: writes halted: %w", key, ErrInvariantViolation)
	}
	if s.inTx {
		// Nested series transactions reuse the outer scope.
		return fn(s)
	}

	m := s.locks.lock(key)
	defer m.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		view := &DBStore{db: tx, locks: s.locks, logger: s.logger, inTx: true}
		return fn(view)
	})
}

// seriesQuery scopes a query to one series, ordered by effective_start.
func (s *DBStore) seriesQuery(key SeriesKey) *gorm.DB {
	return s.db.Model(&Record{}).
		Where("tenant = ? AND subject_id = ? AND scope_fingerprint = ?",
			key.Tenant, key.SubjectID, key.Fingerprint).
		Order("effective_start ASC")
}

// page runs an effective_start keyset pagination over q.
func (s *DBStore) page(q *gorm.DB, pageSize int, pageToken string) ([]Record, string, error) {
	pageSize = clampPageSize(pageSize)

	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
		q = q.Where("effective_start > ?", t)
	}

	var records []Record
	if err := q.Limit(pageSize + 1).Find(&records).Error; err != nil {
		return nil, "", fmt.Errorf("list records: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		records = records[:pageSize]
		nextToken = records[pageSize-1].EffectiveStart.Format(time.RFC3339Nano)
	}
	return records, nextToken, nil
}

// invariantBroken halts the series and returns a loud error. The duplicate
// matches mean the store's own no-overlap guarantee failed, so the condition
// is logged as an error rather than surfaced as an ordinary conflict.
func (s *DBStore) invariantBroken(key SeriesKey, at time.Time, records []Record) error {
	ids := make([]string, len(records))
	for i := range records {
		ids[i] = records[i].ID
	}
	s.locks.halt(key)
	s.logger.Error("no-overlap invariant broken, halting series writes",
		"series", key.String(),
		"asOf", at,
		"records", ids)
	return fmt.Errorf("series %s has %d records active at once: %w", key, len(records), ErrInvariantViolation)
}
