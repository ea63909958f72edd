package ingest

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncStore provides database operations for sync runs.
type SyncStore struct {
	db *gorm.DB
}

// NewSyncStore creates a new SyncStore.
func NewSyncStore(db *gorm.DB) *SyncStore {
	return &SyncStore{db: db}
}

// AutoMigrate creates or updates the sync_runs table.
func (s *SyncStore) AutoMigrate() error {
	return s.db.AutoMigrate(&SyncRun{})
}

// RunListFilter defines filters for listing sync runs.
type RunListFilter struct {
	Tenant      string
	Source      string
	State       string
	RequestedBy string
}

// Enqueue creates a new queued run. If idempotencyKey is non-empty and a
// non-terminal run with the same key exists, the existing run is returned
// instead of creating a duplicate. Safe for concurrent use.
func (s *SyncStore) Enqueue(run *SyncRun) (*SyncRun, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.State == "" {
		run.State = RunStateQueued
	}
	if run.RequestedAt.IsZero() {
		run.RequestedAt = time.Now()
	}

	if run.IdempotencyKey == "" {
		if err := s.db.Create(run).Error; err != nil {
			return nil, fmt.Errorf("enqueue run: %w", err)
		}
		return run, nil
	}

	// With idempotency key: use a transaction for atomicity.
	var result *SyncRun
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing SyncRun
		err := tx.Where("idempotency_key = ? AND state IN ?", run.IdempotencyKey,
			[]RunState{RunStateQueued, RunStateRunning}).First(&existing).Error
		if err == nil {
			result = &existing
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("check idempotency key: %w", err)
		}

		// Clear the idempotency key on any terminal runs with the same key
		// so the unique index doesn't block creating a new run.
		tx.Model(&SyncRun{}).
			Where("idempotency_key = ? AND state IN ?", run.IdempotencyKey,
				[]RunState{RunStateSucceeded, RunStateFailed, RunStateCanceled}).
			Update("idempotency_key", "")

		if err := tx.Create(run).Error; err != nil {
			// Another transaction may have created the run between our check
			// and create. Look up the existing run.
			var raceExisting SyncRun
			lookupErr := s.db.Where("idempotency_key = ? AND state IN ?", run.IdempotencyKey,
				[]RunState{RunStateQueued, RunStateRunning}).First(&raceExisting).Error
			if lookupErr == nil {
				result = &raceExisting
				return nil
			}
			return fmt.Errorf("enqueue run: %w", err)
		}
		result = run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Claim atomically picks a queued run and transitions it to running.
// Uses FOR UPDATE SKIP LOCKED where supported (PostgreSQL).
// Returns nil if no runs are available.
func (s *SyncStore) Claim(maxRetries int) (*SyncRun, error) {
	var run SyncRun

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Attempt FOR UPDATE SKIP LOCKED (PostgreSQL); fall back to a plain
		// SELECT for databases that don't support it.
		result := tx.Raw(`
			SELECT * FROM sync_runs
			WHERE state = ? AND attempt_count <= ?
			ORDER BY requested_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		`, RunStateQueued, maxRetries).Scan(&run)

		if result.Error != nil {
			result = tx.Where("state = ? AND attempt_count <= ?", RunStateQueued, maxRetries).
				Order("requested_at ASC").
				Limit(1).
				First(&run)
			if result.Error != nil {
				if result.Error == gorm.ErrRecordNotFound {
					return nil
				}
				return result.Error
			}
		}

		if run.ID == "" {
			return nil
		}

		now := time.Now()
		return tx.Model(&SyncRun{}).Where("id = ? AND state = ?", run.ID, RunStateQueued).
			Updates(map[string]any{
				"state":         RunStateRunning,
				"started_at":    now,
				"attempt_count": gorm.Expr("attempt_count + 1"),
			}).Error
	})

	if err != nil {
		return nil, fmt.Errorf("claim run: %w", err)
	}

	if run.ID == "" {
		return nil, nil
	}

	// Reload to get the updated values.
	if err := s.db.First(&run, "id = ?", run.ID).Error; err != nil {
		return nil, fmt.Errorf("reload claimed run: %w", err)
	}

	return &run, nil
}

// Complete marks a run as succeeded and records its outcome counts.
func (s *SyncStore) Complete(runID string, result Result, durationMs int64) error {
	now := time.Now()
	res := s.db.Model(&SyncRun{}).Where("id = ?", runID).Updates(map[string]any{
		"state":           RunStateSucceeded,
		"finished_at":     now,
		"records_applied": result.RecordsApplied,
		"records_failed":  len(result.RecordFailures),
		"facts_applied":   result.FactsApplied,
		"facts_failed":    len(result.FactFailures),
		"duration_ms":     durationMs,
		"message": fmt.Sprintf("Applied %d records (%d failed), %d facts (%d failed)",
			result.RecordsApplied, len(result.RecordFailures),
			result.FactsApplied, len(result.FactFailures)),
	})
	if res.Error != nil {
		return fmt.Errorf("complete run: %w", res.Error)
	}
	return nil
}

// Fail marks a run as failed. If the attempt count is within retries, it
// re-queues the run for retry.
func (s *SyncStore) Fail(runID string, errMsg string, maxRetries int) error {
	now := time.Now()

	var run SyncRun
	if err := s.db.First(&run, "id = ?", runID).Error; err != nil {
		return fmt.Errorf("load run for fail: %w", err)
	}

	updates := map[string]any{
		"last_error":  errMsg,
		"finished_at": now,
	}

	if run.AttemptCount < maxRetries {
		// Re-queue for retry.
		updates["state"] = RunStateQueued
		updates["started_at"] = nil
		updates["finished_at"] = nil
	} else {
		updates["state"] = RunStateFailed
		updates["message"] = "Max retries exceeded: " + errMsg
	}

	result := s.db.Model(&SyncRun{}).Where("id = ?", runID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("fail run: %w", result.Error)
	}
	return nil
}

// Cancel marks a queued run as canceled. Running runs cannot be canceled
// through this method.
func (s *SyncStore) Cancel(runID string) error {
	now := time.Now()
	result := s.db.Model(&SyncRun{}).
		Where("id = ? AND state = ?", runID, RunStateQueued).
		Updates(map[string]any{
			"state":       RunStateCanceled,
			"finished_at": now,
			"message":     "Canceled by user",
		})
	if result.Error != nil {
		return fmt.Errorf("cancel run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var run SyncRun
		if err := s.db.First(&run, "id = ?", runID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("run not found: %s", runID)
			}
			return fmt.Errorf("check run: %w", err)
		}
		return fmt.Errorf("run %s is in state %s, only queued runs can be canceled", runID, run.State)
	}
	return nil
}

// Get retrieves a run by ID.
func (s *SyncStore) Get(runID string) (*SyncRun, error) {
	var run SyncRun
	if err := s.db.First(&run, "id = ?", runID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

// List returns paginated runs matching the given filter, newest first.
func (s *SyncStore) List(filter RunListFilter, pageSize int, pageToken string) ([]SyncRun, string, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	buildQuery := func(base *gorm.DB) *gorm.DB {
		q := base.Model(&SyncRun{})
		if filter.Tenant != "" {
			q = q.Where("tenant = ?", filter.Tenant)
		}
		if filter.Source != "" {
			q = q.Where("source = ?", filter.Source)
		}
		if filter.State != "" {
			q = q.Where("state = ?", filter.State)
		}
		if filter.RequestedBy != "" {
			q = q.Where("requested_by = ?", filter.RequestedBy)
		}
		return q
	}

	var totalSize int64
	if err := buildQuery(s.db).Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count runs: %w", err)
	}

	query := buildQuery(s.db).Order("requested_at DESC").Limit(pageSize + 1)
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", 0, fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("requested_at < ?", t)
	}

	var records []SyncRun
	if err := query.Find(&records).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list runs: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].RequestedAt.Format(time.RFC3339Nano)
		records = records[:pageSize]
	}

	return records, nextToken, int(totalSize), nil
}

// CleanupStuckRuns transitions running runs that have been stuck
// (started_at older than claimTimeout) back to queued for retry.
func (s *SyncStore) CleanupStuckRuns(claimTimeout time.Duration) (int64, error) {
	cutoff := time.Now().Add(-claimTimeout)
	result := s.db.Model(&SyncRun{}).
		Where("state = ? AND started_at < ?", RunStateRunning, cutoff).
		Updates(map[string]any{
			"state":      RunStateQueued,
			"started_at": nil,
			"last_error": "Timed out (stuck run recovery)",
		})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup stuck runs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteOlderThan removes terminal runs older than the given cutoff.
func (s *SyncStore) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := s.db.Where("state IN ? AND finished_at < ?",
		[]RunState{RunStateSucceeded, RunStateFailed, RunStateCanceled}, cutoff).
		Delete(&SyncRun{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete old runs: %w", result.Error)
	}
	return result.RowsAffected, nil
}
