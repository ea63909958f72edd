// Package ingest applies batches of upstream changes through the validator
// and tracks each synchronization run in a database-backed queue, so runs
// survive restarts and every outcome is inspectable afterwards.
package ingest

import (
	"time"
)

// RunState represents the lifecycle state of a sync run.
type RunState string

const (
	RunStateQueued    RunState = "queued"
	RunStateRunning   RunState = "running"
	RunStateSucceeded RunState = "succeeded"
	RunStateFailed    RunState = "failed"
	RunStateCanceled  RunState = "canceled"
)

// SyncRun is the GORM model for one synchronization run against an upstream
// source. Counts are written when the run finishes.
type SyncRun struct {
	ID             string     `gorm:"primaryKey;column:id;type:varchar(36)"`
	Tenant         string     `gorm:"column:tenant;index:idx_run_tenant_state,priority:1;not null"`
	Source         string     `gorm:"column:source;index:idx_run_source_state,priority:1;not null"`
	RequestedBy    string     `gorm:"column:requested_by;not null"`
	RequestedAt    time.Time  `gorm:"column:requested_at;not null"`
	State          RunState   `gorm:"column:state;index:idx_run_tenant_state,priority:2;index:idx_run_source_state,priority:2;index:idx_run_state;not null;default:queued"`
	Message        string     `gorm:"column:message"`
	StartedAt      *time.Time `gorm:"column:started_at"`
	FinishedAt     *time.Time `gorm:"column:finished_at"`
	AttemptCount   int        `gorm:"column:attempt_count;default:0"`
	LastError      string     `gorm:"column:last_error"`
	IdempotencyKey string     `gorm:"column:idempotency_key;uniqueIndex:idx_run_idemp_key"`
	RecordsApplied int        `gorm:"column:records_applied"`
	RecordsFailed  int        `gorm:"column:records_failed"`
	FactsApplied   int        `gorm:"column:facts_applied"`
	FactsFailed    int        `gorm:"column:facts_failed"`
	DurationMs     int64      `gorm:"column:duration_ms"`
}

// TableName returns the GORM table name.
func (SyncRun) TableName() string { return "sync_runs" }

// IsTerminal returns true if the run is in a terminal state.
func (r *SyncRun) IsTerminal() bool {
	switch r.State {
	case RunStateSucceeded, RunStateFailed, RunStateCanceled:
		return true
	}
	return false
}
