// Package audit keeps an immutable trail of engine writes: record creation,
// closing, supersession, fact replacement, and sync run outcomes. History in
// the temporal store is append-only for audit; this package records who
// wrote what and when.
package audit

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Event types.
const (
	EventRecordCreated    = "record.created"
	EventRecordClosed     = "record.closed"
	EventRecordSuperseded = "record.superseded"
	EventFactReplaced     = "fact.replaced"
	EventSyncCompleted    = "sync.completed"
	EventSyncFailed       = "sync.failed"
)

// JSONDetails is a custom GORM type for map[string]any stored as JSON text.
type JSONDetails map[string]any

// Scan implements the sql.Scanner interface for JSONDetails.
func (m *JSONDetails) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONDetails: %T", value)
	}
	return json.Unmarshal(bytes, m)
}

// Value implements the driver.Valuer interface for JSONDetails.
func (m JSONDetails) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// EventRecord is an immutable audit log entry. ExternalID carries the
// subject's payroll identifier as resolved at write time, for correlation
// with vendor-side records.
type EventRecord struct {
	ID         string      `gorm:"primaryKey;column:id;type:varchar(36)"`
	Tenant     string      `gorm:"column:tenant;index:idx_audit_tenant_time,priority:1;not null"`
	EventType  string      `gorm:"column:event_type;index:idx_audit_type_time,priority:1;not null"`
	SubjectID  string      `gorm:"column:subject_id;index:idx_audit_subject_time,priority:1"`
	ExternalID string      `gorm:"column:external_id"`
	RecordID   string      `gorm:"column:record_id"`
	Details    JSONDetails `gorm:"column:details;type:text"`
	CreatedAt  time.Time   `gorm:"column:created_at;index:idx_audit_tenant_time,priority:2;index:idx_audit_type_time,priority:2;index:idx_audit_subject_time,priority:2;autoCreateTime"`
}

// TableName returns the GORM table name.
func (EventRecord) TableName() string { return "audit_events" }
