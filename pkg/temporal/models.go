// Package temporal stores time-varying facts about subjects as sequences of
// non-overlapping half-open intervals scoped to a tenant. Records are
// append-only: once written they never change except for closing an
// open-ended interval when a successor becomes effective.
package temporal

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hrsignal/temporal-engine/pkg/interval"
	"github.com/hrsignal/temporal-engine/pkg/scope"
)

// JSONMap is a custom GORM type for map[string]any stored as JSON text.
type JSONMap map[string]any

// Scan implements the sql.Scanner interface for JSONMap.
func (m *JSONMap) Scan(value any) error {
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
		return fmt.Errorf("unsupported type for JSONMap: %T", value)
	}
	return json.Unmarshal(bytes, m)
}

// Value implements the driver.Valuer interface for JSONMap.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// SeriesKey identifies one interval series: all records sharing a tenant,
// subject, and canonical scope fingerprint.
type SeriesKey struct {
	Tenant      string
	SubjectID   string
	Fingerprint string
}

// NewSeriesKey builds the series key for a subject and scope.
func NewSeriesKey(tenant, subjectID string, sc scope.Scope) SeriesKey {
	return SeriesKey{Tenant: tenant, SubjectID: subjectID, Fingerprint: sc.Fingerprint()}
}

// String renders the key for logs and error messages.
func (k SeriesKey) String() string {
	return k.Tenant + "/" + k.SubjectID + "/" + shortFingerprint(k.Fingerprint)
}

func shortFingerprint(fpr string) string {
	if len(fpr) > 12 {
		return fpr[:12]
	}
	return fpr
}

// Record is one versioned fact: an opaque payload effective over a half-open
// interval within a series.
type Record struct {
	ID               string     `gorm:"primaryKey;column:id;type:varchar(36)"`
	Tenant           string     `gorm:"column:tenant;index:idx_record_series,priority:1;index:idx_record_tenant_scope,priority:1;not null"`
	SubjectID        string     `gorm:"column:subject_id;index:idx_record_series,priority:2;not null"`
	ScopeFingerprint string     `gorm:"column:scope_fingerprint;index:idx_record_series,priority:3;index:idx_record_tenant_scope,priority:2;not null"`
	ScopeDims        JSONMap    `gorm:"column:scope_dims;type:text"`
	Payload          JSONMap    `gorm:"column:payload;type:text"`
	EffectiveStart   time.Time  `gorm:"column:effective_start;index:idx_record_series,priority:4;not null"`
	EffectiveEnd     *time.Time `gorm:"column:effective_end"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (Record) TableName() string { return "versioned_records" }

// Interval returns the record's effective interval.
func (r *Record) Interval() interval.Interval {
	return interval.Interval{Start: r.EffectiveStart, End: r.EffectiveEnd}
}

// Key returns the record's series key.
func (r *Record) Key() SeriesKey {
	return SeriesKey{Tenant: r.Tenant, SubjectID: r.SubjectID, Fingerprint: r.ScopeFingerprint}
}

// Open reports whether the record's interval is open-ended.
func (r *Record) Open() bool { return r.EffectiveEnd == nil }

// NewRecord is the input for an insert. Scope is canonicalized by the store;
// EffectiveEnd may be nil for an open-ended record.
type NewRecord struct {
	Tenant         string
	SubjectID      string
	Scope          scope.Scope
	Payload        map[string]any
	EffectiveStart time.Time
	EffectiveEnd   *time.Time
}

// Key returns the series key the new record will belong to.
func (n NewRecord) Key() SeriesKey {
	return NewSeriesKey(n.Tenant, n.SubjectID, n.Scope)
}
