// Package directory holds the subject reference data the engine validates
// against: which subjects exist, which tenant owns them, and their natural
// external identifier in the payroll system. The engine treats this data as
// read-mostly and never mutates subject identity on behalf of a write.
package directory

import "time"

// Subject kinds. Employees carry assignment/schedule series; metric subjects
// carry target/threshold configuration series.
const (
	KindEmployee = "employee"
	KindMetric   = "metric"
)

// SubjectRecord is one directory entry. SubjectID is globally unique;
// (tenant, external_id) is unique within a tenant and is the upsert key for
// payroll-sourced subjects.
type SubjectRecord struct {
	SubjectID   string    `gorm:"primaryKey;column:subject_id;type:varchar(36)"`
	Tenant      string    `gorm:"column:tenant;index:idx_subject_tenant;uniqueIndex:idx_subject_external,priority:1;not null"`
	ExternalID  string    `gorm:"column:external_id;uniqueIndex:idx_subject_external,priority:2"`
	Kind        string    `gorm:"column:kind;default:employee;not null"`
	DisplayName string    `gorm:"column:display_name"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (SubjectRecord) TableName() string { return "subjects" }

// ResolvedSubject is the directory's answer to a resolve call: the subject's
// true tenant and its current external identifier.
type ResolvedSubject struct {
	SubjectID  string
	Tenant     string
	ExternalID string
	Kind       string
}
