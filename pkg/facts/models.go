// Package facts stores daily aggregate time facts: one subject's measured
// minute totals for one calendar day. Facts are point samples, not
// intervals. Corrections replace the whole fact (the old row is superseded,
// never patched field by field) so validation always sees a complete fact.
package facts

import "time"

// FactRecord is one daily time-entry fact. ExternalID is the derived
// identifier cache: a denormalized copy of the subject's payroll identifier,
// stamped by the validator at write time, never by ingestion directly.
type FactRecord struct {
	ID               string     `gorm:"primaryKey;column:id;type:varchar(36)"`
	Tenant           string     `gorm:"column:tenant;index:idx_fact_day,priority:1;not null"`
	SubjectID        string     `gorm:"column:subject_id;index:idx_fact_day,priority:2;not null"`
	ExternalID       string     `gorm:"column:external_id;index"`
	Day              time.Time  `gorm:"column:day;index:idx_fact_day,priority:3;not null"`
	WorkedMinutes    int        `gorm:"column:worked_minutes;not null"`
	RegularMinutes   int        `gorm:"column:regular_minutes;not null"`
	OT1Minutes       int        `gorm:"column:ot1_minutes;not null"`
	OT2Minutes       int        `gorm:"column:ot2_minutes;not null"`
	ScheduledMinutes *int       `gorm:"column:scheduled_minutes"`
	AbsenceCode      string     `gorm:"column:absence_code"`
	AbsenceMinutes   int        `gorm:"column:absence_minutes;not null"`
	Unbounded        bool       `gorm:"column:unbounded;not null"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	SupersededAt     *time.Time `gorm:"column:superseded_at;index"`
}

// TableName returns the GORM table name.
func (FactRecord) TableName() string { return "daily_facts" }

// Active reports whether the fact is the current version for its day.
func (f *FactRecord) Active() bool { return f.SupersededAt == nil }

// PeriodTotals are tenant-level minute sums over a day range, used by the
// reporting layer's rate metrics.
type PeriodTotals struct {
	WorkedMinutes    int64
	OvertimeMinutes  int64
	AbsenceMinutes   int64
	ScheduledMinutes int64
}
