package facts

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store provides database operations for daily facts. Replacement keeps the
// full history: the prior version is marked superseded, never deleted.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the daily_facts table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&FactRecord{}); err != nil {
		return fmt.Errorf("auto-migrate daily_facts: %w", err)
	}
	return nil
}

// Replace installs fact as the active version for its (tenant, subject, day)
// in one transaction, superseding any prior active version. Fresh writes and
// corrections take the same path.
func (s *Store) Replace(fact *FactRecord) (*FactRecord, error) {
	if fact.ID == "" {
		fact.ID = uuid.New().String()
	}
	fact.Day = dayOnly(fact.Day)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		err := tx.Model(&FactRecord{}).
			Where("tenant = ? AND subject_id = ? AND day = ? AND superseded_at IS NULL",
				fact.Tenant, fact.SubjectID, fact.Day).
			Update("superseded_at", now).Error
		if err != nil {
			return fmt.Errorf("supersede prior fact: %w", err)
		}
		if err := tx.Create(fact).Error; err != nil {
			return fmt.Errorf("create fact: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fact, nil
}

// GetActive returns the active fact for a subject and day, or nil when none
// has been written.
func (s *Store) GetActive(tenant, subjectID string, day time.Time) (*FactRecord, error) {
	var record FactRecord
	err := s.db.
		Where("tenant = ? AND subject_id = ? AND day = ? AND superseded_at IS NULL",
			tenant, subjectID, dayOnly(day)).
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get fact: %w", err)
	}
	return &record, nil
}

// History returns every version written for a subject and day, newest first.
func (s *Store) History(tenant, subjectID string, day time.Time) ([]FactRecord, error) {
	var records []FactRecord
	err := s.db.
		Where("tenant = ? AND subject_id = ? AND day = ?", tenant, subjectID, dayOnly(day)).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("fact history: %w", err)
	}
	return records, nil
}

// ListRange returns active facts for a subject over [start, end), ordered by
// day ascending.
func (s *Store) ListRange(tenant, subjectID string, start, end time.Time) ([]FactRecord, error) {
	var records []FactRecord
	err := s.db.
		Where("tenant = ? AND subject_id = ? AND day >= ? AND day < ? AND superseded_at IS NULL",
			tenant, subjectID, dayOnly(start), dayOnly(end)).
		Order("day ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	return records, nil
}

// TotalsForPeriod sums active facts for a tenant over [start, end).
// Scheduled minutes only include facts that carry a schedule, mirroring the
// source reporting queries which exclude unscheduled days from absenteeism.
func (s *Store) TotalsForPeriod(tenant string, start, end time.Time) (*PeriodTotals, error) {
	type row struct {
		Worked    int64
		Overtime  int64
		Absent    int64
		Scheduled int64
	}
	var r row
	err := s.db.Model(&FactRecord{}).
		Select("COALESCE(SUM(worked_minutes),0) AS worked,"+
			" COALESCE(SUM(ot1_minutes + ot2_minutes),0) AS overtime,"+
			" COALESCE(SUM(CASE WHEN scheduled_minutes IS NOT NULL AND scheduled_minutes > 0 THEN absence_minutes ELSE 0 END),0) AS absent,"+
			" COALESCE(SUM(CASE WHEN scheduled_minutes IS NOT NULL AND scheduled_minutes > 0 THEN scheduled_minutes ELSE 0 END),0) AS scheduled").
		Where("tenant = ? AND day >= ? AND day < ? AND superseded_at IS NULL",
			tenant, dayOnly(start), dayOnly(end)).
		Scan(&r).Error
	if err != nil {
		return nil, fmt.Errorf("period totals: %w", err)
	}
	return &PeriodTotals{
		WorkedMinutes:    r.Worked,
		OvertimeMinutes:  r.Overtime,
		AbsenceMinutes:   r.Absent,
		ScheduledMinutes: r.Scheduled,
	}, nil
}

// dayOnly truncates a timestamp to its UTC calendar day.
func dayOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
