package metrics

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HistoryStore persists computed metric snapshots.
type HistoryStore struct {
	db *gorm.DB
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(db *gorm.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// AutoMigrate creates or updates the metrics_history table.
func (s *HistoryStore) AutoMigrate() error {
	return s.db.AutoMigrate(&HistoryRecord{})
}

// Upsert writes a snapshot, overwriting any prior value for the same
// (tenant, metric, period).
func (s *HistoryStore) Upsert(snap Snapshot) (*HistoryRecord, error) {
	rec := &HistoryRecord{
		ID:          uuid.New().String(),
		Tenant:      snap.Tenant,
		Metric:      snap.Metric,
		PeriodStart: snap.PeriodStart,
		PeriodEnd:   snap.PeriodEnd,
		Value:       snap.Value,
		Status:      snap.Status,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "tenant"}, {Name: "metric"},
			{Name: "period_start"}, {Name: "period_end"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"value", "status", "computed_at"}),
	}).Create(rec).Error
	if err != nil {
		return nil, fmt.Errorf("upsert metric snapshot: %w", err)
	}
	return rec, nil
}

// List returns a metric's persisted history for a tenant, oldest period
// first. metric may be empty to return all metrics.
func (s *HistoryStore) List(tenant, metric string, limit int) ([]HistoryRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := s.db.Where("tenant = ?", tenant)
	if metric != "" {
		q = q.Where("metric = ?", metric)
	}
	var records []HistoryRecord
	if err := q.Order("period_start ASC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list metric history: %w", err)
	}
	return records, nil
}

// DeleteOlderThan removes snapshots whose period ended before the cutoff.
func (s *HistoryStore) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := s.db.Where("period_end < ?", cutoff).Delete(&HistoryRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete metric history: %w", result.Error)
	}
	return result.RowsAffected, nil
}
