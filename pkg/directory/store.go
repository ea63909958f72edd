package directory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store provides database operations for subject records.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the subjects table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&SubjectRecord{}); err != nil {
		return fmt.Errorf("auto-migrate subjects: %w", err)
	}
	return nil
}

// Resolve implements Resolver against the database.
func (s *Store) Resolve(subjectID string) (*ResolvedSubject, error) {
	var record SubjectRecord
	if err := s.db.Where("subject_id = ?", subjectID).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve subject: %w", err)
	}
	return &ResolvedSubject{
		SubjectID:  record.SubjectID,
		Tenant:     record.Tenant,
		ExternalID: record.ExternalID,
		Kind:       record.Kind,
	}, nil
}

// Get retrieves a subject by ID. Returns nil, nil if no record exists.
func (s *Store) Get(subjectID string) (*SubjectRecord, error) {
	var record SubjectRecord
	if err := s.db.Where("subject_id = ?", subjectID).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get subject: %w", err)
	}
	return &record, nil
}

// FindByExternalID returns the subject carrying the given tenant-scoped
// external identifier. Returns nil, nil if no record exists.
func (s *Store) FindByExternalID(tenant, externalID string) (*SubjectRecord, error) {
	var record SubjectRecord
	err := s.db.Where("tenant = ? AND external_id = ?", tenant, externalID).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("find subject by external id: %w", err)
	}
	return &record, nil
}

// Upsert creates or updates a subject keyed by (tenant, external_id).
// Ingestion uses this when syncing the employee roster; identity fields are
// refreshed in place, the subject ID is stable across upserts.
func (s *Store) Upsert(record *SubjectRecord) (*SubjectRecord, error) {
	if record.Kind == "" {
		record.Kind = KindEmployee
	}

	var result *SubjectRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing SubjectRecord
		err := tx.Where("tenant = ? AND external_id = ?", record.Tenant, record.ExternalID).
			First(&existing).Error
		if err == nil {
			updates := map[string]any{
				"kind":         record.Kind,
				"display_name": record.DisplayName,
				"updated_at":   time.Now(),
			}
			if err := tx.Model(&SubjectRecord{}).
				Where("subject_id = ?", existing.SubjectID).
				Updates(updates).Error; err != nil {
				return fmt.Errorf("update subject: %w", err)
			}
			existing.Kind = record.Kind
			existing.DisplayName = record.DisplayName
			result = &existing
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("lookup subject: %w", err)
		}

		if record.SubjectID == "" {
			record.SubjectID = uuid.New().String()
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("create subject: %w", err)
		}
		result = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// List returns paginated subjects for a tenant, ordered by created_at, with
// an RFC3339Nano created_at page token.
func (s *Store) List(tenant string, pageSize int, pageToken string) ([]SubjectRecord, string, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	query := s.db.Where("tenant = ?", tenant).Order("created_at ASC").Limit(pageSize + 1)
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("created_at > ?", t)
	}

	var records []SubjectRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, "", fmt.Errorf("list subjects: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		records = records[:pageSize]
		nextToken = records[pageSize-1].CreatedAt.Format(time.RFC3339Nano)
	}
	return records, nextToken, nil
}
