package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/natep/cinesearch/internal/domain"
	"gorm.io/gorm"
)

// QueryLogRepository handles the write-only search audit trail.
type QueryLogRepository struct {
	db *gorm.DB
}

// NewQueryLogRepository creates a new QueryLogRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *QueryLogRepository: repository instance bound to db.
func NewQueryLogRepository(db *gorm.DB) *QueryLogRepository {
	return &QueryLogRepository{db: db}
}

// Create appends a query log record. Callers treat failures as telemetry
// loss, never as a request failure.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - record: log record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *QueryLogRepository) Create(ctx context.Context, record *domain.QueryLog) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(record).Error
}
