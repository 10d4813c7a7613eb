package repository

import (
	"context"

	"rollouthq/internal/model"

	"gorm.io/gorm"
)

// AuditFilter narrows audit listings. Zero values mean "any".
type AuditFilter struct {
	FeatureKey     string
	EnvironmentKey string
	Action         string
	Limit          int
}

const defaultAuditLimit = 100

// AuditInterface defines the interface for audit log persistence
type AuditInterface interface {
	Create(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, filter AuditFilter) ([]model.AuditLog, error)
	PingContext(ctx context.Context) error
}

// AuditRepository stores audit entries in the relational database.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, entry *model.AuditLog) error {
	return translate(r.db.WithContext(ctx).Create(entry).Error, "audit entry")
}

func (r *AuditRepository) List(ctx context.Context, filter AuditFilter) ([]model.AuditLog, error) {
	var entries []model.AuditLog
	query := r.db.WithContext(ctx)

	if filter.FeatureKey != "" {
		query = query.Where("feature_key = ?", filter.FeatureKey)
	}
	if filter.EnvironmentKey != "" {
		query = query.Where("environment_key = ?", filter.EnvironmentKey)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}

	err := query.Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

func (r *AuditRepository) PingContext(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
