package repository

import (
	"context"
	"errors"

	"rollouthq/internal/model"

	"gorm.io/gorm"
)

// FeatureFilter narrows List results. Search matches key or name substrings.
type FeatureFilter struct {
	Search          string
	IncludeArchived bool
}

// FeatureInterface defines the persistence port for features.
// GetByKey returns (nil, nil) when no feature has the key.
type FeatureInterface interface {
	GetByKey(ctx context.Context, key string) (*model.Feature, error)
	List(ctx context.Context, filter FeatureFilter) ([]*model.Feature, error)
	Create(ctx context.Context, feature *model.Feature) error
	Save(ctx context.Context, feature *model.Feature) error
}

// EnvironmentInterface defines the persistence port for environments.
// GetByKey returns (nil, nil) when no environment has the key.
type EnvironmentInterface interface {
	GetByKey(ctx context.Context, key string) (*model.Environment, error)
	List(ctx context.Context) ([]*model.Environment, error)
	Create(ctx context.Context, env *model.Environment) error
}

type FeatureRepository struct {
	db *gorm.DB
}

func NewFeatureRepository(db *gorm.DB) *FeatureRepository {
	return &FeatureRepository{db: db}
}

func (r *FeatureRepository) GetByKey(ctx context.Context, key string) (*model.Feature, error) {
	var feature model.Feature
	if err := r.db.WithContext(ctx).Where("`key` = ?", key).First(&feature).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &feature, nil
}

func (r *FeatureRepository) List(ctx context.Context, filter FeatureFilter) ([]*model.Feature, error) {
	var features []*model.Feature
	query := r.db.WithContext(ctx)

	if !filter.IncludeArchived {
		query = query.Where("archived = ?", false)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("`key` LIKE ? OR name LIKE ?", like, like)
	}

	err := query.Order("created_at DESC").Find(&features).Error
	return features, err
}

func (r *FeatureRepository) Create(ctx context.Context, feature *model.Feature) error {
	return translate(r.db.WithContext(ctx).Create(feature).Error, "feature")
}

func (r *FeatureRepository) Save(ctx context.Context, feature *model.Feature) error {
	return translate(r.db.WithContext(ctx).Save(feature).Error, "feature")
}

type EnvironmentRepository struct {
	db *gorm.DB
}

func NewEnvironmentRepository(db *gorm.DB) *EnvironmentRepository {
	return &EnvironmentRepository{db: db}
}

func (r *EnvironmentRepository) GetByKey(ctx context.Context, key string) (*model.Environment, error) {
	var env model.Environment
	if err := r.db.WithContext(ctx).Where("`key` = ?", key).First(&env).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &env, nil
}

func (r *EnvironmentRepository) List(ctx context.Context) ([]*model.Environment, error) {
	var envs []*model.Environment
	err := r.db.WithContext(ctx).Order("`key` ASC").Find(&envs).Error
	return envs, err
}

func (r *EnvironmentRepository) Create(ctx context.Context, env *model.Environment) error {
	return translate(r.db.WithContext(ctx).Create(env).Error, "environment")
}
