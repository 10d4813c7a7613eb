package repository

import (
	"context"
	"errors"

	"rollouthq/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssignmentInterface is the port for FlagAssignment rows. Get returns (nil, nil) when absent.
type AssignmentInterface interface {
	Get(ctx context.Context, featureID, environmentID string) (*model.FlagAssignment, error)
	Create(ctx context.Context, assignment *model.FlagAssignment) error
	Save(ctx context.Context, assignment *model.FlagAssignment) error
	ListAll(ctx context.Context) ([]*model.FlagAssignment, error)
}

// OverrideInterface is the port for UserOverride rows. Get returns (nil, nil) when absent,
// Delete reports whether a row was removed.
type OverrideInterface interface {
	Get(ctx context.Context, featureID, environmentID, userID string) (*model.UserOverride, error)
	Upsert(ctx context.Context, override *model.UserOverride) (*model.UserOverride, error)
	Delete(ctx context.Context, featureID, environmentID, userID string) (bool, error)
}

type AssignmentRepository struct {
	db *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) Get(ctx context.Context, featureID, environmentID string) (*model.FlagAssignment, error) {
	var a model.FlagAssignment
	err := r.db.WithContext(ctx).
		Where("feature_id = ? AND environment_id = ?", featureID, environmentID).
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *AssignmentRepository) Create(ctx context.Context, assignment *model.FlagAssignment) error {
	return translate(r.db.WithContext(ctx).Create(assignment).Error, "flag assignment")
}

func (r *AssignmentRepository) Save(ctx context.Context, assignment *model.FlagAssignment) error {
	return translate(r.db.WithContext(ctx).Save(assignment).Error, "flag assignment")
}

func (r *AssignmentRepository) ListAll(ctx context.Context) ([]*model.FlagAssignment, error) {
	var list []*model.FlagAssignment
	err := r.db.WithContext(ctx).Order("updated_at DESC").Find(&list).Error
	return list, err
}

type OverrideRepository struct {
	db *gorm.DB
}

func NewOverrideRepository(db *gorm.DB) *OverrideRepository {
	return &OverrideRepository{db: db}
}

func (r *OverrideRepository) Get(ctx context.Context, featureID, environmentID, userID string) (*model.UserOverride, error) {
	var o model.UserOverride
	err := r.db.WithContext(ctx).
		Where("feature_id = ? AND environment_id = ? AND user_id = ?", featureID, environmentID, userID).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// Upsert inserts the override or replaces the state of the existing
// (feature, environment, user) row, then reads back the stored row.
func (r *OverrideRepository) Upsert(ctx context.Context, override *model.UserOverride) (*model.UserOverride, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "feature_id"}, {Name: "environment_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "updated_at"}),
	}).Create(override).Error
	if err != nil {
		return nil, translate(err, "user override")
	}
	return r.Get(ctx, override.FeatureID, override.EnvironmentID, override.UserID)
}

func (r *OverrideRepository) Delete(ctx context.Context, featureID, environmentID, userID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("feature_id = ? AND environment_id = ? AND user_id = ?", featureID, environmentID, userID).
		Delete(&model.UserOverride{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
