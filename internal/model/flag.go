package model

import (
	"time"

	"rollouthq/pkg/constraints"

	"gorm.io/gorm"
)

// FlagAssignment is the environment-wide state of one feature. One row per (feature, environment).
type FlagAssignment struct {
	ID            string                `json:"id" gorm:"primaryKey;size:36"`
	FeatureID     string                `json:"featureId" gorm:"size:36;not null;uniqueIndex:idx_assignment_feature_env,priority:1"`
	EnvironmentID string                `json:"environmentId" gorm:"size:36;not null;uniqueIndex:idx_assignment_feature_env,priority:2"`
	State         constraints.FlagState `json:"state" gorm:"size:16;not null"`
	RolloutPct    *int                  `json:"rolloutPct"`
	Version       int                   `json:"version" gorm:"not null;default:1"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

func (a *FlagAssignment) BeforeCreate(*gorm.DB) error {
	newID(&a.ID)
	return nil
}

// UserOverride pins a feature ON or OFF for one user in one environment.
type UserOverride struct {
	ID            string                `json:"id" gorm:"primaryKey;size:36"`
	FeatureID     string                `json:"featureId" gorm:"size:36;not null;uniqueIndex:idx_override_feature_env_user,priority:1"`
	EnvironmentID string                `json:"environmentId" gorm:"size:36;not null;uniqueIndex:idx_override_feature_env_user,priority:2"`
	UserID        string                `json:"userId" gorm:"size:191;not null;uniqueIndex:idx_override_feature_env_user,priority:3"`
	State         constraints.FlagState `json:"state" gorm:"size:16;not null"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

func (o *UserOverride) BeforeCreate(*gorm.DB) error {
	newID(&o.ID)
	return nil
}
