package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog is append-only: rows are inserted and never updated or deleted.
type AuditLog struct {
	ID             string            `json:"id" gorm:"primaryKey;size:36"`
	ActorUserID    string            `json:"actorUserId" gorm:"size:64;index"`
	Action         string            `json:"action" gorm:"size:64;index"`
	FeatureKey     *string           `json:"featureKey" gorm:"size:128;index"`
	EnvironmentKey *string           `json:"environmentKey" gorm:"size:64"`
	Payload        datatypes.JSONMap `json:"payload"`
	TraceID        string            `json:"traceId,omitempty" gorm:"size:64"`
	CreatedAt      time.Time         `json:"createdAt" gorm:"index"`
}

func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	newID(&a.ID)
	return nil
}
