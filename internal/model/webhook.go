package model

import (
	"slices"
	"time"

	"rollouthq/pkg/constraints"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type WebhookEndpoint struct {
	ID     string `json:"id" gorm:"primaryKey;size:36"`
	Name   string `json:"name" gorm:"size:255;not null"`
	URL    string `json:"url" gorm:"size:2048;not null"`
	Secret string `json:"-" gorm:"size:255;not null"`
	// EventTypes restricts delivery to the listed actions. Empty means all actions.
	EventTypes datatypes.JSONSlice[constraints.AuditAction] `json:"eventTypes"`
	IsActive   bool                                         `json:"isActive" gorm:"not null;default:true;index"`
	CreatedAt  time.Time                                    `json:"createdAt"`
	UpdatedAt  time.Time                                    `json:"updatedAt"`
}

func (w *WebhookEndpoint) BeforeCreate(*gorm.DB) error {
	newID(&w.ID)
	return nil
}

// Subscribes reports whether the endpoint wants events of the given type.
func (w *WebhookEndpoint) Subscribes(eventType string) bool {
	if len(w.EventTypes) == 0 {
		return true
	}
	return slices.Contains(w.EventTypes, constraints.AuditAction(eventType))
}

// WebhookDelivery records one delivery attempt. Attempt 0 is the original send.
type WebhookDelivery struct {
	ID           string                     `json:"id" gorm:"primaryKey;size:36"`
	EndpointID   string                     `json:"endpointId" gorm:"size:36;not null;index"`
	EventID      string                     `json:"eventId" gorm:"size:64;index"`
	Action       string                     `json:"action" gorm:"size:64"`
	Status       constraints.DeliveryStatus `json:"status" gorm:"size:16;not null"`
	ResponseCode *int                       `json:"responseCode"`
	Payload      datatypes.JSON             `json:"payload"`
	Error        *string                    `json:"error" gorm:"type:text"`
	Attempt      int                        `json:"attempt" gorm:"not null;default:0"`
	CreatedAt    time.Time                  `json:"createdAt" gorm:"index"`
}

func (d *WebhookDelivery) BeforeCreate(*gorm.DB) error {
	newID(&d.ID)
	return nil
}
