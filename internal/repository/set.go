package repository

import (
	"gorm.io/gorm"
)

// Set groups every relational port so the server can swap the gorm-backed
// implementations for the in-memory ones.
type Set struct {
	Features     FeatureInterface
	Environments EnvironmentInterface
	Assignments  AssignmentInterface
	Overrides    OverrideInterface
	Audits       AuditInterface
	Endpoints    WebhookEndpointInterface
	Deliveries   DeliveryInterface
	Outbox       OutboxInterface
}

func NewGormSet(db *gorm.DB) Set {
	return Set{
		Features:     NewFeatureRepository(db),
		Environments: NewEnvironmentRepository(db),
		Assignments:  NewAssignmentRepository(db),
		Overrides:    NewOverrideRepository(db),
		Audits:       NewAuditRepository(db),
		Endpoints:    NewWebhookEndpointRepository(db),
		Deliveries:   NewDeliveryRepository(db),
		Outbox:       NewOutboxRepository(db),
	}
}
