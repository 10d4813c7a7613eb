package model

import "github.com/google/uuid"

func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// All lists every persisted model, in migration order.
func All() []any {
	return []any{
		&Feature{}, &Environment{}, &FlagAssignment{}, &UserOverride{},
		&AuditLog{}, &WebhookEndpoint{}, &WebhookDelivery{}, &OutboxTask{},
	}
}
