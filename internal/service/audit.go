package service

import (
	"context"
	"fmt"
	"maps"
	"time"

	"rollouthq/internal/model"
	"rollouthq/internal/repository"
	v1 "rollouthq/pkg/api/v1"
	"rollouthq/pkg/constraints"
	"rollouthq/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// EventPublisher queues a webhook event for asynchronous dispatch.
// It must not block; it reports whether the event was accepted.
type EventPublisher interface {
	Publish(event v1.WebhookEvent) bool
}

// AuditContext describes one administrative mutation. Empty keys are treated as absent.
type AuditContext struct {
	Actor          Actor
	Action         constraints.AuditAction
	FeatureKey     string
	EnvironmentKey string
	Payload        map[string]any
}

// AuditRecorder persists audit entries and then hands them to webhook dispatch.
type AuditRecorder struct {
	audits    repository.AuditInterface
	publisher EventPublisher
	now       func() time.Time
}

func NewAuditRecorder(audits repository.AuditInterface, publisher EventPublisher) *AuditRecorder {
	return &AuditRecorder{
		audits:    audits,
		publisher: publisher,
		now:       time.Now,
	}
}

// Record writes the entry. Dispatch happens after the write and never affects the result.
func (r *AuditRecorder) Record(ctx context.Context, ac AuditContext) (*model.AuditLog, error) {
	payload := datatypes.JSONMap{}
	maps.Copy(payload, ac.Payload)

	entry := &model.AuditLog{
		ActorUserID:    ac.Actor.ID,
		Action:         string(ac.Action),
		FeatureKey:     optional(ac.FeatureKey),
		EnvironmentKey: optional(ac.EnvironmentKey),
		Payload:        payload,
		TraceID:        TraceID(ctx),
		CreatedAt:      r.now().UTC().Truncate(time.Millisecond),
	}
	if err := r.audits.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("create audit entry: %w", err)
	}

	if r.publisher != nil {
		r.publisher.Publish(BuildEvent(entry, ac))
	}
	logger.Debug("audit recorded", zap.String("id", entry.ID), zap.String("action", entry.Action))
	return entry, nil
}

func (r *AuditRecorder) List(ctx context.Context, filter repository.AuditFilter) ([]model.AuditLog, error) {
	return r.audits.List(ctx, filter)
}

// BuildEvent derives the outbound event from a persisted entry. Payload keys
// override featureKey and environmentKey on collision.
func BuildEvent(entry *model.AuditLog, ac AuditContext) v1.WebhookEvent {
	data := make(map[string]any, len(ac.Payload)+2)
	if ac.FeatureKey != "" {
		data["featureKey"] = ac.FeatureKey
	}
	if ac.EnvironmentKey != "" {
		data["environmentKey"] = ac.EnvironmentKey
	}
	maps.Copy(data, ac.Payload)

	return v1.WebhookEvent{
		ID:        entry.ID,
		Type:      entry.Action,
		CreatedAt: v1.FormatEventTime(entry.CreatedAt),
		Actor: v1.EventActor{
			ID:    ac.Actor.ID,
			Email: ac.Actor.Email,
			Role:  ac.Actor.Role,
		},
		Data: data,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
