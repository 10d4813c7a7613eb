package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"rollouthq/internal/apperr"
	"rollouthq/internal/model"
	"rollouthq/internal/repository"
	v1 "rollouthq/pkg/api/v1"
	"rollouthq/pkg/constraints"
	"rollouthq/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TestEventType is the type of the event sent by SendTest. It is never audited.
const TestEventType = "WEBHOOK_TEST"

// Dispatcher is the part of the webhook dispatcher the admin surface needs.
type Dispatcher interface {
	DispatchTo(ctx context.Context, endpoint *model.WebhookEndpoint, event v1.WebhookEvent) error
	CancelEndpoint(endpointID string) int
}

// WebhookService administers webhook endpoints and exposes their delivery ledger.
type WebhookService struct {
	endpoints  repository.WebhookEndpointInterface
	deliveries repository.DeliveryInterface
	dispatcher Dispatcher
	now        func() time.Time
}

func NewWebhookService(endpoints repository.WebhookEndpointInterface, deliveries repository.DeliveryInterface, dispatcher Dispatcher) *WebhookService {
	return &WebhookService{
		endpoints:  endpoints,
		deliveries: deliveries,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

type CreateEndpointInput struct {
	Name       string
	URL        string
	Secret     string
	EventTypes []string
	// IsActive defaults to true when nil.
	IsActive *bool
}

func (s *WebhookService) CreateEndpoint(ctx context.Context, in CreateEndpointInput) (*model.WebhookEndpoint, error) {
	if err := validateName(in.Name); err != nil {
		return nil, err
	}
	if err := validateURL(in.URL); err != nil {
		return nil, err
	}
	if len(in.Secret) < 8 {
		return nil, apperr.Validationf("secret must have at least 8 characters")
	}

	types := make([]constraints.AuditAction, 0, len(in.EventTypes))
	seen := make(map[constraints.AuditAction]struct{}, len(in.EventTypes))
	for _, t := range in.EventTypes {
		a := constraints.AuditAction(t)
		if !a.Known() {
			return nil, apperr.Validationf("unknown event type %q", t)
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		types = append(types, a)
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	ep := &model.WebhookEndpoint{
		Name:       in.Name,
		URL:        in.URL,
		Secret:     in.Secret,
		EventTypes: types,
		IsActive:   active,
	}
	if err := s.endpoints.Create(ctx, ep); err != nil {
		return nil, fmt.Errorf("create webhook endpoint: %w", err)
	}
	// gorm skips false for a column with a default, so write it explicitly
	if !active {
		if _, err := s.endpoints.SetActive(ctx, ep.ID, false); err != nil {
			return nil, fmt.Errorf("deactivate webhook endpoint: %w", err)
		}
	}
	logger.Info("webhook endpoint created", zap.String("id", ep.ID), zap.String("url", ep.URL))
	return ep, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperr.Validationf("url must be an absolute http(s) URL")
	}
	return nil
}

func (s *WebhookService) ListEndpoints(ctx context.Context) ([]*model.WebhookEndpoint, error) {
	return s.endpoints.List(ctx)
}

func (s *WebhookService) getEndpoint(ctx context.Context, id string) (*model.WebhookEndpoint, error) {
	ep, err := s.endpoints.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get webhook endpoint %s: %w", id, err)
	}
	if ep == nil {
		return nil, apperr.NotFoundf("webhook endpoint %q not found", id)
	}
	return ep, nil
}

// SetActive toggles an endpoint. Deactivating it cancels its pending retries.
func (s *WebhookService) SetActive(ctx context.Context, id string, active bool) (*model.WebhookEndpoint, error) {
	ok, err := s.endpoints.SetActive(ctx, id, active)
	if err != nil {
		return nil, fmt.Errorf("update webhook endpoint: %w", err)
	}
	if !ok {
		return nil, apperr.NotFoundf("webhook endpoint %q not found", id)
	}
	if !active {
		s.cancelRetries(id)
	}
	return s.getEndpoint(ctx, id)
}

// DeleteEndpoint removes the endpoint and cancels its pending retries.
// Its delivery rows are kept.
func (s *WebhookService) DeleteEndpoint(ctx context.Context, id string) error {
	ok, err := s.endpoints.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete webhook endpoint: %w", err)
	}
	if !ok {
		return apperr.NotFoundf("webhook endpoint %q not found", id)
	}
	s.cancelRetries(id)
	return nil
}

func (s *WebhookService) cancelRetries(id string) {
	if s.dispatcher == nil {
		return
	}
	if n := s.dispatcher.CancelEndpoint(id); n > 0 {
		logger.Info("cancelled pending webhook retries", zap.String("endpoint_id", id), zap.Int("count", n))
	}
}

// SendTest delivers a synthetic event to one endpoint, active or not, and waits
// for the original attempt. The outcome is in the delivery ledger.
func (s *WebhookService) SendTest(ctx context.Context, id string, actor Actor) (v1.WebhookEvent, error) {
	ep, err := s.getEndpoint(ctx, id)
	if err != nil {
		return v1.WebhookEvent{}, err
	}
	event := v1.WebhookEvent{
		ID:        uuid.NewString(),
		Type:      TestEventType,
		CreatedAt: v1.FormatEventTime(s.now()),
		Actor:     v1.EventActor{ID: actor.ID, Email: actor.Email, Role: actor.Role},
		Data:      map[string]any{"message": "test event", "endpointId": ep.ID},
	}
	if err := s.dispatcher.DispatchTo(ctx, ep, event); err != nil {
		return v1.WebhookEvent{}, err
	}
	return event, nil
}

func (s *WebhookService) ListDeliveries(ctx context.Context, id string, limit int) ([]model.WebhookDelivery, error) {
	if _, err := s.getEndpoint(ctx, id); err != nil {
		return nil, err
	}
	return s.deliveries.ListByEndpoint(ctx, id, limit)
}
