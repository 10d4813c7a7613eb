package api

import (
	"context"
	"net/http"

	"rollouthq/internal/dto/req"
	"rollouthq/internal/dto/resp"
	"rollouthq/internal/model"
	"rollouthq/internal/service"
	v1 "rollouthq/pkg/api/v1"
	"rollouthq/pkg/constraints"

	"github.com/gin-gonic/gin"
)

type WebhookProvider interface {
	CreateEndpoint(ctx context.Context, in service.CreateEndpointInput) (*model.WebhookEndpoint, error)
	ListEndpoints(ctx context.Context) ([]*model.WebhookEndpoint, error)
	SetActive(ctx context.Context, id string, active bool) (*model.WebhookEndpoint, error)
	DeleteEndpoint(ctx context.Context, id string) error
	SendTest(ctx context.Context, id string, actor service.Actor) (v1.WebhookEvent, error)
	ListDeliveries(ctx context.Context, id string, limit int) ([]model.WebhookDelivery, error)
}

type WebhookHandler struct {
	service WebhookProvider
	audit   AuditSink
}

func NewWebhookHandler(service WebhookProvider, audit AuditSink) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		audit:   audit,
	}
}

func (h *WebhookHandler) Create(c *gin.Context) {
	var r req.CreateWebhookRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		badRequest(c, err)
		return
	}

	ep, err := h.service.CreateEndpoint(c.Request.Context(), service.CreateEndpointInput{
		Name:       r.Name,
		URL:        r.URL,
		Secret:     r.Secret,
		EventTypes: r.EventTypes,
		IsActive:   r.IsActive,
	})
	if err != nil {
		fail(c, err)
		return
	}

	// the secret stays out of the audit trail
	if !record(c, h.audit, service.AuditContext{
		Action: constraints.ActionWebhookCreate,
		Payload: map[string]any{
			"endpointId": ep.ID,
			"name":       ep.Name,
			"url":        ep.URL,
			"eventTypes": ep.EventTypes,
			"isActive":   ep.IsActive,
		},
	}) {
		return
	}
	ok(c, http.StatusCreated, ep)
}

func (h *WebhookHandler) List(c *gin.Context) {
	endpoints, err := h.service.ListEndpoints(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, endpoints)
}

func (h *WebhookHandler) Update(c *gin.Context) {
	var uri req.WebhookIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}
	var r req.UpdateWebhookRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		badRequest(c, err)
		return
	}

	ep, err := h.service.SetActive(c.Request.Context(), uri.ID, *r.IsActive)
	if err != nil {
		fail(c, err)
		return
	}

	if !record(c, h.audit, service.AuditContext{
		Action:  constraints.ActionWebhookUpdate,
		Payload: map[string]any{"endpointId": ep.ID, "isActive": ep.IsActive},
	}) {
		return
	}
	ok(c, http.StatusOK, ep)
}

func (h *WebhookHandler) Delete(c *gin.Context) {
	var uri req.WebhookIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.service.DeleteEndpoint(c.Request.Context(), uri.ID); err != nil {
		fail(c, err)
		return
	}

	if !record(c, h.audit, service.AuditContext{
		Action:  constraints.ActionWebhookDelete,
		Payload: map[string]any{"endpointId": uri.ID},
	}) {
		return
	}
	c.Status(http.StatusNoContent)
}

// Test sends a synthetic event to one endpoint. It is not audited.
func (h *WebhookHandler) Test(c *gin.Context) {
	var r req.TestWebhookRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	event, err := h.service.SendTest(ctx, r.EndpointID, service.ActorOrSystem(ctx))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, resp.TestWebhookResponse{EventID: event.ID, Type: event.Type})
}

func (h *WebhookHandler) Deliveries(c *gin.Context) {
	var uri req.WebhookIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}
	var r req.ListDeliveriesRequest
	if err := c.ShouldBindQuery(&r); err != nil {
		badRequest(c, err)
		return
	}

	deliveries, err := h.service.ListDeliveries(c.Request.Context(), uri.ID, r.Limit)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, deliveries)
}
