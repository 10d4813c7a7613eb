package api

import (
	"context"
	"net/http"

	"rollouthq/internal/dto/req"
	"rollouthq/internal/dto/resp"
	"rollouthq/internal/model"
	"rollouthq/internal/repository"
	"rollouthq/internal/service"
	"rollouthq/pkg/constraints"

	"github.com/gin-gonic/gin"
)

type DirectoryProvider interface {
	CreateFeature(ctx context.Context, in service.CreateFeatureInput) (*model.Feature, error)
	ListFeatures(ctx context.Context, filter repository.FeatureFilter) ([]*model.Feature, error)
	UpdateFeature(ctx context.Context, key string, in service.UpdateFeatureInput) (*model.Feature, error)
	CreateEnvironment(ctx context.Context, in service.CreateEnvironmentInput) (*model.Environment, error)
	ListEnvironments(ctx context.Context) ([]*model.Environment, error)
	Health(ctx context.Context) error
}

type FeatureHandler struct {
	service DirectoryProvider
	audit   AuditSink
}

func NewFeatureHandler(service DirectoryProvider, audit AuditSink) *FeatureHandler {
	return &FeatureHandler{
		service: service,
		audit:   audit,
	}
}

func (h *FeatureHandler) CreateFeature(c *gin.Context) {
	var r req.CreateFeatureRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		badRequest(c, err)
		return
	}

	f, err := h.service.CreateFeature(c.Request.Context(), service.CreateFeatureInput{
		Key:         r.Key,
		Name:        r.Name,
		Description: r.Description,
	})
	if err != nil {
		fail(c, err)
		return
	}

	if !record(c, h.audit, service.AuditContext{
		Action:     constraints.ActionFeatureCreate,
		FeatureKey: f.Key,
		Payload:    map[string]any{"name": f.Name, "description": f.Description},
	}) {
		return
	}
	ok(c, http.StatusCreated, f)
}

func (h *FeatureHandler) ListFeatures(c *gin.Context) {
	var r req.ListFeaturesRequest
	if err := c.ShouldBindQuery(&r); err != nil {
		badRequest(c, err)
		return
	}

	features, err := h.service.ListFeatures(c.Request.Context(), repository.FeatureFilter{
		Search:          r.Search,
		IncludeArchived: r.IncludeArchived,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, features)
}

func (h *FeatureHandler) UpdateFeature(c *gin.Context) {
	var uri req.FeatureKeyRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}
	var r req.UpdateFeatureRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		badRequest(c, err)
		return
	}

	f, err := h.service.UpdateFeature(c.Request.Context(), uri.Key, service.UpdateFeatureInput{
		Name:        r.Name,
		Description: r.Description,
		Archived:    r.Archived,
	})
	if err != nil {
		fail(c, err)
		return
	}

	changes := map[string]any{}
	if r.Name != nil {
		changes["name"] = *r.Name
	}
	if r.Description != nil {
		changes["description"] = *r.Description
	}
	if r.Archived != nil {
		changes["archived"] = *r.Archived
	}
	if !record(c, h.audit, service.AuditContext{
		Action:     constraints.ActionFeatureUpdate,
		FeatureKey: f.Key,
		Payload:    changes,
	}) {
		return
	}
	ok(c, http.StatusOK, f)
}

func (h *FeatureHandler) CreateEnvironment(c *gin.Context) {
	var r req.CreateEnvironmentRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		badRequest(c, err)
		return
	}

	env, err := h.service.CreateEnvironment(c.Request.Context(), service.CreateEnvironmentInput{
		Key:  r.Key,
		Name: r.Name,
	})
	if err != nil {
		fail(c, err)
		return
	}

	if !record(c, h.audit, service.AuditContext{
		Action:         constraints.ActionEnvironmentCreate,
		EnvironmentKey: env.Key,
		Payload:        map[string]any{"name": env.Name},
	}) {
		return
	}
	ok(c, http.StatusCreated, env)
}

func (h *FeatureHandler) ListEnvironments(c *gin.Context) {
	envs, err := h.service.ListEnvironments(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, envs)
}

func (h *FeatureHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, resp.HealthResponse{Status: "ok"})
}

// ReadyCheck reports whether the database and, if enabled, etcd respond.
func (h *FeatureHandler) ReadyCheck(c *gin.Context) {
	if err := h.service.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, resp.HealthResponse{Status: "unhealthy", Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp.HealthResponse{Status: "ok"})
}
