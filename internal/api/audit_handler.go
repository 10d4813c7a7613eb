package api

import (
	"context"
	"net/http"

	"rollouthq/internal/dto/req"
	"rollouthq/internal/model"
	"rollouthq/internal/repository"

	"github.com/gin-gonic/gin"
)

type AuditLister interface {
	List(ctx context.Context, filter repository.AuditFilter) ([]model.AuditLog, error)
}

type AuditHandler struct {
	audits AuditLister
}

func NewAuditHandler(audits AuditLister) *AuditHandler {
	return &AuditHandler{audits: audits}
}

func (h *AuditHandler) List(c *gin.Context) {
	var r req.ListAuditsRequest
	if err := c.ShouldBindQuery(&r); err != nil {
		badRequest(c, err)
		return
	}

	entries, err := h.audits.List(c.Request.Context(), repository.AuditFilter{
		FeatureKey:     r.FeatureKey,
		EnvironmentKey: r.EnvironmentKey,
		Action:         r.Action,
		Limit:          r.Limit,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, entries)
}
