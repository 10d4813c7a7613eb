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

type Evaluator interface {
	Evaluate(ctx context.Context, featureKey, environmentKey, userID string) (v1.EvaluationResult, error)
}

type FlagWriter interface {
	SetFlagState(ctx context.Context, featureKey, environmentKey string, state constraints.FlagState, rolloutPct *int) (*model.FlagAssignment, error)
}

type OverrideWriter interface {
	UpsertOverride(ctx context.Context, featureKey, environmentKey, userID string, state constraints.FlagState) (*model.UserOverride, error)
	DeleteOverride(ctx context.Context, featureKey, environmentKey, userID string) error
}

// AuditSink records administrative mutations.
type AuditSink interface {
	Record(ctx context.Context, ac service.AuditContext) (*model.AuditLog, error)
}

type FlagHandler struct {
	engine    Evaluator
	writer    FlagWriter
	overrides OverrideWriter
	audit     AuditSink
}

func NewFlagHandler(engine Evaluator, writer FlagWriter, overrides OverrideWriter, audit AuditSink) *FlagHandler {
	return &FlagHandler{
		engine:    engine,
		writer:    writer,
		overrides: overrides,
		audit:     audit,
	}
}

func (h *FlagHandler) Evaluate(c *gin.Context) {
	var r req.EvaluateRequest
	if err := c.ShouldBindQuery(&r); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.engine.Evaluate(c.Request.Context(), r.FeatureKey, r.Env, r.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, result)
}

func (h *FlagHandler) SetState(c *gin.Context) {
	featureKey := c.Param("featureKey")
	var r req.SetFlagStateRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	state := constraints.FlagState(r.State)
	assignment, err := h.writer.SetFlagState(ctx, featureKey, r.EnvironmentKey, state, r.RolloutPct)
	if err != nil {
		fail(c, err)
		return
	}

	if !record(c, h.audit, service.AuditContext{
		Action:         constraints.ActionFlagSetState,
		FeatureKey:     featureKey,
		EnvironmentKey: r.EnvironmentKey,
		Payload: map[string]any{
			"state":      string(assignment.State),
			"rolloutPct": assignment.RolloutPct,
		},
	}) {
		return
	}

	ok(c, http.StatusOK, resp.SetFlagStateResponse{
		FeatureKey:     featureKey,
		EnvironmentKey: r.EnvironmentKey,
		State:          string(assignment.State),
		RolloutPct:     assignment.RolloutPct,
		Version:        assignment.Version,
	})
}

func (h *FlagHandler) UpsertOverride(c *gin.Context) {
	var r req.UpsertOverrideRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		badRequest(c, err)
		return
	}

	ov, err := h.overrides.UpsertOverride(c.Request.Context(), r.FeatureKey, r.EnvironmentKey, r.UserID, constraints.FlagState(r.State))
	if err != nil {
		fail(c, err)
		return
	}

	if !record(c, h.audit, service.AuditContext{
		Action:         constraints.ActionOverrideUpsert,
		FeatureKey:     r.FeatureKey,
		EnvironmentKey: r.EnvironmentKey,
		Payload:        map[string]any{"userId": ov.UserID, "state": string(ov.State)},
	}) {
		return
	}

	ok(c, http.StatusOK, resp.OverrideResponse{
		FeatureKey:     r.FeatureKey,
		EnvironmentKey: r.EnvironmentKey,
		UserID:         ov.UserID,
		State:          string(ov.State),
	})
}

func (h *FlagHandler) DeleteOverride(c *gin.Context) {
	var r req.DeleteOverrideRequest
	if err := c.ShouldBindQuery(&r); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.overrides.DeleteOverride(c.Request.Context(), r.FeatureKey, r.EnvironmentKey, r.UserID); err != nil {
		fail(c, err)
		return
	}

	if !record(c, h.audit, service.AuditContext{
		Action:         constraints.ActionOverrideDelete,
		FeatureKey:     r.FeatureKey,
		EnvironmentKey: r.EnvironmentKey,
		Payload:        map[string]any{"userId": r.UserID},
	}) {
		return
	}
	c.Status(http.StatusNoContent)
}

// record writes the audit entry for a completed mutation, filling in the caller.
// It reports false after writing the error response.
func record(c *gin.Context, sink AuditSink, ac service.AuditContext) bool {
	ctx := c.Request.Context()
	ac.Actor = service.ActorOrSystem(ctx)
	if _, err := sink.Record(ctx, ac); err != nil {
		fail(c, err)
		return false
	}
	return true
}
