package api

import (
	"rollouthq/internal/metrics"
	"rollouthq/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Flags    *FlagHandler
	Features *FeatureHandler
	Webhooks *WebhookHandler
	Audits   *AuditHandler
}

type RouterConfig struct {
	JWTSecret                 []byte
	CorsOrigins               []string
	RequestsPerSecond         int
	EvaluateRequestsPerSecond int
}

// RegisterRoutes builds the engine. rdb may be nil, rate limiting then stays in process.
func RegisterRoutes(h Handlers, rdb *redis.Client, cfg RouterConfig) *gin.Engine {
	r := gin.New()

	r.Use(
		middleware.CorsMiddleware(cfg.CorsOrigins),
		middleware.RequestID(),
		middleware.TraceMiddleware(),
		middleware.GinZapLogger(),
		middleware.GinZapRecovery(),
		middleware.HttpMiddleware(),
	)
	r.SetTrustedProxies(nil)

	r.GET("/health", h.Features.HealthCheck)
	r.GET("/ready", h.Features.ReadyCheck)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Evaluation is public and served to SDKs
	r.GET("/v1/flags/evaluate",
		middleware.RateLimitMiddleware(rdb, "evaluate", cfg.EvaluateRequestsPerSecond),
		h.Flags.Evaluate)

	authed := r.Group("/v1")
	authed.Use(middleware.JWTMiddleware(cfg.JWTSecret))
	{
		authed.GET("/features", h.Features.ListFeatures)
		authed.GET("/environments", h.Features.ListEnvironments)
	}

	admin := r.Group("/v1")
	admin.Use(
		middleware.JWTMiddleware(cfg.JWTSecret),
		middleware.RequireAdmin(),
		middleware.RateLimitMiddleware(rdb, "admin", cfg.RequestsPerSecond),
	)
	{
		admin.PUT("/flags/:featureKey/state", h.Flags.SetState)
		admin.PUT("/overrides", h.Flags.UpsertOverride)
		admin.DELETE("/overrides", h.Flags.DeleteOverride)

		admin.POST("/features", h.Features.CreateFeature)
		admin.PATCH("/features/:key", h.Features.UpdateFeature)
		admin.POST("/environments", h.Features.CreateEnvironment)

		admin.GET("/webhooks", h.Webhooks.List)
		admin.POST("/webhooks", h.Webhooks.Create)
		admin.POST("/webhooks/test", h.Webhooks.Test)
		admin.PATCH("/webhooks/:id", h.Webhooks.Update)
		admin.DELETE("/webhooks/:id", h.Webhooks.Delete)
		admin.GET("/webhooks/:id/deliveries", h.Webhooks.Deliveries)

		admin.GET("/audits", h.Audits.List)
	}
	return r
}
