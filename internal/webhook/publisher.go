package webhook

import (
	"context"

	"rollouthq/internal/metrics"
	v1 "rollouthq/pkg/api/v1"
	"rollouthq/pkg/logger"

	"go.uber.org/zap"
)

// AsyncPublisher hands events to the dispatch pool without blocking the caller.
type AsyncPublisher struct {
	pool       *Pool
	dispatcher *Dispatcher
	obs        metrics.WebhookObserver
}

func NewAsyncPublisher(pool *Pool, dispatcher *Dispatcher, obs metrics.WebhookObserver) *AsyncPublisher {
	if obs == nil {
		obs = metrics.Nop{}
	}
	return &AsyncPublisher{pool: pool, dispatcher: dispatcher, obs: obs}
}

// Publish reports whether the event was queued. A full queue drops the event.
func (p *AsyncPublisher) Publish(event v1.WebhookEvent) bool {
	ok := p.pool.Submit(func(ctx context.Context) {
		_ = p.dispatcher.Dispatch(ctx, event)
	})
	if !ok {
		p.obs.RecordDispatchFailure("queue_full")
		logger.Warn("dispatch queue full, dropping event",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type),
		)
	}
	return ok
}
