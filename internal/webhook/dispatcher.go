package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"rollouthq/internal/metrics"
	"rollouthq/internal/model"
	"rollouthq/internal/repository"
	v1 "rollouthq/pkg/api/v1"
	"rollouthq/pkg/constraints"
	"rollouthq/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultRetryDelays are measured from the failure of the original attempt.
var DefaultRetryDelays = []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}

const (
	DefaultRequestTimeout = 10 * time.Second
	DefaultMaxParallel    = 8

	// responses are drained up to this size so connections can be reused
	maxDrainBytes = 64 << 10
)

type Config struct {
	RequestTimeout time.Duration
	RetryDelays    []time.Duration
	MaxParallel    int
}

// Dispatcher signs and POSTs audit events to subscribed endpoints, writing one
// ledger row per attempt. Delivery errors never propagate to the caller.
type Dispatcher struct {
	endpoints repository.WebhookEndpointInterface
	ledger    repository.DeliveryInterface
	retries   *RetryScheduler
	obs       metrics.WebhookObserver
	client    *http.Client
	cfg       Config
	now       func() time.Time
}

type Option func(*Dispatcher)

// WithHTTPClient replaces the outbound client. Its Timeout is left alone,
// the per-request timeout comes from Config.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(
	endpoints repository.WebhookEndpointInterface,
	ledger repository.DeliveryInterface,
	retries *RetryScheduler,
	obs metrics.WebhookObserver,
	cfg Config,
	opts ...Option,
) *Dispatcher {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.RetryDelays == nil {
		cfg.RetryDelays = DefaultRetryDelays
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	if obs == nil {
		obs = metrics.Nop{}
	}
	d := &Dispatcher{
		endpoints: endpoints,
		ledger:    ledger,
		retries:   retries,
		obs:       obs,
		client:    &http.Client{},
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// delivery is everything needed to (re)send one event to one endpoint.
type delivery struct {
	endpointID string
	url        string
	secret     string
	eventID    string
	eventType  string
	timestamp  string
	body       []byte
}

func (d *delivery) key() RetryKey {
	return RetryKey{EventID: d.eventID, EndpointID: d.endpointID}
}

// Dispatch fans the event out to every active endpoint subscribed to its type.
// The returned error covers only loading endpoints and serializing the event.
func (d *Dispatcher) Dispatch(ctx context.Context, event v1.WebhookEvent) error {
	endpoints, err := d.endpoints.ListActive(ctx)
	if err != nil {
		d.obs.RecordDispatchFailure("load_endpoints")
		logger.Error("failed to load webhook endpoints", zap.String("event_id", event.ID), zap.Error(err))
		return fmt.Errorf("load endpoints: %w", err)
	}

	targets := endpoints[:0]
	for _, ep := range endpoints {
		if ep.Subscribes(event.Type) {
			targets = append(targets, ep)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	return d.send(ctx, event, targets)
}

// DispatchTo sends the event to a single endpoint regardless of its subscription.
func (d *Dispatcher) DispatchTo(ctx context.Context, endpoint *model.WebhookEndpoint, event v1.WebhookEvent) error {
	return d.send(ctx, event, []*model.WebhookEndpoint{endpoint})
}

func (d *Dispatcher) send(ctx context.Context, event v1.WebhookEvent, targets []*model.WebhookEndpoint) error {
	body, err := event.Body()
	if err != nil {
		d.obs.RecordDispatchFailure("serialize")
		logger.Error("failed to serialize webhook event", zap.String("event_id", event.ID), zap.Error(err))
		return fmt.Errorf("serialize event: %w", err)
	}
	timestamp := strconv.FormatInt(d.now().UnixMilli(), 10)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.MaxParallel)
	for _, ep := range targets {
		del := &delivery{
			endpointID: ep.ID,
			url:        ep.URL,
			secret:     ep.Secret,
			eventID:    event.ID,
			eventType:  event.Type,
			timestamp:  timestamp,
			body:       body,
		}
		g.Go(func() error {
			d.deliver(gctx, del)
			return nil
		})
	}
	return g.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, del *delivery) {
	if d.attempt(ctx, del, 0) || len(d.cfg.RetryDelays) == 0 || d.retries == nil {
		return
	}

	base := context.WithoutCancel(ctx)
	key := del.key()
	d.retries.Schedule(key, d.cfg.RetryDelays, func(attempt int) {
		if d.attempt(base, del, attempt) {
			d.retries.Cancel(key)
		}
	})
}

// attempt performs one POST and records it. It reports whether an HTTP response arrived.
func (d *Dispatcher) attempt(ctx context.Context, del *delivery, attempt int) bool {
	start := time.Now()
	code, sendErr := d.post(ctx, del)
	elapsed := time.Since(start).Seconds()

	row := &model.WebhookDelivery{
		EndpointID: del.endpointID,
		EventID:    del.eventID,
		Action:     del.eventType,
		Status:     constraints.DeliveryFailed,
		Payload:    del.body,
		Attempt:    attempt,
	}

	gotResponse := sendErr == nil
	switch {
	case sendErr != nil:
		msg := sendErr.Error()
		row.Error = &msg
	case code >= 200 && code < 300:
		row.Status = constraints.DeliverySuccess
		row.ResponseCode = &code
	default:
		msg := fmt.Sprintf("Non-2xx: %d", code)
		row.ResponseCode = &code
		row.Error = &msg
	}
	success := row.Status == constraints.DeliverySuccess
	d.obs.RecordDelivery(success, elapsed)

	if !success {
		logger.Warn("webhook delivery failed",
			zap.String("endpoint_id", del.endpointID),
			zap.String("event_id", del.eventID),
			zap.Int("attempt", attempt),
			zap.Stringp("error", row.Error),
		)
	}

	if err := d.ledger.Create(context.WithoutCancel(ctx), row); err != nil {
		d.obs.RecordDispatchFailure("ledger")
		logger.Error("failed to record webhook delivery",
			zap.String("endpoint_id", del.endpointID),
			zap.String("event_id", del.eventID),
			zap.Error(err),
		)
	}
	return gotResponse
}

func (d *Dispatcher) post(ctx context.Context, del *delivery) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, del.url, bytes.NewReader(del.body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(v1.HeaderSignature, SignatureHeader(del.secret, del.body))
	req.Header.Set(v1.HeaderTimestamp, del.timestamp)
	req.Header.Set(v1.HeaderEvent, del.eventType)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	return resp.StatusCode, nil
}

// CancelEndpoint drops pending retries towards an endpoint that was deactivated or deleted.
func (d *Dispatcher) CancelEndpoint(endpointID string) int {
	if d.retries == nil {
		return 0
	}
	return d.retries.CancelEndpoint(endpointID)
}
