package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusObserver records to the default Prometheus registry.
type PrometheusObserver struct {
	evaluations     *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
	retryScheduled  prometheus.Counter
	retryCancelled  prometheus.Counter
	dispatchFailure *prometheus.CounterVec
	deliverySeconds prometheus.Histogram
}

var (
	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollouthq_evaluations_total",
		Help: "Flag evaluations by result",
	}, []string{"result"})
	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollouthq_webhook_deliveries_total",
		Help: "Webhook delivery attempts by status",
	}, []string{"status"})
	retriesScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollouthq_webhook_retries_scheduled_total",
		Help: "Webhook retries put on a timer",
	})
	retriesCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollouthq_webhook_retries_cancelled_total",
		Help: "Pending webhook retries cancelled before firing",
	})
	dispatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollouthq_webhook_dispatch_failures_total",
		Help: "Dispatch failures outside a delivery attempt",
	}, []string{"stage"})
	deliverySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rollouthq_webhook_delivery_seconds",
		Help:    "Latency of a single webhook delivery attempt",
		Buckets: prometheus.DefBuckets,
	})
)

// NewPrometheusObserver returns an observer backed by the default registry.
// The result satisfies both EvaluationObserver and WebhookObserver.
func NewPrometheusObserver() *PrometheusObserver {
	return &PrometheusObserver{
		evaluations:     evaluationsTotal,
		deliveries:      deliveriesTotal,
		retryScheduled:  retriesScheduled,
		retryCancelled:  retriesCancelled,
		dispatchFailure: dispatchFailures,
		deliverySeconds: deliverySeconds,
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func (p *PrometheusObserver) RecordEvaluation(enabled bool) {
	result := "disabled"
	if enabled {
		result = "enabled"
	}
	p.evaluations.WithLabelValues(result).Inc()
}

func (p *PrometheusObserver) RecordDelivery(success bool, seconds float64) {
	status := "FAILED"
	if success {
		status = "SUCCESS"
	}
	p.deliveries.WithLabelValues(status).Inc()
	p.deliverySeconds.Observe(seconds)
}

func (p *PrometheusObserver) RecordRetryScheduled() {
	p.retryScheduled.Inc()
}

func (p *PrometheusObserver) RecordRetryCancelled(n int) {
	p.retryCancelled.Add(float64(n))
}

func (p *PrometheusObserver) RecordDispatchFailure(stage string) {
	p.dispatchFailure.WithLabelValues(stage).Inc()
}
