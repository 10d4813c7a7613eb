package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusObserver(t *testing.T) {
	obs := NewPrometheusObserver()

	before := testutil.ToFloat64(evaluationsTotal.WithLabelValues("enabled"))
	obs.RecordEvaluation(true)
	obs.RecordEvaluation(false)
	if got := testutil.ToFloat64(evaluationsTotal.WithLabelValues("enabled")); got != before+1 {
		t.Errorf("expected enabled counter %v, got %v", before+1, got)
	}

	failedBefore := testutil.ToFloat64(deliveriesTotal.WithLabelValues("FAILED"))
	obs.RecordDelivery(false, 0.2)
	if got := testutil.ToFloat64(deliveriesTotal.WithLabelValues("FAILED")); got != failedBefore+1 {
		t.Errorf("expected failed counter %v, got %v", failedBefore+1, got)
	}

	cancelledBefore := testutil.ToFloat64(retriesCancelled)
	obs.RecordRetryCancelled(3)
	if got := testutil.ToFloat64(retriesCancelled); got != cancelledBefore+3 {
		t.Errorf("expected cancelled counter %v, got %v", cancelledBefore+3, got)
	}

	// no panic on remaining methods
	obs.RecordRetryScheduled()
	obs.RecordDispatchFailure("queue_full")
}

func TestNopSatisfiesObservers(t *testing.T) {
	var _ EvaluationObserver = Nop{}
	var _ WebhookObserver = Nop{}
	var _ EvaluationObserver = NewPrometheusObserver()
	var _ WebhookObserver = NewPrometheusObserver()
}
