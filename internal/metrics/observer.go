package metrics

// EvaluationObserver receives one call per answered evaluation.
type EvaluationObserver interface {
	RecordEvaluation(enabled bool)
}

// WebhookObserver receives the outcome of dispatch work.
type WebhookObserver interface {
	RecordDelivery(success bool, seconds float64)
	RecordRetryScheduled()
	RecordRetryCancelled(n int)
	// RecordDispatchFailure counts failures outside a delivery attempt, labelled by stage
	// (e.g. "load_endpoints", "serialize", "ledger", "queue_full").
	RecordDispatchFailure(stage string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordEvaluation(bool)        {}
func (Nop) RecordDelivery(bool, float64) {}
func (Nop) RecordRetryScheduled()        {}
func (Nop) RecordRetryCancelled(int)     {}
func (Nop) RecordDispatchFailure(string) {}
