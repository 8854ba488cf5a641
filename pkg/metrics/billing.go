package metrics

import "github.com/prometheus/client_golang/prometheus"

// BillingPassMetrics counts subscriptions handled by renewal and retry passes.
type BillingPassMetrics struct {
	processed *prometheus.CounterVec
	succeeded *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

// NewBillingPassMetrics registers the billing pass metrics on the provided
// registerer.
func NewBillingPassMetrics(reg prometheus.Registerer) *BillingPassMetrics {
	if reg == nil {
		return &BillingPassMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_pass_processed_total",
		Help: "Subscriptions picked up by a billing pass.",
	}, []string{"pass"})
	succeeded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_pass_succeeded_total",
		Help: "Subscriptions whose payment succeeded in a billing pass.",
	}, []string{"pass"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_pass_failed_total",
		Help: "Subscriptions whose payment failed in a billing pass.",
	}, []string{"pass"})
	reg.MustRegister(processed, succeeded, failed)
	return &BillingPassMetrics{
		processed: processed,
		succeeded: succeeded,
		failed:    failed,
	}
}

// IncProcessed increments the processed counter for the named pass.
func (b *BillingPassMetrics) IncProcessed(pass string) {
	if b == nil || b.processed == nil {
		return
	}
	b.processed.WithLabelValues(normalizeLabel(pass)).Inc()
}

// IncSucceeded increments the success counter for the named pass.
func (b *BillingPassMetrics) IncSucceeded(pass string) {
	if b == nil || b.succeeded == nil {
		return
	}
	b.succeeded.WithLabelValues(normalizeLabel(pass)).Inc()
}

// IncFailed increments the failure counter for the named pass.
func (b *BillingPassMetrics) IncFailed(pass string) {
	if b == nil || b.failed == nil {
		return
	}
	b.failed.WithLabelValues(normalizeLabel(pass)).Inc()
}
