package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics counts payment-processor webhook outcomes.
type WebhookMetrics struct {
	processed *prometheus.CounterVec
	duplicate *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook counters on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_processed",
		Help: "Webhook events settled successfully.",
	}, []string{"type"})
	duplicate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_duplicate",
		Help: "Webhook deliveries skipped as replays.",
	}, []string{"type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_failed",
		Help: "Webhook events that failed to settle.",
	}, []string{"type"})
	reg.MustRegister(processed, duplicate, failed)
	return &WebhookMetrics{processed: processed, duplicate: duplicate, failed: failed}
}

// IncProcessed increments the processed counter for the event type.
func (m *WebhookMetrics) IncProcessed(eventType string) {
	if m == nil || m.processed == nil {
		return
	}
	m.processed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncDuplicate increments the duplicate counter for the event type.
func (m *WebhookMetrics) IncDuplicate(eventType string) {
	if m == nil || m.duplicate == nil {
		return
	}
	m.duplicate.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncFailed increments the failure counter for the event type.
func (m *WebhookMetrics) IncFailed(eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}
