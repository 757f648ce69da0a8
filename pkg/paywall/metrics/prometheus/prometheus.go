// Package prommetrics provides a Prometheus implementation of paywall.Metrics.
package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements paywall.Metrics using Prometheus.
type Metrics struct {
	webhookEventsTotal        *prometheus.CounterVec
	webhookProcessingDuration *prometheus.HistogramVec
	webhookErrorsTotal        *prometheus.CounterVec
	gateDecisionsTotal        *prometheus.CounterVec
	lookupsTotal              *prometheus.CounterVec
	identityCallsTotal        *prometheus.CounterVec
	identityCallDuration      *prometheus.HistogramVec
}

// NewMetrics creates a new Prometheus metrics implementation for the paywall
// service, registering all collectors with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		webhookEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Total number of webhook events received from Paddle.",
		}, []string{"event_type", "status"}),

		webhookProcessingDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "processing_duration_seconds",
			Help:      "Duration of webhook processing in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),

		webhookErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "errors_total",
			Help:      "Total number of webhook processing errors.",
		}, []string{"error_type"}),

		gateDecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "decisions_total",
			Help:      "Total number of password-reset-gate decisions by reason.",
		}, []string{"reason"}),

		lookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lookup",
			Name:      "requests_total",
			Help:      "Total number of subscription lookups by outcome.",
		}, []string{"outcome"}),

		identityCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "api_calls_total",
			Help:      "Total number of admin API calls to the auth provider.",
		}, []string{"endpoint", "status"}),

		identityCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "api_call_duration_seconds",
			Help:      "Duration of admin API calls to the auth provider in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

func (m *Metrics) RecordWebhookEvent(eventType, status string) {
	m.webhookEventsTotal.WithLabelValues(eventType, status).Inc()
}

func (m *Metrics) RecordWebhookProcessingDuration(eventType string, duration time.Duration) {
	m.webhookProcessingDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

func (m *Metrics) RecordWebhookError(errorType string) {
	m.webhookErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) RecordGateDecision(reason string) {
	m.gateDecisionsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordLookup(outcome string) {
	m.lookupsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordIdentityAPICall(endpoint, status string) {
	m.identityCallsTotal.WithLabelValues(endpoint, status).Inc()
}

func (m *Metrics) RecordIdentityAPICallDuration(endpoint string, duration time.Duration) {
	m.identityCallDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
