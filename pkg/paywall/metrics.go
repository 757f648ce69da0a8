package paywall

import "time"

// Metrics defines the interface for tracking webhook and gating operations.
// All methods are optional - callers should gracefully handle nil metrics by
// substituting NoopMetrics.
type Metrics interface {
	// RecordWebhookEvent records a webhook event received from Paddle.
	// status: "success", "skipped" (stale or unresolvable) or "error"
	RecordWebhookEvent(eventType, status string)

	// RecordWebhookProcessingDuration records how long webhook processing took.
	RecordWebhookProcessingDuration(eventType string, duration time.Duration)

	// RecordWebhookError records a webhook processing error.
	// errorType: e.g. "auth_failed", "invalid_payload", "store_error"
	RecordWebhookError(errorType string)

	// RecordGateDecision records a password-reset-gate outcome by reason code.
	RecordGateDecision(reason string)

	// RecordLookup records a subscription-lookup outcome ("found"/"not_found").
	RecordLookup(outcome string)

	// RecordIdentityAPICall records an admin API call to the auth provider.
	// status: HTTP status code as string (e.g. "200", "500")
	RecordIdentityAPICall(endpoint, status string)

	// RecordIdentityAPICallDuration records how long an admin API call took.
	RecordIdentityAPICallDuration(endpoint string, duration time.Duration)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordWebhookEvent(_, _ string)                            {}
func (n *NoopMetrics) RecordWebhookProcessingDuration(_ string, _ time.Duration) {}
func (n *NoopMetrics) RecordWebhookError(_ string)                               {}
func (n *NoopMetrics) RecordGateDecision(_ string)                               {}
func (n *NoopMetrics) RecordLookup(_ string)                                     {}
func (n *NoopMetrics) RecordIdentityAPICall(_, _ string)                         {}
func (n *NoopMetrics) RecordIdentityAPICallDuration(_ string, _ time.Duration)   {}
