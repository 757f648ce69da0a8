// Package paywall defines the core domain types for TheRunReport's
// subscription-gating service: the persisted subscription record, the storage
// contract, and the shared error and metrics vocabulary used by the webhook
// and gating handlers.
package paywall

import (
	"strings"
	"time"
)

// Normalized subscription statuses the gate logic distinguishes. The status
// vocabulary is open ended; anything the billing provider sends that is not
// listed here is stored lowercase as-is.
const (
	StatusActive   = "active"
	StatusTrialing = "trialing"
	StatusComplete = "complete"
	StatusCanceled = "canceled"
)

// SubscriptionRecord is the single persisted row per user in the
// paddle_subscriptions table. It is upserted by the webhook handler and read
// (status and user_id only) by the dashboard UI and the gating endpoints.
type SubscriptionRecord struct {
	// UserID is the account id in the managed auth provider. Natural key;
	// at most one record exists per user.
	UserID string

	// CustomerID and SubscriptionID are Paddle's opaque identifiers.
	// Informational only; either may be empty.
	CustomerID     string
	SubscriptionID string

	// Status is the normalized lowercase subscription status.
	Status string

	// PriceID is Paddle's price identifier, if the event carried one.
	PriceID string

	// OccurredAt is the billing event's own timestamp, kept so that a stale
	// retried webhook cannot overwrite a newer status. Nil when the event
	// carried no parseable timestamp.
	OccurredAt *time.Time

	// UpdatedAt is the time of processing, refreshed on every write.
	UpdatedAt time.Time
}

// IsEntitled reports whether a normalized status grants access to the
// paywalled dashboard.
func IsEntitled(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case StatusActive, StatusTrialing, StatusComplete:
		return true
	}
	return false
}
