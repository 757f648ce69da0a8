package paywall

import "context"

// SubscriptionStore is the persistence contract for subscription records.
// Implementations live under storage/ (postgres for production, memory for
// tests and local development).
type SubscriptionStore interface {
	// GetSubscription returns the record for a user id, or
	// ErrSubscriptionNotFound.
	GetSubscription(ctx context.Context, userID string) (*SubscriptionRecord, error)

	// UpsertSubscription inserts or fully replaces the record keyed on
	// UserID. All mutable fields are overwritten, not merged.
	UpsertSubscription(ctx context.Context, rec *SubscriptionRecord) error
}
