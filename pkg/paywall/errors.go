package paywall

import "errors"

var (
	// ErrSubscriptionNotFound is returned when no subscription record exists
	// for a user id.
	ErrSubscriptionNotFound = errors.New("subscription record not found")

	// ErrUserNotFound is returned when no account matches an email in the
	// auth provider.
	ErrUserNotFound = errors.New("user not found in auth provider")

	// ErrNotConfigured is returned when a component is missing a required
	// secret or dependency.
	ErrNotConfigured = errors.New("component not configured")

	// ErrIdentityAPIError is returned when the auth provider's admin API
	// call fails.
	ErrIdentityAPIError = errors.New("auth provider API error")
)
