// Package memory provides an in-memory implementation of
// paywall.SubscriptionStore, primarily intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/therunreport/paywall/pkg/paywall"
)

// Store implements paywall.SubscriptionStore using an in-memory map.
type Store struct {
	mu   sync.RWMutex
	subs map[string]*paywall.SubscriptionRecord
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{subs: make(map[string]*paywall.SubscriptionRecord)}
}

// GetSubscription implements paywall.SubscriptionStore.
func (s *Store) GetSubscription(_ context.Context, userID string) (*paywall.SubscriptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.subs[userID]
	if !ok {
		return nil, paywall.ErrSubscriptionNotFound
	}

	// Return a copy to prevent external mutations
	recCopy := *rec
	return &recCopy, nil
}

// UpsertSubscription implements paywall.SubscriptionStore.
func (s *Store) UpsertSubscription(_ context.Context, rec *paywall.SubscriptionRecord) error {
	if rec == nil || rec.UserID == "" {
		return fmt.Errorf("invalid subscription record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recCopy := *rec
	s.subs[rec.UserID] = &recCopy
	return nil
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
