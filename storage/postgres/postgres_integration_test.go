package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therunreport/paywall/pkg/paywall"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set, skipping postgres integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	config := DefaultConfig()
	config.ConnectionString = dsn
	store, err := New(ctx, config)
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(ctx))

	_, err = store.pool.Exec(ctx, "TRUNCATE paddle_subscriptions")
	require.NoError(t, err)

	t.Cleanup(store.Close)
	return store
}

func TestIntegration_GetMissing(t *testing.T) {
	store := newIntegrationStore(t)

	_, err := store.GetSubscription(context.Background(), "no-such-user")
	assert.ErrorIs(t, err, paywall.ErrSubscriptionNotFound)
}

func TestIntegration_UpsertRoundTrip(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	occurred := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &paywall.SubscriptionRecord{
		UserID:         "user-1",
		CustomerID:     "ctm_1",
		SubscriptionID: "sub_1",
		Status:         "active",
		PriceID:        "pri_1",
		OccurredAt:     &occurred,
		UpdatedAt:      time.Now().UTC(),
	}
	require.NoError(t, store.UpsertSubscription(ctx, rec))

	got, err := store.GetSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "ctm_1", got.CustomerID)
	assert.Equal(t, "sub_1", got.SubscriptionID)
	assert.Equal(t, "active", got.Status)
	assert.Equal(t, "pri_1", got.PriceID)
	require.NotNil(t, got.OccurredAt)
	assert.True(t, occurred.Equal(*got.OccurredAt))
}

func TestIntegration_UpsertReplacesExistingRow(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	first := &paywall.SubscriptionRecord{
		UserID: "user-1", Status: "active", PriceID: "pri_1",
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.UpsertSubscription(ctx, first))

	second := &paywall.SubscriptionRecord{
		UserID: "user-1", Status: "canceled",
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.UpsertSubscription(ctx, second))

	got, err := store.GetSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "canceled", got.Status)
	// The replacement carried no price id; the column must go back to NULL.
	assert.Empty(t, got.PriceID)
}

func TestIntegration_EmptyIdsStoredAsNull(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	rec := &paywall.SubscriptionRecord{
		UserID: "user-1", Status: "active", UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.UpsertSubscription(ctx, rec))

	var customerID *string
	err := store.pool.QueryRow(ctx,
		"SELECT paddle_customer_id FROM paddle_subscriptions WHERE user_id = $1",
		"user-1").Scan(&customerID)
	require.NoError(t, err)
	assert.Nil(t, customerID)
}

func TestIntegration_RejectsInvalidRecord(t *testing.T) {
	store := newIntegrationStore(t)

	assert.Error(t, store.UpsertSubscription(context.Background(), nil))
	assert.Error(t, store.UpsertSubscription(context.Background(), &paywall.SubscriptionRecord{}))
}

func TestIntegration_Ping(t *testing.T) {
	store := newIntegrationStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
