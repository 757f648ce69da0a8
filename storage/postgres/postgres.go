// Package postgres provides the PostgreSQL implementation of
// paywall.SubscriptionStore. The paddle_subscriptions table is shared with
// the dashboard UI, which reads status and user_id from it and nothing else.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/therunreport/paywall/pkg/paywall"
)

// Schema creates the subscription table. Applied by EnsureSchema; safe to run
// repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS paddle_subscriptions (
	user_id                TEXT PRIMARY KEY,
	paddle_customer_id     TEXT,
	paddle_subscription_id TEXT,
	status                 TEXT NOT NULL DEFAULT '',
	price_id               TEXT,
	occurred_at            TIMESTAMPTZ,
	updated_at             TIMESTAMPTZ NOT NULL
)`

// Store implements paywall.SubscriptionStore using PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	config Config
}

// Config holds PostgreSQL store configuration.
type Config struct {
	// ConnectionString is the PostgreSQL connection string.
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// New creates a new PostgreSQL store.
func New(ctx context.Context, config Config) (*Store, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool, config: config}, nil
}

// EnsureSchema creates the subscription table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies the database connection, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetSubscription implements paywall.SubscriptionStore.
func (s *Store) GetSubscription(ctx context.Context, userID string) (*paywall.SubscriptionRecord, error) {
	var (
		rec            paywall.SubscriptionRecord
		customerID     *string
		subscriptionID *string
		priceID        *string
		occurredAt     *time.Time
	)

	err := s.pool.QueryRow(ctx,
		`SELECT user_id, paddle_customer_id, paddle_subscription_id, status, price_id, occurred_at, updated_at
			FROM paddle_subscriptions WHERE user_id = $1`,
		userID).Scan(
		&rec.UserID,
		&customerID,
		&subscriptionID,
		&rec.Status,
		&priceID,
		&occurredAt,
		&rec.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, paywall.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	if customerID != nil {
		rec.CustomerID = *customerID
	}
	if subscriptionID != nil {
		rec.SubscriptionID = *subscriptionID
	}
	if priceID != nil {
		rec.PriceID = *priceID
	}
	rec.OccurredAt = occurredAt

	return &rec, nil
}

// UpsertSubscription implements paywall.SubscriptionStore. The upsert is a
// full replacement of the mutable fields keyed on user_id; atomicity at the
// database is the only serialization for concurrent deliveries.
func (s *Store) UpsertSubscription(ctx context.Context, rec *paywall.SubscriptionRecord) error {
	if rec == nil || rec.UserID == "" {
		return fmt.Errorf("invalid subscription record")
	}

	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO paddle_subscriptions
			(user_id, paddle_customer_id, paddle_subscription_id, status, price_id, occurred_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (user_id) DO UPDATE SET
				paddle_customer_id = EXCLUDED.paddle_customer_id,
				paddle_subscription_id = EXCLUDED.paddle_subscription_id,
				status = EXCLUDED.status,
				price_id = EXCLUDED.price_id,
				occurred_at = EXCLUDED.occurred_at,
				updated_at = EXCLUDED.updated_at`,
		rec.UserID, nullable(rec.CustomerID), nullable(rec.SubscriptionID),
		rec.Status, nullable(rec.PriceID), rec.OccurredAt, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// nullable maps the empty string to NULL so absent provider ids stay NULL in
// the shared table.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
