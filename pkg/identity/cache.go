package identity

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultCacheTTL = 10 * time.Minute

// CachedDirectory memoizes email to user-id lookups in Redis so repeated
// gate and lookup requests for the same address skip the full paginated scan.
// Cache failures are logged and fall through to the underlying directory.
type CachedDirectory struct {
	next   Directory
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
}

// CacheConfig holds CachedDirectory configuration.
type CacheConfig struct {
	// KeyPrefix is prepended to all Redis keys (default "paywall:email:").
	KeyPrefix string

	// TTL bounds how long a cached mapping is trusted (default 10m). Kept
	// short because accounts can be deleted out from under the cache.
	TTL time.Duration

	Logger zerolog.Logger
}

// NewCachedDirectory wraps a directory with a Redis cache.
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring.
func NewCachedDirectory(next Directory, client redis.UniversalClient, config CacheConfig) (*CachedDirectory, error) {
	if next == nil || client == nil {
		return nil, errors.New("directory and redis client are required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "paywall:email:"
	}
	if config.TTL <= 0 {
		config.TTL = defaultCacheTTL
	}
	return &CachedDirectory{
		next:   next,
		client: client,
		prefix: config.KeyPrefix,
		ttl:    config.TTL,
		logger: config.Logger,
	}, nil
}

// FindUserByEmail implements Directory. Only positive results are cached;
// "not found" must stay fresh so a just-invited account is seen immediately.
func (d *CachedDirectory) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	key := d.prefix + email

	id, err := d.client.Get(ctx, key).Result()
	if err == nil && id != "" {
		return &User{ID: id, Email: email}, nil
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		d.logger.Warn().Err(err).Msg("identity cache read failed")
	}

	user, err := d.next.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	d.put(ctx, key, user.ID)
	return user, nil
}

// InviteUserByEmail implements Directory, caching the freshly created id.
func (d *CachedDirectory) InviteUserByEmail(ctx context.Context, email string) (*User, error) {
	user, err := d.next.InviteUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	d.put(ctx, d.prefix+email, user.ID)
	return user, nil
}

func (d *CachedDirectory) put(ctx context.Context, key, id string) {
	if err := d.client.Set(ctx, key, id, d.ttl).Err(); err != nil {
		d.logger.Warn().Err(err).Msg("identity cache write failed")
	}
}
