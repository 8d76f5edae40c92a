package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// CachedMembership is a read-through Redis cache in front of another
// Membership. Only positive answers are cached, so adding a member takes
// effect immediately and removals take effect within the TTL. Redis
// failures fall through to the underlying store.
type CachedMembership struct {
	next   Membership
	client *backend.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

type CacheOption func(*CachedMembership)

// WithTTL sets how long a positive answer is cached.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *CachedMembership) {
		c.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) CacheOption {
	return func(c *CachedMembership) {
		c.prefix = prefix
	}
}

// WithLogger sets the logger used to report cache failures.
func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *CachedMembership) {
		c.logger = logger
	}
}

// NewCachedMembership wraps next with a cache backed by client.
func NewCachedMembership(next Membership, client *backend.Client, opts ...CacheOption) *CachedMembership {
	c := &CachedMembership{
		next:   next,
		client: client,
		prefix: "tabletop:member:",
		ttl:    5 * time.Minute,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewRedisClient creates a client for the given address.
func NewRedisClient(addr, password string, db int) *backend.Client {
	return backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// key length-prefixes the campaign id so ids containing ':' cannot collide.
func (c *CachedMembership) key(campaignID, userID string) string {
	return fmt.Sprintf("%s%d:%s:%s", c.prefix, len(campaignID), campaignID, userID)
}

// IsMember consults the cache before the underlying store.
func (c *CachedMembership) IsMember(ctx context.Context, campaignID, userID string) (bool, error) {
	key := c.key(campaignID, userID)

	_, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, backend.Nil):
	default:
		c.logger.Warn("membership cache read failed", "error", err)
	}

	ok, err := c.next.IsMember(ctx, campaignID, userID)
	if err != nil || !ok {
		return ok, err
	}

	if err := c.client.Set(ctx, key, "1", c.ttl).Err(); err != nil {
		c.logger.Warn("membership cache write failed", "error", err)
	}
	return true, nil
}

// Invalidate drops a cached answer, for example after removing a member.
func (c *CachedMembership) Invalidate(ctx context.Context, campaignID, userID string) error {
	return c.client.Del(ctx, c.key(campaignID, userID)).Err()
}
