package cache

import (
	"context"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// FeedCache holds rendered activity feeds per (user, scope) for a short TTL.
// Payloads are opaque JSON so the cache stays decoupled from the feed shape.
type FeedCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewFeedCache(client *redisv9.Client, ttl time.Duration) *FeedCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &FeedCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *FeedCache) Get(ctx context.Context, userID uint, scope string) ([]byte, bool, error) {
	raw, err := c.client.Get(ctx, c.key(userID, scope)).Bytes()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get feed failed: %w", err)
	}
	return raw, true, nil
}

func (c *FeedCache) Set(ctx context.Context, userID uint, scope string, payload []byte) error {
	if err := c.client.Set(ctx, c.key(userID, scope), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set feed failed: %w", err)
	}
	return nil
}

// InvalidateAll drops every cached feed. Feeds are cross-user (one event can
// appear in many users' feeds), so a new event clears the lot.
func (c *FeedCache) InvalidateAll(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "feed:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis delete feed failed: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan feed keys failed: %w", err)
	}
	return nil
}

func (c *FeedCache) key(userID uint, scope string) string {
	return fmt.Sprintf("feed:%s:%d", scope, userID)
}
