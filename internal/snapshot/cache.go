package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"marketintel/internal/core"
	"marketintel/internal/logger"
)

// Cache keeps the freshest snapshot per (card, industry) in Redis with a
// key TTL matching the snapshot's own TTL, so expiry happens on both
// sides without coordination.
type Cache struct {
	client *redis.Client
}

// NewCache wires the snapshot cache over a Redis client.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// NewRedisClient opens and verifies a Redis connection.
func NewRedisClient(ctx context.Context, address, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func cacheKey(card core.Card, industry string) string {
	return fmt.Sprintf("snapshot:%s:%s", card, industry)
}

// Set stores the snapshot under its card/industry key with the snapshot
// TTL as the key expiry.
func (c *Cache) Set(ctx context.Context, snap core.MarketSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot for cache: %w", err)
	}
	ttl := time.Duration(snap.TTLMinutes) * time.Minute
	if err := c.client.Set(ctx, cacheKey(snap.Card, snap.Industry), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}
	return nil
}

// Get returns the cached snapshot, or (zero, false) on miss. Cache errors
// degrade to a miss so reads fall through to the repository.
func (c *Cache) Get(ctx context.Context, card core.Card, industry string) (core.MarketSnapshot, bool) {
	data, err := c.client.Get(ctx, cacheKey(card, industry)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.With("cache").Warn().Err(err).Msg("snapshot cache read failed")
		}
		return core.MarketSnapshot{}, false
	}

	var snap core.MarketSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.With("cache").Warn().Err(err).Msg("snapshot cache entry corrupt, dropping")
		_ = c.client.Del(ctx, cacheKey(card, industry)).Err()
		return core.MarketSnapshot{}, false
	}
	if snap.Expired(time.Now().UTC()) {
		return core.MarketSnapshot{}, false
	}
	return snap, true
}
