package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cursor2b-collab/vip-sub000/internal/config"
	"github.com/cursor2b-collab/vip-sub000/internal/upstream"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Cache is the Redis-backed store for everything the gateway keeps warm
// between requests: persistent session tokens, last-known user snapshots and
// the partitioned-ready game catalog.
type Cache struct {
	client *redis.Client
}

func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

const (
	// Cache key prefixes
	tokenPrefix    = "auth_token:"
	snapshotPrefix = "user_snapshot:"
	catalogKey     = "game_catalog"

	// A persistent token outlives gateway restarts but not a week of
	// inactivity. Snapshots are only a render fallback and stay short.
	tokenTTL    = 7 * 24 * time.Hour
	snapshotTTL = 24 * time.Hour
)

// Session tokens (persistent scope)

func (c *Cache) SetToken(ctx context.Context, playerID uuid.UUID, token string) error {
	key := tokenPrefix + playerID.String()
	if err := c.client.Set(ctx, key, token, tokenTTL).Err(); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

func (c *Cache) GetToken(ctx context.Context, playerID uuid.UUID) (string, error) {
	key := tokenPrefix + playerID.String()
	token, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil // No stored token
		}
		return "", fmt.Errorf("failed to get stored token: %w", err)
	}
	return token, nil
}

func (c *Cache) DeleteToken(ctx context.Context, playerID uuid.UUID) error {
	return c.client.Del(ctx, tokenPrefix+playerID.String()).Err()
}

// User snapshots

func (c *Cache) SetSnapshot(ctx context.Context, playerID uuid.UUID, info *upstream.UserInfo) error {
	key := snapshotPrefix + playerID.String()

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal user snapshot: %w", err)
	}

	if err := c.client.Set(ctx, key, data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache user snapshot: %w", err)
	}
	return nil
}

func (c *Cache) GetSnapshot(ctx context.Context, playerID uuid.UUID) (*upstream.UserInfo, error) {
	key := snapshotPrefix + playerID.String()

	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get cached snapshot: %w", err)
	}

	var info upstream.UserInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user snapshot: %w", err)
	}
	return &info, nil
}

func (c *Cache) InvalidateSnapshot(ctx context.Context, playerID uuid.UUID) error {
	return c.client.Del(ctx, snapshotPrefix+playerID.String()).Err()
}

// Game catalog

func (c *Cache) SetCatalog(ctx context.Context, records []upstream.GameRecord, ttl time.Duration) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	if err := c.client.Set(ctx, catalogKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache catalog: %w", err)
	}
	return nil
}

func (c *Cache) GetCatalog(ctx context.Context) ([]upstream.GameRecord, error) {
	data, err := c.client.Get(ctx, catalogKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get cached catalog: %w", err)
	}

	var records []upstream.GameRecord
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}
	return records, nil
}
