package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultKey is the Redis key snapshots are written under
const DefaultKey = "coc:roster:snapshot"

// Config holds Redis connection configuration
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// RedisCache mirrors published snapshots to Redis for other consumers.
// It is write-only; the service never reads a snapshot back.
type RedisCache struct {
	client *redis.Client
	key    string
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(cfg Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	key := cfg.Key
	if key == "" {
		key = DefaultKey
	}

	return &RedisCache{client: client, key: key}, nil
}

// Publish writes the snapshot as JSON, replacing the previous value
func (r *RedisCache) Publish(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}

	log.Debug().
		Str("key", r.key).
		Int("entries", len(snap.Data)).
		Int("bytes", len(data)).
		Msg("Snapshot mirrored to redis")

	return nil
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}
