// internal/service/cache.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"reel-editor/internal/metrics"
)

const cacheTimeout = 2 * time.Second

// Cache is a read-through cache of encoded project documents in Redis.
// Cache failures are logged and treated as misses; the repository stays
// the source of truth.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger zerolog.Logger
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("connected to redis cache")
	return NewCache(client, cfg.TTL, logger), nil
}

// NewCache wraps an existing client. ttl <= 0 keeps entries until they are
// invalidated.
func NewCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, prefix: "editor:project:", logger: logger}
}

func (c *Cache) key(id uuid.UUID) string { return c.prefix + id.String() }

func (c *Cache) get(ctx context.Context, id uuid.UUID) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()

	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("key", c.key(id)).Msg("redis get failed")
		}
		metrics.ProjectCacheTotal.WithLabelValues(metrics.ResultMiss).Inc()
		return nil, false
	}
	metrics.ProjectCacheTotal.WithLabelValues(metrics.ResultHit).Inc()
	return raw, true
}

func (c *Cache) set(ctx context.Context, id uuid.UUID, raw []byte) {
	ctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()

	if err := c.client.Set(ctx, c.key(id), raw, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", c.key(id)).Msg("redis set failed")
	}
}

func (c *Cache) invalidate(ctx context.Context, id uuid.UUID) {
	ctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()

	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", c.key(id)).Msg("redis delete failed")
	}
}

func (c *Cache) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }
func (c *Cache) Close() error                   { return c.client.Close() }
