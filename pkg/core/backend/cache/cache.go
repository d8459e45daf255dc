//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package cache wraps the engine's collaborators with a time-bounded cache.
//
// A batch run decides many files from the same observing night, so the same
// schedule and override store questions repeat. The decorators in this
// package key each answer by the call arguments and keep it for the cache TTL
// (one hour by default). Errors are never cached.
//
// Two storage backends are available: an in-process expiring LRU, and Redis
// for sharing answers between ingest workers.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/manetu/archiveauth/internal/logging"
	"github.com/manetu/archiveauth/pkg/common"
	"github.com/manetu/archiveauth/pkg/core/config"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var logger = logging.GetLogger("archiveauth.backend.cache")

const actor = "backend.cache"

// ErrCacheMiss is returned by [Cache.Get] when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Backend names accepted by cache.backend.
const (
	BackendLRU   = "lru"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Cache stores JSON encoded values by key.
type Cache interface {
	// Get decodes the value stored at key into dest, or returns [ErrCacheMiss].
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores value at key for the cache TTL.
	Set(ctx context.Context, key string, value interface{}) error
	// Clear drops every entry.
	Clear(ctx context.Context) error
}

// New builds the cache selected by cfg. It returns nil, nil for the "none" backend.
func New(cfg config.Cache) (Cache, error) {
	switch cfg.Backend {
	case BackendLRU, "":
		return NewLRU(cfg.Size, cfg.TTL), nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedis(client, "aauth", cfg.TTL), nil
	case BackendNone:
		return nil, nil
	default:
		return nil, common.NewErrorf(common.Misconfiguration, "unknown cache backend %q", cfg.Backend)
	}
}

// LRU is an in-process cache with per-entry expiry.
type LRU struct {
	entries *expirable.LRU[string, []byte]
}

// NewLRU creates an LRU holding at most size entries for ttl each.
func NewLRU(size int, ttl time.Duration) *LRU {
	if size <= 0 {
		size = 1024
	}
	return &LRU{entries: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Get implements [Cache].
func (c *LRU) Get(ctx context.Context, key string, dest interface{}) error {
	data, ok := c.entries.Get(key)
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

// Set implements [Cache].
func (c *LRU) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encoding cache entry %s", key)
	}
	c.entries.Add(key, data)
	return nil
}

// Clear implements [Cache].
func (c *LRU) Clear(ctx context.Context) error {
	c.entries.Purge()
	return nil
}

// Len returns the number of live entries.
func (c *LRU) Len() int {
	return c.entries.Len()
}

// Redis stores entries in a shared Redis database under a key prefix.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis creates a Redis cache. A nil client makes every lookup a miss.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: strings.TrimSuffix(prefix, ":"), ttl: ttl}
}

func (c *Redis) key(k string) string {
	return c.prefix + ":" + k
}

// Get implements [Cache].
func (c *Redis) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return ErrCacheMiss
	}

	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return errors.Wrapf(err, "redis get %s", key)
	}
	return json.Unmarshal(data, dest)
}

// Set implements [Cache].
func (c *Redis) Set(ctx context.Context, key string, value interface{}) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encoding cache entry %s", key)
	}
	return errors.Wrapf(c.client.Set(ctx, c.key(key), data, c.ttl).Err(), "redis set %s", key)
}

// Clear implements [Cache]. Only keys under the prefix are removed.
func (c *Redis) Clear(ctx context.Context) error {
	if c.client == nil {
		return nil
	}

	iter := c.client.Scan(ctx, 0, c.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return errors.Wrapf(err, "redis del %s", iter.Val())
		}
	}
	return errors.Wrap(iter.Err(), "redis scan")
}

// fetch returns the cached value for key, or calls load and caches its
// result. Cache failures are logged and fall through to load.
func fetch[T any](ctx context.Context, c Cache, name, key string, observe func(string, bool), load func() (T, error)) (T, error) {
	var cached T
	err := c.Get(ctx, key, &cached)
	switch {
	case err == nil:
		observe(name, true)
		return cached, nil
	case !errors.Is(err, ErrCacheMiss):
		logger.Warnf(actor, "fetch", "cache lookup for %s failed: %+v", key, err)
	}
	observe(name, false)

	value, err := load()
	if err != nil {
		return value, err
	}

	if err := c.Set(ctx, key, value); err != nil {
		logger.Warnf(actor, "fetch", "cache store for %s failed: %+v", key, err)
	}
	return value, nil
}
