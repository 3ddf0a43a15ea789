// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

const defaultCleanupInterval = time.Minute

// New creates a cache for backend. An empty backend means memory.
func New(ctx context.Context, backend string, redisCfg RedisConfig, logger zerolog.Logger) (Cache, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemoryCache(defaultCleanupInterval), nil
	case BackendNone:
		return NewNoOpCache(), nil
	case BackendRedis:
		return NewRedisCache(ctx, redisCfg, logger)
	default:
		return nil, fmt.Errorf("unknown cache backend: %s (supported: memory, redis, none)", backend)
	}
}
