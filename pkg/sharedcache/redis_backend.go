package sharedcache

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/contextgate/gateway/pkg/errx"
	"github.com/redis/go-redis/v9"
)

var ErrBackend = errorRegistry.Register(
	"BACKEND_FAILED",
	errx.TypeTransient,
	http.StatusServiceUnavailable,
	"Shared cache backing store operation failed",
)

// RedisBackend mirrors Cache writes into Redis so published conversations
// survive a process restart. The in-process Cache remains authoritative
// for reads; this is write-through bookkeeping only, per the cache's
// process-local contract.
type RedisBackend struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisBackend wraps an existing Redis client. keyPrefix namespaces
// keys (e.g. "sharedcache:") to avoid collisions with jobx's own keys on
// a shared Redis instance.
func NewRedisBackend(rdb *redis.Client, keyPrefix string) *RedisBackend {
	if keyPrefix == "" {
		keyPrefix = "sharedcache:"
	}
	return &RedisBackend{rdb: rdb, prefix: keyPrefix}
}

func (b *RedisBackend) key(shareID string) string {
	return fmt.Sprintf("%s%s", b.prefix, shareID)
}

func (b *RedisBackend) Set(ctx context.Context, shareID string, data []byte, ttl time.Duration) error {
	if err := b.rdb.Set(ctx, b.key(shareID), data, ttl).Err(); err != nil {
		return errorRegistry.NewWithCause(ErrBackend, err).WithDetail("share_id", shareID)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, shareID string) error {
	if err := b.rdb.Del(ctx, b.key(shareID)).Err(); err != nil {
		return errorRegistry.NewWithCause(ErrBackend, err).WithDetail("share_id", shareID)
	}
	return nil
}

func (b *RedisBackend) Clear(ctx context.Context) error {
	iter := b.rdb.Scan(ctx, 0, b.prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errorRegistry.NewWithCause(ErrBackend, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := b.rdb.Del(ctx, keys...).Err(); err != nil {
		return errorRegistry.NewWithCause(ErrBackend, err)
	}
	return nil
}
