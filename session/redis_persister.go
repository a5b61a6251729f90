package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPersister stores keys as plain Redis strings under a prefix. It lets
// several portal processes on different hosts share one signed-in profile.
type RedisPersister struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisPersister returns a persister that namespaces keys with prefix. A
// positive ttl expires stored values; zero keeps them until removed.
func NewRedisPersister(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisPersister {
	if prefix == "" {
		prefix = "blogportal:"
	}
	return &RedisPersister{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *RedisPersister) key(key string) string {
	return r.prefix + key
}

func (r *RedisPersister) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.redis.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: GET %s: %v", ErrStorageUnavailable, key, err)
	}
	return v, true, nil
}

func (r *RedisPersister) Set(ctx context.Context, key, value string) error {
	if err := r.redis.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: SET %s: %v", ErrStorageUnavailable, key, err)
	}
	return nil
}

func (r *RedisPersister) Remove(ctx context.Context, key string) error {
	if err := r.redis.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: DEL %s: %v", ErrStorageUnavailable, key, err)
	}
	return nil
}

// Ping measures a round-trip to the backing Redis.
func (r *RedisPersister) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return time.Since(start), nil
}
