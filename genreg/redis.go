package genreg

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares the current generation across processes and survives
// restarts. Optionally, a TTL can be applied so an abandoned deployment's
// marker eventually expires; readers then observe "" and re-activate.
type Redis struct {
	rdb redis.UniversalClient
	key string
	ttl time.Duration // 0 disables expiry
}

var _ Registry = (*Redis)(nil)

// NewRedis creates a Redis-backed registry without TTL. The namespace keeps
// independent deployments from clobbering each other's marker.
func NewRedis(client redis.UniversalClient, namespace string) *Redis {
	return &Redis{rdb: client, key: "shellcache:current:" + namespace}
}

// NewRedisWithTTL creates a Redis-backed registry with TTL.
// If ttl <= 0, the marker does not expire.
func NewRedisWithTTL(client redis.UniversalClient, namespace string, ttl time.Duration) *Redis {
	return &Redis{rdb: client, key: "shellcache:current:" + namespace, ttl: ttl}
}

func (r *Redis) Current(ctx context.Context) (string, error) {
	res, err := r.rdb.Get(ctx, r.key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return res, nil
}

func (r *Redis) SetCurrent(ctx context.Context, name string) error {
	ttl := r.ttl
	if ttl < 0 {
		ttl = 0
	}
	return r.rdb.Set(ctx, r.key, name, ttl).Err()
}

// Close is a no-op: the client is owned by the caller, who typically
// shares it with a redis-backed store.
func (r *Redis) Close(context.Context) error { return nil }
