package reaper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultLeaseKey = "roomsaga:inventory:reaper"

// Lease elects a single sweeping replica per period.
type Lease interface {
	Acquire(ctx context.Context, ttl time.Duration) (bool, error)
}

type leaseStore interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	PExpire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

type RedisLease struct {
	store leaseStore
	key   string
	owner string
}

func NewRedisLease(client *redis.Client, key, owner string) *RedisLease {
	return &RedisLease{store: client, key: key, owner: owner}
}

// Acquire takes the lease, or renews it when this owner already holds it.
func (l *RedisLease) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := l.store.SetNX(ctx, l.key, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reaper lease setnx: %w", err)
	}
	if ok {
		return true, nil
	}

	holder, err := l.store.Get(ctx, l.key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reaper lease get: %w", err)
	}
	if holder != l.owner {
		return false, nil
	}

	if err := l.store.PExpire(ctx, l.key, ttl).Err(); err != nil {
		return false, fmt.Errorf("reaper lease renew: %w", err)
	}
	return true, nil
}
