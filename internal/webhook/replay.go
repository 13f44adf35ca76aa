package webhook

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/checkout-integrity/internal/common"
)

const replayKeyPrefix = "wh:processor:"

// ReplayGuard claims a webhook body so duplicate deliveries are dispatched once.
type ReplayGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisReplayGuard implements ReplayGuard using Redis SETNX semantics.
type RedisReplayGuard struct {
	Client *redis.Client
}

// Acquire claims key for ttl. It reports false when the key is already held.
func (g RedisReplayGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if g.Client == nil {
		return true, nil
	}
	return g.Client.SetNX(ctx, key, "1", ttl).Result()
}

// Release drops the claim so a redelivery is processed again.
func (g RedisReplayGuard) Release(ctx context.Context, key string) error {
	if g.Client == nil {
		return nil
	}
	return g.Client.Del(ctx, key).Err()
}

func replayKey(raw []byte) string {
	return replayKeyPrefix + common.Sha256Hex(raw)
}
