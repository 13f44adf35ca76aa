package ratelimit

import (
	"context"
	"time"

	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// FixedWindow adapts a ulule limiter store. Used when the broker runs
// without Redis, so counters are local to the process.
type FixedWindow struct {
	Store limiter.Store
}

// NewMemoryFixedWindow returns a FixedWindow backed by an in-process store.
func NewMemoryFixedWindow() FixedWindow {
	return FixedWindow{Store: memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          "checkout:ratelimit",
		CleanUpInterval: time.Minute,
	})}
}

// Allow increments the counter for key in the current window.
func (l FixedWindow) Allow(ctx context.Context, key string, window time.Duration, limit int) (bool, int, time.Time, error) {
	if l.Store == nil || limit <= 0 || window <= 0 {
		return true, limit, time.Now().Add(window), nil
	}
	res, err := l.Store.Get(ctx, key, limiter.Rate{Period: window, Limit: int64(limit)})
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !res.Reached, int(res.Remaining), time.Unix(res.Reset, 0), nil
}
