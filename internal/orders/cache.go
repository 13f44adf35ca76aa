package orders

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedSource keeps found orders in Redis as JSON in front of another Source.
// Cache failures fall back to the backing source.
type CachedSource struct {
	Next   Source
	Client *redis.Client
	TTL    time.Duration
	Prefix string
}

func (c CachedSource) key(id string) string {
	prefix := c.Prefix
	if prefix == "" {
		prefix = "order:"
	}
	return prefix + id
}

// Lookup implements Source.
func (c CachedSource) Lookup(ctx context.Context, id string) (Order, bool, error) {
	if c.Next == nil {
		return Order{}, false, errors.New("orders: backing source not configured")
	}
	if c.Client == nil || c.TTL <= 0 {
		return c.Next.Lookup(ctx, id)
	}
	if data, err := c.Client.Get(ctx, c.key(id)).Bytes(); err == nil {
		var o Order
		if json.Unmarshal(data, &o) == nil {
			return o, true, nil
		}
	}
	o, found, err := c.Next.Lookup(ctx, id)
	if err != nil || !found {
		return o, found, err
	}
	if data, err := json.Marshal(o); err == nil {
		_ = c.Client.Set(ctx, c.key(id), data, c.TTL).Err()
	}
	return o, true, nil
}
