package orders

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Order is the merchant-side view of something a customer can pay for.
type Order struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
}

// Source looks orders up by id. Implementations report an unknown id with
// found == false and a nil error; err is reserved for backend failures.
type Source interface {
	Lookup(ctx context.Context, id string) (order Order, found bool, err error)
}

// MemorySource serves a fixed catalog held in memory. It is safe for
// concurrent use because the map is never written after construction.
type MemorySource struct {
	orders map[string]Order
}

// NewMemorySource builds a MemorySource from the given orders.
func NewMemorySource(orders ...Order) *MemorySource {
	m := make(map[string]Order, len(orders))
	for _, o := range orders {
		m[o.ID] = o
	}
	return &MemorySource{orders: m}
}

// Lookup implements Source.
func (m *MemorySource) Lookup(_ context.Context, id string) (Order, bool, error) {
	if m == nil {
		return Order{}, false, nil
	}
	o, ok := m.orders[strings.TrimSpace(id)]
	return o, ok, nil
}

// DemoOrders returns the demo catalog used when no database is configured.
func DemoOrders() []Order {
	return []Order{
		{ID: "1001", Amount: decimal.RequireFromString("9000.00"), Currency: "COP", Description: "Product 1"},
		{ID: "1002", Amount: decimal.RequireFromString("15000.50"), Currency: "COP", Description: "Product 2"},
	}
}
