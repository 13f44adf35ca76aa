package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const lookupOrderSQL = `SELECT id, amount::text, currency, description FROM orders WHERE id = $1`

// RowQuerier is the subset of pgxpool.Pool used by PostgresSource.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSource reads orders from the orders table.
type PostgresSource struct {
	DB RowQuerier
}

// Lookup implements Source.
func (s PostgresSource) Lookup(ctx context.Context, id string) (Order, bool, error) {
	if s.DB == nil {
		return Order{}, false, errors.New("orders: database not configured")
	}
	var (
		o      Order
		amount string
	)
	err := s.DB.QueryRow(ctx, lookupOrderSQL, strings.TrimSpace(id)).Scan(&o.ID, &amount, &o.Currency, &o.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, false, nil
		}
		return Order{}, false, fmt.Errorf("orders: lookup %s: %w", id, err)
	}
	o.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return Order{}, false, fmt.Errorf("orders: parse amount for %s: %w", id, err)
	}
	o.Currency = strings.ToUpper(strings.TrimSpace(o.Currency))
	return o, true, nil
}
