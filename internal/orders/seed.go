package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const upsertOrderSQL = `INSERT INTO orders (id, amount, currency, description)
VALUES ($1, $2::numeric, $3, $4)
ON CONFLICT (id) DO UPDATE SET amount = EXCLUDED.amount, currency = EXCLUDED.currency, description = EXCLUDED.description`

// Execer is the subset of pgxpool.Pool used by Seed.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Seed upserts orders and returns how many rows were written.
func Seed(ctx context.Context, db Execer, orders []Order) (int, error) {
	written := 0
	for _, o := range orders {
		if strings.TrimSpace(o.ID) == "" || !o.Amount.IsPositive() {
			return written, fmt.Errorf("orders: refusing to seed invalid order %q", o.ID)
		}
		tag, err := db.Exec(ctx, upsertOrderSQL, o.ID, o.Amount.StringFixed(2), strings.ToUpper(o.Currency), o.Description)
		if err != nil {
			return written, fmt.Errorf("orders: seed %s: %w", o.ID, err)
		}
		written += int(tag.RowsAffected())
	}
	return written, nil
}
