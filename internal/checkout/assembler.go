package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/checkout-integrity/internal/common"
	"github.com/noah-isme/checkout-integrity/internal/integrity"
	"github.com/noah-isme/checkout-integrity/internal/obs"
	"github.com/noah-isme/checkout-integrity/internal/orders"
)

var (
	// ErrOrderNotFound is returned when the order source has no such order.
	ErrOrderNotFound = common.NewAppError("ORDER_NOT_FOUND", "order not found", http.StatusNotFound, nil)
	// ErrInvalidOrder is returned when an order cannot be turned into chargeable terms.
	ErrInvalidOrder = common.NewAppError("INVALID_ORDER", "order cannot be paid", http.StatusUnprocessableEntity, nil)
	// ErrOrderSourceUnavailable wraps backend failures of the order source.
	ErrOrderSourceUnavailable = common.NewAppError("ORDER_SOURCE_UNAVAILABLE", "order lookup failed", http.StatusInternalServerError, nil)
)

// Bundle is everything the browser needs to open the payment widget. It never
// carries the integrity key.
type Bundle struct {
	AmountInCents int64  `json:"amountInCents"`
	Reference     string `json:"reference"`
	Currency      string `json:"currency"`
	Description   string `json:"description"`
	Signature     string `json:"signature"`
	PublicKey     string `json:"publicKey"`
}

// Assembler builds checkout bundles from orders.
type Assembler struct {
	Orders          orders.Source
	Signer          integrity.Signer
	PublicKey       string
	ReferencePrefix string
	LookupTimeout   time.Duration
}

// BuildBundle looks the order up and returns signed checkout terms for it.
func (a *Assembler) BuildBundle(ctx context.Context, orderID string) (Bundle, error) {
	if a == nil || a.Orders == nil {
		return Bundle{}, errors.New("checkout: assembler not configured")
	}
	ctx, span := otel.Tracer("checkout.Assembler").Start(ctx, "Assembler.BuildBundle")
	defer span.End()

	result := "error"
	defer func() {
		span.SetAttributes(attribute.String("checkout.result", result))
		if obs.CheckoutBundleTotal != nil {
			obs.CheckoutBundleTotal.WithLabelValues(result).Inc()
		}
	}()

	orderID = strings.TrimSpace(orderID)
	span.SetAttributes(attribute.String("order.id", orderID))

	order, found, err := a.lookup(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return Bundle{}, fmt.Errorf("%w: %w", ErrOrderSourceUnavailable, err)
	}
	if !found {
		result = "not_found"
		return Bundle{}, ErrOrderNotFound
	}

	cents, err := integrity.AmountInCents(order.Amount)
	if err != nil {
		result = "invalid"
		return Bundle{}, fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}
	currency := strings.ToUpper(strings.TrimSpace(order.Currency))
	if currency == "" {
		result = "invalid"
		return Bundle{}, fmt.Errorf("%w: missing currency", ErrInvalidOrder)
	}

	prefix := a.ReferencePrefix
	if prefix == "" {
		prefix = integrity.DefaultReferencePrefix
	}
	terms := integrity.Terms{
		Reference:     integrity.Reference(prefix, order.ID),
		AmountInCents: cents,
		Currency:      currency,
	}
	result = "success"
	return Bundle{
		AmountInCents: terms.AmountInCents,
		Reference:     terms.Reference,
		Currency:      terms.Currency,
		Description:   order.Description,
		Signature:     a.Signer.SignTerms(terms),
		PublicKey:     a.PublicKey,
	}, nil
}

func (a *Assembler) lookup(ctx context.Context, orderID string) (orders.Order, bool, error) {
	if orderID == "" {
		return orders.Order{}, false, nil
	}
	timeout := a.LookupTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return a.Orders.Lookup(ctx, orderID)
}
