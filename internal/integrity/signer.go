// Package integrity derives the checkout integrity signature that binds the
// reference, amount and currency shown to the payment widget.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultReferencePrefix is prepended to order ids to build processor references.
const DefaultReferencePrefix = "order-"

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(math.MaxInt64)

	// ErrNonPositiveAmount is returned when an amount cannot be charged.
	ErrNonPositiveAmount = errors.New("integrity: amount must be positive")
	// ErrAmountOutOfRange is returned when an amount in cents does not fit in an int64.
	ErrAmountOutOfRange = errors.New("integrity: amount out of range")
)

// Terms are the checkout values the processor recomputes the signature from.
type Terms struct {
	Reference     string
	AmountInCents int64
	Currency      string
}

// Signer produces integrity signatures with a server-held key.
type Signer struct {
	key []byte
}

// NewSigner returns a Signer for the given integrity key. The key is copied.
func NewSigner(key string) Signer {
	return Signer{key: []byte(key)}
}

// Sign returns hex(sha256(reference || amountInCents || currency || key)).
// Field order and the absence of separators must match the processor exactly.
func (s Signer) Sign(reference string, amountInCents int64, currency string) string {
	h := sha256.New()
	h.Write([]byte(reference))
	h.Write([]byte(strconv.FormatInt(amountInCents, 10)))
	h.Write([]byte(currency))
	h.Write(s.key)
	return hex.EncodeToString(h.Sum(nil))
}

// SignTerms is Sign over a Terms value.
func (s Signer) SignTerms(t Terms) string {
	return s.Sign(t.Reference, t.AmountInCents, t.Currency)
}

// Reference derives the processor reference for an order id.
func Reference(prefix, orderID string) string {
	return prefix + strings.TrimSpace(orderID)
}

// AmountInCents converts a currency amount to minor units, rounding half-up.
func AmountInCents(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, ErrNonPositiveAmount
	}
	cents := amount.Mul(hundred).Round(0)
	if cents.GreaterThan(maxCents) {
		return 0, ErrAmountOutOfRange
	}
	return cents.IntPart(), nil
}

// DisplayAmount formats minor units as a two-decimal major-unit string.
func DisplayAmount(amountInCents int64) string {
	return decimal.New(amountInCents, -2).StringFixed(2)
}
