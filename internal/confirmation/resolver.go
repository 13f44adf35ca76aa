package confirmation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/checkout-integrity/internal/integrity"
	"github.com/noah-isme/checkout-integrity/internal/obs"
	"github.com/noah-isme/checkout-integrity/internal/processor"
)

// Reason classifies why a transaction could not be confirmed.
type Reason string

const (
	// ReasonUnverifiable means the processor answered but holds no usable record.
	ReasonUnverifiable Reason = "unverifiable"
	// ReasonUnreachable means the processor could not be queried.
	ReasonUnreachable Reason = "unreachable"
)

var errEmptyID = errors.New("empty transaction id")

// LookupError reports a failed confirmation. It never implies the payment
// itself failed, only that its outcome could not be established.
type LookupError struct {
	Reason        Reason
	TransactionID string
	Cause         error
}

func (e *LookupError) Error() string {
	msg := fmt.Sprintf("confirmation: transaction %q %s", e.TransactionID, e.Reason)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LookupError) Unwrap() error { return e.Cause }

// IsReason reports whether err is a LookupError with the given reason.
func IsReason(err error, reason Reason) bool {
	var lookupErr *LookupError
	return errors.As(err, &lookupErr) && lookupErr.Reason == reason
}

// TransactionFetcher queries the processor for a transaction.
type TransactionFetcher interface {
	GetTransaction(ctx context.Context, transactionID string) (processor.Lookup, error)
}

// View is the confirmation shown to the buyer, built only from processor data.
type View struct {
	ID            string `json:"id"`
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	AmountInCents int64  `json:"amountInCents"`
	DisplayAmount string `json:"displayAmount"`
	Currency      string `json:"currency"`
}

// Resolver confirms transactions by re-querying the processor on every call.
type Resolver struct {
	Processor TransactionFetcher
}

// Confirm returns the processor's view of transactionID. Exactly one query is
// made; failures are *LookupError values.
func (r *Resolver) Confirm(ctx context.Context, transactionID string) (View, error) {
	transactionID = strings.TrimSpace(transactionID)
	ctx, span := otel.Tracer("confirmation.Resolver").Start(ctx, "Resolver.Confirm")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", transactionID))

	view, err := r.confirm(ctx, transactionID)
	result := strings.ToLower(view.Status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirmation failed")
		var lookupErr *LookupError
		result = "error"
		if errors.As(err, &lookupErr) {
			result = string(lookupErr.Reason)
		}
	}
	if obs.ConfirmationTotal != nil {
		obs.ConfirmationTotal.WithLabelValues(result).Inc()
	}
	return view, err
}

func (r *Resolver) confirm(ctx context.Context, transactionID string) (View, error) {
	if transactionID == "" {
		return View{}, &LookupError{Reason: ReasonUnverifiable, Cause: errEmptyID}
	}
	if r == nil || r.Processor == nil {
		return View{}, &LookupError{Reason: ReasonUnreachable, TransactionID: transactionID, Cause: errors.New("processor not configured")}
	}

	lookup, err := r.Processor.GetTransaction(ctx, transactionID)
	if err != nil {
		return View{}, &LookupError{Reason: ReasonUnreachable, TransactionID: transactionID, Cause: err}
	}
	if !lookup.Found {
		return View{}, &LookupError{Reason: ReasonUnverifiable, TransactionID: transactionID}
	}
	tx := lookup.Transaction
	status, known := processor.ParseStatus(string(tx.Status))
	if !known {
		return View{}, &LookupError{
			Reason:        ReasonUnverifiable,
			TransactionID: transactionID,
			Cause:         fmt.Errorf("unknown status %q", tx.Status),
		}
	}
	return View{
		ID:            tx.ID,
		Reference:     tx.Reference,
		Status:        string(status),
		AmountInCents: tx.AmountInCents,
		DisplayAmount: integrity.DisplayAmount(tx.AmountInCents),
		Currency:      tx.Currency,
	}, nil
}
