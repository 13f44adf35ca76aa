package processor

import (
	"encoding/json"
	"strings"
)

// Status is the lifecycle state the processor reports for a transaction.
type Status string

const (
	StatusApproved Status = "APPROVED"
	StatusDeclined Status = "DECLINED"
	StatusPending  Status = "PENDING"
	StatusVoided   Status = "VOIDED"
	StatusError    Status = "ERROR"
)

// ParseStatus normalises a processor status. The second return value is false
// for statuses outside the documented set.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusApproved, StatusDeclined, StatusPending, StatusVoided, StatusError:
		return s, true
	default:
		return s, false
	}
}

// Transaction is the authoritative processor record for a payment attempt.
type Transaction struct {
	ID            string `json:"id"`
	Reference     string `json:"reference"`
	Status        Status `json:"status"`
	AmountInCents int64  `json:"amount_in_cents"`
	Currency      string `json:"currency"`
}

// Lookup is the outcome of a transaction query that reached the processor.
// Found is false when the processor has no usable record for the id.
type Lookup struct {
	Transaction Transaction
	Found       bool
}

type transactionEnvelope struct {
	Data *json.RawMessage `json:"data"`
}

// PaymentLinkRequest is the body sent to the processor's payment-link API.
type PaymentLinkRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Currency        string `json:"currency"`
	AmountInCents   *int64 `json:"amount_in_cents"`
	SingleUse       bool   `json:"single_use"`
	CollectShipping bool   `json:"collect_shipping"`
}

// RawResponse carries a processor response verbatim.
type RawResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}
