package paymentlink

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-integrity/internal/common"
	"github.com/noah-isme/checkout-integrity/internal/obs"
	"github.com/noah-isme/checkout-integrity/internal/processor"
)

const maxRequestBytes = 64 << 10

// Creator creates payment links at the processor.
type Creator interface {
	CreatePaymentLink(ctx context.Context, link processor.PaymentLinkRequest) (processor.RawResponse, error)
}

// Request is the body accepted by POST /api/payment-links. Amount is the
// legacy name for AmountInCents.
type Request struct {
	Name          string `json:"name" validate:"required,max=255"`
	Description   string `json:"description" validate:"required,max=1024"`
	AmountInCents *int64 `json:"amountInCents" validate:"omitempty,gt=0"`
	Amount        *int64 `json:"amount" validate:"omitempty,gt=0"`
}

// Handler creates reusable processor payment links on behalf of the merchant.
type Handler struct {
	Processor Creator
	Currency  string
	Validate  *validator.Validate
	Logger    zerolog.Logger
}

// NewHandler returns a handler with a fresh validator.
func NewHandler(creator Creator, currency string, logger zerolog.Logger) *Handler {
	return &Handler{
		Processor: creator,
		Currency:  currency,
		Validate:  validator.New(validator.WithRequiredStructEnabled()),
		Logger:    logger,
	}
}

// Create serves POST /api/payment-links. The processor's status and body are
// relayed unchanged.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		record("invalid")
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be a JSON object", nil)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := h.validator().Struct(req); err != nil {
		record("invalid")
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid payment link request", fieldErrors(err))
		return
	}

	amount := req.AmountInCents
	if amount == nil {
		amount = req.Amount
	}
	resp, err := h.Processor.CreatePaymentLink(r.Context(), processor.PaymentLinkRequest{
		Name:            req.Name,
		Description:     req.Description,
		Currency:        h.Currency,
		AmountInCents:   amount,
		SingleUse:       false,
		CollectShipping: false,
	})
	if err != nil {
		switch {
		case errors.Is(err, processor.ErrMissingPrivateKey):
			record("disabled")
			common.JSONError(w, http.StatusServiceUnavailable, "PAYMENT_LINKS_DISABLED", "payment links are not configured", nil)
		default:
			record("unreachable")
			h.Logger.Error().Err(err).Msg("create payment link")
			common.JSONError(w, http.StatusBadGateway, "PROCESSOR_UNREACHABLE", "could not reach payment processor", nil)
		}
		return
	}

	result := "created"
	if resp.StatusCode >= http.StatusBadRequest {
		result = "rejected"
		h.Logger.Warn().Int("status", resp.StatusCode).Msg("processor rejected payment link")
	}
	record(result)
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func (h *Handler) validator() *validator.Validate {
	if h.Validate == nil {
		h.Validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return h.Validate
}

func fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[strings.ToLower(fe.Field()[:1])+fe.Field()[1:]] = fe.Tag()
	}
	return out
}

func record(result string) {
	if obs.PaymentLinkTotal != nil {
		obs.PaymentLinkTotal.WithLabelValues(result).Inc()
	}
}
