package confirmation

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-integrity/internal/common"
)

const verifyFailedMessage = "could not verify payment"

// Handler serves the post-payment confirmation endpoint.
type Handler struct {
	Resolver *Resolver
	Logger   zerolog.Logger
}

// Confirm serves GET /confirmacion?id=...
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		common.JSONError(w, http.StatusBadRequest, "TRANSACTION_ID_REQUIRED", "id is required", nil)
		return
	}

	view, err := h.Resolver.Confirm(r.Context(), id)
	w.Header().Set("Cache-Control", "no-store")
	if err != nil {
		if IsReason(err, ReasonUnreachable) {
			h.Logger.Error().Err(err).Str("transaction_id", id).Msg("processor unreachable")
			common.JSONError(w, http.StatusBadGateway, "PROCESSOR_UNREACHABLE", verifyFailedMessage, nil)
			return
		}
		h.Logger.Warn().Err(err).Str("transaction_id", id).Msg("transaction unverifiable")
		common.JSONError(w, http.StatusNotFound, "PAYMENT_UNVERIFIED", verifyFailedMessage, nil)
		return
	}
	common.JSON(w, http.StatusOK, view)
}
