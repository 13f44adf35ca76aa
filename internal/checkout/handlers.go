package checkout

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-integrity/internal/common"
)

// Handler exposes the checkout-terms endpoint consumed by the payment page.
type Handler struct {
	Assembler *Assembler
	Logger    zerolog.Logger
}

// Order serves GET /api/order?orderId=... The legacy pedido parameter is accepted too.
func (h *Handler) Order(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Assembler == nil {
		common.JSONErrorMessage(w, http.StatusInternalServerError, "checkout unavailable")
		return
	}
	q := r.URL.Query()
	orderID := strings.TrimSpace(q.Get("orderId"))
	if orderID == "" {
		orderID = strings.TrimSpace(q.Get("pedido"))
	}
	if orderID == "" {
		common.JSONErrorMessage(w, http.StatusBadRequest, "orderId is required")
		return
	}

	bundle, err := h.Assembler.BuildBundle(r.Context(), orderID)
	if err != nil {
		appErr := common.AsAppError(err)
		if !errors.Is(err, ErrOrderNotFound) {
			h.Logger.Error().Err(err).Str("order_id", orderID).Msg("build checkout bundle")
		}
		common.JSONErrorMessage(w, appErr.HTTPStatus, appErr.Message)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	common.JSON(w, http.StatusOK, bundle)
}

// PublicConfig serves GET /config with the processor public key.
type PublicConfig struct {
	PublicKey string
}

// ServeHTTP implements http.Handler.
func (p PublicConfig) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]string{"publicKey": p.PublicKey})
}
