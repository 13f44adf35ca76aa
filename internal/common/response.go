package common

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the structured error used by the webhook, confirmation and
// payment-link endpoints: {"error":{"code":...,"message":...,"details":...}}.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// JSON encodes v with the given status. Encoding failures after the header
// is sent cannot be reported and are dropped.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError writes the structured error shape. details is omitted when nil.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, errorEnvelope{Error: ErrorBody{Code: code, Message: message, Details: details}})
}

// JSONErrorMessage writes the flat {"error": "..."} shape read by the
// checkout page script on GET /api/order.
func JSONErrorMessage(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
