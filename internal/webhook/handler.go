package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-integrity/internal/common"
	"github.com/noah-isme/checkout-integrity/internal/events"
	"github.com/noah-isme/checkout-integrity/internal/obs"
	"github.com/noah-isme/checkout-integrity/internal/security"
)

// Publisher receives authenticated events.
type Publisher interface {
	Emit(ctx context.Context, topic string, payload any) (events.Event, error)
}

// Handler receives processor webhooks on POST /webhook.
type Handler struct {
	Verifier  Verifier
	Events    Publisher
	Replay    ReplayGuard
	ReplayTTL time.Duration
	MaxBody   int64
	Logger    zerolog.Logger
}

type dispatchedEvent struct {
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
	SentAt *time.Time      `json:"sentAt,omitempty"`
}

// Handle authenticates the raw body before anything parses it, then forwards
// the event to the publisher.
func (h Handler) Handle(w http.ResponseWriter, r *http.Request) {
	raw, err := security.ReadLimited(r.Body, h.MaxBody)
	if err != nil {
		if errors.Is(err, security.ErrBodyTooLarge) {
			record("too_large")
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request entity too large", nil)
			return
		}
		record("unreadable")
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}

	event, err := h.Verifier.Accept(raw, r.Header.Get(SignatureHeader))
	switch {
	case errors.Is(err, ErrSignatureMismatch):
		record("rejected")
		h.Logger.Warn().
			Str("remote_addr", common.ClientIP(r)).
			Int("body_bytes", len(raw)).
			Msg("webhook signature mismatch")
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	case errors.Is(err, ErrMalformedEvent):
		record("malformed")
		h.Logger.Warn().Err(err).Int("body_bytes", len(raw)).Msg("authenticated webhook is not a valid event")
		common.JSONError(w, http.StatusBadRequest, "MALFORMED_EVENT", "event body is not valid JSON", nil)
		return
	case err != nil:
		record("error")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}

	ctx := r.Context()
	key := replayKey(raw)
	if h.Replay != nil && h.ReplayTTL > 0 {
		fresh, err := h.Replay.Acquire(ctx, key, h.ReplayTTL)
		if err != nil {
			record("error")
			h.Logger.Error().Err(err).Msg("webhook replay guard")
			common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", "unable to record webhook", nil)
			return
		}
		if !fresh {
			record("duplicate")
			h.Logger.Info().Str("event", event.EventType).Msg("duplicate webhook ignored")
			common.JSON(w, http.StatusOK, map[string]any{"received": true, "duplicate": true})
			return
		}
	}

	if h.Events != nil {
		payload := dispatchedEvent{Event: event.EventType, Data: event.Data}
		if !event.SentAt.IsZero() {
			payload.SentAt = &event.SentAt
		}
		if _, err := h.Events.Emit(ctx, events.TopicFor(event.EventType), payload); err != nil {
			record("dispatch_failed")
			h.Logger.Error().Err(err).Str("event", event.EventType).Msg("dispatch webhook event")
			if h.Replay != nil && h.ReplayTTL > 0 {
				if relErr := h.Replay.Release(ctx, key); relErr != nil {
					h.Logger.Error().Err(relErr).Msg("release webhook replay guard")
				}
			}
			common.JSONError(w, http.StatusInternalServerError, "EVENT_DISPATCH_FAILED", "unable to process event", nil)
			return
		}
	}

	record("accepted")
	h.Logger.Info().Str("event", event.EventType).Int("body_bytes", len(raw)).Msg("webhook accepted")
	common.JSON(w, http.StatusOK, map[string]any{"received": true})
}

func record(result string) {
	if obs.WebhookVerificationTotal != nil {
		obs.WebhookVerificationTotal.WithLabelValues(result).Inc()
	}
}
