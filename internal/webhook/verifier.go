package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SignatureHeader carries the processor's HMAC of the raw request body.
const SignatureHeader = "X-Event-Checksum"

var (
	// ErrSignatureMismatch is returned when the supplied checksum does not
	// authenticate the body. Callers must not retry.
	ErrSignatureMismatch = errors.New("webhook: signature mismatch")
	// ErrMalformedEvent is returned when an authenticated body is not a JSON event.
	ErrMalformedEvent = errors.New("webhook: malformed event")
)

// Event is an authenticated processor notification.
type Event struct {
	RawBody           []byte
	SuppliedSignature string
	EventType         string
	Payload           json.RawMessage
	Data              json.RawMessage
	SentAt            time.Time
}

type envelope struct {
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	SentAt string          `json:"sent_at"`
}

// Verifier authenticates webhook bodies with HMAC-SHA256 keyed by the shared
// webhook secret.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a verifier for secret.
func NewVerifier(secret string) Verifier {
	return Verifier{secret: []byte(secret)}
}

// Checksum returns the lowercase hex HMAC-SHA256 of raw.
func (v Verifier) Checksum(raw []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(raw)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether supplied is the checksum of raw. The supplied value
// is trimmed and lowercased; the comparison runs in constant time. An empty
// signature or an unconfigured secret never verifies.
func (v Verifier) Verify(raw []byte, supplied string) bool {
	supplied = strings.ToLower(strings.TrimSpace(supplied))
	if supplied == "" || len(v.secret) == 0 {
		return false
	}
	return hmac.Equal([]byte(v.Checksum(raw)), []byte(supplied))
}

// Accept verifies raw and only then parses it into an Event.
func (v Verifier) Accept(raw []byte, supplied string) (Event, error) {
	if !v.Verify(raw, supplied) {
		return Event{}, ErrSignatureMismatch
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '{' {
		return Event{}, fmt.Errorf("%w: body is not a JSON object", ErrMalformedEvent)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	ev := Event{
		RawBody:           raw,
		SuppliedSignature: supplied,
		EventType:         strings.TrimSpace(env.Event),
		Payload:           json.RawMessage(raw),
		Data:              env.Data,
	}
	if env.SentAt != "" {
		if sentAt, err := time.Parse(time.RFC3339Nano, env.SentAt); err == nil {
			ev.SentAt = sentAt
		}
	}
	return ev, nil
}
