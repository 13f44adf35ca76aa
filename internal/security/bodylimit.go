package security

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/noah-isme/checkout-integrity/internal/common"
)

// ErrBodyTooLarge is returned by ReadLimited when the payload exceeds the limit.
var ErrBodyTooLarge = errors.New("security: request body too large")

// ReadLimited reads at most max bytes of body. Bodies larger than max yield
// ErrBodyTooLarge; max <= 0 disables the limit.
func ReadLimited(body io.Reader, max int64) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if max <= 0 {
		return io.ReadAll(body)
	}
	buf, err := io.ReadAll(io.LimitReader(body, max+1))
	if err != nil {
		return nil, fmt.Errorf("security: read body: %w", err)
	}
	if int64(len(buf)) > max {
		return nil, ErrBodyTooLarge
	}
	return buf, nil
}

// BodyLimit enforces a maximum request payload size. The accepted body is
// buffered so handlers see the exact bytes the client sent.
type BodyLimit struct {
	Max int64
}

// Middleware rejects requests exceeding the configured limit with HTTP 413.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > b.Max {
			tooLarge(w)
			return
		}

		buf, err := ReadLimited(r.Body, b.Max)
		_ = r.Body.Close()
		switch {
		case errors.Is(err, ErrBodyTooLarge):
			tooLarge(w)
			return
		case err != nil:
			common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(buf))
		r.ContentLength = int64(len(buf))
		next.ServeHTTP(w, r)
	})
}

func tooLarge(w http.ResponseWriter) {
	common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request entity too large", nil)
}
