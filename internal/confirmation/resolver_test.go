package confirmation_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/checkout-integrity/internal/confirmation"
	"github.com/noah-isme/checkout-integrity/internal/processor"
)

type stubFetcher struct {
	lookup processor.Lookup
	err    error
	calls  int
	lastID string
}

func (s *stubFetcher) GetTransaction(_ context.Context, id string) (processor.Lookup, error) {
	s.calls++
	s.lastID = id
	return s.lookup, s.err
}

func approved() processor.Lookup {
	return processor.Lookup{Found: true, Transaction: processor.Transaction{
		ID:            "tx-1",
		Reference:     "order-1002",
		Status:        processor.StatusApproved,
		AmountInCents: 1500050,
		Currency:      "COP",
	}}
}

func TestConfirmBuildsViewFromProcessorRecord(t *testing.T) {
	fetcher := &stubFetcher{lookup: approved()}
	resolver := confirmation.Resolver{Processor: fetcher}

	view, err := resolver.Confirm(context.Background(), " tx-1 ")
	require.NoError(t, err)
	require.Equal(t, confirmation.View{
		ID:            "tx-1",
		Reference:     "order-1002",
		Status:        "APPROVED",
		AmountInCents: 1500050,
		DisplayAmount: "15000.50",
		Currency:      "COP",
	}, view)
	require.Equal(t, 1, fetcher.calls)
	require.Equal(t, "tx-1", fetcher.lastID)
}

func TestConfirmUnknownTransactionIsUnverifiable(t *testing.T) {
	fetcher := &stubFetcher{lookup: processor.Lookup{}}
	resolver := confirmation.Resolver{Processor: fetcher}

	_, err := resolver.Confirm(context.Background(), "missing")
	require.True(t, confirmation.IsReason(err, confirmation.ReasonUnverifiable))
	require.Equal(t, 1, fetcher.calls)
}

func TestConfirmUnknownStatusIsUnverifiable(t *testing.T) {
	lookup := approved()
	lookup.Transaction.Status = "REFUNDED"
	resolver := confirmation.Resolver{Processor: &stubFetcher{lookup: lookup}}

	_, err := resolver.Confirm(context.Background(), "tx-1")
	require.True(t, confirmation.IsReason(err, confirmation.ReasonUnverifiable))
}

func TestConfirmTransportFailureIsUnreachable(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	fetcher := &stubFetcher{err: cause}
	resolver := confirmation.Resolver{Processor: fetcher}

	_, err := resolver.Confirm(context.Background(), "tx-1")
	require.True(t, confirmation.IsReason(err, confirmation.ReasonUnreachable))
	require.ErrorIs(t, err, cause)
	require.Equal(t, 1, fetcher.calls, "no retries")
}

func TestConfirmEmptyIDSkipsProcessor(t *testing.T) {
	fetcher := &stubFetcher{lookup: approved()}
	resolver := confirmation.Resolver{Processor: fetcher}

	_, err := resolver.Confirm(context.Background(), "  ")
	require.True(t, confirmation.IsReason(err, confirmation.ReasonUnverifiable))
	require.Zero(t, fetcher.calls)
}

func TestConfirmAgainstProcessorServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transactions/tx-9" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"NOT_FOUND_ERROR"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"id":"tx-9","reference":"order-1001","status":"DECLINED","amount_in_cents":900000,"currency":"COP"}}`))
	}))
	defer srv.Close()
	resolver := confirmation.Resolver{Processor: processor.NewClient(srv.URL, "", time.Second, nil)}

	view, err := resolver.Confirm(context.Background(), "tx-9")
	require.NoError(t, err)
	require.Equal(t, "DECLINED", view.Status)
	require.Equal(t, "9000.00", view.DisplayAmount)

	_, err = resolver.Confirm(context.Background(), "tx-unknown")
	require.True(t, confirmation.IsReason(err, confirmation.ReasonUnverifiable))
}

func TestHandlerConfirm(t *testing.T) {
	cases := []struct {
		name    string
		target  string
		fetcher *stubFetcher
		status  int
		code    string
	}{
		{name: "missing id", target: "/confirmacion", fetcher: &stubFetcher{}, status: http.StatusBadRequest, code: "TRANSACTION_ID_REQUIRED"},
		{name: "unverifiable", target: "/confirmacion?id=nope", fetcher: &stubFetcher{}, status: http.StatusNotFound, code: "PAYMENT_UNVERIFIED"},
		{name: "unreachable", target: "/confirmacion?id=tx-1", fetcher: &stubFetcher{err: errors.New("timeout")}, status: http.StatusBadGateway, code: "PROCESSOR_UNREACHABLE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := &confirmation.Handler{Resolver: &confirmation.Resolver{Processor: tc.fetcher}, Logger: zerolog.Nop()}
			rr := httptest.NewRecorder()
			h.Confirm(rr, httptest.NewRequest(http.MethodGet, tc.target, nil))
			require.Equal(t, tc.status, rr.Code)

			var body struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			require.Equal(t, tc.code, body.Error.Code)
			if tc.status != http.StatusBadRequest {
				require.Equal(t, "could not verify payment", body.Error.Message)
			}
		})
	}

	t.Run("confirmed", func(t *testing.T) {
		h := &confirmation.Handler{Resolver: &confirmation.Resolver{Processor: &stubFetcher{lookup: approved()}}, Logger: zerolog.Nop()}
		rr := httptest.NewRecorder()
		h.Confirm(rr, httptest.NewRequest(http.MethodGet, "/confirmacion?id=tx-1", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
		require.JSONEq(t, `{"id":"tx-1","reference":"order-1002","status":"APPROVED","amountInCents":1500050,"displayAmount":"15000.50","currency":"COP"}`, rr.Body.String())
	})
}
