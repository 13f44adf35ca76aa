package paymentlink_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/checkout-integrity/internal/paymentlink"
	"github.com/noah-isme/checkout-integrity/internal/processor"
)

type stubCreator struct {
	got  []processor.PaymentLinkRequest
	resp processor.RawResponse
	err  error
}

func (s *stubCreator) CreatePaymentLink(_ context.Context, link processor.PaymentLinkRequest) (processor.RawResponse, error) {
	s.got = append(s.got, link)
	return s.resp, s.err
}

func create(h *paymentlink.Handler, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/api/payment-links", strings.NewReader(body)))
	return rr
}

func TestCreateRelaysProcessorResponse(t *testing.T) {
	creator := &stubCreator{resp: processor.RawResponse{
		StatusCode:  http.StatusCreated,
		ContentType: "application/json; charset=utf-8",
		Body:        []byte(`{"data":{"id":"link-1"}}`),
	}}
	h := paymentlink.NewHandler(creator, "COP", zerolog.Nop())

	rr := create(h, `{"name":" Mug ","description":"Blue mug","amountInCents":250000}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	require.Equal(t, `{"data":{"id":"link-1"}}`, rr.Body.String())

	require.Len(t, creator.got, 1)
	sent := creator.got[0]
	require.Equal(t, "Mug", sent.Name)
	require.Equal(t, "COP", sent.Currency)
	require.NotNil(t, sent.AmountInCents)
	require.EqualValues(t, 250000, *sent.AmountInCents)
	require.False(t, sent.SingleUse)
	require.False(t, sent.CollectShipping)
}

func TestCreateAcceptsLegacyAmountAndOpenAmount(t *testing.T) {
	creator := &stubCreator{resp: processor.RawResponse{StatusCode: http.StatusOK, Body: []byte(`{}`)}}
	h := paymentlink.NewHandler(creator, "COP", zerolog.Nop())

	require.Equal(t, http.StatusOK, create(h, `{"name":"Mug","description":"Blue","amount":1000}`).Code)
	require.EqualValues(t, 1000, *creator.got[0].AmountInCents)

	require.Equal(t, http.StatusOK, create(h, `{"name":"Mug","description":"Blue"}`).Code)
	require.Nil(t, creator.got[1].AmountInCents)
}

func TestCreateRelaysProcessorRejection(t *testing.T) {
	creator := &stubCreator{resp: processor.RawResponse{StatusCode: http.StatusUnprocessableEntity, Body: []byte(`{"error":{"type":"INPUT_VALIDATION_ERROR"}}`)}}
	h := paymentlink.NewHandler(creator, "COP", zerolog.Nop())

	rr := create(h, `{"name":"Mug","description":"Blue"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.JSONEq(t, `{"error":{"type":"INPUT_VALIDATION_ERROR"}}`, rr.Body.String())
}

func TestCreateValidation(t *testing.T) {
	creator := &stubCreator{}
	h := paymentlink.NewHandler(creator, "COP", zerolog.Nop())

	rr := create(h, `{"name":"","description":"Blue","amountInCents":-5}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var body struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	require.Equal(t, "required", body.Error.Details["name"])
	require.Equal(t, "gt", body.Error.Details["amountInCents"])

	require.Equal(t, http.StatusBadRequest, create(h, `not json`).Code)
	require.Empty(t, creator.got)
}

func TestCreateProcessorUnreachable(t *testing.T) {
	creator := &stubCreator{err: errors.Join(processor.ErrUnavailable, errors.New("dial tcp"))}
	h := paymentlink.NewHandler(creator, "COP", zerolog.Nop())

	rr := create(h, `{"name":"Mug","description":"Blue"}`)
	require.Equal(t, http.StatusBadGateway, rr.Code)
	require.Contains(t, rr.Body.String(), "PROCESSOR_UNREACHABLE")
}

func TestCreateAgainstProcessorServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer prv_test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"link-9","single_use":false}}`))
	}))
	defer srv.Close()

	h := paymentlink.NewHandler(processor.NewClient(srv.URL, "prv_test", time.Second, nil), "COP", zerolog.Nop())
	rr := create(h, `{"name":"Mug","description":"Blue"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.JSONEq(t, `{"data":{"id":"link-9","single_use":false}}`, rr.Body.String())
}
