package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/noah-isme/checkout-integrity/internal/obs"
	"github.com/noah-isme/checkout-integrity/internal/resilience"
)

const (
	// DefaultBaseURL is the processor's production API.
	DefaultBaseURL = "https://production.wompi.co/v1"

	maxResponseBytes = 1 << 20
	userAgent        = "checkout-integrity/1.0"
)

var (
	// ErrUnavailable reports that the processor could not be reached or
	// answered with a server error.
	ErrUnavailable = errors.New("processor: unavailable")
	// ErrMissingPrivateKey is returned by calls that require the private key.
	ErrMissingPrivateKey = errors.New("processor: private key not configured")
)

// Client talks to the processor's REST API. Each call makes a single attempt.
type Client struct {
	BaseURL    string
	PrivateKey string
	HTTP       *resilience.HTTPClient
}

// NewClient builds a client with a traced transport, the given per-call
// timeout and breaker.
func NewClient(baseURL, privateKey string, timeout time.Duration, breaker *resilience.Breaker) *Client {
	return &Client{
		BaseURL:    baseURL,
		PrivateKey: privateKey,
		HTTP: &resilience.HTTPClient{
			Client:  resilience.NewTracedClient(),
			Breaker: breaker,
			Timeout: timeout,
		},
	}
}

// GetTransaction fetches a transaction by id. A non-nil error means the
// processor was unreachable (transport failure, timeout, open breaker or
// 5xx). Absent, malformed or 4xx answers yield Lookup{Found: false}.
func (c *Client) GetTransaction(ctx context.Context, transactionID string) (Lookup, error) {
	start := time.Now()
	endpoint := c.endpoint("/transactions/" + url.PathEscape(transactionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Lookup{}, fmt.Errorf("processor: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient().Do(ctx, req)
	if err != nil {
		observe("get_transaction", "unreachable", start)
		return Lookup{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		observe("get_transaction", "unreachable", start)
		return Lookup{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		observe("get_transaction", "unreachable", start)
		return Lookup{}, fmt.Errorf("%w: read body: %w", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		observe("get_transaction", "not_found", start)
		return Lookup{}, nil
	}
	lookup := decodeTransaction(body)
	result := "found"
	if !lookup.Found {
		result = "not_found"
	}
	observe("get_transaction", result, start)
	return lookup, nil
}

func decodeTransaction(body []byte) Lookup {
	var envelope transactionEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Data == nil {
		return Lookup{}
	}
	var tx Transaction
	if err := json.Unmarshal(*envelope.Data, &tx); err != nil {
		return Lookup{}
	}
	if strings.TrimSpace(tx.ID) == "" {
		return Lookup{}
	}
	return Lookup{Transaction: tx, Found: true}
}

// CreatePaymentLink posts a payment-link request with the private key and
// returns the processor's status and body unchanged.
func (c *Client) CreatePaymentLink(ctx context.Context, link PaymentLinkRequest) (RawResponse, error) {
	if strings.TrimSpace(c.PrivateKey) == "" {
		return RawResponse{}, ErrMissingPrivateKey
	}
	start := time.Now()
	payload, err := json.Marshal(link)
	if err != nil {
		return RawResponse{}, fmt.Errorf("processor: encode payment link: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/payment_links"), bytes.NewReader(payload))
	if err != nil {
		return RawResponse{}, fmt.Errorf("processor: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.PrivateKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient().Do(ctx, req)
	if err != nil {
		observe("create_payment_link", "unreachable", start)
		return RawResponse{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		observe("create_payment_link", "unreachable", start)
		return RawResponse{}, fmt.Errorf("%w: read body: %w", ErrUnavailable, err)
	}
	result := "ok"
	if resp.StatusCode >= http.StatusBadRequest {
		result = "rejected"
	}
	observe("create_payment_link", result, start)
	return RawResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func (c *Client) endpoint(path string) string {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return base + path
}

func (c *Client) httpClient() *resilience.HTTPClient {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &resilience.HTTPClient{Client: http.DefaultClient}
}

func observe(operation, result string, start time.Time) {
	if obs.ProcessorLatency != nil {
		obs.ProcessorLatency.WithLabelValues(operation, result).Observe(obs.DurationMillis(time.Since(start)))
	}
}
