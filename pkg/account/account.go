package account

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/GraphPe/pinata-cli/internal/httpx"
	"github.com/GraphPe/pinata-cli/internal/pinataapi"
)

const (
	testAuthPath = "/data/testAuthentication"
	usagePath    = "/data/userPinnedDataTotal"
)

// ErrUnauthorized indicates the JWT was rejected.
var ErrUnauthorized = pinataapi.ErrUnauthorized

// Usage summarises what an account has pinned. Sizes are in bytes.
type Usage struct {
	PinCount                     int64 `json:"pin_count"`
	PinSizeTotal                 int64 `json:"pin_size_total"`
	PinSizeWithReplicationsTotal int64 `json:"pin_size_with_replications_total"`
}

// Backend is implemented by the HTTP transport and by in-memory stores.
type Backend interface {
	TestAuthentication(ctx context.Context) (string, error)
	Usage(ctx context.Context) (*Usage, error)
}

// Client provides access to the account endpoints.
type Client struct {
	backend Backend
}

// New constructs an HTTP-backed client for apiURL.
func New(apiURL string, opts ...httpx.Option) (*Client, error) {
	hc, err := httpx.NewClient(apiURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("account: %w", err)
	}
	return NewWithHTTPClient(hc), nil
}

// NewWithHTTPClient wraps an existing httpx client.
func NewWithHTTPClient(hc *httpx.Client) *Client {
	return &Client{backend: &httpBackend{client: hc}}
}

// NewWithBackend allows callers to provide a custom backend (e.g., mocks).
func NewWithBackend(b Backend) *Client {
	return &Client{backend: b}
}

// TestAuthentication verifies the configured JWT and returns the message
// reported by the API.
func (c *Client) TestAuthentication(ctx context.Context) (string, error) {
	if c == nil || c.backend == nil {
		return "", fmt.Errorf("account: client is nil")
	}
	return c.backend.TestAuthentication(ctx)
}

// Usage returns the pinned data totals of the account.
func (c *Client) Usage(ctx context.Context) (*Usage, error) {
	if c == nil || c.backend == nil {
		return nil, fmt.Errorf("account: client is nil")
	}
	return c.backend.Usage(ctx)
}

type httpBackend struct {
	client *httpx.Client
}

func (b *httpBackend) TestAuthentication(ctx context.Context) (string, error) {
	body, err := b.get(ctx, "test authentication", testAuthPath)
	if err != nil {
		return "", err
	}
	msg := gjson.GetBytes(body, "message").String()
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	return msg, nil
}

func (b *httpBackend) Usage(ctx context.Context) (*Usage, error) {
	body, err := b.get(ctx, "usage", usagePath)
	if err != nil {
		return nil, err
	}
	return parseUsage(body)
}

func (b *httpBackend) get(ctx context.Context, op, path string) ([]byte, error) {
	resp, err := b.client.Do(ctx, &httpx.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return nil, pinataapi.WrapError("account", op, err)
	}
	body, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("account: %s: read response: %w", op, err)
	}
	return body, nil
}

// parseUsage accepts totals encoded either as JSON numbers or as strings,
// with or without a data envelope.
func parseUsage(body []byte) (*Usage, error) {
	payload, err := pinataapi.ExtractData(body)
	if err != nil {
		return nil, fmt.Errorf("account: decode usage response: %w", err)
	}
	if !gjson.ValidBytes(payload) || !gjson.ParseBytes(payload).IsObject() {
		return nil, fmt.Errorf("account: decode usage response: unexpected body %q", strings.TrimSpace(string(body)))
	}
	res := gjson.GetManyBytes(payload, "pin_count", "pin_size_total", "pin_size_with_replications_total")
	return &Usage{
		PinCount:                     res[0].Int(),
		PinSizeTotal:                 res[1].Int(),
		PinSizeWithReplicationsTotal: res[2].Int(),
	}, nil
}
