// Package gateway retrieves content by CID through an IPFS HTTP gateway.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ipfs/go-cid"

	"github.com/GraphPe/pinata-cli/internal/httpx"
	"github.com/GraphPe/pinata-cli/internal/pinataapi"
)

var (
	// ErrInvalidCID is returned when the CID cannot be decoded.
	ErrInvalidCID = errors.New("gateway: invalid cid")
	// ErrNotFound indicates the gateway has no content for the CID.
	ErrNotFound = pinataapi.ErrNotFound
)

// Backend streams the content addressed by a validated CID.
type Backend interface {
	Open(ctx context.Context, c cid.Cid) (io.ReadCloser, error)
}

// Client fetches content from a gateway.
type Client struct {
	backend Backend
}

// New constructs an HTTP-backed client for gatewayURL. Downloads are not
// bounded by a timeout; use the context to cancel them.
func New(gatewayURL string, opts ...httpx.Option) (*Client, error) {
	opts = append(append([]httpx.Option(nil), opts...), httpx.WithTimeout(0))
	hc, err := httpx.NewClient(gatewayURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}
	return &Client{backend: &httpBackend{client: hc}}, nil
}

// NewWithBackend allows callers to provide a custom backend (e.g., mocks).
func NewWithBackend(b Backend) *Client {
	return &Client{backend: b}
}

// ParseCID validates s as a CID.
func ParseCID(s string) (cid.Cid, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return cid.Undef, fmt.Errorf("%w: cid is required", ErrInvalidCID)
	}
	c, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: %q: %v", ErrInvalidCID, s, err)
	}
	return c, nil
}

// Fetch copies the content addressed by cidStr into w and returns the number
// of bytes written.
func (c *Client) Fetch(ctx context.Context, cidStr string, w io.Writer) (int64, error) {
	if c == nil || c.backend == nil {
		return 0, fmt.Errorf("gateway: client is nil")
	}
	parsed, err := ParseCID(cidStr)
	if err != nil {
		return 0, err
	}
	rc, err := c.backend.Open(ctx, parsed)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	n, err := io.Copy(w, rc)
	if err != nil {
		return n, fmt.Errorf("gateway: fetch %s: %w", parsed, err)
	}
	return n, nil
}

// FetchToFile downloads the content into path. The file only appears once the
// download completed; a failed download leaves no partial file behind.
func (c *Client) FetchToFile(ctx context.Context, cidStr, path string) (int64, error) {
	if strings.TrimSpace(path) == "" {
		return 0, fmt.Errorf("gateway: output path is required")
	}
	if _, err := ParseCID(cidStr); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("gateway: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	n, err := c.Fetch(ctx, cidStr, tmp)
	if err != nil {
		cleanup()
		return 0, err
	}
	// CreateTemp uses 0600; downloads get ordinary file permissions.
	if err := tmp.Chmod(0o644); err != nil {
		cleanup()
		return 0, fmt.Errorf("gateway: chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("gateway: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("gateway: rename %s: %w", path, err)
	}
	return n, nil
}

type httpBackend struct {
	client *httpx.Client
}

func (b *httpBackend) Open(ctx context.Context, c cid.Cid) (io.ReadCloser, error) {
	resp, err := b.client.Do(ctx, &httpx.Request{Method: http.MethodGet, Path: "/ipfs/" + c.String()})
	if err != nil {
		return nil, pinataapi.WrapError("gateway", "fetch "+c.String(), err)
	}
	return resp.Body, nil
}
