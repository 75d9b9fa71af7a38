package files

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/GraphPe/pinata-cli/internal/httpx"
)

// Client provides access to the Pinata Files API.
type Client struct {
	backend Backend
}

// Backend is implemented by the HTTP transport and by in-memory stores.
type Backend interface {
	Upload(ctx context.Context, data []byte, opts *UploadOptions) (*File, error)
	List(ctx context.Context, opts *ListOptions) (*ListResult, error)
	Get(ctx context.Context, id string) (*File, error)
	Update(ctx context.Context, id string, opts *UpdateOptions) (*File, error)
	Delete(ctx context.Context, id string) error

	ListGroups(ctx context.Context, opts *GroupListOptions) (*GroupListResult, error)
	CreateGroup(ctx context.Context, name string, isPublic bool) (*Group, error)
	GetGroup(ctx context.Context, id string) (*Group, error)
	DeleteGroup(ctx context.Context, id string) error
	AddToGroup(ctx context.Context, groupID, fileID string) error
	RemoveFromGroup(ctx context.Context, groupID, fileID string) error
}

// New constructs an HTTP-backed client. apiURL serves metadata endpoints and
// uploadURL receives file uploads; both share opts.
func New(apiURL, uploadURL string, opts ...httpx.Option) (*Client, error) {
	api, err := httpx.NewClient(apiURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("files: api client: %w", err)
	}
	if strings.TrimSpace(uploadURL) == "" {
		uploadURL = apiURL
	}
	uploads, err := httpx.NewClient(uploadURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("files: upload client: %w", err)
	}
	return NewWithHTTPClients(api, uploads), nil
}

// NewWithHTTPClients wraps existing httpx clients.
func NewWithHTTPClients(api, uploads *httpx.Client) *Client {
	if uploads == nil {
		uploads = api
	}
	return &Client{backend: &httpBackend{api: api, uploads: uploads}}
}

// NewWithBackend allows callers to provide a custom backend (e.g., mocks).
func NewWithBackend(b Backend) *Client {
	return &Client{backend: b}
}

// Upload stores the contents of data. opts.Name is required; the content type
// is sniffed from the payload when not provided.
func (c *Client) Upload(ctx context.Context, data io.Reader, opts *UploadOptions) (*File, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if opts == nil || strings.TrimSpace(opts.Name) == "" {
		return nil, fmt.Errorf("%w: upload name is required", ErrInvalidArgument)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: upload data is nil", ErrInvalidArgument)
	}
	payload, err := io.ReadAll(data)
	if err != nil {
		return nil, fmt.Errorf("files: read upload payload: %w", err)
	}
	o := *opts
	o.Name = strings.TrimSpace(o.Name)
	if o.ContentType == "" {
		o.ContentType = mimetype.Detect(payload).String()
	}
	return c.backend.Upload(ctx, payload, &o)
}

// List returns one page of files matching opts.
func (c *Client) List(ctx context.Context, opts *ListOptions) (*ListResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &ListOptions{}
	}
	if opts.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrInvalidArgument)
	}
	if err := validateOrder(opts.Order); err != nil {
		return nil, err
	}
	return c.backend.List(ctx, opts)
}

// ListAll follows page tokens until the listing is exhausted or max files
// have been collected. max <= 0 means no cap.
func (c *Client) ListAll(ctx context.Context, opts *ListOptions, max int) ([]File, error) {
	var o ListOptions
	if opts != nil {
		o = *opts
	}
	seen := make(map[string]struct{})
	var out []File
	for {
		page, err := c.List(ctx, &o)
		if err != nil {
			return nil, err
		}
		for _, f := range page.Files {
			out = append(out, f)
			if max > 0 && len(out) >= max {
				return out, nil
			}
		}
		if page.NextPageToken == "" || len(page.Files) == 0 {
			return out, nil
		}
		if _, dup := seen[page.NextPageToken]; dup {
			return out, nil
		}
		seen[page.NextPageToken] = struct{}{}
		o.PageToken = page.NextPageToken
	}
}

// Get returns the metadata of a single file.
func (c *Client) Get(ctx context.Context, id string) (*File, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	id, err := requireID("file id", id)
	if err != nil {
		return nil, err
	}
	return c.backend.Get(ctx, id)
}

// Update changes the name and/or keyvalues of a file.
func (c *Client) Update(ctx context.Context, id string, opts *UpdateOptions) (*File, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	id, err := requireID("file id", id)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &UpdateOptions{}
	}
	if opts.Name != nil && strings.TrimSpace(*opts.Name) == "" {
		return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidArgument)
	}
	return c.backend.Update(ctx, id, opts)
}

// Delete removes a file from the account.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.ready(); err != nil {
		return err
	}
	id, err := requireID("file id", id)
	if err != nil {
		return err
	}
	return c.backend.Delete(ctx, id)
}

func (c *Client) ready() error {
	if c == nil || c.backend == nil {
		return fmt.Errorf("files: client is nil")
	}
	return nil
}

func requireID(what, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidArgument, what)
	}
	return id, nil
}

func validateOrder(order string) error {
	switch strings.ToUpper(order) {
	case "", "ASC", "DESC":
		return nil
	default:
		return fmt.Errorf("%w: order must be ASC or DESC, got %q", ErrInvalidArgument, order)
	}
}

func copyMap(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
