package files

import (
	"errors"
	"time"

	"github.com/GraphPe/pinata-cli/internal/pinataapi"
)

// File describes a file stored in a Pinata account.
type File struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	CID           string            `json:"cid"`
	Size          int64             `json:"size"`
	NumberOfFiles int               `json:"number_of_files"`
	MimeType      string            `json:"mime_type"`
	GroupID       string            `json:"group_id,omitempty"`
	KeyValues     map[string]string `json:"keyvalues,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	IsDuplicate   bool              `json:"is_duplicate,omitempty"`
}

// UploadOptions control how a file is stored.
type UploadOptions struct {
	// Name defaults to the base name of the uploaded path.
	Name        string
	GroupID     string
	KeyValues   map[string]string
	ContentType string
}

// ListOptions filter and paginate file listings.
type ListOptions struct {
	Name       string
	CID        string
	MimeType   string
	GroupID    string
	KeyValues  map[string]string
	CIDPending bool
	// Order is "ASC" or "DESC" by creation date.
	Order     string
	Limit     int
	PageToken string
}

// ListResult captures one page of files.
type ListResult struct {
	Files         []File `json:"files"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

// UpdateOptions describes a metadata update. A nil Name keeps the current name.
type UpdateOptions struct {
	Name      *string
	KeyValues map[string]string
}

// Group is a named collection of files.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsPublic  bool      `json:"is_public"`
	CreatedAt time.Time `json:"created_at"`
}

// GroupListOptions filter and paginate group listings.
type GroupListOptions struct {
	Name      string
	IsPublic  *bool
	Limit     int
	PageToken string
}

// GroupListResult captures one page of groups.
type GroupListResult struct {
	Groups        []Group `json:"groups"`
	NextPageToken string  `json:"next_page_token,omitempty"`
}

var (
	// ErrNotFound indicates the requested file or group is missing.
	ErrNotFound = pinataapi.ErrNotFound
	// ErrUnauthorized indicates the JWT was rejected.
	ErrUnauthorized = pinataapi.ErrUnauthorized
	// ErrInvalidArgument is returned before any request when input is unusable.
	ErrInvalidArgument = errors.New("files: invalid argument")
)
