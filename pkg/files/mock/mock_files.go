package mock

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"

	"github.com/GraphPe/pinata-cli/internal/devseed"
	"github.com/GraphPe/pinata-cli/pkg/files"
)

const (
	defaultPageSize = 10
	maxPageSize     = 1000
)

// Mock implements files.Backend in memory for tests, mock mode and the
// sandbox server.
type Mock struct {
	mu      sync.RWMutex
	files   map[string]*files.File
	content map[string][]byte
	groups  map[string]*files.Group
	now     func() time.Time
}

// Usage summarises what the store holds.
type Usage struct {
	PinCount     int64
	PinSizeTotal int64
}

var _ files.Backend = (*Mock)(nil)

// New constructs an empty store.
func New() *Mock {
	return &Mock{
		files:   make(map[string]*files.File),
		content: make(map[string][]byte),
		groups:  make(map[string]*files.Group),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// SetClock replaces the time source used for creation timestamps.
func (m *Mock) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now != nil {
		m.now = now
	}
}

// Seed loads groups and files from a devseed document.
func (m *Mock) Seed(seed *devseed.Seed) error {
	if seed == nil {
		return nil
	}
	ctx := context.Background()
	groupIDs := make(map[string]string, len(seed.Groups))
	for _, g := range seed.Groups {
		group, err := m.CreateGroup(ctx, g.Name, g.IsPublic)
		if err != nil {
			return fmt.Errorf("mock files: seed group %q: %w", g.Name, err)
		}
		groupIDs[g.Name] = group.ID
	}
	for _, e := range seed.Files {
		data, err := e.Data()
		if err != nil {
			return err
		}
		f, err := m.Upload(ctx, data, &files.UploadOptions{
			Name:        e.Name,
			GroupID:     groupIDs[e.Group],
			KeyValues:   e.KeyValues,
			ContentType: e.MimeType,
		})
		if err != nil {
			return fmt.Errorf("mock files: seed file %q: %w", e.Name, err)
		}
		if e.CreatedAt != nil {
			m.mu.Lock()
			m.files[f.ID].CreatedAt = e.CreatedAt.UTC()
			m.mu.Unlock()
		}
	}
	return nil
}

// Upload stores data under a new id. Content already present is reported as
// a duplicate of the existing file.
func (m *Mock) Upload(ctx context.Context, data []byte, opts *files.UploadOptions) (*files.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts == nil || strings.TrimSpace(opts.Name) == "" {
		return nil, fmt.Errorf("mock files: name is required: %w", files.ErrInvalidArgument)
	}
	c, err := ComputeCID(data)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if opts.GroupID != "" {
		if _, ok := m.groups[opts.GroupID]; !ok {
			return nil, fmt.Errorf("mock files: group %s: %w", opts.GroupID, files.ErrNotFound)
		}
	}
	for _, existing := range m.files {
		if existing.CID == c {
			dup := cloneFile(existing)
			dup.IsDuplicate = true
			return dup, nil
		}
	}

	mt := opts.ContentType
	if mt == "" {
		mt = mimetype.Detect(data).String()
	}
	f := &files.File{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(opts.Name),
		CID:           c,
		Size:          int64(len(data)),
		NumberOfFiles: 1,
		MimeType:      mt,
		GroupID:       opts.GroupID,
		KeyValues:     copyMap(opts.KeyValues),
		CreatedAt:     m.now(),
	}
	m.files[f.ID] = f
	m.content[c] = append([]byte(nil), data...)
	return cloneFile(f), nil
}

// List filters, orders and paginates the stored files. Page tokens are
// opaque offsets.
func (m *Mock) List(ctx context.Context, opts *files.ListOptions) (*files.ListResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &files.ListOptions{}
	}
	offset, err := decodePageToken(opts.PageToken)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	matched := make([]*files.File, 0, len(m.files))
	for _, f := range m.files {
		if matches(f, opts) {
			matched = append(matched, f)
		}
	}
	asc := strings.EqualFold(opts.Order, "ASC")
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if asc {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	limit := pageSize(opts.Limit)
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]files.File, 0, end-offset)
	for _, f := range matched[offset:end] {
		out = append(out, *cloneFile(f))
	}
	m.mu.RUnlock()

	res := &files.ListResult{Files: out}
	if end < len(matched) {
		res.NextPageToken = encodePageToken(end)
	}
	return res, nil
}

// Get returns a stored file.
func (m *Mock) Get(ctx context.Context, id string) (*files.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("mock files: file %s: %w", id, files.ErrNotFound)
	}
	return cloneFile(f), nil
}

// Update renames a file and merges keyvalues into the existing ones.
func (m *Mock) Update(ctx context.Context, id string, opts *files.UpdateOptions) (*files.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("mock files: file %s: %w", id, files.ErrNotFound)
	}
	if opts != nil {
		if opts.Name != nil {
			f.Name = strings.TrimSpace(*opts.Name)
		}
		if len(opts.KeyValues) > 0 && f.KeyValues == nil {
			f.KeyValues = make(map[string]string, len(opts.KeyValues))
		}
		for k, v := range opts.KeyValues {
			f.KeyValues[k] = v
		}
	}
	return cloneFile(f), nil
}

// Delete removes a file. Content is released once no file references it.
func (m *Mock) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return fmt.Errorf("mock files: file %s: %w", id, files.ErrNotFound)
	}
	delete(m.files, id)
	for _, other := range m.files {
		if other.CID == f.CID {
			return nil
		}
	}
	delete(m.content, f.CID)
	return nil
}

// ListGroups returns groups ordered by creation time, newest first.
func (m *Mock) ListGroups(ctx context.Context, opts *files.GroupListOptions) (*files.GroupListResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &files.GroupListOptions{}
	}
	offset, err := decodePageToken(opts.PageToken)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	matched := make([]files.Group, 0, len(m.groups))
	for _, g := range m.groups {
		if opts.Name != "" && !strings.Contains(strings.ToLower(g.Name), strings.ToLower(opts.Name)) {
			continue
		}
		if opts.IsPublic != nil && g.IsPublic != *opts.IsPublic {
			continue
		}
		matched = append(matched, *g)
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + pageSize(opts.Limit)
	if end > len(matched) {
		end = len(matched)
	}
	res := &files.GroupListResult{Groups: append([]files.Group{}, matched[offset:end]...)}
	if end < len(matched) {
		res.NextPageToken = encodePageToken(end)
	}
	return res, nil
}

// CreateGroup adds a group.
func (m *Mock) CreateGroup(ctx context.Context, name string, isPublic bool) (*files.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("mock files: group name is required: %w", files.ErrInvalidArgument)
	}
	g := &files.Group{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		IsPublic:  isPublic,
		CreatedAt: m.now(),
	}
	m.mu.Lock()
	m.groups[g.ID] = g
	m.mu.Unlock()
	out := *g
	return &out, nil
}

// GetGroup returns a group.
func (m *Mock) GetGroup(ctx context.Context, id string) (*files.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, fmt.Errorf("mock files: group %s: %w", id, files.ErrNotFound)
	}
	out := *g
	return &out, nil
}

// DeleteGroup removes a group and detaches its files.
func (m *Mock) DeleteGroup(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[id]; !ok {
		return fmt.Errorf("mock files: group %s: %w", id, files.ErrNotFound)
	}
	delete(m.groups, id)
	for _, f := range m.files {
		if f.GroupID == id {
			f.GroupID = ""
		}
	}
	return nil
}

// AddToGroup assigns a file to a group.
func (m *Mock) AddToGroup(ctx context.Context, groupID, fileID string) error {
	return m.setGroup(ctx, groupID, fileID, groupID)
}

// RemoveFromGroup detaches a file from a group.
func (m *Mock) RemoveFromGroup(ctx context.Context, groupID, fileID string) error {
	return m.setGroup(ctx, groupID, fileID, "")
}

func (m *Mock) setGroup(ctx context.Context, groupID, fileID, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[groupID]; !ok {
		return fmt.Errorf("mock files: group %s: %w", groupID, files.ErrNotFound)
	}
	f, ok := m.files[fileID]
	if !ok {
		return fmt.Errorf("mock files: file %s: %w", fileID, files.ErrNotFound)
	}
	if value == "" && f.GroupID != groupID {
		return fmt.Errorf("mock files: file %s is not in group %s: %w", fileID, groupID, files.ErrNotFound)
	}
	f.GroupID = value
	return nil
}

// Content returns the bytes stored under a CID.
func (m *Mock) Content(ctx context.Context, c string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.content[c]
	if !ok {
		return nil, fmt.Errorf("mock files: cid %s: %w", c, files.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// Usage reports the number of stored files and their total size.
func (m *Mock) Usage(ctx context.Context) (Usage, error) {
	if err := ctx.Err(); err != nil {
		return Usage{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var u Usage
	for _, f := range m.files {
		u.PinCount++
		u.PinSizeTotal += f.Size
	}
	return u, nil
}

// ComputeCID returns the CIDv1 (raw codec, sha2-256) Pinata reports for a
// single-block file.
func ComputeCID(data []byte) (string, error) {
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("mock files: hash content: %w", err)
	}
	return cid.NewCidV1(cid.Raw, sum).String(), nil
}

func matches(f *files.File, opts *files.ListOptions) bool {
	if opts.CIDPending {
		// Stored content always has its CID computed.
		return false
	}
	if opts.Name != "" && !strings.Contains(strings.ToLower(f.Name), strings.ToLower(opts.Name)) {
		return false
	}
	if opts.CID != "" && f.CID != opts.CID {
		return false
	}
	if opts.MimeType != "" && !strings.EqualFold(baseMime(f.MimeType), baseMime(opts.MimeType)) {
		return false
	}
	if opts.GroupID != "" && f.GroupID != opts.GroupID {
		return false
	}
	for k, v := range opts.KeyValues {
		if f.KeyValues[k] != v {
			return false
		}
	}
	return true
}

func baseMime(mt string) string {
	if idx := strings.Index(mt, ";"); idx >= 0 {
		mt = mt[:idx]
	}
	return strings.TrimSpace(mt)
}

func pageSize(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	default:
		return limit
	}
}

func encodePageToken(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte("offset:" + strconv.Itoa(offset)))
}

func decodePageToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("mock files: invalid page token: %w", files.ErrInvalidArgument)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(string(raw), "offset:"))
	if err != nil || n < 0 || !strings.HasPrefix(string(raw), "offset:") {
		return 0, fmt.Errorf("mock files: invalid page token: %w", files.ErrInvalidArgument)
	}
	return n, nil
}

func cloneFile(f *files.File) *files.File {
	out := *f
	out.KeyValues = copyMap(f.KeyValues)
	return &out
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
