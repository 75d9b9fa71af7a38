package files

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/GraphPe/pinata-cli/internal/httpx"
	"github.com/GraphPe/pinata-cli/internal/pinataapi"
)

const (
	filesPath  = "/v3/files"
	groupsPath = "/v3/files/groups"
)

type httpBackend struct {
	api     *httpx.Client
	uploads *httpx.Client
}

func (b *httpBackend) Upload(ctx context.Context, data []byte, opts *UploadOptions) (*File, error) {
	fields := map[string]string{"name": opts.Name}
	if opts.GroupID != "" {
		fields["group_id"] = opts.GroupID
	}
	if len(opts.KeyValues) > 0 {
		kv, err := json.Marshal(opts.KeyValues)
		if err != nil {
			return nil, fmt.Errorf("files: encode keyvalues: %w", err)
		}
		fields["keyvalues"] = string(kv)
	}
	req, err := httpx.NewMultipartRequest(http.MethodPost, filesPath, fields, httpx.FilePart{
		Field:       "file",
		Filename:    opts.Name,
		ContentType: opts.ContentType,
		Data:        data,
	})
	if err != nil {
		return nil, err
	}
	var file File
	if err := b.call(ctx, b.uploads, "upload", req, &file); err != nil {
		return nil, err
	}
	if strings.TrimSpace(file.CID) == "" {
		return nil, fmt.Errorf("files: upload: missing cid in response")
	}
	return &file, nil
}

func (b *httpBackend) List(ctx context.Context, opts *ListOptions) (*ListResult, error) {
	q := url.Values{}
	setIf(q, "name", opts.Name)
	setIf(q, "cid", opts.CID)
	setIf(q, "mimeType", opts.MimeType)
	setIf(q, "group", opts.GroupID)
	setIf(q, "order", strings.ToUpper(opts.Order))
	setIf(q, "pageToken", opts.PageToken)
	if opts.CIDPending {
		q.Set("cidPending", "true")
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	keys := make([]string, 0, len(opts.KeyValues))
	for k := range opts.KeyValues {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set("metadata["+k+"]", opts.KeyValues[k])
	}

	var res ListResult
	req := &httpx.Request{Method: http.MethodGet, Path: filesPath, Query: q}
	if err := b.call(ctx, b.api, "list", req, &res); err != nil {
		return nil, err
	}
	if res.Files == nil {
		res.Files = []File{}
	}
	return &res, nil
}

func (b *httpBackend) Get(ctx context.Context, id string) (*File, error) {
	var file File
	req := &httpx.Request{Method: http.MethodGet, Path: filePath(id)}
	if err := b.call(ctx, b.api, "get", req, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

func (b *httpBackend) Update(ctx context.Context, id string, opts *UpdateOptions) (*File, error) {
	body := map[string]any{}
	if opts.Name != nil {
		body["name"] = strings.TrimSpace(*opts.Name)
	}
	kv := opts.KeyValues
	if kv == nil {
		kv = map[string]string{}
	}
	body["keyvalues"] = kv
	req, err := httpx.NewJSONRequest(http.MethodPut, filePath(id), body)
	if err != nil {
		return nil, err
	}
	var file File
	if err := b.call(ctx, b.api, "update", req, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

func (b *httpBackend) Delete(ctx context.Context, id string) error {
	req := &httpx.Request{Method: http.MethodDelete, Path: filePath(id)}
	return b.call(ctx, b.api, "delete", req, nil)
}

func (b *httpBackend) ListGroups(ctx context.Context, opts *GroupListOptions) (*GroupListResult, error) {
	q := url.Values{}
	setIf(q, "name", opts.Name)
	setIf(q, "pageToken", opts.PageToken)
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.IsPublic != nil {
		q.Set("isPublic", strconv.FormatBool(*opts.IsPublic))
	}
	var res GroupListResult
	req := &httpx.Request{Method: http.MethodGet, Path: groupsPath, Query: q}
	if err := b.call(ctx, b.api, "list groups", req, &res); err != nil {
		return nil, err
	}
	if res.Groups == nil {
		res.Groups = []Group{}
	}
	return &res, nil
}

func (b *httpBackend) CreateGroup(ctx context.Context, name string, isPublic bool) (*Group, error) {
	req, err := httpx.NewJSONRequest(http.MethodPost, groupsPath, map[string]any{
		"name":      name,
		"is_public": isPublic,
	})
	if err != nil {
		return nil, err
	}
	var group Group
	if err := b.call(ctx, b.api, "create group", req, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

func (b *httpBackend) GetGroup(ctx context.Context, id string) (*Group, error) {
	var group Group
	req := &httpx.Request{Method: http.MethodGet, Path: groupPath(id)}
	if err := b.call(ctx, b.api, "get group", req, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

func (b *httpBackend) DeleteGroup(ctx context.Context, id string) error {
	req := &httpx.Request{Method: http.MethodDelete, Path: groupPath(id)}
	return b.call(ctx, b.api, "delete group", req, nil)
}

func (b *httpBackend) AddToGroup(ctx context.Context, groupID, fileID string) error {
	req := &httpx.Request{Method: http.MethodPut, Path: groupMemberPath(groupID, fileID)}
	return b.call(ctx, b.api, "add to group", req, nil)
}

func (b *httpBackend) RemoveFromGroup(ctx context.Context, groupID, fileID string) error {
	req := &httpx.Request{Method: http.MethodDelete, Path: groupMemberPath(groupID, fileID)}
	return b.call(ctx, b.api, "remove from group", req, nil)
}

// call executes req and decodes the "data" envelope into out when non-nil.
func (b *httpBackend) call(ctx context.Context, client *httpx.Client, op string, req *httpx.Request, out any) error {
	if b == nil || client == nil {
		return fmt.Errorf("files: http backend not configured")
	}
	resp, err := client.Do(ctx, req)
	if err != nil {
		return pinataapi.WrapError("files", op, err)
	}
	body, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return fmt.Errorf("files: %s: read response: %w", op, err)
	}
	if out == nil {
		return nil
	}
	if err := pinataapi.DecodeData(body, out); err != nil {
		return fmt.Errorf("files: decode %s response: %w", op, err)
	}
	return nil
}

func setIf(q url.Values, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		q.Set(key, value)
	}
}

func filePath(id string) string {
	return filesPath + "/" + url.PathEscape(id)
}

func groupPath(id string) string {
	return groupsPath + "/" + url.PathEscape(id)
}

func groupMemberPath(groupID, fileID string) string {
	return groupPath(groupID) + "/ids/" + url.PathEscape(fileID)
}
