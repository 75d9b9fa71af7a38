package files_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GraphPe/pinata-cli/internal/httpx"
	"github.com/GraphPe/pinata-cli/pkg/files"
	"github.com/GraphPe/pinata-cli/pkg/files/mock"
)

const testJWT = "test-jwt"

func newTestClient(t *testing.T, handler http.Handler) *files.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := files.New(srv.URL, srv.URL,
		httpx.WithBearerToken(testJWT),
		httpx.WithRetryPolicy(httpx.RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}),
	)
	require.NoError(t, err)
	return client
}

func writeData(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": v})
}

func TestUploadSendsMultipartForm(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+testJWT, r.Header.Get("Authorization"))
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v3/files", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		payload, _ := io.ReadAll(file)
		assert.Equal(t, "report.txt", header.Filename)
		assert.Equal(t, "report.txt", r.FormValue("name"))
		assert.Equal(t, "grp-1", r.FormValue("group_id"))
		assert.JSONEq(t, `{"env":"prod"}`, r.FormValue("keyvalues"))
		assert.True(t, strings.HasPrefix(header.Header.Get("Content-Type"), "text/plain"))

		writeData(w, map[string]any{
			"id":              "f-1",
			"name":            "report.txt",
			"cid":             "bafkreitest",
			"size":            len(payload),
			"number_of_files": 1,
			"mime_type":       "text/plain",
			"group_id":        "grp-1",
			"created_at":      "2024-10-04T12:00:00.000Z",
		})
	}))

	f, err := client.Upload(context.Background(), strings.NewReader("quarterly numbers"), &files.UploadOptions{
		Name:      "report.txt",
		GroupID:   "grp-1",
		KeyValues: map[string]string{"env": "prod"},
	})
	require.NoError(t, err)
	assert.Equal(t, "f-1", f.ID)
	assert.Equal(t, "bafkreitest", f.CID)
	assert.EqualValues(t, 17, f.Size)
	assert.Equal(t, 2024, f.CreatedAt.Year())
}

func TestUploadRequiresName(t *testing.T) {
	client := files.NewWithBackend(mock.New())
	_, err := client.Upload(context.Background(), strings.NewReader("x"), &files.UploadOptions{})
	require.ErrorIs(t, err, files.ErrInvalidArgument)
	_, err = client.Upload(context.Background(), strings.NewReader("x"), nil)
	require.ErrorIs(t, err, files.ErrInvalidArgument)
}

func TestUploadRejectsMissingCID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeData(w, map[string]any{"id": "f-1"})
	}))
	_, err := client.Upload(context.Background(), strings.NewReader("x"), &files.UploadOptions{Name: "x"})
	require.Error(t, err)
}

func TestListEncodesFilters(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v3/files", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "logo", q.Get("name"))
		assert.Equal(t, "image/png", q.Get("mimeType"))
		assert.Equal(t, "grp", q.Get("group"))
		assert.Equal(t, "DESC", q.Get("order"))
		assert.Equal(t, "5", q.Get("limit"))
		assert.Equal(t, "tok", q.Get("pageToken"))
		assert.Equal(t, "true", q.Get("cidPending"))
		assert.Equal(t, "web", q.Get("metadata[app]"))
		writeData(w, map[string]any{
			"files":           []map[string]any{{"id": "a", "name": "logo.png", "cid": "bafy1", "group_id": nil}},
			"next_page_token": "tok2",
		})
	}))

	res, err := client.List(context.Background(), &files.ListOptions{
		Name:       "logo",
		MimeType:   "image/png",
		GroupID:    "grp",
		Order:      "desc",
		Limit:      5,
		PageToken:  "tok",
		CIDPending: true,
		KeyValues:  map[string]string{"app": "web"},
	})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Empty(t, res.Files[0].GroupID)
	assert.Equal(t, "tok2", res.NextPageToken)
}

func TestListValidatesArguments(t *testing.T) {
	client := files.NewWithBackend(mock.New())
	_, err := client.List(context.Background(), &files.ListOptions{Order: "sideways"})
	require.ErrorIs(t, err, files.ErrInvalidArgument)
	_, err = client.List(context.Background(), &files.ListOptions{Limit: -1})
	require.ErrorIs(t, err, files.ErrInvalidArgument)
}

func TestListAllFollowsPageTokens(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		switch r.URL.Query().Get("pageToken") {
		case "":
			writeData(w, map[string]any{"files": []map[string]any{{"id": "1"}, {"id": "2"}}, "next_page_token": "p2"})
		case "p2":
			writeData(w, map[string]any{"files": []map[string]any{{"id": "3"}}, "next_page_token": ""})
		default:
			http.Error(w, "bad token", http.StatusBadRequest)
		}
	}))

	all, err := client.ListAll(context.Background(), nil, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "3", all[2].ID)

	capped, err := client.ListAll(context.Background(), nil, 2)
	require.NoError(t, err)
	assert.Len(t, capped, 2)
	assert.Equal(t, 3, calls)
}

func TestGetMapsNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/files/missing%2Fid", r.URL.EscapedPath())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"reason":"NOT_FOUND","details":"file not found"}}`))
	}))
	_, err := client.Get(context.Background(), "missing/id")
	require.ErrorIs(t, err, files.ErrNotFound)
	assert.Contains(t, err.Error(), "file not found")

	var httpErr *httpx.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
}

func TestUnauthorizedIsMapped(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	err := client.Delete(context.Background(), "abc")
	require.ErrorIs(t, err, files.ErrUnauthorized)
}

func TestUpdateAlwaysSendsKeyValues(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/v3/files/f-9", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"name":"new-name","keyvalues":{}}`, string(body))
		writeData(w, map[string]any{"id": "f-9", "name": "new-name", "cid": "bafy"})
	}))

	name := "new-name"
	f, err := client.Update(context.Background(), "f-9", &files.UpdateOptions{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "new-name", f.Name)
}

func TestEmptyIDsFailLocally(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
	}))
	ctx := context.Background()
	_, err := client.Get(ctx, "  ")
	require.ErrorIs(t, err, files.ErrInvalidArgument)
	require.ErrorIs(t, client.Delete(ctx, ""), files.ErrInvalidArgument)
	_, err = client.Update(ctx, "", nil)
	require.ErrorIs(t, err, files.ErrInvalidArgument)
	empty := " "
	_, err = client.Update(ctx, "id", &files.UpdateOptions{Name: &empty})
	require.ErrorIs(t, err, files.ErrInvalidArgument)
	require.ErrorIs(t, client.AddToGroup(ctx, "", "f"), files.ErrInvalidArgument)
	_, err = client.CreateGroup(ctx, "", false)
	require.ErrorIs(t, err, files.ErrInvalidArgument)
}

func TestGroupEndpoints(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v3/files/groups":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "assets", body["name"])
			assert.Equal(t, true, body["is_public"])
			writeData(w, map[string]any{"id": "g-1", "name": "assets", "is_public": true})
		case r.Method == http.MethodGet && r.URL.Path == "/v3/files/groups":
			assert.Equal(t, "false", r.URL.Query().Get("isPublic"))
			writeData(w, map[string]any{"groups": []map[string]any{{"id": "g-1", "name": "assets"}}})
		case r.Method == http.MethodPut && r.URL.Path == "/v3/files/groups/g-1/ids/f-1":
			writeData(w, nil)
		case r.Method == http.MethodDelete && r.URL.Path == "/v3/files/groups/g-1":
			writeData(w, nil)
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()

	g, err := client.CreateGroup(ctx, " assets ", true)
	require.NoError(t, err)
	assert.Equal(t, "g-1", g.ID)

	private := false
	list, err := client.ListGroups(ctx, &files.GroupListOptions{IsPublic: &private})
	require.NoError(t, err)
	require.Len(t, list.Groups, 1)

	require.NoError(t, client.AddToGroup(ctx, "g-1", "f-1"))
	require.NoError(t, client.DeleteGroup(ctx, "g-1"))
	require.ErrorIs(t, client.RemoveFromGroup(ctx, "g-1", "f-1"), files.ErrNotFound)
}

func TestUploadFileAndUploadMany(t *testing.T) {
	dir := t.TempDir()
	paths := make([]string, 0, 5)
	for _, name := range []string{"a.txt", "b.json", "c.txt", "d.txt", "e.txt"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte("payload "+name), 0o600))
		paths = append(paths, p)
	}

	store := mock.New()
	client := files.NewWithBackend(store)
	ctx := context.Background()

	f, err := client.UploadFile(ctx, paths[1], nil)
	require.NoError(t, err)
	assert.Equal(t, "b.json", f.Name)

	results, err := client.UploadMany(ctx, paths, &files.UploadOptions{Name: "ignored", KeyValues: map[string]string{"batch": "1"}}, 2)
	require.NoError(t, err)
	require.Len(t, results, len(paths))
	for i, r := range results {
		assert.Equal(t, paths[i], r.Path)
		assert.Equal(t, filepath.Base(paths[i]), r.File.Name)
	}

	_, err = client.UploadMany(ctx, append(paths, filepath.Join(dir, "missing.txt")), nil, 0)
	require.Error(t, err)

	_, err = client.UploadFile(ctx, dir, nil)
	require.ErrorIs(t, err, files.ErrInvalidArgument)
	_, err = client.UploadMany(ctx, nil, nil, 1)
	require.ErrorIs(t, err, files.ErrInvalidArgument)
}

// gatedBackend tracks uploads in flight. Uploads named failName return
// errUploadRejected once firstName is in flight; every other upload waits
// for release or cancellation.
type gatedBackend struct {
	files.Backend

	failName  string
	firstName string
	release   chan struct{}
	started   chan struct{}
	startOnce sync.Once

	mu        sync.Mutex
	inFlight  int
	peak      int
	cancelled []string
}

var errUploadRejected = errors.New("upload rejected")

func (b *gatedBackend) Upload(ctx context.Context, data []byte, opts *files.UploadOptions) (*files.File, error) {
	b.mu.Lock()
	b.inFlight++
	if b.inFlight > b.peak {
		b.peak = b.inFlight
	}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.inFlight--
		b.mu.Unlock()
	}()

	if opts.Name == b.firstName {
		b.startOnce.Do(func() { close(b.started) })
	}
	if opts.Name == b.failName {
		select {
		case <-b.started:
		case <-time.After(5 * time.Second):
		}
		return nil, errUploadRejected
	}
	select {
	case <-b.release:
		return &files.File{ID: "id-" + opts.Name, Name: opts.Name, Size: int64(len(data))}, nil
	case <-ctx.Done():
		b.mu.Lock()
		b.cancelled = append(b.cancelled, opts.Name)
		b.mu.Unlock()
		return nil, ctx.Err()
	}
}

func writeBatch(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("f%02d.txt", i))
		require.NoError(t, os.WriteFile(paths[i], []byte(fmt.Sprintf("file %d", i)), 0o600))
	}
	return paths
}

func TestUploadManyHonoursConcurrencyLimit(t *testing.T) {
	paths := writeBatch(t, 9)
	release := make(chan struct{})
	backend := &gatedBackend{release: release, started: make(chan struct{})}
	client := files.NewWithBackend(backend)

	go func() {
		// Let the first uploads pile up against the limit before releasing.
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()

	results, err := client.UploadMany(context.Background(), paths, nil, 3)
	require.NoError(t, err)
	require.Len(t, results, len(paths))
	for i, r := range results {
		assert.Equal(t, filepath.Base(paths[i]), r.File.Name)
	}
	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.LessOrEqual(t, backend.peak, 3)
	assert.GreaterOrEqual(t, backend.peak, 1)
}

func TestUploadManyFirstErrorCancelsOthers(t *testing.T) {
	paths := writeBatch(t, 6)
	backend := &gatedBackend{
		firstName: "f00.txt",
		failName:  "f01.txt",
		release:   make(chan struct{}),
		started:   make(chan struct{}),
	}
	client := files.NewWithBackend(backend)

	done := make(chan struct{})
	var err error
	go func() {
		defer close(done)
		_, err = client.UploadMany(context.Background(), paths, nil, 2)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("UploadMany did not return after a failed upload")
	}

	require.ErrorIs(t, err, errUploadRejected)
	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.LessOrEqual(t, backend.peak, 2)
	assert.Contains(t, backend.cancelled, "f00.txt")
}
