package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() Option {
	return WithRetryPolicy(RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})
}

func TestDoRetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, fastRetry())
	require.NoError(t, err)

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.DoJSON(context.Background(), &Request{Method: http.MethodGet, Path: "status"}, &out))
	assert.True(t, out.OK)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"reason":"INVALID_REQUEST","details":"name is too long"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, fastRetry())
	require.NoError(t, err)

	_, err = c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/v3/files"})
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Equal(t, "name is too long", httpErr.Message())
	assert.False(t, httpErr.Retryable())
	assert.NotNil(t, httpErr.JSON)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestDoReplaysBodyOnRetry(t *testing.T) {
	var calls int32
	bodies := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		bodies <- string(data)
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, fastRetry())
	require.NoError(t, err)

	req, err := NewJSONRequest(http.MethodPut, "/v3/files/abc", map[string]string{"name": "x"})
	require.NoError(t, err)
	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.Len(t, bodies, 2)
	assert.Equal(t, `{"name":"x"}`, <-bodies)
	assert.Equal(t, `{"name":"x"}`, <-bodies)
}

func TestDoSendsDefaultHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-jwt", r.Header.Get("Authorization"))
		assert.Equal(t, "pinata-cli/test", r.Header.Get("User-Agent"))
		assert.Equal(t, "req-1", r.Header.Get("X-Request-Id"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL,
		WithBearerToken("secret-jwt"),
		WithUserAgent("pinata-cli/test"),
		WithRequestID("req-1"),
	)
	require.NoError(t, err)
	require.NoError(t, c.DoJSON(context.Background(), &Request{Method: http.MethodGet, Path: "/"}, nil))
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithRetryPolicy(RetryPolicy{MaxRetries: 10, BaseDelay: time.Hour, MaxDelay: time.Hour}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Do(ctx, &Request{Method: http.MethodGet, Path: "/"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBuildURLKeepsBasePrefix(t *testing.T) {
	c, err := NewClient("http://localhost:8787/pinata/")
	require.NoError(t, err)

	got, err := c.buildURL("v3/files", map[string][]string{"limit": {"10"}})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8787/pinata/v3/files?limit=10", got)
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("")
	require.Error(t, err)
	_, err = NewClient("ftp://example.com")
	require.Error(t, err)
}

func TestBackoffIsBounded(t *testing.T) {
	b := NewBackoff(10*time.Millisecond, 80*time.Millisecond, 0)
	assert.Equal(t, 10*time.Millisecond, b.ForAttempt(0))
	assert.Equal(t, 40*time.Millisecond, b.ForAttempt(2))
	assert.Equal(t, 80*time.Millisecond, b.ForAttempt(10))
	assert.Equal(t, 80*time.Millisecond, b.ForAttempt(64))

	j := NewBackoff(100*time.Millisecond, time.Second, 0.5)
	for i := 0; i < 50; i++ {
		d := j.ForAttempt(0)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestRetryAfter(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"3"}}}
	assert.Equal(t, 3*time.Second, retryAfter(resp, 0))
	assert.Equal(t, time.Second, retryAfter(resp, time.Second))
	resp.Header.Set("Retry-After", "Wed, 21 Oct 2015 07:28:00 GMT")
	assert.Zero(t, retryAfter(resp, 0))
}

func TestHTTPErrorMessageShapes(t *testing.T) {
	cases := map[string]string{
		`{"error":"Invalid request format."}`:                    "Invalid request format.",
		`{"error":{"reason":"NO_SCOPES_FOUND"}}`:                 "NO_SCOPES_FOUND",
		`{"message":"Unauthorized"}`:                             "Unauthorized",
		`not json`:                                               "",
		`{"error":{"reason":"X","details":"detail wins"},"a":1}`: "detail wins",
	}
	for body, want := range cases {
		e := &HTTPError{StatusCode: 400, Body: []byte(body)}
		assert.Equal(t, want, e.Message(), body)
	}
}
