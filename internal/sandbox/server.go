// Package sandbox serves a local imitation of the Pinata API, upload host and
// gateway on top of the in-memory store, for offline development and tests.
package sandbox

import (
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/GraphPe/pinata-cli/pkg/files"
	"github.com/GraphPe/pinata-cli/pkg/files/mock"
)

const maxUploadMemory = 32 << 20

// AuthMessage is returned by the authentication test endpoint.
const AuthMessage = "Congratulations! You are communicating with the Pinata API!"

// Options configure NewRouter.
type Options struct {
	// Store defaults to an empty mock.Mock.
	Store *mock.Mock
	// JWT, when set, must be presented as a bearer token on API routes.
	JWT     string
	Latency time.Duration
	Fail    FailConfig
	Logger  *zap.Logger
	// Rand returns values in [0,1) for failure injection.
	Rand func() float64
}

type server struct {
	store *mock.Mock
	log   *zap.Logger
}

// NewRouter returns the sandbox HTTP handler.
func NewRouter(opts Options) http.Handler {
	s := &server{store: opts.Store, log: opts.Logger}
	if s.store == nil {
		s.store = mock.New()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	random := opts.Rand
	if random == nil {
		random = rand.Float64
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(inject(opts.Latency, opts.Fail, random))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ipfs/{cid}", s.handleGateway)

	r.Group(func(r chi.Router) {
		r.Use(requireJWT(opts.JWT))

		r.Get("/data/testAuthentication", s.handleTestAuth)
		r.Get("/data/userPinnedDataTotal", s.handleUsage)

		r.Route("/v3/files", func(r chi.Router) {
			r.Post("/", s.handleUpload)
			r.Get("/", s.handleList)

			r.Route("/groups", func(r chi.Router) {
				r.Get("/", s.handleListGroups)
				r.Post("/", s.handleCreateGroup)
				r.Get("/{gid}", s.handleGetGroup)
				r.Delete("/{gid}", s.handleDeleteGroup)
				r.Put("/{gid}/ids/{fid}", s.handleGroupMember(true))
				r.Delete("/{gid}/ids/{fid}", s.handleGroupMember(false))
			})

			r.Get("/{id}", s.handleGet)
			r.Put("/{id}", s.handleUpdate)
			r.Delete("/{id}", s.handleDelete)
		})
	})
	return r
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", r.Header.Get("X-Request-Id")),
		)
	})
}

func inject(delay time.Duration, fail FailConfig, random func() float64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-r.Context().Done():
					return
				}
			}
			if fail.Rate > 0 && random() < fail.Rate {
				status := fail.Code
				if status == 0 {
					status = http.StatusInternalServerError
				}
				writeError(w, status, "INJECTED_FAILURE", "failure injected")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requireJWT(jwt string) func(http.Handler) http.Handler {
	jwt = strings.TrimSpace(jwt)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if jwt != "" && r.Header.Get("Authorization") != "Bearer "+jwt {
				writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid/expired credentials")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *server) handleTestAuth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": AuthMessage})
}

func (s *server) handleUsage(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.Usage(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"pin_count":                        u.PinCount,
		"pin_size_total":                   u.PinSizeTotal,
		"pin_size_with_replications_total": u.PinSizeTotal,
	})
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	opts := &files.UploadOptions{
		Name:        r.FormValue("name"),
		GroupID:     r.FormValue("group_id"),
		ContentType: header.Header.Get("Content-Type"),
	}
	if opts.Name == "" {
		opts.Name = header.Filename
	}
	if raw := r.FormValue("keyvalues"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts.KeyValues); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "keyvalues must be a JSON object of strings")
			return
		}
	}
	f, err := s.store.Upload(r.Context(), data, opts)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeData(w, f)
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := &files.ListOptions{
		Name:      q.Get("name"),
		CID:       q.Get("cid"),
		MimeType:  q.Get("mimeType"),
		GroupID:   q.Get("group"),
		Order:     q.Get("order"),
		PageToken: q.Get("pageToken"),
	}
	opts.CIDPending, _ = strconv.ParseBool(q.Get("cidPending"))
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a non-negative integer")
			return
		}
		opts.Limit = n
	}
	for key, values := range q {
		if strings.HasPrefix(key, "metadata[") && strings.HasSuffix(key, "]") && len(values) > 0 {
			if opts.KeyValues == nil {
				opts.KeyValues = make(map[string]string)
			}
			opts.KeyValues[key[len("metadata["):len(key)-1]] = values[0]
		}
	}
	res, err := s.store.List(r.Context(), opts)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeData(w, res)
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	f, err := s.store.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeData(w, f)
}

func (s *server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name      *string           `json:"name"`
		KeyValues map[string]string `json:"keyvalues"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	f, err := s.store.Update(r.Context(), urlParam(r, "id"), &files.UpdateOptions{Name: body.Name, KeyValues: body.KeyValues})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeData(w, f)
}

func (s *server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), urlParam(r, "id")); err != nil {
		s.fail(w, err)
		return
	}
	writeData(w, nil)
}

func (s *server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := &files.GroupListOptions{Name: q.Get("name"), PageToken: q.Get("pageToken")}
	if raw := q.Get("isPublic"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "isPublic must be a boolean")
			return
		}
		opts.IsPublic = &v
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a non-negative integer")
			return
		}
		opts.Limit = n
	}
	res, err := s.store.ListGroups(r.Context(), opts)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeData(w, res)
}

func (s *server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		IsPublic bool   `json:"is_public"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required")
		return
	}
	g, err := s.store.CreateGroup(r.Context(), body.Name, body.IsPublic)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeData(w, g)
}

func (s *server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := s.store.GetGroup(r.Context(), urlParam(r, "gid"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeData(w, g)
}

func (s *server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteGroup(r.Context(), urlParam(r, "gid")); err != nil {
		s.fail(w, err)
		return
	}
	writeData(w, nil)
}

func (s *server) handleGroupMember(add bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gid, fid := urlParam(r, "gid"), urlParam(r, "fid")
		var err error
		if add {
			err = s.store.AddToGroup(r.Context(), gid, fid)
		} else {
			err = s.store.RemoveFromGroup(r.Context(), gid, fid)
		}
		if err != nil {
			s.fail(w, err)
			return
		}
		writeData(w, nil)
	}
}

func (s *server) handleGateway(w http.ResponseWriter, r *http.Request) {
	data, err := s.store.Content(r.Context(), urlParam(r, "cid"))
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, files.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, files.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	default:
		s.log.Error("sandbox handler failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func urlParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func writeData(w http.ResponseWriter, payload any) {
	writeJSON(w, http.StatusOK, map[string]any{"data": payload})
}

func writeError(w http.ResponseWriter, status int, reason, details string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"reason": reason, "details": details},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
