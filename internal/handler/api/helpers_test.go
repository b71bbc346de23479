// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/olegiv/clubcms/internal/auth"
	"github.com/olegiv/clubcms/internal/cache"
	"github.com/olegiv/clubcms/internal/middleware"
	"github.com/olegiv/clubcms/internal/notify"
	"github.com/olegiv/clubcms/internal/objstore"
	"github.com/olegiv/clubcms/internal/scheduler"
	"github.com/olegiv/clubcms/internal/service"
	"github.com/olegiv/clubcms/internal/session"
	"github.com/olegiv/clubcms/internal/store"
	"github.com/olegiv/clubcms/internal/summary"
)

const (
	testAuthorEmail    = "secretary@club.test"
	testAuthorPassword = "fairway-and-green-2024"
	testMediaURL       = "https://media.club.test"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type testEnv struct {
	router http.Handler
	svc    *service.Service
	store  *store.Store
	media  *objstore.Memory
	view   *summary.View
	cookie *http.Cookie
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := store.NewDB(filepath.Join(t.TempDir(), "api-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(db))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mem := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Minute})
	t.Cleanup(func() { _ = mem.Close() })
	lists := cache.NewListCache(mem, time.Minute, logger)

	hub := notify.NewHub(64)
	t.Cleanup(func() { _ = hub.Close() })

	st := store.New(db,
		store.WithChangeHook(lists.Hook()),
		store.WithChangeHook(notify.Hook(hub, logger)),
	)
	media := objstore.NewMemory(testMediaURL)
	svc := service.New(st, media, service.Config{StorageTimeout: time.Second}, logger)

	view := summary.New(st, hub, logger, summary.WithRetryInterval(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = view.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	hash, err := auth.HashPassword(testAuthorPassword)
	require.NoError(t, err)
	verifier, err := auth.NewStaticVerifier(testAuthorEmail, hash)
	require.NoError(t, err)

	guard := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig(), logger)
	t.Cleanup(guard.Close)

	reclaimer := svc.NewReclaimer(time.Hour)
	jobs := scheduler.New(logger)
	require.NoError(t, jobs.Register(scheduler.JobReclaimMedia, "Delete unreferenced media", "", scheduler.ReclaimJob(reclaimer, logger)))

	h := NewHandler(Config{
		Service:       svc,
		Lists:         lists,
		Summary:       view,
		Verifier:      verifier,
		Login:         guard,
		Sessions:      session.New(db, true),
		Reclaimer:     reclaimer,
		Jobs:          jobs,
		Audit:         st.Audit,
		Logger:        logger,
		MaxUploadSize: 1 << 20,
		Timeout:       10 * time.Second,
	})

	return &testEnv{
		router: h.Routes(),
		svc:    svc,
		store:  st,
		media:  media,
		view:   view,
	}
}

// login signs the test author in and keeps the session cookie for later
// requests.
func (e *testEnv) login(t *testing.T) {
	t.Helper()

	w := e.do(t, http.MethodPost, "/login", jsonBody(t, LoginRequest{Email: testAuthorEmail, Password: testAuthorPassword}), "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			e.cookie = c
		}
	}
	require.NotNil(t, e.cookie, "login did not set a session cookie")
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// anonymous performs a request without the session cookie.
func (e *testEnv) anonymous(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) postJSON(t *testing.T, path string, v any) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, http.MethodPost, path, jsonBody(t, v), "application/json")
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

type formFile struct {
	field    string
	filename string
	data     []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...formFile) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func pngFile(field string) formFile {
	return formFile{field: field, filename: "photo.png", data: pngBytes}
}

// decodeData decodes the data member of a success envelope.
func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) (T, *Meta) {
	t.Helper()

	var env struct {
		Data T     `json:"data"`
		Meta *Meta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Data, env.Meta
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Error
}

// createNews creates a news post through the API and returns it.
func (e *testEnv) createNews(t *testing.T, draft map[string]any) NewsResponse {
	t.Helper()

	w := e.postJSON(t, "/news", draft)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	item, _ := decodeData[NewsResponse](t, w)
	return item
}
