package api

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bigbag/internal/media"
	"bigbag/internal/models"
)

func TestRequestID(t *testing.T) {
	e := newTestEnv(t)

	res := e.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.NotEmpty(t, res.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	e.routes.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestErrorBody(t *testing.T) {
	e := newTestEnv(t)
	res := e.do(http.MethodGet, "/api/shops/not-an-id", "", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "INVALID_ARGUMENT", res.errorCode())
	assert.Equal(t, "application/json", res.Header().Get("Content-Type"))
}

func TestCORS(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/rolls", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	e.routes.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	e.routes.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestIPRateLimit(t *testing.T) {
	e := newTestEnv(t, func(o *Options) {
		o.RateLimitRPS = 0.001
		o.RateLimitBurst = 2
	})

	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/healthz", "", nil).Code)
	res := e.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, res.Code)
	assert.Equal(t, "RATE_LIMITED", res.errorCode())
	assert.Equal(t, "1", res.Header().Get("Retry-After"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	rec := httptest.NewRecorder()
	e.routes.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "limits are per client IP")
}

func TestAuthRateLimit(t *testing.T) {
	e := newTestEnv(t, func(o *Options) { o.AuthRateLimit = 2 })
	body := map[string]string{"email": "x@example.com", "password": "whatever1"}

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodPost, "/api/auth/login", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodPost, "/api/auth/login", "", body).Code)
	res := e.do(http.MethodPost, "/api/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, res.Code)
	assert.Equal(t, "60", res.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/categories", "", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	e.do(http.MethodGet, "/healthz", "", nil)

	res := e.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "http_requests_total")
}

func TestBodyTooLarge(t *testing.T) {
	e := newTestEnv(t)
	huge := `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	res := e.do(http.MethodPost, "/api/auth/register", "", huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, res.Code)
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) upload(token string, body io.Reader, contentType string) response {
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.routes.ServeHTTP(rec, req)
	return response{ResponseRecorder: rec, t: e.t}
}

func TestUpload(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.user("uploader", models.RoleUser)

	body, ct := multipartBody(t, "file", "clip.MP4", []byte("fake video bytes"))
	res := e.upload(token, body, ct)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var stored media.Stored
	res.decode(&stored)
	assert.Equal(t, "video", stored.Kind)
	assert.Equal(t, int64(16), stored.Size)
	assert.True(t, strings.HasPrefix(stored.URL, "https://cdn.example/uploads/"))

	get := e.do(http.MethodGet, media.PathPrefix+stored.Name, "", nil)
	require.Equal(t, http.StatusOK, get.Code)
	assert.Equal(t, "fake video bytes", get.Body.String())

	body, ct = multipartBody(t, "file", "script.sh", []byte("#!/bin/sh"))
	res = e.upload(token, body, ct)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	body, ct = multipartBody(t, "file", "big.png", bytes.Repeat([]byte{1}, 2<<20))
	res = e.upload(token, body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, res.Code)

	body, ct = multipartBody(t, "other", "a.png", []byte("x"))
	res = e.upload(token, body, ct)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = e.upload("", strings.NewReader("x"), "text/plain")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}
