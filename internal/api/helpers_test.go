package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bigbag/internal/auth"
	"bigbag/internal/cache"
	"bigbag/internal/credits"
	"bigbag/internal/media"
	"bigbag/internal/models"
	"bigbag/internal/shares"
	"bigbag/internal/shops"
	"bigbag/internal/store/memory"
)

type testEnv struct {
	t      *testing.T
	st     *memory.Store
	cache  *cache.Memory
	tokens *auth.Tokens
	h      *Handler
	routes http.Handler
}

func newTestEnv(t *testing.T, opts ...func(*Options)) *testEnv {
	t.Helper()
	st := memory.New()
	c := cache.NewMemory()
	tokens := auth.NewTokens("test-secret", time.Hour)
	creditSvc := credits.NewService(st, nil)
	storage, err := media.NewStorage(t.TempDir(), 1<<20, func(p string) string { return "https://cdn.example" + p })
	require.NoError(t, err)

	o := Options{
		Store:          st,
		Cache:          c,
		Tokens:         tokens,
		OTP:            auth.NewOTP(c, auth.LogSender{}, time.Minute),
		Credits:        creditSvc,
		Shares:         shares.NewService(st, c, time.Minute),
		Shops:          shops.NewService(st, creditSvc, nil, 3),
		Media:          storage,
		CORSOrigins:    []string{"https://app.example"},
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		AuthRateLimit:  1000,
	}
	for _, fn := range opts {
		fn(&o)
	}
	h := NewHandler(o)
	return &testEnv{t: t, st: st, cache: c, tokens: tokens, h: h, routes: h.Routes()}
}

type response struct {
	*httptest.ResponseRecorder
	t *testing.T
}

func (r response) decode(v any) {
	r.t.Helper()
	require.NoError(r.t, json.Unmarshal(r.Body.Bytes(), v), r.Body.String())
}

func (r response) errorCode() string {
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(r.Body.Bytes(), &body)
	return body.Error.Code
}

// do sends a JSON request; body may be nil, a string or any JSON value.
func (e *testEnv) do(method, path, token string, body any) response {
	e.t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(e.t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.routes.ServeHTTP(rec, req)
	return response{ResponseRecorder: rec, t: e.t}
}

func (e *testEnv) user(name, role string) (*models.User, string) {
	e.t.Helper()
	u := &models.User{Name: name, Email: name + "@example.com", Role: role}
	require.NoError(e.t, e.st.CreateUser(context.Background(), u))
	token, err := e.tokens.Issue(u)
	require.NoError(e.t, err)
	return u, token
}

// approvedShop creates a vendor with an approved shop and the welcome credits.
func (e *testEnv) approvedShop(name string) (*models.User, string, *models.Shop) {
	e.t.Helper()
	v, token := e.user(name, models.RoleVendor)
	_, adminToken := e.user(name+"-admin", models.RoleAdmin)

	res := e.do(http.MethodPost, "/api/shops", token, map[string]string{"name": name + " shop", "country": "ae"})
	require.Equal(e.t, http.StatusCreated, res.Code, res.Body.String())
	var shop models.Shop
	res.decode(&shop)

	res = e.do(http.MethodPost, "/api/admin/shops/"+shop.ID.Hex()+"/status", adminToken, map[string]string{"status": models.ShopApproved})
	require.Equal(e.t, http.StatusOK, res.Code, res.Body.String())
	res.decode(&shop)
	return v, token, &shop
}

func (e *testEnv) createRoll(token string) rollView {
	e.t.Helper()
	res := e.do(http.MethodPost, "/api/rolls", token, map[string]any{
		"caption":  "New drop",
		"videoUrl": "https://cdn.example/v.mp4",
		"tags":     []string{"summer"},
	})
	require.Equal(e.t, http.StatusCreated, res.Code, res.Body.String())
	var roll rollView
	res.decode(&roll)
	return roll
}
