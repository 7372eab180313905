package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bigbag/internal/cache"
	"bigbag/internal/models"
)

func testUser(role string) *models.User {
	return &models.User{ID: primitive.NewObjectID(), Name: "Asha", Role: role}
}

// =============================================================================
// Tokens
// =============================================================================

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	u := testUser(models.RoleVendor)

	tok, err := tokens.Issue(u)
	require.NoError(t, err)

	p, err := tokens.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.UserID)
	assert.Equal(t, models.RoleVendor, p.Role)
}

func TestTokens_RejectsExpiredAndForeign(t *testing.T) {
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tokens := NewTokens("secret", time.Hour)
	tokens.now = func() time.Time { return issued }

	tok, err := tokens.Issue(testUser(models.RoleUser))
	require.NoError(t, err)

	tokens.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = tokens.Parse(tok)
	assert.Error(t, err)

	other := NewTokens("other-secret", time.Hour)
	foreign, err := other.Issue(testUser(models.RoleUser))
	require.NoError(t, err)
	_, err = NewTokens("secret", time.Hour).Parse(foreign)
	assert.Error(t, err)
}

// =============================================================================
// Middleware
// =============================================================================

func serve(h http.HandlerFunc, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestValidateToken(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	m := NewMiddleware(tokens)
	u := testUser(models.RoleUser)
	tok, err := tokens.Issue(u)
	require.NoError(t, err)

	var seen Principal
	h := m.ValidateToken(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(h, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "Token "+tok).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "Bearer garbage").Code)

	rec := serve(h, "Bearer "+tok)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, u.ID, seen.UserID)
}

func TestValidateToken_ErrorBody(t *testing.T) {
	m := NewMiddleware(NewTokens("secret", time.Hour))
	rec := serve(m.ValidateToken(func(http.ResponseWriter, *http.Request) {}), "")

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "UNAUTHENTICATED", body.Error.Code)
}

func TestRequireRole(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	m := NewMiddleware(tokens)
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	h := m.RequireRole(models.RoleVendor, ok)

	for role, want := range map[string]int{
		models.RoleUser:   http.StatusForbidden,
		models.RoleVendor: http.StatusOK,
		models.RoleAdmin:  http.StatusOK,
	} {
		tok, err := tokens.Issue(testUser(role))
		require.NoError(t, err)
		assert.Equal(t, want, serve(h, "Bearer "+tok).Code, role)
	}
}

func TestOptional(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	m := NewMiddleware(tokens)

	var attached bool
	h := m.Optional(func(w http.ResponseWriter, r *http.Request) {
		_, attached = FromContext(r.Context())
	})

	serve(h, "")
	assert.False(t, attached)

	serve(h, "Bearer nope")
	assert.False(t, attached)

	tok, err := tokens.Issue(testUser(models.RoleUser))
	require.NoError(t, err)
	serve(h, "Bearer "+tok)
	assert.True(t, attached)
}

// =============================================================================
// Passwords and OTP
// =============================================================================

func TestPasswords(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrWeakPassword)
	_, err = HashPassword(strings.Repeat("p", MaxPasswordLength+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong horse"))
	assert.False(t, CheckPassword("", "anything"))
}

type recordingSender struct{ codes map[string]string }

func (s *recordingSender) SendCode(_ context.Context, phone, code string) error {
	s.codes[phone] = code
	return nil
}

func TestOTP_SingleUse(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{codes: map[string]string{}}
	otp := NewOTP(cache.NewMemory(), sender, time.Minute)

	require.NoError(t, otp.Request(ctx, "+15550001"))
	code := sender.codes["+15550001"]
	require.Len(t, code, 6)

	assert.ErrorIs(t, otp.Verify(ctx, "+15550001", "000000x"), ErrInvalidCode)
	require.NoError(t, otp.Verify(ctx, "+15550001", code))
	assert.ErrorIs(t, otp.Verify(ctx, "+15550001", code), ErrInvalidCode)
}

func TestOTP_UnknownPhone(t *testing.T) {
	otp := NewOTP(cache.NewMemory(), LogSender{}, time.Minute)
	assert.ErrorIs(t, otp.Verify(context.Background(), "+1999", "123456"), ErrInvalidCode)
}

func TestOTP_AttemptsPerPhone(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{codes: map[string]string{}}
	otp := NewOTP(cache.NewMemory(), sender, time.Minute)

	require.NoError(t, otp.Request(ctx, "+15550002"))
	code := sender.codes["+15550002"]

	for i := 0; i < MaxVerifyAttempts; i++ {
		assert.ErrorIs(t, otp.Verify(ctx, "+15550002", "bad"), ErrInvalidCode, "guess %d", i+1)
	}
	assert.ErrorIs(t, otp.Verify(ctx, "+15550002", code), ErrTooManyAttempts)

	// the pending code is gone, and other phones are unaffected
	require.NoError(t, otp.Request(ctx, "+15550003"))
	assert.NoError(t, otp.Verify(ctx, "+15550003", sender.codes["+15550003"]))
}
