package api

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bigbag/internal/auth"
	"bigbag/internal/models"
)

func TestRegisterAndLogin(t *testing.T) {
	e := newTestEnv(t)

	res := e.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Amira", "email": " Amira@Example.com ", "password": "s3cretpass", "role": "vendor", "country": "ae",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var reg authResponse
	res.decode(&reg)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "amira@example.com", reg.User.Email)
	assert.Equal(t, models.RoleVendor, reg.User.Role)
	assert.Equal(t, "AE", reg.User.Country)
	assert.NotContains(t, res.Body.String(), "password")

	res = e.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Again", "email": "amira@example.com", "password": "s3cretpass",
	})
	assert.Equal(t, http.StatusConflict, res.Code)

	res = e.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "AMIRA@example.com", "password": "s3cretpass"})
	require.Equal(t, http.StatusOK, res.Code)
	var login authResponse
	res.decode(&login)
	assert.Equal(t, reg.User.ID, login.User.ID)

	res = e.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "amira@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	res = e.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ghost@example.com", "password": "s3cretpass"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = e.do(http.MethodGet, "/api/me", login.Token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var me models.User
	res.decode(&me)
	assert.Equal(t, "Amira", me.Name)
}

func TestRegister_Validation(t *testing.T) {
	e := newTestEnv(t)
	cases := map[string]map[string]string{
		"missing name":    {"email": "a@example.com", "password": "s3cretpass"},
		"no contact":      {"name": "A", "password": "s3cretpass"},
		"bad email":       {"name": "A", "email": "nope", "password": "s3cretpass"},
		"short password":  {"name": "A", "email": "a@example.com", "password": "short"},
		"long password":   {"name": "A", "email": "a@example.com", "password": strings.Repeat("x", 80)},
		"admin self-role": {"name": "A", "email": "a@example.com", "password": "s3cretpass", "role": "admin"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			res := e.do(http.MethodPost, "/api/auth/register", "", body)
			assert.Equal(t, http.StatusBadRequest, res.Code, res.Body.String())
			assert.Equal(t, "INVALID_ARGUMENT", res.errorCode())
		})
	}

	res := e.do(http.MethodPost, "/api/auth/register", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, res.Code)
	res = e.do(http.MethodPost, "/api/auth/register", "", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestOTPFlow(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	phone := "+971500000001"

	res := e.do(http.MethodPost, "/api/auth/otp/request", "", map[string]string{"phone": phone})
	require.Equal(t, http.StatusAccepted, res.Code)
	code, err := e.cache.Get(ctx, "otp:"+phone)
	require.NoError(t, err)

	res = e.do(http.MethodPost, "/api/auth/otp/verify", "", map[string]string{"phone": phone, "code": "000000x"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "INVALID_OTP", res.errorCode())

	res = e.do(http.MethodPost, "/api/auth/otp/verify", "", map[string]string{"phone": phone, "code": string(code), "name": "Omar"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var first authResponse
	res.decode(&first)
	assert.Equal(t, "Omar", first.User.Name)
	assert.Equal(t, phone, first.User.Phone)

	res = e.do(http.MethodPost, "/api/auth/otp/verify", "", map[string]string{"phone": phone, "code": string(code)})
	assert.Equal(t, http.StatusUnauthorized, res.Code, "codes are single use")

	res = e.do(http.MethodPost, "/api/auth/otp/request", "", map[string]string{"phone": phone})
	require.Equal(t, http.StatusAccepted, res.Code)
	code, err = e.cache.Get(ctx, "otp:"+phone)
	require.NoError(t, err)
	res = e.do(http.MethodPost, "/api/auth/otp/verify", "", map[string]string{"phone": phone, "code": string(code)})
	require.Equal(t, http.StatusOK, res.Code)
	var second authResponse
	res.decode(&second)
	assert.Equal(t, first.User.ID, second.User.ID)

	res = e.do(http.MethodPost, "/api/auth/otp/request", "", map[string]string{"phone": "123"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestUpdateMe(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.user("lina", models.RoleUser)

	res := e.do(http.MethodPatch, "/api/me", token, map[string]string{"name": "  Lina K ", "country": "sa"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var u models.User
	res.decode(&u)
	assert.Equal(t, "Lina K", u.Name)
	assert.Equal(t, "SA", u.Country)

	res = e.do(http.MethodPatch, "/api/me", token, map[string]string{"name": "   "})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = e.do(http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	res = e.do(http.MethodGet, "/api/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestOTPVerify_LimitsGuessesPerPhone(t *testing.T) {
	e := newTestEnv(t)
	phone := "+971500000009"
	require.Equal(t, http.StatusAccepted, e.do(http.MethodPost, "/api/auth/otp/request", "", map[string]string{"phone": phone}).Code)
	code, err := e.cache.Get(t.Context(), "otp:"+phone)
	require.NoError(t, err)

	for range auth.MaxVerifyAttempts {
		res := e.do(http.MethodPost, "/api/auth/otp/verify", "", map[string]string{"phone": phone, "code": "111111x"})
		require.Equal(t, "INVALID_OTP", res.errorCode())
	}
	res := e.do(http.MethodPost, "/api/auth/otp/verify", "", map[string]string{"phone": phone, "code": string(code)})
	assert.Equal(t, http.StatusTooManyRequests, res.Code)
	assert.Equal(t, "RATE_LIMITED", res.errorCode())

	_, err = e.cache.Get(t.Context(), "otp:"+phone)
	assert.Error(t, err, "the code is dropped once guesses run out")
}
