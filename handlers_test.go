package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	db := NewMemoryDB()
	_, err := db.CreateUser("admin", mustHash(t, "admin-password"), testTOTPSecret)
	require.NoError(t, err)
	return NewApp(db, newTestTokenService(), "*")
}

func doJSON(t *testing.T, app *App, method, path string, body interface{}, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)
	return rec
}

func decodeSuccess(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	return envelope.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func login(t *testing.T, app *App) (string, string) {
	t.Helper()
	rec := doJSON(t, app, "POST", "/api/auth/login", map[string]string{
		"username": "admin",
		"password": "admin-password",
		"totpCode": currentTOTPCode(t, testTOTPSecret),
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeSuccess(t, rec)
	return data["accessToken"].(string), data["refreshToken"].(string)
}

func TestHandleLogin_Success(t *testing.T) {
	app := newTestApp(t)

	rec := doJSON(t, app, "POST", "/api/auth/login", map[string]string{
		"username": "admin",
		"password": "admin-password",
		"totpCode": currentTOTPCode(t, testTOTPSecret),
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeSuccess(t, rec)
	require.NotEmpty(t, data["accessToken"])
	require.NotEmpty(t, data["refreshToken"])
	require.EqualValues(t, 900, data["expiresIn"])
	require.Equal(t, "Bearer", data["tokenType"])
}

func TestHandleLogin_Validation(t *testing.T) {
	cases := []struct {
		name string
		body map[string]string
	}{
		{"missing username", map[string]string{"password": "x", "totpCode": "123456"}},
		{"missing password", map[string]string{"username": "admin", "totpCode": "123456"}},
		{"bad totp shape", map[string]string{"username": "admin", "password": "x", "totpCode": "12ab56"}},
		{"short totp", map[string]string{"username": "admin", "password": "x", "totpCode": "123"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t)
			rec := doJSON(t, app, "POST", "/api/auth/login", tc.body, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
		})
	}
}

func TestHandleLogin_WrongPassword(t *testing.T) {
	app := newTestApp(t)

	rec := doJSON(t, app, "POST", "/api/auth/login", map[string]string{
		"username": "admin",
		"password": "wrong-password",
		"totpCode": currentTOTPCode(t, testTOTPSecret),
	}, nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "INVALID_CREDENTIALS", decodeError(t, rec).Code)
}

func TestHandleLogin_WrongTOTP(t *testing.T) {
	app := newTestApp(t)

	rec := doJSON(t, app, "POST", "/api/auth/login", map[string]string{
		"username": "admin",
		"password": "admin-password",
		"totpCode": "000000",
	}, nil)

	if rec.Code == http.StatusOK {
		t.Skip("generated code happened to match")
	}
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "INVALID_TOTP", decodeError(t, rec).Code)
}

func TestHandleLogin_RateLimited(t *testing.T) {
	app := newTestApp(t)
	body := map[string]string{"username": "admin", "password": "wrong", "totpCode": "123456"}

	for i := 0; i < loginMaxRequests; i++ {
		rec := doJSON(t, app, "POST", "/api/auth/login", body, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
	}

	// The 6th attempt within the window is rejected before credentials are
	// even looked at.
	rec := doJSON(t, app, "POST", "/api/auth/login", body, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "RATE_LIMITED", decodeError(t, rec).Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestHandleLogin_RateLimitPerIP(t *testing.T) {
	app := newTestApp(t)
	body := map[string]string{"username": "admin", "password": "wrong", "totpCode": "123456"}

	h := http.Header{}
	h.Set("X-Forwarded-For", "203.0.113.7")
	for i := 0; i < loginMaxRequests; i++ {
		doJSON(t, app, "POST", "/api/auth/login", body, h)
	}
	rec := doJSON(t, app, "POST", "/api/auth/login", body, h)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different client IP still has its own budget.
	other := http.Header{}
	other.Set("X-Forwarded-For", "203.0.113.8")
	rec = doJSON(t, app, "POST", "/api/auth/login", body, other)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleRefresh(t *testing.T) {
	app := newTestApp(t)
	_, refreshToken := login(t, app)

	rec := doJSON(t, app, "POST", "/api/auth/refresh", map[string]string{"refreshToken": refreshToken}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeSuccess(t, rec)
	require.NotEmpty(t, data["accessToken"])
	require.NotEmpty(t, data["refreshToken"])
}

func TestHandleRefresh_Failures(t *testing.T) {
	app := newTestApp(t)
	accessToken, _ := login(t, app)

	rec := doJSON(t, app, "POST", "/api/auth/refresh", map[string]string{}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, app, "POST", "/api/auth/refresh", map[string]string{"refreshToken": "garbage"}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "INVALID_TOKEN", decodeError(t, rec).Code)

	// An access token is not accepted where a refresh token is expected.
	rec = doJSON(t, app, "POST", "/api/auth/refresh", map[string]string{"refreshToken": accessToken}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "INVALID_TOKEN", decodeError(t, rec).Code)
}

func TestHandleChangePassword(t *testing.T) {
	app := newTestApp(t)
	accessToken, _ := login(t, app)

	h := http.Header{}
	h.Set("Authorization", "Bearer "+accessToken)
	rec := doJSON(t, app, "POST", "/api/auth/change-password", map[string]string{
		"currentPassword": "admin-password",
		"newPassword":     "brand-new-password",
		"totpCode":        currentTOTPCode(t, testTOTPSecret),
	}, h)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Old password is gone; the new one logs in.
	rec = doJSON(t, app, "POST", "/api/auth/login", map[string]string{
		"username": "admin",
		"password": "admin-password",
		"totpCode": currentTOTPCode(t, testTOTPSecret),
	}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, app, "POST", "/api/auth/login", map[string]string{
		"username": "admin",
		"password": "brand-new-password",
		"totpCode": currentTOTPCode(t, testTOTPSecret),
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHandleChangePassword_AuthFailures(t *testing.T) {
	app := newTestApp(t)
	_, refreshToken := login(t, app)

	body := map[string]string{
		"currentPassword": "admin-password",
		"newPassword":     "brand-new-password",
		"totpCode":        "123456",
	}

	rec := doJSON(t, app, "POST", "/api/auth/change-password", body, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code, "missing Authorization header")

	h := http.Header{}
	h.Set("Authorization", "Bearer "+refreshToken)
	rec = doJSON(t, app, "POST", "/api/auth/change-password", body, h)
	require.Equal(t, http.StatusUnauthorized, rec.Code, "refresh token must not pass an access check")
}

func TestHandleChangePassword_Validation(t *testing.T) {
	app := newTestApp(t)
	accessToken, _ := login(t, app)
	h := http.Header{}
	h.Set("Authorization", "Bearer "+accessToken)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"missing fields", map[string]string{"newPassword": "brand-new-password"}},
		{"short password", map[string]string{"currentPassword": "admin-password", "newPassword": "short", "totpCode": "123456"}},
		{"bad totp", map[string]string{"currentPassword": "admin-password", "newPassword": "brand-new-password", "totpCode": "12ab56"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, app, "POST", "/api/auth/change-password", tc.body, h)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
		})
	}
}

func TestHandleValidateToken(t *testing.T) {
	app := newTestApp(t)
	accessToken, _ := login(t, app)

	req := httptest.NewRequest("GET", "/api/validate-token", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, fmt.Sprint(generalMaxRequests), rec.Header().Get("X-RateLimit-Limit"))
	require.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))

	data := decodeSuccess(t, rec)
	require.Equal(t, true, data["tokenValid"])
	payload := data["tokenPayload"].(map[string]interface{})
	require.Equal(t, "admin", payload["username"])
	require.EqualValues(t, 900, int64(payload["exp"].(float64))-int64(payload["iat"].(float64)))
}

func TestHandleValidateToken_Failures(t *testing.T) {
	app := newTestApp(t)
	_, refreshToken := login(t, app)

	req := httptest.NewRequest("GET", "/api/validate-token", nil)
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code, "missing header")

	req = httptest.NewRequest("GET", "/api/validate-token", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code, "garbage token")

	req = httptest.NewRequest("GET", "/api/validate-token", nil)
	req.Header.Set("Authorization", "Bearer "+refreshToken)
	rec = httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code, "refresh token rejected on access endpoint")
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		app.Router().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}
