package main

import (
	"encoding/json"
	"net/http"
	"time"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	TOTPCode string `json:"totpCode"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	TOTPCode        string `json:"totpCode"`
}

type authResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
	TokenType    string `json:"tokenType"`
}

func (a *App) tokenPairResponse(pair *TokenPair) authResponse {
	return authResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int(a.Tokens.accessTTL.Seconds()),
		TokenType:    "Bearer",
	}
}

// HandleLogin authenticates username/password + TOTP and returns a token pair.
// POST /api/auth/login
func (a *App) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	// Validation fails fast, before any bcrypt work.
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Username and password are required")
		return
	}
	if !totpCodePattern.MatchString(req.TOTPCode) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "TOTP code must be a 6-digit number")
		return
	}

	pair, err := a.Auth.Login(req.Username, req.Password, req.TOTPCode)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, a.tokenPairResponse(pair))
}

// HandleRefresh exchanges a refresh token for a new token pair.
// POST /api/auth/refresh
func (a *App) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Refresh token is required")
		return
	}

	pair, err := a.Auth.Refresh(req.RefreshToken)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, a.tokenPairResponse(pair))
}

// HandleChangePassword updates the caller's password after re-verifying the
// current password and a TOTP code. The subject comes from the access token,
// never from the request body.
// POST /api/auth/change-password
func (a *App) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	token, err := extractBearerToken(r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, err)
		return
	}
	claims, err := a.Tokens.VerifyAccess(token)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" || req.TOTPCode == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Current password, new password and TOTP code are required")
		return
	}
	if len(req.NewPassword) < 8 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "New password must be at least 8 characters long")
		return
	}
	if !totpCodePattern.MatchString(req.TOTPCode) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "TOTP code must be a 6-digit number")
		return
	}

	if err := a.Auth.ChangePassword(claims.Username, req.CurrentPassword, req.NewPassword, req.TOTPCode); err != nil {
		writeAuthError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

// HandleValidateToken checks a Bearer access token and reports its payload
// along with the caller's rate-limit budget.
// GET /api/validate-token
func (a *App) HandleValidateToken(w http.ResponseWriter, r *http.Request) {
	token, err := extractBearerToken(r.Header.Get("Authorization"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authorization header must be in format: Bearer <token>")
		return
	}

	claims, err := a.Tokens.VerifyAccess(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", "The provided token is invalid or expired")
		return
	}

	data := map[string]interface{}{
		"tokenValid": true,
		"tokenPayload": map[string]interface{}{
			"username": claims.Username,
			"iat":      claims.IssuedAt.Unix(),
			"exp":      claims.ExpiresAt.Unix(),
		},
	}
	if result, ok := rateLimitFromContext(r.Context()); ok {
		data["rateLimit"] = map[string]interface{}{
			"remaining": result.Remaining,
			"resetTime": result.ResetTime.UTC().Format(time.RFC3339),
		}
	}
	writeSuccess(w, http.StatusOK, data)
}
