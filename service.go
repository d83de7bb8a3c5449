package main

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// AuthService composes credential checking, TOTP verification and token
// issuance into the login, refresh and change-password flows. It owns the
// error taxonomy: every failure it returns is one of the Err* sentinels.
type AuthService struct {
	store  DB
	tokens *TokenService
}

func NewAuthService(store DB, tokens *TokenService) *AuthService {
	return &AuthService{store: store, tokens: tokens}
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// verifyCredentials resolves the user and checks the password. Unknown user,
// disabled account and wrong password are the same error on the outside.
func (s *AuthService) verifyCredentials(username, password string) (*User, error) {
	if password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.store.GetUserByUsername(normalizeUsername(username))
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if user == nil || !user.Active {
		return nil, ErrInvalidCredentials
	}
	if !comparePassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates username/password plus a TOTP code and returns a fresh
// token pair. The last-login timestamp is updated best-effort; a store error
// there does not fail an otherwise valid login.
func (s *AuthService) Login(username, password, totpCode string) (*TokenPair, error) {
	user, err := s.verifyCredentials(username, password)
	if err != nil {
		return nil, err
	}
	if !verifyTOTP(totpCode, user.TOTPSecret) {
		return nil, ErrInvalidTOTP
	}

	if err := s.store.UpdateLastLogin(user.ID, time.Now()); err != nil {
		log.Printf("updating last login for %s: %v", user.Username, err)
	}

	return s.tokens.IssuePair(user.Username)
}

// Refresh exchanges a valid refresh token for a brand-new pair. The old
// refresh token is not invalidated; it simply ages out (stateless tokens).
func (s *AuthService) Refresh(refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	return s.tokens.IssuePair(claims.Username)
}

// ChangePassword re-verifies the current password and a TOTP code before
// persisting a new hash. Callers must have already checked the access token;
// the re-verification here guards against password changes from a stolen
// session.
func (s *AuthService) ChangePassword(username, currentPassword, newPassword, totpCode string) error {
	if currentPassword == "" || newPassword == "" || totpCode == "" {
		return ErrMissingFields
	}
	if len(newPassword) < 8 {
		return ErrPasswordTooShort
	}

	user, err := s.verifyCredentials(username, currentPassword)
	if err != nil {
		return err
	}
	if !verifyTOTP(totpCode, user.TOTPSecret) {
		return ErrInvalidTOTP
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing new password: %w", err)
	}
	if err := s.store.UpdatePassword(user.ID, hash); err != nil {
		return fmt.Errorf("persisting new password: %w", err)
	}
	return nil
}
