package main

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	bearerPrefix = "Bearer "
)

// Claims carries the token subject plus its kind. The type field is what
// keeps a long-lived refresh token from being replayed against
// access-protected endpoints.
type Claims struct {
	jwt.RegisteredClaims
	Username  string `json:"username"`
	TokenType string `json:"type"`
}

// TokenService mints and validates HS256-signed access and refresh tokens.
// Tokens are stateless: validity is signature + expiry + type, nothing more.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenService(secret []byte, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (s *TokenService) IssueAccessToken(username string) (string, error) {
	return s.issue(username, tokenTypeAccess, s.accessTTL)
}

func (s *TokenService) IssueRefreshToken(username string) (string, error) {
	return s.issue(username, tokenTypeRefresh, s.refreshTTL)
}

func (s *TokenService) IssuePair(username string) (*TokenPair, error) {
	access, err := s.IssueAccessToken(username)
	if err != nil {
		return nil, err
	}
	refresh, err := s.IssueRefreshToken(username)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *TokenService) issue(username, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username:  username,
		TokenType: kind,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify returns the claims of a well-formed, correctly signed, unexpired
// token. Bad signature, malformed payload and expiry all collapse into
// ErrInvalidToken so callers cannot tell which check failed.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *TokenService) VerifyAccess(tokenString string) (*Claims, error) {
	return s.verifyTyped(tokenString, tokenTypeAccess)
}

func (s *TokenService) VerifyRefresh(tokenString string) (*Claims, error) {
	return s.verifyTyped(tokenString, tokenTypeRefresh)
}

func (s *TokenService) verifyTyped(tokenString, kind string) (*Claims, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != kind {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// extractBearerToken pulls the token out of an Authorization header. Only the
// exact "Bearer <token>" form is accepted.
func extractBearerToken(header string) (string, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrMissingAuthHeader
	}
	token := header[len(bearerPrefix):]
	if token == "" {
		return "", ErrMissingAuthHeader
	}
	return token, nil
}
