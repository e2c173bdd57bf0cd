package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes access from refresh tokens.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// ErrInvalidToken is returned for malformed, expired or mistyped tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims are carried by both token types.
type Claims struct {
	jwt.RegisteredClaims
	UserID string    `json:"id"`
	Email  string    `json:"email"`
	Name   string    `json:"nome"`
	Role   string    `json:"role"`
	Type   TokenType `json:"type"`
}

// Principal is the authenticated caller extracted from an access token.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"nome"`
	Role  string `json:"role"`
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Tokens signs and verifies HS256 tokens with one secret per token type.
type Tokens struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokens builds a signer. Both secrets must be non-empty.
func NewTokens(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*Tokens, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("auth: signing secrets must not be empty")
	}
	return &Tokens{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// Issue returns a fresh access/refresh pair for p.
func (t *Tokens) Issue(p Principal) (TokenPair, error) {
	access, err := t.sign(p, TokenAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.sign(p, TokenRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (t *Tokens) sign(p Principal, typ TokenType) (string, error) {
	secret, ttl := t.accessSecret, t.accessTTL
	if typ == TokenRefresh {
		secret, ttl = t.refreshSecret, t.refreshTTL
	}
	now := t.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		UserID: p.ID,
		Email:  p.Email,
		Name:   p.Name,
		Role:   p.Role,
		Type:   typ,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", typ, err)
	}
	return signed, nil
}

// VerifyAccess validates an access token and returns its principal.
func (t *Tokens) VerifyAccess(token string) (Principal, error) {
	c, err := t.verify(token, t.accessSecret, TokenAccess)
	if err != nil {
		return Principal{}, err
	}
	return c.principal(), nil
}

// VerifyRefresh validates a refresh token and returns its claims.
func (t *Tokens) VerifyRefresh(token string) (*Claims, error) {
	return t.verify(token, t.refreshSecret, TokenRefresh)
}

func (t *Tokens) verify(token string, secret []byte, want TokenType) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Type != want {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (c *Claims) principal() Principal {
	return Principal{ID: c.UserID, Email: c.Email, Name: c.Name, Role: c.Role}
}
