// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token mints and verifies the session, refresh and email
// action tokens. Each token family is signed with its own secret.
package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mwiecke/storefront/internal/apperr"
	"github.com/mwiecke/storefront/internal/config"
	"github.com/mwiecke/storefront/internal/models"
)

const (
	// AccessTokenTTL is the lifetime of an access token.
	AccessTokenTTL = 15 * time.Minute
	// RefreshTokenTTL is the lifetime of a refresh token.
	RefreshTokenTTL = 7 * 24 * time.Hour
	// ActionTokenTTL is the lifetime of an email action token.
	ActionTokenTTL = time.Hour
	// csrfTokenBytes is the entropy of a CSRF token before hex encoding.
	csrfTokenBytes = 32
)

var validMethods = []string{jwt.SigningMethodHS256.Alg()}

// RefreshTokenStore is the narrow persistence port the service needs.
// At most one refresh token row exists per user; Upsert replaces it.
type RefreshTokenStore interface {
	UpsertRefreshToken(ctx context.Context, rt *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, userID string) error
}

// SessionTokens is the credential set issued on login and refresh.
type SessionTokens struct {
	AccessToken  string
	RefreshToken string
	CSRFToken    string
}

// Service signs and verifies all tokens.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	actionSecret  []byte
	store         RefreshTokenStore
	now           func() time.Time
}

// NewService builds a Service. Every secret must be set; a missing
// secret is a fatal configuration error.
func NewService(cfg config.AuthConfig, store RefreshTokenStore) (*Service, error) {
	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		return nil, apperr.Configuration("missing JWT secret keys in environment")
	}
	if cfg.ActionTokenSecret == "" {
		return nil, apperr.Configuration("missing action token secret in environment")
	}
	return &Service{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		actionSecret:  []byte(cfg.ActionTokenSecret),
		store:         store,
		now:           time.Now,
	}, nil
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// IssueSessionTokens signs an access and a refresh token for the user,
// generates a fresh CSRF token and persists the refresh token, replacing
// any previous session for that user.
func (s *Service) IssueSessionTokens(ctx context.Context, userID string) (*SessionTokens, error) {
	access, err := s.sign(s.accessSecret, userID, AccessTokenTTL)
	if err != nil {
		return nil, apperr.Internal("signing access token", err)
	}
	refresh, err := s.sign(s.refreshSecret, userID, RefreshTokenTTL)
	if err != nil {
		return nil, apperr.Internal("signing refresh token", err)
	}
	csrf, err := NewCSRFToken()
	if err != nil {
		return nil, apperr.Internal("generating csrf token", err)
	}

	rt := &models.RefreshToken{
		Token:     refresh,
		UserID:    userID,
		ExpiresAt: s.now().Add(RefreshTokenTTL),
	}
	if err := s.store.UpsertRefreshToken(ctx, rt); err != nil {
		return nil, apperr.Internal("storing refresh token", err)
	}

	return &SessionTokens{AccessToken: access, RefreshToken: refresh, CSRFToken: csrf}, nil
}

// VerifyAccessToken checks signature and expiry and returns the subject
// user id. Expired and malformed tokens fail the same way.
func (s *Service) VerifyAccessToken(tok string) (string, error) {
	return s.verify(s.accessSecret, tok)
}

// VerifyRefreshToken checks signature and expiry against the refresh
// secret and returns the subject user id.
func (s *Service) VerifyRefreshToken(tok string) (string, error) {
	return s.verify(s.refreshSecret, tok)
}

func (s *Service) sign(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (s *Service) verify(secret []byte, tok string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tok, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods(validMethods),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return "", apperr.Wrap(apperr.KindUnauthorized, "invalid token", err)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", apperr.Unauthorized("invalid token")
	}
	return claims.Subject, nil
}

type actionClaims struct {
	Code  string `json:"code"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// IssueEmailActionToken binds a one-time code to an email address for
// one hour. Used by email verification links and password reset.
func (s *Service) IssueEmailActionToken(code, email string) (string, error) {
	now := s.now()
	claims := actionClaims{
		Code:  code,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ActionTokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.actionSecret)
	if err != nil {
		return "", apperr.Internal("signing action token", err)
	}
	return signed, nil
}

// VerifyEmailActionToken returns the code and email bound into the
// token. Expiry and signature failures are propagated, not swallowed.
func (s *Service) VerifyEmailActionToken(tok string) (code, email string, err error) {
	parsed, err := jwt.ParseWithClaims(tok, &actionClaims{},
		func(t *jwt.Token) (any, error) { return s.actionSecret, nil },
		jwt.WithValidMethods(validMethods),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return "", "", apperr.Wrap(apperr.KindUnauthorized, "invalid action token", err)
	}
	claims, ok := parsed.Claims.(*actionClaims)
	if !ok || claims.Code == "" {
		return "", "", apperr.Unauthorized("invalid action token")
	}
	return claims.Code, claims.Email, nil
}

// DecodeExpiry reads the exp claim without verifying the signature.
// Used for best-effort blacklisting of tokens that are being retired.
func (s *Service) DecodeExpiry(tok string) (time.Time, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(tok, &jwt.RegisteredClaims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("decoding token: %w", err)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("token has no expiry")
	}
	return claims.ExpiresAt.Time, nil
}

// NewCSRFToken returns a hex-encoded random value with 256 bits of entropy.
func NewCSRFToken() (string, error) {
	buf := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// NewOpaqueToken returns a hex-encoded random value used as a stored
// verify/reset token.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
