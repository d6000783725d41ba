// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/mwiecke/storefront/internal/cache"
	"github.com/mwiecke/storefront/internal/database"
	"github.com/mwiecke/storefront/internal/models"
	"github.com/mwiecke/storefront/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, repository.New(db)
}

// NewTestCache creates a miniredis-backed cache for tests.
func NewTestCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return cache.New(rdb), mr
}

// NewTestUser creates a verified password user in the database.
func NewTestUser(t *testing.T, repo *repository.Repository, username, email, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	hashStr := string(hash)

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: &hashStr,
		IsVerified:   true,
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// Message is one recorded outbound email.
type Message struct {
	To      string
	Kind    string // verification, reset, 2fa
	Payload string // action token, reset code or OTP
}

// FakeMailer records outbound email instead of sending it.
type FakeMailer struct {
	mu       sync.Mutex
	Messages []Message
	Err      error // returned from every send when set
}

func (f *FakeMailer) record(to, kind, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Messages = append(f.Messages, Message{To: to, Kind: kind, Payload: payload})
	return nil
}

func (f *FakeMailer) SendVerification(_ context.Context, to, actionToken string) error {
	return f.record(to, "verification", actionToken)
}

func (f *FakeMailer) SendPasswordReset(_ context.Context, to, resetCode string) error {
	return f.record(to, "reset", resetCode)
}

func (f *FakeMailer) SendTwoFactorCode(_ context.Context, to, code string) error {
	return f.record(to, "2fa", code)
}

// Last returns the most recently recorded message.
func (f *FakeMailer) Last(t *testing.T) Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.Messages)
	return f.Messages[len(f.Messages)-1]
}
