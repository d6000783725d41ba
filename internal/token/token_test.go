// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package token_test

import (
	"context"
	"testing"
	"time"

	"github.com/mwiecke/storefront/internal/apperr"
	"github.com/mwiecke/storefront/internal/config"
	"github.com/mwiecke/storefront/internal/models"
	"github.com/mwiecke/storefront/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	rows map[string]*models.RefreshToken // keyed by user id
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]*models.RefreshToken)}
}

func (f *fakeStore) UpsertRefreshToken(_ context.Context, rt *models.RefreshToken) error {
	f.rows[rt.UserID] = rt
	return nil
}

func (f *fakeStore) FindRefreshToken(_ context.Context, tok string) (*models.RefreshToken, error) {
	for _, rt := range f.rows {
		if rt.Token == tok {
			return rt, nil
		}
	}
	return nil, apperr.NotFound("refresh token not found")
}

func (f *fakeStore) DeleteRefreshToken(_ context.Context, userID string) error {
	delete(f.rows, userID)
	return nil
}

func testConfig() config.AuthConfig {
	return config.AuthConfig{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		ActionTokenSecret:  "action-secret",
	}
}

func newService(t *testing.T) (*token.Service, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	svc, err := token.NewService(testConfig(), store)
	require.NoError(t, err)
	return svc, store
}

func TestNewServiceRequiresSecrets(t *testing.T) {
	cases := []config.AuthConfig{
		{RefreshTokenSecret: "r", ActionTokenSecret: "a"},
		{AccessTokenSecret: "a", ActionTokenSecret: "a"},
		{AccessTokenSecret: "a", RefreshTokenSecret: "r"},
	}
	for _, cfg := range cases {
		_, err := token.NewService(cfg, newFakeStore())
		require.Error(t, err)
		assert.Equal(t, apperr.KindConfiguration, apperr.From(err).Kind)
	}
}

func TestIssueSessionTokens(t *testing.T) {
	svc, store := newService(t)

	tokens, err := svc.IssueSessionTokens(context.Background(), "user-1")
	require.NoError(t, err)

	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Len(t, tokens.CSRFToken, 64) // 32 random bytes, hex encoded

	// Exactly one refresh row, matching the issued token.
	require.Len(t, store.rows, 1)
	assert.Equal(t, tokens.RefreshToken, store.rows["user-1"].Token)

	userID, err := svc.VerifyAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	userID, err = svc.VerifyRefreshToken(tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestIssueOverwritesPriorSession(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	first, err := svc.IssueSessionTokens(ctx, "user-1")
	require.NoError(t, err)
	second, err := svc.IssueSessionTokens(ctx, "user-1")
	require.NoError(t, err)

	require.Len(t, store.rows, 1)
	assert.Equal(t, second.RefreshToken, store.rows["user-1"].Token)
	assert.NotEqual(t, first.CSRFToken, second.CSRFToken)
}

func TestVerifyAccessTokenRejectsWrongFamily(t *testing.T) {
	svc, _ := newService(t)

	tokens, err := svc.IssueSessionTokens(context.Background(), "user-1")
	require.NoError(t, err)

	// A refresh token is not a valid access token and vice versa.
	_, err = svc.VerifyAccessToken(tokens.RefreshToken)
	assert.Equal(t, apperr.KindUnauthorized, apperr.From(err).Kind)
	_, err = svc.VerifyRefreshToken(tokens.AccessToken)
	assert.Equal(t, apperr.KindUnauthorized, apperr.From(err).Kind)
}

func TestVerifyAccessTokenExpiredAndMalformedLookAlike(t *testing.T) {
	svc, _ := newService(t)

	past := time.Now().Add(-time.Hour)
	svc.WithClock(func() time.Time { return past })
	tokens, err := svc.IssueSessionTokens(context.Background(), "user-1")
	require.NoError(t, err)
	svc.WithClock(time.Now)

	_, expiredErr := svc.VerifyAccessToken(tokens.AccessToken)
	_, malformedErr := svc.VerifyAccessToken("not-a-token")

	require.Error(t, expiredErr)
	require.Error(t, malformedErr)
	assert.Equal(t, apperr.From(expiredErr).Message, apperr.From(malformedErr).Message)
	assert.Equal(t, apperr.KindUnauthorized, apperr.From(expiredErr).Kind)
}

func TestEmailActionTokenRoundTrip(t *testing.T) {
	svc, _ := newService(t)

	tok, err := svc.IssueEmailActionToken("reset-code-123", "jane@example.com")
	require.NoError(t, err)

	code, email, err := svc.VerifyEmailActionToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "reset-code-123", code)
	assert.Equal(t, "jane@example.com", email)
}

func TestEmailActionTokenExpires(t *testing.T) {
	svc, _ := newService(t)

	svc.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	tok, err := svc.IssueEmailActionToken("code", "jane@example.com")
	require.NoError(t, err)
	svc.WithClock(time.Now)

	_, _, err = svc.VerifyEmailActionToken(tok)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthorized, apperr.From(err).Kind)
}

func TestEmailActionTokenTamperFails(t *testing.T) {
	svc, _ := newService(t)

	tok, err := svc.IssueEmailActionToken("code", "jane@example.com")
	require.NoError(t, err)

	_, _, err = svc.VerifyEmailActionToken(tok + "x")
	assert.Error(t, err)
}

func TestDecodeExpiry(t *testing.T) {
	svc, _ := newService(t)

	tokens, err := svc.IssueSessionTokens(context.Background(), "user-1")
	require.NoError(t, err)

	exp, err := svc.DecodeExpiry(tokens.RefreshToken)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(token.RefreshTokenTTL), exp, time.Minute)

	_, err = svc.DecodeExpiry("garbage")
	assert.Error(t, err)
}

func TestNewCSRFTokenIsUnique(t *testing.T) {
	a, err := token.NewCSRFToken()
	require.NoError(t, err)
	b, err := token.NewCSRFToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
