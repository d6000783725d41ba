// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware holds the session, CSRF and permission guards.
package middleware

import (
	"context"
	"errors"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/mwiecke/storefront/internal/apperr"
	"github.com/mwiecke/storefront/internal/identity"
	"github.com/mwiecke/storefront/internal/models"
	"github.com/mwiecke/storefront/internal/repository"
)

// Cookie names set by the auth subsystem.
const (
	CookieAccess        = "jwt"
	CookieRefresh       = "refreshToken"
	CookieCSRF          = "XSRF-TOKEN"
	CookieVerifyEmail   = "verifyEmail"
	CookiePasswordReset = "passwordReset"
)

// AccessVerifier verifies an access token and returns the subject user id.
type AccessVerifier interface {
	VerifyAccessToken(token string) (string, error)
}

// UserLoader loads a full user record by id.
type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// IdentityCache is the cache-first identity lookup the session
// middleware uses to avoid a store round-trip per request.
type IdentityCache interface {
	GetUser(ctx context.Context, id string) (*models.User, bool, error)
	SetUser(ctx context.Context, user *models.User) error
	TouchUser(ctx context.Context, id string) error
}

// Session resolves the access-token cookie to an authenticated user and
// attaches it to the request context. Every failure fails the request
// closed through the centralized error responder.
func Session(tokens AccessVerifier, users UserLoader, cache IdentityCache) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(CookieAccess)
			if err != nil || cookie.Value == "" {
				return apperr.Unauthorized("authentication token is missing")
			}

			userID, err := tokens.VerifyAccessToken(cookie.Value)
			if err != nil {
				return err
			}

			ctx := c.Request().Context()
			user, hit, err := cache.GetUser(ctx, userID)
			if err != nil {
				return apperr.Internal("identity cache lookup", err)
			}
			if !hit {
				user, err = users.GetUserByID(ctx, userID)
				if err != nil {
					if errors.Is(err, repository.ErrNotFound) {
						return apperr.Unauthorized("authentication required")
					}
					return apperr.Internal("loading user", err)
				}
				if err := cache.SetUser(ctx, user); err != nil {
					return apperr.Internal("identity cache populate", err)
				}
			}

			// Sliding expiration keeps active sessions cached.
			if err := cache.TouchUser(ctx, userID); err != nil {
				slog.Warn("identity cache touch failed", "user_id", userID, "error", err)
			}

			c.SetRequest(c.Request().WithContext(identity.WithUser(ctx, user)))
			return next(c)
		}
	}
}
