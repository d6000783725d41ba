// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package identity provides the request-scoped authenticated user.
package identity

import (
	"context"

	"github.com/mwiecke/storefront/internal/models"
)

type ctxKey struct{}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// FromContext returns the authenticated user, or nil if the session
// middleware has not run.
func FromContext(ctx context.Context) *models.User {
	if user, ok := ctx.Value(ctxKey{}).(*models.User); ok {
		return user
	}
	return nil
}
