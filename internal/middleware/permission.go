// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/mwiecke/storefront/internal/apperr"
	"github.com/mwiecke/storefront/internal/identity"
	"github.com/mwiecke/storefront/internal/permissions"
)

// RequirePermission authorizes the resolved identity against the
// static role matrix. Resource and action are fixed at route
// registration, never derived from the request.
func RequirePermission(matrix permissions.Matrix, resource permissions.Resource, action permissions.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := identity.FromContext(c.Request().Context())
			if user == nil {
				return apperr.Unauthorized("authentication required")
			}
			if !matrix.Allows(user.Role, resource, action) {
				return apperr.Forbidden("you don't have permission to access this resource")
			}
			return next(c)
		}
	}
}
