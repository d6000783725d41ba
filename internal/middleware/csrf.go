// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mwiecke/storefront/internal/apperr"
)

// CSRF header names accepted on mutating requests.
const (
	HeaderCSRFToken = "x-csrf-token"
	HeaderXSRFToken = "x-xsrf-token"
	csrfFailMessage = "CSRF token validation failed"
)

// CSRF enforces the double-submit-cookie pattern: the token issued in
// the readable XSRF-TOKEN cookie must be echoed back in a request
// header. A cross-origin attacker cannot read the cookie, so cannot
// supply a matching header.
func CSRF() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			header := c.Request().Header.Get(HeaderCSRFToken)
			if header == "" {
				header = c.Request().Header.Get(HeaderXSRFToken)
			}

			cookie, err := c.Cookie(CookieCSRF)
			if header == "" || err != nil || cookie.Value == "" {
				return apperr.Forbidden(csrfFailMessage)
			}

			// Constant-time comparison requires equal-length buffers.
			if len(header) != len(cookie.Value) {
				return apperr.Forbidden(csrfFailMessage)
			}
			if subtle.ConstantTimeCompare([]byte(header), []byte(cookie.Value)) != 1 {
				return apperr.Forbidden(csrfFailMessage)
			}

			return next(c)
		}
	}
}
