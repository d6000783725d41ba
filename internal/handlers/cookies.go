// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mwiecke/storefront/internal/middleware"
	"github.com/mwiecke/storefront/internal/token"
)

// logoutSentinel replaces cookie values on logout so that a stale
// client never replays a real token by accident.
const logoutSentinel = "logout"

func newCookie(name, value string, ttl time.Duration, httpOnly, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		Expires:  time.Now().Add(ttl),
		HttpOnly: httpOnly,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// setSessionCookies attaches the access, refresh and CSRF cookies to the
// response. The CSRF cookie is deliberately readable by scripts so the
// client can mirror it into a request header.
func setSessionCookies(c echo.Context, pair *token.SessionTokens, secure bool) {
	c.SetCookie(newCookie(middleware.CookieAccess, pair.AccessToken, token.AccessTokenTTL, true, secure))
	c.SetCookie(newCookie(middleware.CookieRefresh, pair.RefreshToken, token.RefreshTokenTTL, true, secure))
	c.SetCookie(newCookie(middleware.CookieCSRF, pair.CSRFToken, token.AccessTokenTTL, false, secure))
}

func setActionCookie(c echo.Context, name, value string, secure bool) {
	c.SetCookie(newCookie(name, value, token.ActionTokenTTL, true, secure))
}

func expireCookie(c echo.Context, name string, secure bool) {
	cookie := newCookie(name, logoutSentinel, 0, true, secure)
	cookie.MaxAge = -1
	cookie.Expires = time.Now().Add(time.Millisecond)
	c.SetCookie(cookie)
}

func expireSessionCookies(c echo.Context, secure bool) {
	expireCookie(c, middleware.CookieAccess, secure)
	expireCookie(c, middleware.CookieRefresh, secure)
	expireCookie(c, middleware.CookieCSRF, secure)
}
