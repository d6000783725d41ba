// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/mwiecke/storefront/internal/config"
	"github.com/mwiecke/storefront/internal/handlers"
	"github.com/mwiecke/storefront/internal/middleware"
	"github.com/mwiecke/storefront/internal/permissions"
	"github.com/mwiecke/storefront/internal/testutil"
	"github.com/mwiecke/storefront/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*echo.Echo, *testutil.FakeMailer) {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	c, _ := testutil.NewTestCache(t)
	tokens, err := token.NewService(config.AuthConfig{
		AccessTokenSecret:  "access",
		RefreshTokenSecret: "refresh",
		ActionTokenSecret:  "action",
	}, repo)
	require.NoError(t, err)
	mailer := &testutil.FakeMailer{}

	e := echo.New()
	e.HTTPErrorHandler = httpErrorHandler(false)
	setupRoutes(e, &routerDeps{
		handlers: handlers.New(repo, c, nil),
		auth:     handlers.NewAuth(repo, c, tokens, mailer, nil, nil, false),
		session:  middleware.Session(tokens, repo, c),
		matrix:   permissions.Default(),
	})
	return e, mailer
}

func do(e *echo.Echo, method, path, body string, cookies []*http.Cookie, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// registerAndVerify walks a user through registration and email
// verification, returning the live session cookies and CSRF token.
func registerAndVerify(t *testing.T, e *echo.Echo, mailer *testutil.FakeMailer, username, email string) ([]*http.Cookie, string) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"username": username,
		"email":    email,
		"password": "Password1!",
	})
	rec := do(e, http.MethodPost, "/auth/register", string(body), nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec2 := do(e, http.MethodGet, "/auth/verify-email?token="+mailer.Last(t).Payload, "", nil, nil)
	require.Equal(t, http.StatusOK, rec2.Code, rec2.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	csrf, _ := resp["csrfToken"].(string)
	require.NotEmpty(t, csrf)
	return rec.Result().Cookies(), csrf
}

func TestRoutesHealth(t *testing.T) {
	e, _ := newTestServer(t)

	rec := do(e, http.MethodGet, "/health", "", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoutesProtectedRequiresSession(t *testing.T) {
	e, _ := newTestServer(t)

	rec := do(e, http.MethodGet, "/cart", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoutesMutationRequiresCSRF(t *testing.T) {
	e, mailer := newTestServer(t)
	cookies, csrf := registerAndVerify(t, e, mailer, "jane", "jane@example.com")

	body := `{"productId":"whatever","quantity":1}`

	// Without the header the double-submit check fails.
	rec := do(e, http.MethodPost, "/cart/items", body, cookies, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// With the header the request reaches the handler, which then
	// rejects the unknown product.
	rec = do(e, http.MethodPost, "/cart/items", body, cookies, map[string]string{middleware.HeaderCSRFToken: csrf})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutesPermissionMatrix(t *testing.T) {
	e, mailer := newTestServer(t)
	// First registered user is the admin, second is a plain user.
	adminCookies, adminCSRF := registerAndVerify(t, e, mailer, "admin", "admin@example.com")
	userCookies, userCSRF := registerAndVerify(t, e, mailer, "jane", "jane@example.com")

	product := `{"name":"widget","price":1000,"stock":5}`

	rec := do(e, http.MethodPost, "/products", product, userCookies, map[string]string{middleware.HeaderCSRFToken: userCSRF})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(e, http.MethodPost, "/products", product, adminCookies, map[string]string{middleware.HeaderCSRFToken: adminCSRF})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestRoutesLogoutThenRefreshFails(t *testing.T) {
	e, mailer := newTestServer(t)
	cookies, csrf := registerAndVerify(t, e, mailer, "jane", "jane@example.com")

	rec := do(e, http.MethodPost, "/auth/logout", "", cookies, map[string]string{middleware.HeaderCSRFToken: csrf})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(e, http.MethodPost, "/auth/refresh", "", cookies, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
