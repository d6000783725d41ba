// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/labstack/echo/v4"
	"github.com/mwiecke/storefront/internal/apperr"
	"github.com/mwiecke/storefront/internal/cache"
	"github.com/mwiecke/storefront/internal/identity"
	"github.com/mwiecke/storefront/internal/middleware"
	"github.com/mwiecke/storefront/internal/models"
	"github.com/mwiecke/storefront/internal/repository"
	"github.com/mwiecke/storefront/internal/services/email"
	"github.com/mwiecke/storefront/internal/token"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is deliberately above the library default.
const bcryptCost = 13

// dummyHash is compared against when the account does not exist, so a
// login probe costs the same time either way.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("timing equalizer"), bcryptCost)

const (
	oauthStateCookie = "oauthState"
	oauthStateTTL    = 10 * time.Minute
	credentialsErr   = "invalid email or password"
)

// nowFunc is swapped out in tests.
var nowFunc = time.Now

// FederatedIdentity is what the external identity provider vouches for.
type FederatedIdentity struct {
	ID       string
	Email    string
	Username string
}

// IdentityProvider is the federated-login collaborator. The concrete
// OAuth client lives outside this subsystem.
type IdentityProvider interface {
	AuthURL(state string) string
	Exchange(c echo.Context, code string) (*FederatedIdentity, error)
}

// AuthHandlers contains the handlers for every authentication flow.
type AuthHandlers struct {
	repo   *repository.Repository
	cache  *cache.Cache
	tokens *token.Service
	mailer email.Sender
	idp    IdentityProvider
	state  *securecookie.SecureCookie
	secure bool
}

// NewAuth creates a new AuthHandlers instance. stateCodec signs the
// OAuth state cookie; idp may be nil when federated login is disabled.
func NewAuth(repo *repository.Repository, cache *cache.Cache, tokens *token.Service, mailer email.Sender, idp IdentityProvider, stateCodec *securecookie.SecureCookie, secure bool) *AuthHandlers {
	return &AuthHandlers{
		repo:   repo,
		cache:  cache,
		tokens: tokens,
		mailer: mailer,
		idp:    idp,
		state:  stateCodec,
		secure: secure,
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account, emails the verification link and opens a
// session right away. The account stays unverified until the link is
// followed.
func (h *AuthHandlers) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		return apperr.Validation("username is required")
	}
	if !validEmail(req.Email) {
		return apperr.Validation("a valid email is required")
	}
	if !validPassword(req.Password) {
		return apperr.Validation("password must be at least 8 characters and contain upper and lower case letters, a digit and a special character")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return apperr.Internal("hashing password", err)
	}
	verifyCode, err := token.NewOpaqueToken()
	if err != nil {
		return apperr.Internal("generating verify token", err)
	}

	hashStr := string(hash)
	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: &hashStr,
		VerifyToken:  &verifyCode,
	}
	if err := h.repo.CreateUser(c.Request().Context(), user); err != nil {
		if repository.IsUniqueViolation(err) {
			return apperr.Conflict("an account with this email already exists")
		}
		return apperr.Internal("creating user", err)
	}

	actionToken, err := h.tokens.IssueEmailActionToken(verifyCode, req.Email)
	if err != nil {
		return err
	}
	if err := h.mailer.SendVerification(c.Request().Context(), req.Email, actionToken); err != nil {
		return apperr.Internal("sending verification email", err)
	}

	pair, err := h.tokens.IssueSessionTokens(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	setSessionCookies(c, pair, h.secure)
	setActionCookie(c, middleware.CookieVerifyEmail, actionToken, h.secure)

	return c.JSON(http.StatusCreated, map[string]any{
		"username":  user.Username,
		"csrfToken": pair.CSRFToken,
	})
}

// VerifyEmail confirms the address behind a verification link. The
// token in the query string may be the signed action token from the
// email or the raw stored code; both resolve to the same user.
func (h *AuthHandlers) VerifyEmail(c echo.Context) error {
	raw := c.QueryParam("token")
	if raw == "" {
		return apperr.Validation("verification token is required")
	}

	code := raw
	if decoded, _, err := h.tokens.VerifyEmailActionToken(raw); err == nil {
		code = decoded
	}

	user, err := h.repo.VerifyEmailByToken(c.Request().Context(), code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("invalid or expired verification token")
		}
		return apperr.Internal("verifying email", err)
	}

	// a stale cached identity would keep reporting the user unverified
	if err := h.cache.InvalidateUser(c.Request().Context(), user.ID); err != nil {
		slog.Warn("invalidating cached identity", "error", err)
	}
	expireCookie(c, middleware.CookieVerifyEmail, h.secure)

	return c.JSON(http.StatusOK, map[string]string{
		"message": "email verified successfully",
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks the credentials and opens a session. Unknown accounts
// and wrong passwords fail with the same message after the same amount
// of work.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		return apperr.Validation("email and password are required")
	}

	user, err := h.repo.GetUserByEmail(c.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
			return apperr.Unauthorized(credentialsErr)
		}
		return apperr.Internal("loading user", err)
	}
	if user.PasswordHash == nil {
		// federated account; burn the same time as a real comparison
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
		return apperr.Unauthorized("please log in with your identity provider")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return apperr.Unauthorized(credentialsErr)
	}
	if !user.IsVerified {
		return apperr.Unauthorized("please verify your email before logging in")
	}

	pair, err := h.tokens.IssueSessionTokens(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	setSessionCookies(c, pair, h.secure)

	return c.JSON(http.StatusOK, map[string]any{
		"username":             user.Username,
		"csrfToken":            pair.CSRFToken,
		"requiresSecondFactor": user.SecondEmail != nil,
	})
}

// FederatedLogin redirects to the identity provider with a signed
// state value.
func (h *AuthHandlers) FederatedLogin(c echo.Context) error {
	if h.idp == nil {
		return apperr.Configuration("federated login is not configured")
	}
	state := uuid.NewString()
	encoded, err := h.state.Encode(oauthStateCookie, state)
	if err != nil {
		return apperr.Internal("encoding oauth state", err)
	}
	c.SetCookie(newCookie(oauthStateCookie, encoded, oauthStateTTL, true, h.secure))
	return c.Redirect(http.StatusTemporaryRedirect, h.idp.AuthURL(state))
}

// FederatedCallback finishes the provider round trip. A first-time
// visitor gets an account created on the spot; either way a session is
// opened without an email verification gate.
func (h *AuthHandlers) FederatedCallback(c echo.Context) error {
	if h.idp == nil {
		return apperr.Configuration("federated login is not configured")
	}
	stateCookie, err := c.Cookie(oauthStateCookie)
	if err != nil {
		return apperr.Unauthorized("missing oauth state")
	}
	var state string
	if err := h.state.Decode(oauthStateCookie, stateCookie.Value, &state); err != nil {
		return apperr.Unauthorized("invalid oauth state")
	}
	if subtle.ConstantTimeCompare([]byte(state), []byte(c.QueryParam("state"))) != 1 {
		return apperr.Unauthorized("invalid oauth state")
	}
	expireCookie(c, oauthStateCookie, h.secure)

	fid, err := h.idp.Exchange(c, c.QueryParam("code"))
	if err != nil {
		return apperr.Wrap(apperr.KindUnauthorized, "identity provider rejected the code", err)
	}

	user, err := h.repo.GetUserByGoogleID(c.Request().Context(), fid.ID)
	if errors.Is(err, repository.ErrNotFound) {
		user = &models.User{
			Username:   fid.Username,
			Email:      strings.ToLower(fid.Email),
			GoogleID:   &fid.ID,
			IsVerified: true,
		}
		if createErr := h.repo.CreateUser(c.Request().Context(), user); createErr != nil {
			if repository.IsUniqueViolation(createErr) {
				return apperr.Conflict("an account with this email already exists")
			}
			return apperr.Internal("creating federated user", createErr)
		}
	} else if err != nil {
		return apperr.Internal("loading federated user", err)
	}

	pair, err := h.tokens.IssueSessionTokens(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	setSessionCookies(c, pair, h.secure)

	return c.JSON(http.StatusOK, map[string]any{
		"username":  user.Username,
		"csrfToken": pair.CSRFToken,
	})
}

// Logout closes the session: the stored refresh token is deleted, the
// presented one is blacklisted for its remaining lifetime and every
// session cookie is overwritten.
func (h *AuthHandlers) Logout(c echo.Context) error {
	user := identity.FromContext(c.Request().Context())
	if user == nil {
		return apperr.Unauthorized("authentication required")
	}

	if err := h.repo.DeleteRefreshToken(c.Request().Context(), user.ID); err != nil {
		return apperr.Internal("deleting refresh token", err)
	}
	if cookie, err := c.Cookie(middleware.CookieRefresh); err == nil && cookie.Value != "" {
		if exp, decErr := h.tokens.DecodeExpiry(cookie.Value); decErr == nil {
			if blErr := h.cache.BlacklistToken(c.Request().Context(), cookie.Value, exp.Sub(nowFunc())); blErr != nil {
				return apperr.Internal("blacklisting refresh token", blErr)
			}
		} else {
			slog.Warn("decoding refresh token on logout", "error", decErr)
		}
	}
	if err := h.cache.InvalidateUser(c.Request().Context(), user.ID); err != nil {
		slog.Warn("invalidating cached identity", "error", err)
	}
	expireSessionCookies(c, h.secure)

	return c.JSON(http.StatusOK, map[string]string{
		"message": "logged out successfully",
	})
}

// Refresh rotates the session. The presented refresh token must pass
// the blacklist, still be the stored one for its user and carry a valid
// signature before it is burned and replaced.
func (h *AuthHandlers) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(middleware.CookieRefresh)
	if err != nil || cookie.Value == "" {
		return apperr.Unauthorized("refresh token is missing")
	}
	presented := cookie.Value
	ctx := c.Request().Context()

	revoked, err := h.cache.IsBlacklisted(ctx, presented)
	if err != nil {
		return apperr.Internal("checking token blacklist", err)
	}
	if revoked {
		return apperr.Forbidden("token has been revoked")
	}

	stored, err := h.repo.FindRefreshToken(ctx, presented)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Forbidden("invalid refresh token")
		}
		return apperr.Internal("loading refresh token", err)
	}

	userID, err := h.tokens.VerifyRefreshToken(presented)
	if err != nil || userID != stored.UserID {
		return apperr.Forbidden("invalid refresh token")
	}

	user, err := h.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("user not found")
		}
		return apperr.Internal("loading user", err)
	}

	if exp, decErr := h.tokens.DecodeExpiry(presented); decErr == nil {
		if blErr := h.cache.BlacklistToken(ctx, presented, exp.Sub(nowFunc())); blErr != nil {
			return apperr.Internal("blacklisting rotated token", blErr)
		}
	} else {
		slog.Warn("decoding refresh token on rotation", "error", decErr)
	}

	pair, err := h.tokens.IssueSessionTokens(ctx, user.ID)
	if err != nil {
		return err
	}
	setSessionCookies(c, pair, h.secure)

	return c.JSON(http.StatusOK, map[string]any{
		"message":   "session refreshed",
		"csrfToken": pair.CSRFToken,
	})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword stores a fresh reset code on the account, mails it and
// parks a signed copy in a short-lived cookie for the reset step.
func (h *AuthHandlers) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if !validEmail(req.Email) {
		return apperr.Validation("a valid email is required")
	}

	code, err := token.NewOpaqueToken()
	if err != nil {
		return apperr.Internal("generating reset code", err)
	}
	if err := h.repo.SetVerifyToken(c.Request().Context(), req.Email, code); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("user not found")
		}
		return apperr.Internal("storing reset code", err)
	}

	actionToken, err := h.tokens.IssueEmailActionToken(code, req.Email)
	if err != nil {
		return err
	}
	setActionCookie(c, middleware.CookiePasswordReset, actionToken, h.secure)

	if err := h.mailer.SendPasswordReset(c.Request().Context(), req.Email, code); err != nil {
		return apperr.Internal("sending password reset email", err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "password reset email sent",
	})
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	ResetCode   string `json:"resetCode"`
	NewPassword string `json:"newPassword"`
}

// ResetPassword finishes the reset: the signed cookie, the submitted
// code, the submitted email and the stored code all have to agree.
func (h *AuthHandlers) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.ResetCode == "" || req.NewPassword == "" {
		return apperr.Validation("email, reset code and new password are required")
	}
	if !validPassword(req.NewPassword) {
		return apperr.Validation("password must be at least 8 characters and contain upper and lower case letters, a digit and a special character")
	}

	cookie, err := c.Cookie(middleware.CookiePasswordReset)
	if err != nil || cookie.Value == "" {
		return apperr.Unauthorized("password reset session is missing")
	}
	code, boundEmail, err := h.tokens.VerifyEmailActionToken(cookie.Value)
	if err != nil {
		return apperr.Unauthorized("invalid or expired reset session")
	}
	if boundEmail != req.Email {
		return apperr.Unauthorized("invalid or expired reset token")
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(req.ResetCode)) != 1 {
		return apperr.Unauthorized("invalid or expired reset token")
	}

	user, err := h.repo.GetUserByEmail(c.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Unauthorized("invalid or expired reset token")
		}
		return apperr.Internal("loading user", err)
	}
	if user.VerifyToken == nil || subtle.ConstantTimeCompare([]byte(*user.VerifyToken), []byte(req.ResetCode)) != 1 {
		return apperr.Unauthorized("invalid or expired reset token")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcryptCost)
	if err != nil {
		return apperr.Internal("hashing password", err)
	}
	if err := h.repo.UpdatePassword(c.Request().Context(), req.Email, string(hash)); err != nil {
		return apperr.Internal("updating password", err)
	}
	if err := h.repo.ClearVerifyToken(c.Request().Context(), req.Email); err != nil {
		return apperr.Internal("clearing reset code", err)
	}
	expireCookie(c, middleware.CookiePasswordReset, h.secure)

	return c.JSON(http.StatusOK, map[string]string{
		"message": "password updated successfully",
	})
}

type secondEmailRequest struct {
	SecondEmail string `json:"secondEmail"`
}

// AddSecondEmail registers the address that receives second-factor
// codes.
func (h *AuthHandlers) AddSecondEmail(c echo.Context) error {
	user := identity.FromContext(c.Request().Context())
	if user == nil {
		return apperr.Unauthorized("authentication required")
	}
	var req secondEmailRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	req.SecondEmail = strings.TrimSpace(strings.ToLower(req.SecondEmail))
	if !validEmail(req.SecondEmail) {
		return apperr.Validation("a valid email is required")
	}

	if err := h.repo.SetSecondEmail(c.Request().Context(), user.ID, req.SecondEmail); err != nil {
		return apperr.Internal("storing second email", err)
	}
	if err := h.cache.InvalidateUser(c.Request().Context(), user.ID); err != nil {
		slog.Warn("invalidating cached identity", "error", err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "second email added successfully",
	})
}

// RequestSecondFactor mails a short one-time code to the user's second
// email. A newer code replaces any earlier one.
func (h *AuthHandlers) RequestSecondFactor(c echo.Context) error {
	user := identity.FromContext(c.Request().Context())
	if user == nil {
		return apperr.Unauthorized("authentication required")
	}
	if user.SecondEmail == nil || *user.SecondEmail == "" {
		return apperr.Validation("second email is not set")
	}

	code := uuid.NewString()[:6]
	if err := h.cache.SetSecondFactorCode(c.Request().Context(), user.ID, code); err != nil {
		return apperr.Internal("storing second factor code", err)
	}
	if err := h.mailer.SendTwoFactorCode(c.Request().Context(), *user.SecondEmail, code); err != nil {
		return apperr.Internal("sending second factor code", err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "verification code sent",
	})
}

type secondFactorRequest struct {
	Code string `json:"code"`
}

// VerifySecondFactor checks the submitted code against the stored one
// and consumes it on success.
func (h *AuthHandlers) VerifySecondFactor(c echo.Context) error {
	user := identity.FromContext(c.Request().Context())
	if user == nil {
		return apperr.Unauthorized("authentication required")
	}
	if user.SecondEmail == nil || *user.SecondEmail == "" {
		return apperr.Validation("second email is not set")
	}
	var req secondFactorRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if req.Code == "" {
		return apperr.Validation("verification code is required")
	}

	stored, ok, err := h.cache.GetSecondFactorCode(c.Request().Context(), user.ID)
	if err != nil {
		return apperr.Internal("loading second factor code", err)
	}
	if !ok {
		return apperr.Validation("no verification code found or code expired")
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(req.Code)) != 1 {
		return apperr.Unauthorized("invalid or expired verification code")
	}
	if err := h.cache.DeleteSecondFactorCode(c.Request().Context(), user.ID); err != nil {
		return apperr.Internal("consuming second factor code", err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "second factor verified",
	})
}

func validEmail(addr string) bool {
	if addr == "" {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	return err == nil && parsed.Address == addr
}

// validPassword enforces minimum length plus upper, lower, digit and
// special character classes.
func validPassword(pw string) bool {
	if len(pw) < 8 {
		return false
	}
	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	return upper && lower && digit && special
}
