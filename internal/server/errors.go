// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mwiecke/storefront/internal/apperr"
)

// errorResponse is the JSON shape of every error the API returns.
type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// httpErrorHandler maps errors to JSON responses in one place. Expected
// failures keep their message; unexpected ones are redacted in
// production and always logged with the underlying cause.
func httpErrorHandler(production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := "something went wrong"
		operational := false

		var appErr *apperr.Error
		var echoErr *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
			status = appErr.Status()
			operational = appErr.Operational()
			if operational || !production {
				message = appErr.Message
			}
		case errors.As(err, &echoErr):
			// routing-level errors raised by echo itself
			status = echoErr.Code
			operational = true
			if msg, ok := echoErr.Message.(string); ok {
				message = msg
			}
		}

		if !operational {
			slog.Error("unexpected error",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", status,
				"error", err,
			)
		}

		if c.Request().Method == http.MethodHead {
			if err := c.NoContent(status); err != nil {
				slog.Error("writing error response", "error", err)
			}
			return
		}
		if err := c.JSON(status, errorResponse{Status: "error", Message: message}); err != nil {
			slog.Error("writing error response", "error", err)
		}
	}
}
