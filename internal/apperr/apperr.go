// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package apperr defines the tagged error type shared by all request
// handling code and its mapping to HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the centralized HTTP responder.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindConfiguration
)

var statusByKind = map[Kind]int{
	KindInternal:      http.StatusInternalServerError,
	KindValidation:    http.StatusBadRequest,
	KindUnauthorized:  http.StatusUnauthorized,
	KindForbidden:     http.StatusForbidden,
	KindNotFound:      http.StatusNotFound,
	KindConflict:      http.StatusConflict,
	KindConfiguration: http.StatusInternalServerError,
}

// Error carries a kind, a client-facing message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Operational reports whether the error is an expected failure whose
// message is safe to return to the client.
func (e *Error) Operational() bool {
	switch e.Kind {
	case KindValidation, KindUnauthorized, KindForbidden, KindNotFound, KindConflict:
		return true
	}
	return false
}

// Status returns the HTTP status code for the error's kind.
func (e *Error) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Validation returns a 400-class error.
func Validation(message string) *Error { return newError(KindValidation, message) }

// Unauthorized returns a 401-class error.
func Unauthorized(message string) *Error { return newError(KindUnauthorized, message) }

// Forbidden returns a 403-class error.
func Forbidden(message string) *Error { return newError(KindForbidden, message) }

// NotFound returns a 404-class error.
func NotFound(message string) *Error { return newError(KindNotFound, message) }

// Conflict returns a 409-class error.
func Conflict(message string) *Error { return newError(KindConflict, message) }

// Configuration returns a 500-class error for server misconfiguration.
func Configuration(message string) *Error { return newError(KindConfiguration, message) }

// Internal wraps an unexpected failure.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// Wrap attaches a cause to a kinded error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// From extracts an *Error from err, or nil if none is present.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// StatusOf returns the HTTP status for any error, defaulting to 500.
func StatusOf(err error) int {
	if appErr := From(err); appErr != nil {
		return appErr.Status()
	}
	return http.StatusInternalServerError
}
