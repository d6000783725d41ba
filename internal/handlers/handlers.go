// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers contains all HTTP handlers.
package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mwiecke/storefront/internal/cache"
	"github.com/mwiecke/storefront/internal/repository"
)

// Handlers contains the catalog, cart, order, review and payment handlers.
type Handlers struct {
	repo     *repository.Repository
	cache    *cache.Cache
	checkout CheckoutProvider
}

// CheckoutProvider is the payment-gateway collaborator. The real
// implementation lives outside this subsystem.
type CheckoutProvider interface {
	CreateCheckoutSession(c echo.Context, orderID string, amount int64) (url string, err error)
}

// New creates a new Handlers instance.
func New(repo *repository.Repository, cache *cache.Cache, checkout CheckoutProvider) *Handlers {
	return &Handlers{repo: repo, cache: cache, checkout: checkout}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
