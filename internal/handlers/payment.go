// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mwiecke/storefront/internal/apperr"
	"github.com/mwiecke/storefront/internal/identity"
	"github.com/mwiecke/storefront/internal/models"
)

// Checkout opens a payment session for a pending order and returns the
// gateway URL the client should redirect to.
func (h *Handlers) Checkout(c echo.Context) error {
	user := identity.FromContext(c.Request().Context())
	if user == nil {
		return apperr.Unauthorized("authentication required")
	}
	if h.checkout == nil {
		return apperr.Configuration("payments are not configured")
	}

	order, err := h.loadOwnedOrder(c, user)
	if err != nil {
		return err
	}
	if order.Status != models.OrderStatusPending {
		return apperr.Conflict("order is not payable")
	}

	url, err := h.checkout.CreateCheckoutSession(c, order.ID, order.Total)
	if err != nil {
		return apperr.Internal("creating checkout session", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}

// ConfirmPayment marks an order as paid. In production this is driven
// by the gateway's webhook after it has verified the payment.
func (h *Handlers) ConfirmPayment(c echo.Context) error {
	user := identity.FromContext(c.Request().Context())
	if user == nil {
		return apperr.Unauthorized("authentication required")
	}

	order, err := h.loadOwnedOrder(c, user)
	if err != nil {
		return err
	}
	if order.Status != models.OrderStatusPending {
		return apperr.Conflict("order is not payable")
	}
	if err := h.repo.UpdateOrderStatus(c.Request().Context(), order.ID, models.OrderStatusPaid); err != nil {
		return apperr.Internal("updating order status", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "payment confirmed"})
}
