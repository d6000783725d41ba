// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mwiecke/storefront/internal/apperr"
	"github.com/mwiecke/storefront/internal/identity"
	"github.com/mwiecke/storefront/internal/models"
	"github.com/mwiecke/storefront/internal/permissions"
	"github.com/mwiecke/storefront/internal/repository"
)

type orderLineRequest struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

type createOrderRequest struct {
	Items []orderLineRequest `json:"items"`
}

// CreateOrder places an order. An explicit item list wins; without one
// the order is built from the cart, which is emptied on success. Stock
// is decremented inside the order transaction, so over-ordering fails
// atomically.
func (h *Handlers) CreateOrder(c echo.Context) error {
	user := identity.FromContext(c.Request().Context())
	if user == nil {
		return apperr.Unauthorized("authentication required")
	}
	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}

	fromCart := len(req.Items) == 0
	var lines []repository.OrderLine
	if fromCart {
		items, err := h.repo.ListCartItems(c.Request().Context(), user.ID)
		if err != nil {
			return apperr.Internal("listing cart items", err)
		}
		lines = cartLines(items)
	} else {
		for _, item := range req.Items {
			if item.ProductID == "" || item.Quantity < 1 {
				return apperr.Validation("every item needs a product id and a positive quantity")
			}
			lines = append(lines, repository.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity})
		}
	}
	if len(lines) == 0 {
		return apperr.Validation("order must contain at least one item")
	}

	order, err := h.repo.CreateOrder(c.Request().Context(), user.ID, lines)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientStock):
			return apperr.Conflict("insufficient stock for one or more items")
		case errors.Is(err, repository.ErrNotFound):
			return apperr.NotFound("product not found")
		default:
			return apperr.Internal("creating order", err)
		}
	}
	if fromCart {
		if err := h.repo.ClearCart(c.Request().Context(), user.ID); err != nil {
			slog.Warn("clearing cart after order", "order", order.ID, "error", err)
		}
	}
	h.invalidatePages(c)

	return c.JSON(http.StatusCreated, order)
}

// ListOrders returns the caller's orders.
func (h *Handlers) ListOrders(c echo.Context) error {
	user := identity.FromContext(c.Request().Context())
	if user == nil {
		return apperr.Unauthorized("authentication required")
	}
	orders, err := h.repo.ListOrdersByUser(c.Request().Context(), user.ID)
	if err != nil {
		return apperr.Internal("listing orders", err)
	}
	return c.JSON(http.StatusOK, orders)
}

// GetOrder returns one order with its items. Only the owner or an
// admin may read it.
func (h *Handlers) GetOrder(c echo.Context) error {
	user := identity.FromContext(c.Request().Context())
	if user == nil {
		return apperr.Unauthorized("authentication required")
	}
	order, err := h.loadOwnedOrder(c, user)
	if err != nil {
		return err
	}
	items, err := h.repo.ListOrderItems(c.Request().Context(), order.ID)
	if err != nil {
		return apperr.Internal("listing order items", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"order": order,
		"items": items,
	})
}

// CancelOrder cancels a pending order and restocks its items.
func (h *Handlers) CancelOrder(c echo.Context) error {
	user := identity.FromContext(c.Request().Context())
	if user == nil {
		return apperr.Unauthorized("authentication required")
	}
	order, err := h.loadOwnedOrder(c, user)
	if err != nil {
		return err
	}
	if order.Status != models.OrderStatusPending {
		return apperr.Conflict("only pending orders can be cancelled")
	}
	if err := h.repo.CancelOrder(c.Request().Context(), order.ID); err != nil {
		return apperr.Internal("cancelling order", err)
	}
	h.invalidatePages(c)

	return c.JSON(http.StatusOK, map[string]string{"message": "order cancelled"})
}

func (h *Handlers) loadOwnedOrder(c echo.Context, user *models.User) (*models.Order, error) {
	order, err := h.repo.GetOrderByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("order not found")
		}
		return nil, apperr.Internal("loading order", err)
	}
	if order.UserID != user.ID && user.Role != permissions.RoleAdmin {
		// hide the order's existence from other users
		return nil, apperr.NotFound("order not found")
	}
	return order, nil
}
