// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mwiecke/storefront/internal/apperr"
	"github.com/mwiecke/storefront/internal/identity"
	"github.com/mwiecke/storefront/internal/models"
	"github.com/mwiecke/storefront/internal/repository"
)

// GetCart returns the caller's cart items.
func (h *Handlers) GetCart(c echo.Context) error {
	user := identity.FromContext(c.Request().Context())
	if user == nil {
		return apperr.Unauthorized("authentication required")
	}
	items, err := h.repo.ListCartItems(c.Request().Context(), user.ID)
	if err != nil {
		return apperr.Internal("listing cart items", err)
	}
	return c.JSON(http.StatusOK, items)
}

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

// AddCartItem puts a product into the cart. Adding a product that is
// already in the cart increases its quantity.
func (h *Handlers) AddCartItem(c echo.Context) error {
	user := identity.FromContext(c.Request().Context())
	if user == nil {
		return apperr.Unauthorized("authentication required")
	}
	var req cartItemRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if req.ProductID == "" {
		return apperr.Validation("product id is required")
	}
	if req.Quantity < 1 {
		return apperr.Validation("quantity must be at least 1")
	}

	product, err := h.repo.GetProductByID(c.Request().Context(), req.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("product not found")
		}
		return apperr.Internal("loading product", err)
	}
	if product.Hidden {
		return apperr.NotFound("product not found")
	}

	if err := h.repo.UpsertCartItem(c.Request().Context(), user.ID, req.ProductID, req.Quantity); err != nil {
		return apperr.Internal("adding cart item", err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"message": "item added to cart"})
}

// UpdateCartItem sets the quantity of a cart line. A quantity of zero
// removes the line.
func (h *Handlers) UpdateCartItem(c echo.Context) error {
	user := identity.FromContext(c.Request().Context())
	if user == nil {
		return apperr.Unauthorized("authentication required")
	}
	var req cartItemRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	productID := c.Param("productId")
	if productID == "" {
		return apperr.Validation("product id is required")
	}
	if req.Quantity < 0 {
		return apperr.Validation("quantity must not be negative")
	}

	if req.Quantity == 0 {
		if err := h.repo.DeleteCartItem(c.Request().Context(), user.ID, productID); err != nil {
			return apperr.Internal("removing cart item", err)
		}
		return c.JSON(http.StatusOK, map[string]string{"message": "item removed from cart"})
	}
	if err := h.repo.SetCartItemQuantity(c.Request().Context(), user.ID, productID, req.Quantity); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("cart item not found")
		}
		return apperr.Internal("updating cart item", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "cart updated"})
}

// RemoveCartItem deletes one product from the cart.
func (h *Handlers) RemoveCartItem(c echo.Context) error {
	user := identity.FromContext(c.Request().Context())
	if user == nil {
		return apperr.Unauthorized("authentication required")
	}
	if err := h.repo.DeleteCartItem(c.Request().Context(), user.ID, c.Param("productId")); err != nil {
		return apperr.Internal("removing cart item", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "item removed from cart"})
}

// ClearCart empties the caller's cart.
func (h *Handlers) ClearCart(c echo.Context) error {
	user := identity.FromContext(c.Request().Context())
	if user == nil {
		return apperr.Unauthorized("authentication required")
	}
	if err := h.repo.ClearCart(c.Request().Context(), user.ID); err != nil {
		return apperr.Internal("clearing cart", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "cart cleared"})
}

func cartLines(items []models.CartItem) []repository.OrderLine {
	lines := make([]repository.OrderLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, repository.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}
