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
	"github.com/mwiecke/storefront/internal/permissions"
	"github.com/mwiecke/storefront/internal/repository"
)

// ListReviews returns all reviews for a product.
func (h *Handlers) ListReviews(c echo.Context) error {
	reviews, err := h.repo.ListReviewsByProduct(c.Request().Context(), c.Param("productId"))
	if err != nil {
		return apperr.Internal("listing reviews", err)
	}
	return c.JSON(http.StatusOK, reviews)
}

type reviewRequest struct {
	Rating  int64  `json:"rating"`
	Comment string `json:"comment"`
}

func (req *reviewRequest) validate() error {
	if req.Rating < 1 || req.Rating > 5 {
		return apperr.Validation("rating must be between 1 and 5")
	}
	return nil
}

// CreateReview adds the caller's review of a product. One review per
// user and product.
func (h *Handlers) CreateReview(c echo.Context) error {
	user := identity.FromContext(c.Request().Context())
	if user == nil {
		return apperr.Unauthorized("authentication required")
	}
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := req.validate(); err != nil {
		return err
	}

	productID := c.Param("productId")
	if _, err := h.repo.GetProductByID(c.Request().Context(), productID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("product not found")
		}
		return apperr.Internal("loading product", err)
	}

	review := &models.Review{
		UserID:    user.ID,
		ProductID: productID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	if err := h.repo.CreateReview(c.Request().Context(), review); err != nil {
		if repository.IsUniqueViolation(err) {
			return apperr.Conflict("you have already reviewed this product")
		}
		return apperr.Internal("creating review", err)
	}
	return c.JSON(http.StatusCreated, review)
}

// UpdateReview changes the caller's own review.
func (h *Handlers) UpdateReview(c echo.Context) error {
	user := identity.FromContext(c.Request().Context())
	if user == nil {
		return apperr.Unauthorized("authentication required")
	}
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := req.validate(); err != nil {
		return err
	}

	review, err := h.loadOwnedReview(c, user)
	if err != nil {
		return err
	}
	review.Rating = req.Rating
	review.Comment = req.Comment
	if err := h.repo.UpdateReview(c.Request().Context(), review); err != nil {
		return apperr.Internal("updating review", err)
	}
	return c.JSON(http.StatusOK, review)
}

// DeleteReview removes a review. Users delete their own; admins may
// delete any.
func (h *Handlers) DeleteReview(c echo.Context) error {
	user := identity.FromContext(c.Request().Context())
	if user == nil {
		return apperr.Unauthorized("authentication required")
	}
	review, err := h.loadOwnedReview(c, user)
	if err != nil {
		return err
	}
	if err := h.repo.DeleteReview(c.Request().Context(), review.ID); err != nil {
		return apperr.Internal("deleting review", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handlers) loadOwnedReview(c echo.Context, user *models.User) (*models.Review, error) {
	review, err := h.repo.GetReviewByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("review not found")
		}
		return nil, apperr.Internal("loading review", err)
	}
	if review.UserID != user.ID && user.Role != permissions.RoleAdmin {
		return nil, apperr.Forbidden("you don't have permission to access this resource")
	}
	return review, nil
}
