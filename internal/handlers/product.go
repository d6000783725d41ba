// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mwiecke/storefront/internal/apperr"
	"github.com/mwiecke/storefront/internal/cache"
	"github.com/mwiecke/storefront/internal/models"
	"github.com/mwiecke/storefront/internal/repository"
)

// ListProducts returns a catalog page. Pages without filter or sort
// parameters are served from the page cache.
func (h *Handlers) ListProducts(c echo.Context) error {
	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || page < 1 {
		page = 1
	}

	filter := productFilterFromQuery(c)
	sort := productSortFromQuery(c)

	if filter == nil && sort == nil {
		var products []models.Product
		err := h.cache.GetOrSetJSON(c.Request().Context(), cache.PageKey(page), &products, func() (any, error) {
			return h.repo.ListProducts(c.Request().Context(), page, nil, nil)
		})
		if err != nil {
			return apperr.Internal("listing products", err)
		}
		return c.JSON(http.StatusOK, products)
	}

	products, err := h.repo.ListProducts(c.Request().Context(), page, filter, sort)
	if err != nil {
		return apperr.Internal("listing products", err)
	}
	return c.JSON(http.StatusOK, products)
}

func productFilterFromQuery(c echo.Context) *repository.ProductFilter {
	category := c.QueryParam("category")
	minPrice, _ := strconv.ParseInt(c.QueryParam("minPrice"), 10, 64)
	maxPrice, _ := strconv.ParseInt(c.QueryParam("maxPrice"), 10, 64)
	if category == "" && minPrice == 0 && maxPrice == 0 {
		return nil
	}
	return &repository.ProductFilter{Category: category, MinPrice: minPrice, MaxPrice: maxPrice}
}

func productSortFromQuery(c echo.Context) *repository.ProductSort {
	field := c.QueryParam("sort")
	if field == "" {
		return nil
	}
	return &repository.ProductSort{Field: field, Desc: c.QueryParam("order") == "desc"}
}

// GetProduct returns a single product. Hidden products are not served
// here; admins list them through the hidden endpoint.
func (h *Handlers) GetProduct(c echo.Context) error {
	p, err := h.repo.GetProductByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("product not found")
		}
		return apperr.Internal("loading product", err)
	}
	if p.Hidden {
		return apperr.NotFound("product not found")
	}
	return c.JSON(http.StatusOK, p)
}

type searchRequest struct {
	Name string `json:"name"`
}

// SearchProducts matches visible products by name substring.
func (h *Handlers) SearchProducts(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if req.Name == "" {
		return apperr.Validation("search term is required")
	}
	products, err := h.repo.SearchProducts(c.Request().Context(), req.Name)
	if err != nil {
		return apperr.Internal("searching products", err)
	}
	return c.JSON(http.StatusOK, products)
}

type productRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Stock       int64  `json:"stock"`
	Category    string `json:"category"`
	Tags        string `json:"tags"`
	ImagePath   string `json:"imagePath"`
}

func (req *productRequest) validate() error {
	if req.Name == "" {
		return apperr.Validation("product name is required")
	}
	if req.Price < 0 {
		return apperr.Validation("price must not be negative")
	}
	if req.Stock < 0 {
		return apperr.Validation("stock must not be negative")
	}
	return nil
}

// CreateProduct adds a catalog entry and drops the cached pages.
func (h *Handlers) CreateProduct(c echo.Context) error {
	var req productRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := req.validate(); err != nil {
		return err
	}

	p := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Category:    req.Category,
		Tags:        req.Tags,
		ImagePath:   req.ImagePath,
	}
	if err := h.repo.CreateProduct(c.Request().Context(), p); err != nil {
		if repository.IsUniqueViolation(err) {
			return apperr.Conflict("a product with this name already exists")
		}
		return apperr.Internal("creating product", err)
	}
	h.invalidatePages(c)

	return c.JSON(http.StatusCreated, p)
}

// UpdateProduct replaces the mutable fields of a product.
func (h *Handlers) UpdateProduct(c echo.Context) error {
	var req productRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := req.validate(); err != nil {
		return err
	}

	p, err := h.repo.GetProductByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("product not found")
		}
		return apperr.Internal("loading product", err)
	}

	p.Name = req.Name
	p.Description = req.Description
	p.Price = req.Price
	p.Stock = req.Stock
	p.Category = req.Category
	p.Tags = req.Tags
	p.ImagePath = req.ImagePath
	if err := h.repo.UpdateProduct(c.Request().Context(), p); err != nil {
		return apperr.Internal("updating product", err)
	}
	h.invalidatePages(c)

	return c.JSON(http.StatusOK, p)
}

// HideProduct takes a product out of public listings without deleting it.
func (h *Handlers) HideProduct(c echo.Context) error {
	return h.setHidden(c, true)
}

// RestoreProduct makes a hidden product visible again.
func (h *Handlers) RestoreProduct(c echo.Context) error {
	return h.setHidden(c, false)
}

func (h *Handlers) setHidden(c echo.Context, hidden bool) error {
	err := h.repo.SetProductHidden(c.Request().Context(), c.Param("id"), hidden)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("product not found")
		}
		return apperr.Internal("updating product visibility", err)
	}
	h.invalidatePages(c)

	return c.JSON(http.StatusOK, map[string]bool{"hidden": hidden})
}

// ListHiddenProducts returns the products kept out of public listings.
func (h *Handlers) ListHiddenProducts(c echo.Context) error {
	products, err := h.repo.ListHiddenProducts(c.Request().Context())
	if err != nil {
		return apperr.Internal("listing hidden products", err)
	}
	return c.JSON(http.StatusOK, products)
}

// DeleteProduct removes a product permanently.
func (h *Handlers) DeleteProduct(c echo.Context) error {
	if err := h.repo.DeleteProduct(c.Request().Context(), c.Param("id")); err != nil {
		return apperr.Internal("deleting product", err)
	}
	h.invalidatePages(c)

	return c.NoContent(http.StatusNoContent)
}

// ListCategories returns the distinct categories of visible products.
func (h *Handlers) ListCategories(c echo.Context) error {
	categories, err := h.repo.ListCategories(c.Request().Context())
	if err != nil {
		return apperr.Internal("listing categories", err)
	}
	return c.JSON(http.StatusOK, categories)
}

// ListTags returns the distinct tags of visible products.
func (h *Handlers) ListTags(c echo.Context) error {
	tags, err := h.repo.ListTags(c.Request().Context())
	if err != nil {
		return apperr.Internal("listing tags", err)
	}
	return c.JSON(http.StatusOK, tags)
}

// invalidatePages drops the cached catalog pages after a mutation. A
// failure leaves stale pages behind until they expire, which is
// tolerable; the mutation itself already succeeded.
func (h *Handlers) invalidatePages(c echo.Context) {
	if err := h.cache.InvalidatePrefix(c.Request().Context(), "page:"); err != nil {
		slog.Warn("invalidating cached pages", "error", err)
	}
}
