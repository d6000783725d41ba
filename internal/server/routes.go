// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"github.com/labstack/echo/v4"
	"github.com/mwiecke/storefront/internal/handlers"
	"github.com/mwiecke/storefront/internal/middleware"
	"github.com/mwiecke/storefront/internal/permissions"
)

// routerDeps holds everything the route table needs.
type routerDeps struct {
	handlers *handlers.Handlers
	auth     *handlers.AuthHandlers
	session  echo.MiddlewareFunc
	matrix   permissions.Matrix
}

// setupRoutes configures all HTTP routes.
func setupRoutes(e *echo.Echo, deps *routerDeps) {
	h := deps.handlers
	session := deps.session
	csrf := middleware.CSRF()
	perm := func(resource permissions.Resource, action permissions.Action) echo.MiddlewareFunc {
		return middleware.RequirePermission(deps.matrix, resource, action)
	}

	e.GET("/health", h.Health)

	// Auth flows
	auth := e.Group("/auth")
	auth.POST("/register", deps.auth.Register)
	auth.GET("/verify-email", deps.auth.VerifyEmail)
	auth.POST("/login", deps.auth.Login)
	auth.GET("/google", deps.auth.FederatedLogin)
	auth.GET("/google/callback", deps.auth.FederatedCallback)
	auth.POST("/logout", deps.auth.Logout, session, csrf)
	auth.POST("/refresh", deps.auth.Refresh)
	auth.POST("/forgot-password", deps.auth.ForgotPassword)
	auth.POST("/reset-password", deps.auth.ResetPassword)
	auth.POST("/2fa/email/request", deps.auth.RequestSecondFactor, session, csrf)
	auth.POST("/2fa/email/verify", deps.auth.VerifySecondFactor, session, csrf)
	auth.POST("/2fa/addEmail", deps.auth.AddSecondEmail, session, csrf)

	// Catalog
	products := e.Group("/products")
	products.GET("", h.ListProducts)
	products.GET("/categories", h.ListCategories)
	products.GET("/tags", h.ListTags)
	products.GET("/hidden", h.ListHiddenProducts, session, perm(permissions.ResourceProduct, permissions.ActionHide))
	products.GET("/:id", h.GetProduct)
	products.POST("/search", h.SearchProducts)
	products.POST("", h.CreateProduct, session, csrf, perm(permissions.ResourceProduct, permissions.ActionCreate))
	products.PUT("/:id", h.UpdateProduct, session, csrf, perm(permissions.ResourceProduct, permissions.ActionUpdate))
	products.PATCH("/:id/hide", h.HideProduct, session, csrf, perm(permissions.ResourceProduct, permissions.ActionHide))
	products.PATCH("/:id/restore", h.RestoreProduct, session, csrf, perm(permissions.ResourceProduct, permissions.ActionHide))
	products.DELETE("/:id", h.DeleteProduct, session, csrf, perm(permissions.ResourceProduct, permissions.ActionDelete))

	// Reviews
	e.GET("/products/:productId/reviews", h.ListReviews)
	e.POST("/products/:productId/reviews", h.CreateReview, session, csrf, perm(permissions.ResourceReview, permissions.ActionCreate))
	reviews := e.Group("/reviews", session, csrf)
	reviews.PUT("/:id", h.UpdateReview, perm(permissions.ResourceReview, permissions.ActionUpdate))
	reviews.DELETE("/:id", h.DeleteReview, perm(permissions.ResourceReview, permissions.ActionDelete))

	// Cart
	cart := e.Group("/cart", session)
	cart.GET("", h.GetCart, perm(permissions.ResourceCart, permissions.ActionView))
	cart.POST("/items", h.AddCartItem, csrf, perm(permissions.ResourceCart, permissions.ActionCreate))
	cart.PUT("/items/:productId", h.UpdateCartItem, csrf, perm(permissions.ResourceCart, permissions.ActionUpdate))
	cart.DELETE("/items/:productId", h.RemoveCartItem, csrf, perm(permissions.ResourceCart, permissions.ActionDelete))
	cart.DELETE("", h.ClearCart, csrf, perm(permissions.ResourceCart, permissions.ActionDelete))

	// Orders
	orders := e.Group("/orders", session)
	orders.POST("", h.CreateOrder, csrf, perm(permissions.ResourceOrder, permissions.ActionCreate))
	orders.GET("", h.ListOrders, perm(permissions.ResourceOrder, permissions.ActionView))
	orders.GET("/:id", h.GetOrder, perm(permissions.ResourceOrder, permissions.ActionView))
	orders.POST("/:id/cancel", h.CancelOrder, csrf, perm(permissions.ResourceOrder, permissions.ActionDelete))

	// Payments
	payments := e.Group("/payments", session, csrf)
	payments.POST("/checkout/:id", h.Checkout, perm(permissions.ResourcePayment, permissions.ActionView))
	payments.POST("/confirm/:id", h.ConfirmPayment, perm(permissions.ResourcePayment, permissions.ActionView))
}
