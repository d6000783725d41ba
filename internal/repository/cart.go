// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"github.com/mwiecke/storefront/internal/models"
)

// UpsertCartItem adds the product to the user's cart or bumps its
// quantity when already present.
func (r *Repository) UpsertCartItem(ctx context.Context, userID, productID string, quantity int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = cart_items.quantity + excluded.quantity`,
		userID, productID, quantity)
	return err
}

// SetCartItemQuantity overwrites the quantity for one cart line.
func (r *Repository) SetCartItemQuantity(ctx context.Context, userID, productID string, quantity int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE cart_items SET quantity = ? WHERE user_id = ? AND product_id = ?`,
		quantity, userID, productID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCartItems returns the user's cart.
func (r *Repository) ListCartItems(ctx context.Context, userID string) ([]models.CartItem, error) {
	items := []models.CartItem{}
	err := r.db.SelectContext(ctx, &items,
		`SELECT * FROM cart_items WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteCartItem removes one product from the cart.
func (r *Repository) DeleteCartItem(ctx context.Context, userID, productID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = ? AND product_id = ?`, userID, productID)
	return err
}

// ClearCart empties the user's cart.
func (r *Repository) ClearCart(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ?`, userID)
	return err
}
