// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mwiecke/storefront/internal/models"
)

// ErrInsufficientStock is returned when an ordered quantity exceeds the
// product's remaining stock.
var ErrInsufficientStock = errors.New("insufficient stock")

// OrderLine is one requested product/quantity pair.
type OrderLine struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

// CreateOrder decrements stock and inserts the order with its items in
// a single transaction; either everything commits or nothing does.
func (r *Repository) CreateOrder(ctx context.Context, userID string, lines []OrderLine) (*models.Order, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	order := &models.Order{
		ID:     uuid.NewString(),
		UserID: userID,
		Status: models.OrderStatusPending,
	}

	// The order row goes in before its items so the items' foreign key
	// resolves. The total is filled in once the lines are priced.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, status, total) VALUES (?, ?, ?, 0)`,
		order.ID, order.UserID, order.Status)
	if err != nil {
		return nil, err
	}

	for _, line := range lines {
		var p models.Product
		if err := tx.GetContext(ctx, &p, `SELECT * FROM products WHERE id = ? AND hidden = 0`, line.ProductID); err != nil {
			return nil, wrapError(err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?`,
			line.Quantity, line.ProductID, line.Quantity)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrInsufficientStock
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, unit_price) VALUES (?, ?, ?, ?)`,
			order.ID, line.ProductID, line.Quantity, p.Price)
		if err != nil {
			return nil, err
		}
		order.Total += p.Price * line.Quantity
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET total = ? WHERE id = ?`, order.Total, order.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrderByID retrieves an order.
func (r *Repository) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.GetContext(ctx, &order, `SELECT * FROM orders WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &order, nil
}

// ListOrdersByUser returns the user's orders, newest first.
func (r *Repository) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	orders := []models.Order{}
	err := r.db.SelectContext(ctx, &orders,
		`SELECT * FROM orders WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ListOrderItems returns the lines of an order.
func (r *Repository) ListOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := r.db.SelectContext(ctx, &items,
		`SELECT * FROM order_items WHERE order_id = ?`, orderID)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateOrderStatus moves an order to a new status.
func (r *Repository) UpdateOrderStatus(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
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

// CancelOrder restocks the order's items and marks it cancelled, all in
// one transaction.
func (r *Repository) CancelOrder(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var order models.Order
	if err := tx.GetContext(ctx, &order, `SELECT * FROM orders WHERE id = ?`, id); err != nil {
		return wrapError(err)
	}
	if order.Status == models.OrderStatusCancelled {
		return nil
	}

	items := []models.OrderItem{}
	if err := tx.SelectContext(ctx, &items, `SELECT * FROM order_items WHERE order_id = ?`, id); err != nil {
		return err
	}
	for _, item := range items {
		_, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock + ? WHERE id = ?`, item.Quantity, item.ProductID)
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		models.OrderStatusCancelled, id)
	if err != nil {
		return err
	}
	return tx.Commit()
}
