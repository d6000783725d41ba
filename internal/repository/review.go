// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/mwiecke/storefront/internal/models"
)

// CreateReview inserts a review. One review per user and product.
func (r *Repository) CreateReview(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO reviews (id, user_id, product_id, rating, comment)
		VALUES (:id, :user_id, :product_id, :rating, :comment)`,
		review)
	return err
}

// GetReviewByID retrieves a review.
func (r *Repository) GetReviewByID(ctx context.Context, id string) (*models.Review, error) {
	var review models.Review
	if err := r.db.GetContext(ctx, &review, `SELECT * FROM reviews WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &review, nil
}

// ListReviewsByProduct returns a product's reviews, newest first.
func (r *Repository) ListReviewsByProduct(ctx context.Context, productID string) ([]models.Review, error) {
	reviews := []models.Review{}
	err := r.db.SelectContext(ctx, &reviews,
		`SELECT * FROM reviews WHERE product_id = ? ORDER BY created_at DESC`, productID)
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

// UpdateReview changes rating and comment.
func (r *Repository) UpdateReview(ctx context.Context, review *models.Review) error {
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE reviews SET rating = :rating, comment = :comment, updated_at = CURRENT_TIMESTAMP
		WHERE id = :id`, review)
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

// DeleteReview removes a review.
func (r *Repository) DeleteReview(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id)
	return err
}
