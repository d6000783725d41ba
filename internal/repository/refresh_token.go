// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"github.com/mwiecke/storefront/internal/models"
)

// UpsertRefreshToken replaces the user's refresh token row. The unique
// constraint on user_id keeps this to one live session per user.
func (r *Repository) UpsertRefreshToken(ctx context.Context, rt *models.RefreshToken) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO refresh_tokens (token, user_id, expires_at)
		VALUES (:token, :user_id, :expires_at)
		ON CONFLICT (user_id) DO UPDATE SET token = excluded.token, expires_at = excluded.expires_at`,
		rt)
	return err
}

// FindRefreshToken looks a refresh token up by exact value. A token
// that is cryptographically valid but absent here has been rotated
// away and must be treated as revoked.
func (r *Repository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, `SELECT * FROM refresh_tokens WHERE token = ?`, token); err != nil {
		return nil, wrapError(err)
	}
	return &rt, nil
}

// DeleteRefreshToken removes the user's session row.
func (r *Repository) DeleteRefreshToken(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = ?`, userID)
	return err
}
