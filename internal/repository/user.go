// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/mwiecke/storefront/internal/models"
	"github.com/mwiecke/storefront/internal/permissions"
)

// CreateUser inserts a new user. The very first registered user is
// promoted to ADMIN; the admin count and the insert run in one
// transaction so concurrent registrations cannot both win.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var adminCount int
	if err := tx.GetContext(ctx, &adminCount, `SELECT COUNT(*) FROM users WHERE role = ?`, permissions.RoleAdmin); err != nil {
		return err
	}
	if adminCount == 0 {
		user.Role = permissions.RoleAdmin
	} else {
		user.Role = permissions.RoleUser
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO users (id, username, email, second_email, password_hash, role, is_verified, verify_token, google_id)
		VALUES (:id, :username, :email, :second_email, :password_hash, :role, :is_verified, :verify_token, :google_id)`,
		user)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// GetUserByID retrieves a user by id.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by primary email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE email = ?`, email); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByGoogleID retrieves a user by federated id.
func (r *Repository) GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE google_id = ?`, googleID); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// VerifyEmailByToken marks the user holding the verify token as
// verified and clears the token. Flag and token change together in one
// transaction; a cleared token makes the operation single-use.
func (r *Repository) VerifyEmailByToken(ctx context.Context, token string) (*models.User, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var user models.User
	if err := tx.GetContext(ctx, &user, `SELECT * FROM users WHERE verify_token = ?`, token); err != nil {
		return nil, wrapError(err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET is_verified = 1, verify_token = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, user.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	user.IsVerified = true
	user.VerifyToken = nil
	return &user, nil
}

// SetVerifyToken stores a fresh opaque code on the user, replacing any
// previous one. Used by forgot-password.
func (r *Repository) SetVerifyToken(ctx context.Context, email, token string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET verify_token = ?, updated_at = CURRENT_TIMESTAMP WHERE email = ?`, token, email)
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

// ClearVerifyToken removes the stored code after a successful reset.
func (r *Repository) ClearVerifyToken(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET verify_token = NULL, updated_at = CURRENT_TIMESTAMP WHERE email = ?`, email)
	return err
}

// UpdatePassword replaces the user's password hash.
func (r *Repository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE email = ?`, passwordHash, email)
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

// SetSecondEmail attaches the second-factor email address.
func (r *Repository) SetSecondEmail(ctx context.Context, userID, email string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET second_email = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, email, userID)
	return err
}
