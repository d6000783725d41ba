// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"

	"github.com/mwiecke/storefront/internal/permissions"
)

// User is the identity record. PasswordHash is nil for accounts created
// through federated login; GoogleID is nil for password accounts.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID           string           `db:"id" json:"id"`
	Username     string           `db:"username" json:"username"`
	Email        string           `db:"email" json:"email"`
	SecondEmail  *string          `db:"second_email" json:"secondEmail,omitempty"`
	PasswordHash *string          `db:"password_hash" json:"-"`
	Role         permissions.Role `db:"role" json:"role"`
	IsVerified   bool             `db:"is_verified" json:"isVerified"`
	VerifyToken  *string          `db:"verify_token" json:"-"`
	GoogleID     *string          `db:"google_id" json:"-"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// RefreshToken is the single durable session record per user. UserID
// carries a unique constraint so login and refresh upsert in place.
type RefreshToken struct { //nolint:govet // fieldalignment: readability over optimization
	Token     string    `db:"token" json:"-"`
	UserID    string    `db:"user_id" json:"user_id"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}
