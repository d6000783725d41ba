// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package permissions holds the static role → resource → action matrix.
// The matrix is built once at startup and read-only afterwards.
package permissions

// Role is the access level of a user account.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Resource names a protected part of the API surface.
type Resource string

const (
	ResourceProduct Resource = "Product"
	ResourceReview  Resource = "Review"
	ResourceOrder   Resource = "Order"
	ResourceCart    Resource = "Cart"
	ResourcePayment Resource = "Payment"
)

// Action names an operation on a resource.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionSearch Action = "search"
	ActionHide   Action = "hide"
)

// Matrix maps roles to the actions they may perform per resource.
type Matrix map[Role]map[Resource][]Action

// Allows reports whether role may perform action on resource.
func (m Matrix) Allows(role Role, resource Resource, action Action) bool {
	actions, ok := m[role][resource]
	if !ok {
		return false
	}
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

// Default returns the process-wide permission matrix.
func Default() Matrix {
	return Matrix{
		RoleAdmin: {
			ResourceProduct: {ActionView, ActionCreate, ActionUpdate, ActionDelete, ActionHide, ActionSearch},
			ResourceReview:  {ActionView, ActionDelete},
			ResourceOrder:   {ActionView, ActionUpdate, ActionDelete, ActionCreate},
			ResourceCart:    {ActionView},
			ResourcePayment: {ActionView},
		},
		RoleUser: {
			ResourceProduct: {ActionView, ActionSearch},
			ResourceReview:  {ActionView, ActionCreate, ActionUpdate, ActionDelete},
			ResourceOrder:   {ActionCreate, ActionView, ActionDelete},
			ResourceCart:    {ActionView, ActionCreate, ActionUpdate, ActionDelete},
			ResourcePayment: {ActionView},
		},
	}
}
