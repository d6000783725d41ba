// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mwiecke/storefront/internal/models"
)

// PageSize is the number of products per catalog page.
const PageSize = 20

// ProductFilter narrows a catalog page.
type ProductFilter struct {
	Category string
	MinPrice int64
	MaxPrice int64
}

// ProductSort orders a catalog page. Field is one of price, name,
// created_at; anything else falls back to created_at.
type ProductSort struct {
	Field string
	Desc  bool
}

var sortableFields = map[string]string{
	"price":      "price",
	"name":       "name",
	"created_at": "created_at",
}

// CreateProduct inserts a catalog entry.
func (r *Repository) CreateProduct(ctx context.Context, p *models.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO products (id, name, description, price, stock, category, tags, image_path, hidden)
		VALUES (:id, :name, :description, :price, :stock, :category, :tags, :image_path, :hidden)`,
		p)
	return err
}

// GetProductByID retrieves a product.
func (r *Repository) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := r.db.GetContext(ctx, &p, `SELECT * FROM products WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &p, nil
}

// ListProducts returns a page of visible products.
func (r *Repository) ListProducts(ctx context.Context, page int, filter *ProductFilter, sort *ProductSort) ([]models.Product, error) {
	if page < 1 {
		page = 1
	}

	where := []string{"hidden = 0"}
	args := []any{}
	if filter != nil {
		if filter.Category != "" {
			where = append(where, "category = ?")
			args = append(args, filter.Category)
		}
		if filter.MinPrice > 0 {
			where = append(where, "price >= ?")
			args = append(args, filter.MinPrice)
		}
		if filter.MaxPrice > 0 {
			where = append(where, "price <= ?")
			args = append(args, filter.MaxPrice)
		}
	}

	orderBy := "created_at DESC"
	if sort != nil {
		if col, ok := sortableFields[sort.Field]; ok {
			dir := "ASC"
			if sort.Desc {
				dir = "DESC"
			}
			orderBy = col + " " + dir
		}
	}

	query := fmt.Sprintf(`SELECT * FROM products WHERE %s ORDER BY %s LIMIT ? OFFSET ?`,
		strings.Join(where, " AND "), orderBy)
	args = append(args, PageSize, (page-1)*PageSize)

	products := []models.Product{}
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, err
	}
	return products, nil
}

// SearchProducts matches visible products by name substring.
func (r *Repository) SearchProducts(ctx context.Context, name string) ([]models.Product, error) {
	products := []models.Product{}
	err := r.db.SelectContext(ctx, &products,
		`SELECT * FROM products WHERE hidden = 0 AND name LIKE ? ORDER BY name`, "%"+name+"%")
	if err != nil {
		return nil, err
	}
	return products, nil
}

// ListHiddenProducts returns all hidden products.
func (r *Repository) ListHiddenProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	if err := r.db.SelectContext(ctx, &products, `SELECT * FROM products WHERE hidden = 1 ORDER BY name`); err != nil {
		return nil, err
	}
	return products, nil
}

// UpdateProduct updates the mutable fields of a product.
func (r *Repository) UpdateProduct(ctx context.Context, p *models.Product) error {
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE products
		SET name = :name, description = :description, price = :price, stock = :stock,
		    category = :category, tags = :tags, image_path = :image_path, updated_at = CURRENT_TIMESTAMP
		WHERE id = :id`, p)
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

// SetProductHidden hides or restores a product.
func (r *Repository) SetProductHidden(ctx context.Context, id string, hidden bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products SET hidden = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, hidden, id)
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

// DeleteProduct removes a product.
func (r *Repository) DeleteProduct(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	return err
}

// ListCategories returns the distinct categories of visible products.
func (r *Repository) ListCategories(ctx context.Context) ([]string, error) {
	categories := []string{}
	err := r.db.SelectContext(ctx, &categories,
		`SELECT DISTINCT category FROM products WHERE hidden = 0 AND category != '' ORDER BY category`)
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// ListTags returns the raw tag strings of visible products.
func (r *Repository) ListTags(ctx context.Context) ([]string, error) {
	tags := []string{}
	err := r.db.SelectContext(ctx, &tags,
		`SELECT DISTINCT tags FROM products WHERE hidden = 0 AND tags != '' ORDER BY tags`)
	if err != nil {
		return nil, err
	}
	return tags, nil
}
