package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_store/internal/domain"
	"github.com/google/uuid"
)

const productColumns = `p.id, p.name, p.price_in_cents, p.description, p.image_path, p.file_path,
	p.is_available_for_purchase, p.is_deleted, p.created_at, p.updated_at,
	(SELECT COUNT(*) FROM orders o WHERE o.product_id = p.id) AS order_count`

var sortColumns = map[domain.SortField]string{
	domain.SortByCreatedAt: "p.created_at",
	domain.SortByUpdatedAt: "p.updated_at",
	domain.SortByName:      "p.name",
	domain.SortByPrice:     "p.price_in_cents",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.PriceInCents,
		&p.Description,
		&p.ImagePath,
		&p.FilePath,
		&p.IsAvailableForPurchase,
		&p.IsDeleted,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.OrderCount,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProducts returns products matching filter. Unknown sort fields fall back
// to creation time. Soft-deleted products are hidden unless IncludeDeleted is set.
func (r *Repository) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	var (
		where []string
		args  []any
	)
	if !filter.IncludeDeleted {
		where = append(where, "p.is_deleted = FALSE")
	}
	if filter.AvailableOnly {
		where = append(where, "p.is_available_for_purchase = TRUE")
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+strings.ToLower(s)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(LOWER(p.name) LIKE $%d OR LOWER(p.description) LIKE $%d)", n, n))
	}
	if filter.CategorySlug != "" {
		args = append(args, filter.CategorySlug)
		where = append(where, fmt.Sprintf(`EXISTS (SELECT 1 FROM product_categories pc
			JOIN categories c ON c.id = pc.category_id
			WHERE pc.product_id = p.id AND c.slug = $%d)`, len(args)))
	}

	column, ok := sortColumns[filter.SortBy]
	if !ok {
		column = sortColumns[domain.SortByCreatedAt]
	}
	direction := "DESC"
	if filter.Ascending {
		direction = "ASC"
	}

	query := "SELECT " + productColumns + " FROM products p"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY %s %s, p.id %s", column, direction, direction)

	products, err := r.queryProducts(ctx, r.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if err := r.attachCategories(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *Repository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := getProduct(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	if err := r.attachCategories(ctx, []*domain.Product{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// GetAvailableProducts returns the purchasable products among ids.
func (r *Repository) GetAvailableProducts(ctx context.Context, ids []string) ([]*domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := "SELECT " + productColumns + ` FROM products p
		WHERE p.is_available_for_purchase = TRUE AND p.is_deleted = FALSE
		AND p.id IN (` + placeholders(1, len(ids)) + `)
		ORDER BY p.id`

	products, err := r.queryProducts(ctx, r.db, query, stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("get available products: %w", err)
	}
	return products, nil
}

func (r *Repository) CreateProduct(ctx context.Context, p *domain.Product, categoryIDs []string) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := r.now()
	p.CreatedAt = now
	p.UpdatedAt = now

	return r.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.tx.ExecContext(ctx, `INSERT INTO products
			(id, name, price_in_cents, description, image_path, file_path,
			 is_available_for_purchase, is_deleted, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			p.ID, p.Name, p.PriceInCents, p.Description, p.ImagePath, p.FilePath,
			p.IsAvailableForPurchase, p.IsDeleted, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		return tx.replaceProductCategories(ctx, p.ID, categoryIDs)
	})
}

// UpdateProduct applies the non-nil fields of u. Category associations are
// replaced in the same transaction when u.CategoryIDs is set.
func (r *Repository) UpdateProduct(ctx context.Context, id string, u domain.ProductUpdate) (*domain.Product, error) {
	err := r.WithTx(ctx, func(tx *Tx) error {
		var exists int
		err := tx.tx.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id = $1`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProductNotFound
		}
		if err != nil {
			return fmt.Errorf("check product: %w", err)
		}

		if u.HasFieldChanges() {
			var (
				sets []string
				args []any
			)
			add := func(column string, v any) {
				args = append(args, v)
				sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
			}
			if u.Name != nil {
				add("name", *u.Name)
			}
			if u.PriceInCents != nil {
				add("price_in_cents", *u.PriceInCents)
			}
			if u.Description != nil {
				add("description", *u.Description)
			}
			if u.ImagePath != nil {
				add("image_path", *u.ImagePath)
			}
			if u.FilePath != nil {
				add("file_path", *u.FilePath)
			}
			if u.IsAvailableForPurchase != nil {
				add("is_available_for_purchase", *u.IsAvailableForPurchase)
			}
			add("updated_at", tx.now())
			args = append(args, id)

			query := fmt.Sprintf("UPDATE products SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
			if _, err := tx.tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("update product: %w", err)
			}
		}

		if u.CategoryIDs != nil {
			if _, err := tx.tx.ExecContext(ctx, `DELETE FROM product_categories WHERE product_id = $1`, id); err != nil {
				return fmt.Errorf("clear product categories: %w", err)
			}
			return tx.replaceProductCategories(ctx, id, *u.CategoryIDs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetProduct(ctx, id)
}

// SoftDeleteProduct marks the product deleted and reports whether it has orders.
func (r *Repository) SoftDeleteProduct(ctx context.Context, id string) (bool, error) {
	var hasOrders bool
	err := r.WithTx(ctx, func(tx *Tx) error {
		res, err := tx.tx.ExecContext(ctx,
			`UPDATE products SET is_deleted = TRUE, updated_at = $1 WHERE id = $2`, tx.now(), id)
		if err != nil {
			return fmt.Errorf("soft delete product: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("soft delete rows affected: %w", err)
		}
		if n == 0 {
			return ErrProductNotFound
		}

		var count int64
		if err := tx.tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM orders WHERE product_id = $1`, id).Scan(&count); err != nil {
			return fmt.Errorf("count product orders: %w", err)
		}
		hasOrders = count > 0
		return nil
	})
	return hasOrders, err
}

// GetProductIncludingDeleted is used after payment, when a soft-deleted product
// must still resolve.
func (t *Tx) GetProductIncludingDeleted(ctx context.Context, id string) (*domain.Product, error) {
	return getProduct(ctx, t.tx, id)
}

func (t *Tx) replaceProductCategories(ctx context.Context, productID string, categoryIDs []string) error {
	ids := dedupe(categoryIDs)
	if len(ids) == 0 {
		return nil
	}

	var found int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories WHERE id IN (`+placeholders(1, len(ids))+`)`,
		stringArgs(ids)...).Scan(&found)
	if err != nil {
		return fmt.Errorf("check categories: %w", err)
	}
	if found != len(ids) {
		return ErrCategoryNotFound
	}

	for _, cid := range ids {
		if _, err := t.tx.ExecContext(ctx,
			`INSERT INTO product_categories (product_id, category_id) VALUES ($1, $2)`,
			productID, cid); err != nil {
			return fmt.Errorf("insert product category: %w", err)
		}
	}
	return nil
}

func getProduct(ctx context.Context, q queryer, id string) (*domain.Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products p WHERE p.id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product by id: %w", err)
	}
	return p, nil
}

func (r *Repository) queryProducts(ctx context.Context, q queryer, query string, args ...any) ([]*domain.Product, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}

// attachCategories loads categories for products in one query. It must run
// after the product rows are closed.
func (r *Repository) attachCategories(ctx context.Context, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Product, len(products))
	ids := make([]string, 0, len(products))
	for _, p := range products {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT pc.product_id, c.id, c.name, c.slug, c.created_at
		FROM product_categories pc
		JOIN categories c ON c.id = pc.category_id
		WHERE pc.product_id IN (`+placeholders(1, len(ids))+`)
		ORDER BY c.name`, stringArgs(ids)...)
	if err != nil {
		return fmt.Errorf("query product categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID string
			c         domain.Category
		)
		if err := rows.Scan(&productID, &c.ID, &c.Name, &c.Slug, &c.CreatedAt); err != nil {
			return fmt.Errorf("scan product category: %w", err)
		}
		if p, ok := byID[productID]; ok {
			p.Categories = append(p.Categories, c)
		}
	}
	return rows.Err()
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
