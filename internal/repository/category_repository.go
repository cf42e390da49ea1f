package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_store/internal/domain"
	"github.com/google/uuid"
)

func (r *Repository) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, slug, created_at FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []*domain.Category
	for rows.Next() {
		c := &domain.Category{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return categories, nil
}

func (r *Repository) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	c := &domain.Category{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, slug, created_at FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query category by id: %w", err)
	}
	return c, nil
}

func (r *Repository) CreateCategory(ctx context.Context, c *domain.Category) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = r.now()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, slug, created_at) VALUES ($1, $2, $3, $4)`,
		c.ID, c.Name, c.Slug, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlugTaken
		}
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (r *Repository) UpdateCategory(ctx context.Context, c *domain.Category) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = $1, slug = $2 WHERE id = $3`, c.Name, c.Slug, c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlugTaken
		}
		return fmt.Errorf("update category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update category rows affected: %w", err)
	}
	if n == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// DeleteCategory removes the category and its product associations. Products
// are untouched.
func (r *Repository) DeleteCategory(ctx context.Context, id string) error {
	return r.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.tx.ExecContext(ctx,
			`DELETE FROM product_categories WHERE category_id = $1`, id); err != nil {
			return fmt.Errorf("delete category associations: %w", err)
		}
		res, err := tx.tx.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete category rows affected: %w", err)
		}
		if n == 0 {
			return ErrCategoryNotFound
		}
		return nil
	})
}
