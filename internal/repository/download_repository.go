package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_store/internal/domain"
	"github.com/google/uuid"
)

func (r *Repository) CreateDownloadVerification(ctx context.Context, v *domain.DownloadVerification) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.CreatedAt = r.now()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO download_verifications (id, order_id, product_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		v.ID, v.OrderID, v.ProductID, v.ExpiresAt.UTC(), v.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert download verification: %w", err)
	}
	return nil
}

// GetDownloadVerification returns the token with its product. Soft-deleted
// products still resolve since the purchase already happened.
func (r *Repository) GetDownloadVerification(ctx context.Context, id string) (*domain.DownloadVerification, *domain.Product, error) {
	v := &domain.DownloadVerification{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, order_id, product_id, expires_at, created_at FROM download_verifications WHERE id = $1`, id).
		Scan(&v.ID, &v.OrderID, &v.ProductID, &v.ExpiresAt, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrVerificationNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("query download verification: %w", err)
	}

	p, err := getProduct(ctx, r.db, v.ProductID)
	if err != nil {
		return nil, nil, err
	}
	return v, p, nil
}

// DeleteDownloadVerification consumes a token. Only one caller can observe a
// successful delete; the others get ErrVerificationNotFound.
func (r *Repository) DeleteDownloadVerification(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM download_verifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete download verification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete download verification rows affected: %w", err)
	}
	if n == 0 {
		return ErrVerificationNotFound
	}
	return nil
}
