package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_store/internal/domain"
	"github.com/google/uuid"
)

const orderDetailsQuery = `SELECT o.id, o.user_id, o.product_id, o.price_paid_in_cents, o.created_at,
	p.name, u.email
	FROM orders o
	JOIN products p ON p.id = o.product_id
	JOIN users u ON u.id = o.user_id`

func (r *Repository) GetOrderByID(ctx context.Context, id string) (*domain.OrderDetails, error) {
	o, err := scanOrderDetails(r.db.QueryRowContext(ctx, orderDetailsQuery+` WHERE o.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return o, nil
}

func (r *Repository) ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.OrderDetails, error) {
	return r.listOrders(ctx, orderDetailsQuery+` WHERE o.user_id = $1 ORDER BY o.created_at DESC, o.id DESC`, userID)
}

// ListAllOrders returns the newest orders first, capped at limit.
func (r *Repository) ListAllOrders(ctx context.Context, limit int) ([]*domain.OrderDetails, error) {
	return r.listOrders(ctx, orderDetailsQuery+` ORDER BY o.created_at DESC, o.id DESC LIMIT $1`, limit)
}

func (r *Repository) listOrders(ctx context.Context, query string, args ...any) ([]*domain.OrderDetails, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.OrderDetails
	for rows.Next() {
		o, err := scanOrderDetails(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

func scanOrderDetails(row rowScanner) (*domain.OrderDetails, error) {
	o := &domain.OrderDetails{}
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.ProductID,
		&o.PricePaidInCents,
		&o.CreatedAt,
		&o.ProductName,
		&o.UserEmail,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repository) GetSalesStats(ctx context.Context) (*domain.SalesStats, error) {
	s := &domain.SalesStats{}
	err := r.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM products WHERE is_deleted = FALSE),
		(SELECT COUNT(*) FROM products WHERE is_deleted = FALSE AND is_available_for_purchase = TRUE),
		(SELECT COUNT(*) FROM orders),
		(SELECT COUNT(*) FROM users),
		(SELECT COALESCE(SUM(price_paid_in_cents), 0) FROM orders)`).
		Scan(&s.ProductCount, &s.AvailableProductCount, &s.OrderCount, &s.UserCount, &s.RevenueInCents)
	if err != nil {
		return nil, fmt.Errorf("query sales stats: %w", err)
	}
	if s.OrderCount > 0 {
		s.AverageOrderValueCents = s.RevenueInCents / s.OrderCount
	}
	return s, nil
}

// MarkEventProcessed records a processor event id. It returns ErrDuplicateEvent
// when the id was recorded before, including by a concurrent transaction.
func (t *Tx) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO processed_events (event_id, event_type, processed_at) VALUES ($1, $2, $3)`,
		eventID, eventType, t.now())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEvent
		}
		return fmt.Errorf("insert processed event: %w", err)
	}
	return nil
}

func (t *Tx) CreateOrder(ctx context.Context, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CreatedAt = t.now()

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, product_id, price_paid_in_cents, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		o.ID, o.UserID, o.ProductID, o.PricePaidInCents, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}
