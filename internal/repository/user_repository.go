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

func (r *Repository) CreateUser(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = r.now()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, is_admin, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.IsAdmin, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUser(ctx, `WHERE email = $1`, strings.ToLower(strings.TrimSpace(email)))
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getUser(ctx, `WHERE id = $1`, id)
}

func (r *Repository) getUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	u := &domain.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, is_admin, created_at FROM users `+where, arg).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}
