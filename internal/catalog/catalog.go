package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_store/internal/domain"
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidProduct  = errors.New("invalid product")
	ErrInvalidCategory = errors.New("invalid category")
)

type Store interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product, categoryIDs []string) error
	UpdateProduct(ctx context.Context, id string, u domain.ProductUpdate) (*domain.Product, error)
	SoftDeleteProduct(ctx context.Context, id string) (bool, error)

	ListCategories(ctx context.Context) ([]*domain.Category, error)
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	CreateCategory(ctx context.Context, c *domain.Category) error
	UpdateCategory(ctx context.Context, c *domain.Category) error
	DeleteCategory(ctx context.Context, id string) error
}

// Service serves catalog reads to everyone and catalog mutations to admins.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// ListProducts hides soft-deleted products unless an admin asks for them.
func (s *Service) ListProducts(ctx context.Context, caller *domain.Identity, filter domain.ProductFilter) ([]*domain.Product, error) {
	if !isAdmin(caller) {
		filter.IncludeDeleted = false
	}
	products, err := s.store.ListProducts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *Service) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.store.ListCategories(ctx)
}

func isAdmin(caller *domain.Identity) bool {
	return caller != nil && caller.IsAdmin
}

func requireAdmin(caller *domain.Identity) error {
	if !isAdmin(caller) {
		return ErrUnauthorized
	}
	return nil
}

func invalid(base error, msg string) error {
	return fmt.Errorf("%w: %s", base, msg)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
