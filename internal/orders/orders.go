package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_store/internal/domain"
	"github.com/fjod/go_store/internal/repository"
)

var ErrUnauthorized = errors.New("unauthorized")

const defaultAdminListLimit = 50

type Store interface {
	GetOrderByID(ctx context.Context, id string) (*domain.OrderDetails, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.OrderDetails, error)
	ListAllOrders(ctx context.Context, limit int) ([]*domain.OrderDetails, error)
	GetSalesStats(ctx context.Context) (*domain.SalesStats, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// History lists the caller's orders, newest first.
func (s *Service) History(ctx context.Context, caller *domain.Identity) ([]*domain.OrderDetails, error) {
	if caller == nil {
		return nil, ErrUnauthorized
	}
	return s.store.ListOrdersByUserID(ctx, caller.UserID)
}

// Get returns one of the caller's orders. Orders of other users are reported
// as not found.
func (s *Service) Get(ctx context.Context, caller *domain.Identity, id string) (*domain.OrderDetails, error) {
	if caller == nil {
		return nil, ErrUnauthorized
	}
	o, err := s.store.GetOrderByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	if o.UserID != caller.UserID && !caller.IsAdmin {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

func (s *Service) Recent(ctx context.Context, caller *domain.Identity, limit int) ([]*domain.OrderDetails, error) {
	if caller == nil || !caller.IsAdmin {
		return nil, ErrUnauthorized
	}
	if limit <= 0 || limit > 500 {
		limit = defaultAdminListLimit
	}
	return s.store.ListAllOrders(ctx, limit)
}

func (s *Service) Stats(ctx context.Context, caller *domain.Identity) (*domain.SalesStats, error) {
	if caller == nil || !caller.IsAdmin {
		return nil, ErrUnauthorized
	}
	return s.store.GetSalesStats(ctx)
}
