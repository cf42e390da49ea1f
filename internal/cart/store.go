package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_store/pkg/logger"
	"golang.org/x/sync/singleflight"
)

const GuestKey = "cart_guest"

// Owner identifies whose cart is loaded. Signed-in shoppers are keyed by
// email. Anonymous shoppers share GuestKey unless a device id scopes it.
type Owner struct {
	Email    string
	DeviceID string
}

func (o Owner) Key() string {
	if email := strings.TrimSpace(o.Email); email != "" {
		return "cart_" + strings.ToLower(email)
	}
	if o.DeviceID != "" {
		return GuestKey + "_" + o.DeviceID
	}
	return GuestKey
}

type Service struct {
	storage Storage
	sfg     singleflight.Group
}

func NewService(storage Storage) *Service {
	return &Service{storage: storage}
}

// Open returns a store bound to owner's key with its snapshot loaded.
func (s *Service) Open(ctx context.Context, owner Owner) (*Store, error) {
	st := &Store{svc: s}
	if err := st.Switch(ctx, owner); err != nil {
		return nil, err
	}
	return st, nil
}

// ClearFor removes the persisted cart of a signed-in shopper.
func (s *Service) ClearFor(ctx context.Context, email string) error {
	key := Owner{Email: email}.Key()
	if err := s.storage.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete cart %s: %w", key, err)
	}
	return nil
}

func (s *Service) load(ctx context.Context, key string) (Cart, error) {
	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		return s.storage.Load(ctx, key)
	})
	if errors.Is(err, ErrNotFound) {
		return Cart{}, nil
	}
	if err != nil {
		return Cart{}, fmt.Errorf("load cart %s: %w", key, err)
	}

	var items []Item
	if err := json.Unmarshal(v.([]byte), &items); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("key", key).Msg("discarding unreadable cart snapshot")
		return Cart{}, nil
	}
	return fromItems(items), nil
}

// Store is one shopper's cart bound to its persistence key. It is not safe
// for concurrent use; each request opens its own.
type Store struct {
	svc  *Service
	key  string
	cart Cart
}

// Switch rebinds the store to owner's key, dropping the in-memory cart and
// loading the persisted one.
func (s *Store) Switch(ctx context.Context, owner Owner) error {
	key := owner.Key()
	c, err := s.svc.load(ctx, key)
	if err != nil {
		return err
	}
	s.key = key
	s.cart = c
	return nil
}

func (s *Store) Key() string {
	return s.key
}

func (s *Store) Cart() *Cart {
	return &s.cart
}

func (s *Store) Add(ctx context.Context, item Item) error {
	s.cart.Add(item)
	return s.persist(ctx)
}

func (s *Store) Remove(ctx context.Context, productID string) error {
	s.cart.Remove(productID)
	return s.persist(ctx)
}

func (s *Store) SetQuantity(ctx context.Context, productID string, n int64) error {
	s.cart.SetQuantity(productID, n)
	return s.persist(ctx)
}

func (s *Store) Clear(ctx context.Context) error {
	s.cart.Clear()
	return s.persist(ctx)
}

// persist writes the snapshot under the current key. A failed write leaves
// the in-memory cart changed.
func (s *Store) persist(ctx context.Context) error {
	items := s.cart.Items()
	snapshot, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := s.svc.storage.Save(ctx, s.key, snapshot); err != nil {
		logger.FromContext(ctx).Error().Err(err).Str("key", s.key).Msg("failed to persist cart")
		return fmt.Errorf("save cart %s: %w", s.key, err)
	}
	return nil
}
