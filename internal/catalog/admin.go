package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/fjod/go_store/internal/domain"
	"github.com/fjod/go_store/pkg/logger"
)

type ProductInput struct {
	Name                   string
	PriceInCents           int64
	Description            string
	ImagePath              string
	FilePath               string
	IsAvailableForPurchase *bool
	CategoryIDs            []string
}

type DeleteResult struct {
	HasOrders bool
}

type CategoryInput struct {
	Name string
	Slug string
}

func (in ProductInput) validate() error {
	switch {
	case blank(in.Name):
		return invalid(ErrInvalidProduct, "name is required")
	case in.PriceInCents <= 0:
		return invalid(ErrInvalidProduct, "price_in_cents must be positive")
	case blank(in.Description):
		return invalid(ErrInvalidProduct, "description is required")
	case blank(in.ImagePath):
		return invalid(ErrInvalidProduct, "image_path is required")
	case blank(in.FilePath):
		return invalid(ErrInvalidProduct, "file_path is required")
	}
	return nil
}

func (s *Service) CreateProduct(ctx context.Context, caller *domain.Identity, in ProductInput) (*domain.Product, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	available := true
	if in.IsAvailableForPurchase != nil {
		available = *in.IsAvailableForPurchase
	}
	p := &domain.Product{
		Name:                   strings.TrimSpace(in.Name),
		PriceInCents:           in.PriceInCents,
		Description:            in.Description,
		ImagePath:              in.ImagePath,
		FilePath:               in.FilePath,
		IsAvailableForPurchase: available,
	}
	if err := s.store.CreateProduct(ctx, p, in.CategoryIDs); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	logger.FromContext(ctx).Info().Str("product_id", p.ID).Str("admin", caller.UserID).Msg("product created")
	return s.store.GetProduct(ctx, p.ID)
}

// UpdateProduct changes only the fields set in u.
func (s *Service) UpdateProduct(ctx context.Context, caller *domain.Identity, id string, u domain.ProductUpdate) (*domain.Product, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	switch {
	case u.Name != nil && blank(*u.Name):
		return nil, invalid(ErrInvalidProduct, "name cannot be empty")
	case u.PriceInCents != nil && *u.PriceInCents <= 0:
		return nil, invalid(ErrInvalidProduct, "price_in_cents must be positive")
	case u.FilePath != nil && blank(*u.FilePath):
		return nil, invalid(ErrInvalidProduct, "file_path cannot be empty")
	case u.ImagePath != nil && blank(*u.ImagePath):
		return nil, invalid(ErrInvalidProduct, "image_path cannot be empty")
	}

	p, err := s.store.UpdateProduct(ctx, id, u)
	if err != nil {
		return nil, fmt.Errorf("update product %s: %w", id, err)
	}
	logger.FromContext(ctx).Info().Str("product_id", id).Str("admin", caller.UserID).Msg("product updated")
	return p, nil
}

// DeleteProduct always soft-deletes so existing orders keep their product.
func (s *Service) DeleteProduct(ctx context.Context, caller *domain.Identity, id string) (*DeleteResult, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	hasOrders, err := s.store.SoftDeleteProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("delete product %s: %w", id, err)
	}
	logger.FromContext(ctx).Info().
		Str("product_id", id).
		Bool("has_orders", hasOrders).
		Str("admin", caller.UserID).
		Msg("product soft-deleted")
	return &DeleteResult{HasOrders: hasOrders}, nil
}

func (in CategoryInput) normalize() (domain.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Category{}, invalid(ErrInvalidCategory, "name is required")
	}
	slug := domain.Slugify(in.Slug)
	if slug == "" {
		slug = domain.Slugify(name)
	}
	if slug == "" {
		return domain.Category{}, invalid(ErrInvalidCategory, "slug cannot be derived from name")
	}
	return domain.Category{Name: name, Slug: slug}, nil
}

func (s *Service) CreateCategory(ctx context.Context, caller *domain.Identity, in CategoryInput) (*domain.Category, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	c, err := in.normalize()
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateCategory(ctx, &c); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, caller *domain.Identity, id string, in CategoryInput) (*domain.Category, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	c, err := in.normalize()
	if err != nil {
		return nil, err
	}
	c.ID = id
	if err := s.store.UpdateCategory(ctx, &c); err != nil {
		return nil, fmt.Errorf("update category %s: %w", id, err)
	}
	return s.store.GetCategory(ctx, id)
}

func (s *Service) DeleteCategory(ctx context.Context, caller *domain.Identity, id string) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category %s: %w", id, err)
	}
	return nil
}
