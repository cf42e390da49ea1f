package http

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/fjod/go_store/internal/auth"
	"github.com/fjod/go_store/internal/catalog"
	"github.com/fjod/go_store/internal/domain"
	"github.com/fjod/go_store/internal/download"
	"github.com/fjod/go_store/internal/fulfillment"
	"github.com/fjod/go_store/internal/repository"
)

type mockTokens struct {
	identities map[string]*domain.Identity
}

func (m mockTokens) Verify(raw string) (*domain.Identity, error) {
	if id, ok := m.identities[raw]; ok {
		return id, nil
	}
	return nil, auth.ErrInvalidToken
}

type mockCatalog struct {
	products   map[string]*domain.Product
	categories []*domain.Category
	filter     domain.ProductFilter
	update     domain.ProductUpdate
	err        error
}

func (m *mockCatalog) ListProducts(_ context.Context, _ *domain.Identity, filter domain.ProductFilter) ([]*domain.Product, error) {
	m.filter = filter
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.Product
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return p, nil
}

func (m *mockCatalog) CreateProduct(_ context.Context, caller *domain.Identity, in catalog.ProductInput) (*domain.Product, error) {
	if caller == nil || !caller.IsAdmin {
		return nil, catalog.ErrUnauthorized
	}
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Product{ID: "new", Name: in.Name, PriceInCents: in.PriceInCents, FilePath: in.FilePath}, nil
}

func (m *mockCatalog) UpdateProduct(_ context.Context, caller *domain.Identity, id string, u domain.ProductUpdate) (*domain.Product, error) {
	if caller == nil || !caller.IsAdmin {
		return nil, catalog.ErrUnauthorized
	}
	m.update = u
	return m.GetProduct(context.Background(), id)
}

func (m *mockCatalog) DeleteProduct(_ context.Context, caller *domain.Identity, id string) (*catalog.DeleteResult, error) {
	if caller == nil || !caller.IsAdmin {
		return nil, catalog.ErrUnauthorized
	}
	if _, err := m.GetProduct(context.Background(), id); err != nil {
		return nil, err
	}
	return &catalog.DeleteResult{HasOrders: true}, nil
}

func (m *mockCatalog) ListCategories(context.Context) ([]*domain.Category, error) {
	return m.categories, m.err
}

func (m *mockCatalog) CreateCategory(_ context.Context, caller *domain.Identity, in catalog.CategoryInput) (*domain.Category, error) {
	if caller == nil || !caller.IsAdmin {
		return nil, catalog.ErrUnauthorized
	}
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Category{ID: "c1", Name: in.Name, Slug: domain.Slugify(in.Name)}, nil
}

func (m *mockCatalog) UpdateCategory(_ context.Context, caller *domain.Identity, id string, in catalog.CategoryInput) (*domain.Category, error) {
	if caller == nil || !caller.IsAdmin {
		return nil, catalog.ErrUnauthorized
	}
	return &domain.Category{ID: id, Name: in.Name, Slug: in.Slug}, m.err
}

func (m *mockCatalog) DeleteCategory(_ context.Context, caller *domain.Identity, _ string) error {
	if caller == nil || !caller.IsAdmin {
		return catalog.ErrUnauthorized
	}
	return m.err
}

type mockCheckout struct {
	items  []domain.ManifestItem
	caller *domain.Identity
	url    string
	err    error
}

func (m *mockCheckout) InitiateCheckout(_ context.Context, caller *domain.Identity, items []domain.ManifestItem) (string, error) {
	m.caller = caller
	m.items = items
	if m.err != nil {
		return "", m.err
	}
	return m.url, nil
}

type mockWebhooks struct {
	payload   []byte
	signature string
	err       error
}

func (m *mockWebhooks) HandleWebhook(_ context.Context, payload []byte, signature string) (*fulfillment.Result, error) {
	m.payload = payload
	m.signature = signature
	if m.err != nil {
		return nil, m.err
	}
	return &fulfillment.Result{EventID: "evt_1"}, nil
}

type mockGate struct {
	delivery *download.Delivery
	issued   *domain.DownloadVerification
	err      error
}

func (m *mockGate) Issue(_ context.Context, caller *domain.Identity, orderID string) (*domain.DownloadVerification, error) {
	if caller == nil {
		return nil, download.ErrUnauthorized
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.issued, nil
}

func (m *mockGate) Redeem(context.Context, string) (*download.Delivery, error) {
	return m.delivery, m.err
}

type mockOrders struct {
	orders []*domain.OrderDetails
	stats  *domain.SalesStats
	limit  int
	err    error
}

func (m *mockOrders) History(_ context.Context, caller *domain.Identity) ([]*domain.OrderDetails, error) {
	if caller == nil {
		return nil, auth.ErrInvalidToken
	}
	return m.orders, m.err
}

func (m *mockOrders) Get(_ context.Context, _ *domain.Identity, id string) (*domain.OrderDetails, error) {
	for _, o := range m.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *mockOrders) Recent(_ context.Context, _ *domain.Identity, limit int) ([]*domain.OrderDetails, error) {
	m.limit = limit
	return m.orders, m.err
}

func (m *mockOrders) Stats(context.Context, *domain.Identity) (*domain.SalesStats, error) {
	return m.stats, m.err
}

func readCloser(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
