package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/go_store/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seededCategories = 8

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations("./migrations/sqlite"))

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newTestProduct(name string, price int64) *domain.Product {
	return &domain.Product{
		Name:                   name,
		PriceInCents:           price,
		Description:            "Description of " + name,
		ImagePath:              "/images/" + name + ".png",
		FilePath:               "/products/" + name + ".pdf",
		IsAvailableForPurchase: true,
	}
}

func createProduct(t *testing.T, repo *Repository, name string, price int64, categoryIDs ...string) *domain.Product {
	t.Helper()
	p := newTestProduct(name, price)
	require.NoError(t, repo.CreateProduct(context.Background(), p, categoryIDs))
	return p
}

func createUser(t *testing.T, repo *Repository, email string) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, Name: "Buyer", PasswordHash: "hash"}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	return u
}

func createOrder(t *testing.T, repo *Repository, userID, productID string, paid int64) *domain.Order {
	t.Helper()
	o := &domain.Order{UserID: userID, ProductID: productID, PricePaidInCents: paid}
	require.NoError(t, repo.WithTx(context.Background(), func(tx *Tx) error {
		return tx.CreateOrder(context.Background(), o)
	}))
	return o
}

func createCategory(t *testing.T, repo *Repository, name, slug string) *domain.Category {
	t.Helper()
	c := &domain.Category{Name: name, Slug: slug}
	require.NoError(t, repo.CreateCategory(context.Background(), c))
	return c
}

func TestMigrations_Idempotent(t *testing.T) {
	repo := setupTestDB(t)
	require.NoError(t, repo.RunMigrations("./migrations/sqlite"))

	categories, err := repo.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, categories, seededCategories)
}

func TestCreateAndGetProduct(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	cat := createCategory(t, repo, "Guides", "guides")

	p := createProduct(t, repo, "handbook", 1999, cat.ID)
	require.NotEmpty(t, p.ID)

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "handbook", got.Name)
	assert.Equal(t, int64(1999), got.PriceInCents)
	assert.True(t, got.IsAvailableForPurchase)
	assert.False(t, got.IsDeleted)
	require.Len(t, got.Categories, 1)
	assert.Equal(t, "guides", got.Categories[0].Slug)
	assert.Zero(t, got.OrderCount)
}

func TestCreateProduct_UnknownCategory(t *testing.T) {
	repo := setupTestDB(t)

	err := repo.CreateProduct(context.Background(), newTestProduct("x", 100), []string{"missing"})
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	products, err := repo.ListProducts(context.Background(), domain.ProductFilter{})
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestGetProduct_NotFound(t *testing.T) {
	repo := setupTestDB(t)
	_, err := repo.GetProduct(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestListProducts_Filters(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	cat := createCategory(t, repo, "Audio Books", "audio-books")

	a := createProduct(t, repo, "alpha", 300, cat.ID)
	b := createProduct(t, repo, "beta", 100)
	c := createProduct(t, repo, "gamma", 200)

	off := false
	_, err := repo.UpdateProduct(ctx, b.ID, domain.ProductUpdate{IsAvailableForPurchase: &off})
	require.NoError(t, err)
	_, err = repo.SoftDeleteProduct(ctx, c.ID)
	require.NoError(t, err)

	t.Run("default hides deleted, newest first", func(t *testing.T) {
		products, err := repo.ListProducts(ctx, domain.ProductFilter{})
		require.NoError(t, err)
		require.Len(t, products, 2)
		assert.Equal(t, b.ID, products[0].ID)
		assert.Equal(t, a.ID, products[1].ID)
	})

	t.Run("available only", func(t *testing.T) {
		products, err := repo.ListProducts(ctx, domain.ProductFilter{AvailableOnly: true})
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Equal(t, a.ID, products[0].ID)
	})

	t.Run("include deleted sorted by price ascending", func(t *testing.T) {
		products, err := repo.ListProducts(ctx, domain.ProductFilter{
			IncludeDeleted: true,
			SortBy:         domain.SortByPrice,
			Ascending:      true,
		})
		require.NoError(t, err)
		require.Len(t, products, 3)
		assert.Equal(t, []string{b.ID, c.ID, a.ID}, []string{products[0].ID, products[1].ID, products[2].ID})
	})

	t.Run("search matches name or description case-insensitively", func(t *testing.T) {
		products, err := repo.ListProducts(ctx, domain.ProductFilter{Search: "ALP"})
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Equal(t, a.ID, products[0].ID)

		products, err = repo.ListProducts(ctx, domain.ProductFilter{Search: "description of beta"})
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Equal(t, b.ID, products[0].ID)
	})

	t.Run("category slug", func(t *testing.T) {
		products, err := repo.ListProducts(ctx, domain.ProductFilter{CategorySlug: "audio-books"})
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Equal(t, a.ID, products[0].ID)
		require.Len(t, products[0].Categories, 1)
	})

	t.Run("unknown sort field falls back to created_at", func(t *testing.T) {
		products, err := repo.ListProducts(ctx, domain.ProductFilter{SortBy: "password"})
		require.NoError(t, err)
		require.Len(t, products, 2)
		assert.Equal(t, b.ID, products[0].ID)
	})
}

func TestListProducts_OrderCount(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	u := createUser(t, repo, "buyer@example.com")
	p := createProduct(t, repo, "popular", 500)
	createOrder(t, repo, u.ID, p.ID, 500)
	createOrder(t, repo, u.ID, p.ID, 1000)

	products, err := repo.ListProducts(ctx, domain.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, int64(2), products[0].OrderCount)
}

func TestGetAvailableProducts(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	a := createProduct(t, repo, "a", 100)
	b := createProduct(t, repo, "b", 200)
	c := createProduct(t, repo, "c", 300)

	off := false
	_, err := repo.UpdateProduct(ctx, b.ID, domain.ProductUpdate{IsAvailableForPurchase: &off})
	require.NoError(t, err)
	_, err = repo.SoftDeleteProduct(ctx, c.ID)
	require.NoError(t, err)

	products, err := repo.GetAvailableProducts(ctx, []string{a.ID, b.ID, c.ID, "missing"})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, a.ID, products[0].ID)

	products, err = repo.GetAvailableProducts(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestUpdateProduct_Partial(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createProduct(t, repo, "original", 1000)

	name := "renamed"
	got, err := repo.UpdateProduct(ctx, p.ID, domain.ProductUpdate{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, int64(1000), got.PriceInCents)
	assert.Equal(t, p.Description, got.Description)
	assert.Equal(t, p.FilePath, got.FilePath)
	assert.True(t, got.UpdatedAt.After(p.UpdatedAt))
}

func TestUpdateProduct_ReplacesCategories(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	x := createCategory(t, repo, "X", "x")
	y := createCategory(t, repo, "Y", "y")
	z := createCategory(t, repo, "Z", "z")
	p := createProduct(t, repo, "tagged", 1000, x.ID, y.ID)

	ids := []string{z.ID}
	got, err := repo.UpdateProduct(ctx, p.ID, domain.ProductUpdate{CategoryIDs: &ids})
	require.NoError(t, err)
	require.Len(t, got.Categories, 1)
	assert.Equal(t, z.ID, got.Categories[0].ID)

	empty := []string{}
	got, err = repo.UpdateProduct(ctx, p.ID, domain.ProductUpdate{CategoryIDs: &empty})
	require.NoError(t, err)
	assert.Empty(t, got.Categories)
}

func TestUpdateProduct_UnknownCategoryRollsBack(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	x := createCategory(t, repo, "X", "x")
	p := createProduct(t, repo, "tagged", 1000, x.ID)

	name := "should not stick"
	ids := []string{"missing"}
	_, err := repo.UpdateProduct(ctx, p.ID, domain.ProductUpdate{Name: &name, CategoryIDs: &ids})
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "tagged", got.Name)
	require.Len(t, got.Categories, 1)
}

func TestUpdateProduct_NotFound(t *testing.T) {
	repo := setupTestDB(t)
	name := "x"
	_, err := repo.UpdateProduct(context.Background(), "missing", domain.ProductUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestSoftDeleteProduct(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	u := createUser(t, repo, "buyer@example.com")
	sold := createProduct(t, repo, "sold", 100)
	unsold := createProduct(t, repo, "unsold", 100)
	createOrder(t, repo, u.ID, sold.ID, 100)

	hasOrders, err := repo.SoftDeleteProduct(ctx, sold.ID)
	require.NoError(t, err)
	assert.True(t, hasOrders)

	hasOrders, err = repo.SoftDeleteProduct(ctx, unsold.ID)
	require.NoError(t, err)
	assert.False(t, hasOrders)

	got, err := repo.GetProduct(ctx, sold.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
	assert.True(t, got.IsAvailableForPurchase)

	_, err = repo.SoftDeleteProduct(ctx, "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCategories(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	c := createCategory(t, repo, "Presets", "presets")

	err := repo.CreateCategory(ctx, &domain.Category{Name: "Dup", Slug: "presets"})
	assert.ErrorIs(t, err, ErrSlugTaken)

	c.Name = "Lightroom Presets"
	c.Slug = "lightroom-presets"
	require.NoError(t, repo.UpdateCategory(ctx, c))

	got, err := repo.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "lightroom-presets", got.Slug)

	err = repo.UpdateCategory(ctx, &domain.Category{ID: c.ID, Name: "E", Slug: "ebooks"})
	assert.ErrorIs(t, err, ErrSlugTaken)

	p := createProduct(t, repo, "preset-pack", 900, c.ID)
	require.NoError(t, repo.DeleteCategory(ctx, c.ID))

	_, err = repo.GetCategory(ctx, c.ID)
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	gotProduct, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, gotProduct.Categories)

	assert.ErrorIs(t, repo.DeleteCategory(ctx, c.ID), ErrCategoryNotFound)
}

func TestOrders(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	alice := createUser(t, repo, "alice@example.com")
	bob := createUser(t, repo, "bob@example.com")
	p := createProduct(t, repo, "book", 1500)

	first := createOrder(t, repo, alice.ID, p.ID, 1500)
	second := createOrder(t, repo, alice.ID, p.ID, 3000)
	createOrder(t, repo, bob.ID, p.ID, 1500)

	orders, err := repo.ListOrdersByUserID(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)
	assert.Equal(t, "book", orders[0].ProductName)
	assert.Equal(t, "alice@example.com", orders[0].UserEmail)

	got, err := repo.GetOrderByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), got.PricePaidInCents)

	_, err = repo.GetOrderByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	all, err := repo.ListAllOrders(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	stats, err := repo.GetSalesStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.OrderCount)
	assert.Equal(t, int64(2), stats.UserCount)
	assert.Equal(t, int64(1), stats.ProductCount)
	assert.Equal(t, int64(6000), stats.RevenueInCents)
	assert.Equal(t, int64(2000), stats.AverageOrderValueCents)
}

func TestMarkEventProcessed_Duplicate(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	u := createUser(t, repo, "buyer@example.com")
	p := createProduct(t, repo, "book", 1500)

	apply := func() error {
		return repo.WithTx(ctx, func(tx *Tx) error {
			if err := tx.MarkEventProcessed(ctx, "evt_1", "checkout.session.completed"); err != nil {
				return err
			}
			return tx.CreateOrder(ctx, &domain.Order{UserID: u.ID, ProductID: p.ID, PricePaidInCents: 1500})
		})
	}

	require.NoError(t, apply())
	assert.ErrorIs(t, apply(), ErrDuplicateEvent)

	orders, err := repo.ListOrdersByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestOutbox(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.WithTx(ctx, func(tx *Tx) error {
		for _, agg := range []string{"a", "b"} {
			if err := tx.AddOutboxEvent(ctx, &domain.OutboxEvent{
				AggregateID: agg,
				EventType:   domain.EventTypePurchaseCompleted,
				Payload:     []byte(`{"user_id":"` + agg + `"}`),
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].AggregateID)
	assert.JSONEq(t, `{"user_id":"a"}`, string(events[0].Payload))

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))

	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "b", events[0].AggregateID)
}

func TestDownloadVerification(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	u := createUser(t, repo, "buyer@example.com")
	p := createProduct(t, repo, "book", 1500)
	o := createOrder(t, repo, u.ID, p.ID, 1500)

	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	v := &domain.DownloadVerification{OrderID: o.ID, ProductID: p.ID, ExpiresAt: expires}
	require.NoError(t, repo.CreateDownloadVerification(ctx, v))

	got, product, err := repo.GetDownloadVerification(ctx, v.ID)
	require.NoError(t, err)
	assert.True(t, expires.Equal(got.ExpiresAt))
	assert.Equal(t, p.ID, product.ID)

	require.NoError(t, repo.DeleteDownloadVerification(ctx, v.ID))
	assert.ErrorIs(t, repo.DeleteDownloadVerification(ctx, v.ID), ErrVerificationNotFound)

	_, _, err = repo.GetDownloadVerification(ctx, v.ID)
	assert.ErrorIs(t, err, ErrVerificationNotFound)
}

func TestUsers(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	u := createUser(t, repo, "Mixed@Example.com")
	assert.Equal(t, "mixed@example.com", u.Email)

	err := repo.CreateUser(ctx, &domain.User{Email: "mixed@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	got, err := repo.GetUserByEmail(ctx, "MIXED@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got, err = repo.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)

	_, err = repo.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
