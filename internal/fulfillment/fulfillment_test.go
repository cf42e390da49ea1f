package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fjod/go_store/internal/domain"
	"github.com/fjod/go_store/internal/payment"
	"github.com/fjod/go_store/internal/payment/stripepay"
	"github.com/fjod/go_store/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
)

const webhookSecret = "whsec_fulfillment_test"

type mockVerifier struct {
	event *payment.Event
	err   error
}

func (m *mockVerifier) VerifyEvent([]byte, string) (*payment.Event, error) {
	return m.event, m.err
}

type mockStore struct {
	calls int
	err   error
}

func (m *mockStore) InPurchaseTx(context.Context, func(PurchaseTx) error) error {
	m.calls++
	return m.err
}

func completedEvent(metadata map[string]string) *payment.Event {
	return &payment.Event{
		ID:   "evt_1",
		Type: payment.EventCheckoutSessionCompleted,
		Session: &payment.CompletedSession{
			ID:            "cs_1",
			CustomerEmail: "buyer@example.com",
			Metadata:      metadata,
		},
	}
}

func TestHandleWebhook_SignatureErrors(t *testing.T) {
	store := &mockStore{}

	svc := NewService(store, &mockVerifier{})
	_, err := svc.HandleWebhook(context.Background(), []byte("{}"), "")
	assert.ErrorIs(t, err, ErrMissingSignature)

	svc = NewService(store, &mockVerifier{err: fmt.Errorf("%w: bad", payment.ErrInvalidSignature)})
	_, err = svc.HandleWebhook(context.Background(), []byte("{}"), "t=1,v1=x")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	assert.Zero(t, store.calls)
}

func TestHandleWebhook_DropsIncompleteMetadata(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]string
	}{
		{"no user", map[string]string{"items": `[{"id":"p1","quantity":1}]`}},
		{"no items", map[string]string{"userId": "u1"}},
		{"empty manifest", map[string]string{"userId": "u1", "items": `[]`}},
		{"malformed manifest", map[string]string{"userId": "u1", "items": `not json`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{}
			svc := NewService(store, &mockVerifier{event: completedEvent(tt.metadata)})

			res, err := svc.HandleWebhook(context.Background(), []byte("{}"), "sig")
			require.NoError(t, err)
			assert.True(t, res.Dropped)
			assert.Zero(t, store.calls)
		})
	}
}

func TestHandleWebhook_UnknownEventAcknowledged(t *testing.T) {
	store := &mockStore{}
	svc := NewService(store, &mockVerifier{event: &payment.Event{ID: "evt_9", Type: "invoice.paid"}})

	res, err := svc.HandleWebhook(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, "invoice.paid", res.EventType)
	assert.Empty(t, res.OrderIDs)
	assert.Zero(t, store.calls)
}

func TestHandleWebhook_StoreFailure(t *testing.T) {
	boom := errors.New("db down")
	svc := NewService(&mockStore{err: boom}, &mockVerifier{event: completedEvent(map[string]string{
		"userId": "u1",
		"items":  `[{"id":"p1","quantity":1}]`,
	})})

	_, err := svc.HandleWebhook(context.Background(), []byte("{}"), "sig")
	assert.ErrorIs(t, err, ErrHandlerFailed)
	assert.ErrorIs(t, err, boom)
}

type fixture struct {
	svc  *Service
	repo *repository.Repository
	user *domain.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	repo, err := repository.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations("../repository/migrations/sqlite"))
	t.Cleanup(func() { _ = repo.Close() })

	user := &domain.User{Email: "buyer@example.com", PasswordHash: "h"}
	require.NoError(t, repo.CreateUser(context.Background(), user))

	svc := NewService(NewRepositoryStore(repo), stripepay.NewVerifier(webhookSecret))
	return &fixture{svc: svc, repo: repo, user: user}
}

func (f *fixture) product(t *testing.T, name string, price int64) *domain.Product {
	t.Helper()
	p := &domain.Product{
		Name:                   name,
		PriceInCents:           price,
		Description:            name,
		ImagePath:              "/images/" + name + ".png",
		FilePath:               "/products/" + name + ".pdf",
		IsAvailableForPurchase: true,
	}
	require.NoError(t, f.repo.CreateProduct(context.Background(), p, nil))
	return p
}

func signedEvent(t *testing.T, eventID, userID string, items []domain.ManifestItem) ([]byte, string) {
	t.Helper()
	manifest, err := json.Marshal(items)
	require.NoError(t, err)

	event := map[string]any{
		"id":     eventID,
		"object": "event",
		"type":   "checkout.session.completed",
		"data": map[string]any{
			"object": map[string]any{
				"id":             "cs_" + eventID,
				"object":         "checkout.session",
				"customer_email": "buyer@example.com",
				"metadata": map[string]string{
					"userId": userID,
					"items":  string(manifest),
				},
			},
		},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    webhookSecret,
		Timestamp: time.Now(),
	})
	return sp.Payload, sp.Header
}

func TestHandleWebhook_CreatesOrdersWithQuantityPricing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := f.product(t, "book", 1500)
	preset := f.product(t, "preset", 700)

	payload, sig := signedEvent(t, "evt_a", f.user.ID, []domain.ManifestItem{
		{ID: book.ID, Quantity: 2},
		{ID: preset.ID, Quantity: 1},
	})

	res, err := f.svc.HandleWebhook(ctx, payload, sig)
	require.NoError(t, err)
	assert.Len(t, res.OrderIDs, 2)
	assert.False(t, res.Duplicate)

	orders, err := f.repo.ListOrdersByUserID(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	paid := map[string]int64{}
	for _, o := range orders {
		paid[o.ProductID] = o.PricePaidInCents
	}
	assert.Equal(t, int64(3000), paid[book.ID])
	assert.Equal(t, int64(700), paid[preset.ID])

	events, err := f.repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	var purchase domain.PurchaseCompletedEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &purchase))
	assert.Equal(t, "buyer@example.com", purchase.Email)
	assert.Equal(t, f.user.ID, purchase.UserID)
	assert.ElementsMatch(t, res.OrderIDs, purchase.OrderIDs)
}

func TestHandleWebhook_DuplicateDeliveryCreatesOrdersOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := f.product(t, "book", 1500)

	payload, sig := signedEvent(t, "evt_dup", f.user.ID, []domain.ManifestItem{{ID: book.ID, Quantity: 1}})

	_, err := f.svc.HandleWebhook(ctx, payload, sig)
	require.NoError(t, err)

	res, err := f.svc.HandleWebhook(ctx, payload, sig)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)

	orders, err := f.repo.ListOrdersByUserID(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	events, err := f.repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestHandleWebhook_SkipsUnknownAndFulfillsDeletedProducts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	retired := f.product(t, "retired", 900)
	_, err := f.repo.SoftDeleteProduct(ctx, retired.ID)
	require.NoError(t, err)

	payload, sig := signedEvent(t, "evt_mixed", f.user.ID, []domain.ManifestItem{
		{ID: "does-not-exist", Quantity: 1},
		{ID: retired.ID, Quantity: 1},
	})

	res, err := f.svc.HandleWebhook(ctx, payload, sig)
	require.NoError(t, err)
	require.Len(t, res.OrderIDs, 1)

	o, err := f.repo.GetOrderByID(ctx, res.OrderIDs[0])
	require.NoError(t, err)
	assert.Equal(t, retired.ID, o.ProductID)
	assert.Equal(t, int64(900), o.PricePaidInCents)
}

func TestHandleWebhook_InvalidSignatureWithRealVerifier(t *testing.T) {
	f := setup(t)
	payload, _ := signedEvent(t, "evt_x", f.user.ID, []domain.ManifestItem{{ID: "p", Quantity: 1}})

	_, err := f.svc.HandleWebhook(context.Background(), payload, "t=123,v1=forged")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
