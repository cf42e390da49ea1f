package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_store/internal/checkout"
	"github.com/fjod/go_store/internal/domain"
	"github.com/fjod/go_store/internal/payment"
	"github.com/fjod/go_store/internal/repository"
	"github.com/fjod/go_store/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrMissingSignature = errors.New("no signature")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrHandlerFailed    = errors.New("webhook handler failed")
)

var tracer = otel.Tracer("github.com/fjod/go_store/internal/fulfillment")

// PurchaseTx is the transactional view used while applying one event.
type PurchaseTx interface {
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
	GetProductIncludingDeleted(ctx context.Context, id string) (*domain.Product, error)
	CreateOrder(ctx context.Context, o *domain.Order) error
	AddOutboxEvent(ctx context.Context, e *domain.OutboxEvent) error
}

type PurchaseStore interface {
	InPurchaseTx(ctx context.Context, fn func(PurchaseTx) error) error
}

type repositoryStore struct {
	repo *repository.Repository
}

// NewRepositoryStore adapts the SQL repository to PurchaseStore.
func NewRepositoryStore(repo *repository.Repository) PurchaseStore {
	return repositoryStore{repo: repo}
}

func (s repositoryStore) InPurchaseTx(ctx context.Context, fn func(PurchaseTx) error) error {
	return s.repo.WithTx(ctx, func(tx *repository.Tx) error {
		return fn(tx)
	})
}

// Result describes what a delivery did. Every successful result is
// acknowledged to the processor.
type Result struct {
	EventID   string
	EventType string
	Duplicate bool
	Dropped   bool
	OrderIDs  []string
}

type Service struct {
	store    PurchaseStore
	verifier payment.EventVerifier
	now      func() time.Time
}

func NewService(store PurchaseStore, verifier payment.EventVerifier) *Service {
	return &Service{
		store:    store,
		verifier: verifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// HandleWebhook verifies and applies one processor notification. Re-delivered
// events are acknowledged without creating orders again.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "fulfillment.HandleWebhook")
	defer span.End()
	log := logger.FromContext(ctx)

	if signature == "" {
		return nil, ErrMissingSignature
	}
	event, err := s.verifier.VerifyEvent(payload, signature)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			log.Warn().Err(err).Msg("webhook signature verification failed")
			return nil, ErrInvalidSignature
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "event decode failed")
		return nil, fmt.Errorf("%w: %w", ErrHandlerFailed, err)
	}
	span.SetAttributes(
		attribute.String("event.id", event.ID),
		attribute.String("event.type", event.Type),
	)

	res := &Result{EventID: event.ID, EventType: event.Type}
	switch event.Type {
	case payment.EventCheckoutSessionCompleted:
		if err := s.applyCompletedSession(ctx, event, res); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "apply failed")
			log.Error().Err(err).Str("event_id", event.ID).Msg("failed to apply checkout session")
			return nil, fmt.Errorf("%w: %w", ErrHandlerFailed, err)
		}
	default:
		log.Info().Str("event_id", event.ID).Str("event_type", event.Type).Msg("unhandled event type")
	}
	return res, nil
}

func (s *Service) applyCompletedSession(ctx context.Context, event *payment.Event, res *Result) error {
	log := logger.FromContext(ctx)
	session := event.Session
	if session == nil {
		log.Warn().Str("event_id", event.ID).Msg("completed event without session")
		res.Dropped = true
		return nil
	}

	userID := session.Metadata[checkout.MetadataUserID]
	rawItems := session.Metadata[checkout.MetadataItems]
	if userID == "" || rawItems == "" {
		log.Warn().Str("session_id", session.ID).Msg("missing userId or items in session metadata")
		res.Dropped = true
		return nil
	}

	var items []domain.ManifestItem
	if err := json.Unmarshal([]byte(rawItems), &items); err != nil || len(items) == 0 {
		log.Warn().Err(err).Str("session_id", session.ID).Msg("unreadable manifest in session metadata")
		res.Dropped = true
		return nil
	}

	var orderIDs []string
	err := s.store.InPurchaseTx(ctx, func(tx PurchaseTx) error {
		orderIDs = nil
		if err := tx.MarkEventProcessed(ctx, event.ID, event.Type); err != nil {
			return err
		}

		for _, item := range items {
			if item.Quantity <= 0 {
				log.Warn().Str("product_id", item.ID).Int64("quantity", item.Quantity).Msg("skipping manifest line")
				continue
			}
			product, err := tx.GetProductIncludingDeleted(ctx, item.ID)
			if errors.Is(err, repository.ErrProductNotFound) {
				log.Warn().Str("product_id", item.ID).Str("session_id", session.ID).Msg("product not found, skipping")
				continue
			}
			if err != nil {
				return fmt.Errorf("get product %s: %w", item.ID, err)
			}

			order := &domain.Order{
				UserID:           userID,
				ProductID:        product.ID,
				PricePaidInCents: product.PriceInCents * item.Quantity,
			}
			if err := tx.CreateOrder(ctx, order); err != nil {
				return fmt.Errorf("create order for product %s: %w", product.ID, err)
			}
			orderIDs = append(orderIDs, order.ID)
		}

		payload, err := json.Marshal(domain.PurchaseCompletedEvent{
			EventID:     event.ID,
			SessionID:   session.ID,
			UserID:      userID,
			Email:       session.CustomerEmail,
			OrderIDs:    orderIDs,
			CompletedAt: s.now(),
		})
		if err != nil {
			return fmt.Errorf("marshal purchase event: %w", err)
		}
		return tx.AddOutboxEvent(ctx, &domain.OutboxEvent{
			AggregateID: userID,
			EventType:   domain.EventTypePurchaseCompleted,
			Payload:     payload,
		})
	})
	if errors.Is(err, repository.ErrDuplicateEvent) {
		log.Info().Str("event_id", event.ID).Msg("event already processed")
		res.Duplicate = true
		return nil
	}
	if err != nil {
		return err
	}

	res.OrderIDs = orderIDs
	log.Info().
		Str("event_id", event.ID).
		Str("user_id", userID).
		Int("orders", len(orderIDs)).
		Msg("purchase fulfilled")
	return nil
}
