package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_store/internal/domain"
	"github.com/fjod/go_store/internal/payment"
	"github.com/fjod/go_store/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrInvalidQuantity     = errors.New("quantity must be positive")
	ErrProductsUnavailable = errors.New("some products are not available")
	ErrCheckoutSession     = errors.New("failed to create checkout session")
)

const (
	MetadataUserID = "userId"
	MetadataItems  = "items"
)

var tracer = otel.Tracer("github.com/fjod/go_store/internal/checkout")

type ProductReader interface {
	GetAvailableProducts(ctx context.Context, ids []string) ([]*domain.Product, error)
}

type Service struct {
	products  ProductReader
	processor payment.Processor
	baseURL   string
}

// NewService builds the checkout initiator. baseURL is the public storefront
// origin used for the processor's success and cancel redirects.
func NewService(products ProductReader, processor payment.Processor, baseURL string) *Service {
	return &Service{
		products:  products,
		processor: processor,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// InitiateCheckout validates items against the catalog and returns the URL of
// a hosted payment page. Prices always come from the catalog.
func (s *Service) InitiateCheckout(ctx context.Context, caller *domain.Identity, items []domain.ManifestItem) (string, error) {
	ctx, span := tracer.Start(ctx, "checkout.InitiateCheckout")
	defer span.End()

	if caller == nil {
		return "", ErrUnauthorized
	}
	if len(items) == 0 {
		return "", ErrEmptyCart
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return "", fmt.Errorf("%w: product %s", ErrInvalidQuantity, it.ID)
		}
		ids = append(ids, it.ID)
	}
	span.SetAttributes(attribute.Int("checkout.items", len(items)))

	products, err := s.products.GetAvailableProducts(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog lookup failed")
		return "", fmt.Errorf("get available products: %w", err)
	}
	// duplicate ids in items can never match the catalog count
	if len(products) != len(items) {
		return "", ErrProductsUnavailable
	}

	byID := make(map[string]*domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lineItems := make([]payment.LineItem, 0, len(items))
	for _, it := range items {
		p, ok := byID[it.ID]
		if !ok {
			return "", ErrProductsUnavailable
		}
		lineItems = append(lineItems, payment.LineItem{
			Name:            p.Name,
			Description:     p.Description,
			UnitAmountCents: p.PriceInCents,
			Quantity:        it.Quantity,
		})
	}

	manifest, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}

	session, err := s.processor.CreateCheckoutSession(ctx, payment.SessionRequest{
		CustomerEmail: caller.Email,
		LineItems:     lineItems,
		Metadata: map[string]string{
			MetadataUserID: caller.UserID,
			MetadataItems:  string(manifest),
		},
		SuccessURL: s.baseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.baseURL + "/cart",
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "processor session failed")
		logger.FromContext(ctx).Error().Err(err).Str("user_id", caller.UserID).Msg("checkout session failed")
		return "", fmt.Errorf("%w: %w", ErrCheckoutSession, err)
	}

	logger.FromContext(ctx).Info().
		Str("user_id", caller.UserID).
		Str("session_id", session.ID).
		Int("items", len(items)).
		Msg("checkout session created")
	return session.URL, nil
}
