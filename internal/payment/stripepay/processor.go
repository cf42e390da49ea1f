package stripepay

import (
	"context"
	"fmt"

	"github.com/fjod/go_store/internal/payment"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
)

// Processor creates Stripe hosted checkout sessions in USD.
type Processor struct {
	client session.Client
}

func NewProcessor(secretKey string) *Processor {
	return NewProcessorWithBackend(secretKey, stripe.GetBackend(stripe.APIBackend))
}

func NewProcessorWithBackend(secretKey string, backend stripe.Backend) *Processor {
	return &Processor{client: session.Client{B: backend, Key: secretKey}}
}

func (p *Processor) CreateCheckoutSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx

	for _, li := range req.LineItems {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(li.Name),
		}
		if li.Description != "" {
			product.Description = stripe.String(li.Description)
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(string(stripe.CurrencyUSD)),
				ProductData: product,
				UnitAmount:  stripe.Int64(li.UnitAmountCents),
			},
			Quantity: stripe.Int64(li.Quantity),
		})
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := p.client.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create checkout session: %w", err)
	}
	return &payment.Session{ID: s.ID, URL: s.URL}, nil
}
