package stripepay

import (
	"encoding/json"
	"fmt"

	"github.com/fjod/go_store/internal/payment"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Verifier checks the Stripe-Signature header against the endpoint secret.
type Verifier struct {
	secret string
}

func NewVerifier(webhookSecret string) *Verifier {
	return &Verifier{secret: webhookSecret}
}

// VerifyEvent fails closed: without a configured secret every event is rejected.
func (v *Verifier) VerifyEvent(payload []byte, signature string) (*payment.Event, error) {
	if v.secret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", payment.ErrInvalidSignature)
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, v.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrInvalidSignature, err)
	}

	out := &payment.Event{ID: ev.ID, Type: string(ev.Type)}
	if out.Type == payment.EventCheckoutSessionCompleted && ev.Data != nil {
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		email := cs.CustomerEmail
		if email == "" && cs.CustomerDetails != nil {
			email = cs.CustomerDetails.Email
		}
		out.Session = &payment.CompletedSession{
			ID:            cs.ID,
			CustomerEmail: email,
			Metadata:      cs.Metadata,
		}
	}
	return out, nil
}
