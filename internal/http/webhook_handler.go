package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/fjod/go_store/internal/fulfillment"
)

const (
	stripeSignatureHeader = "Stripe-Signature"
	maxWebhookBody        = 256 << 10
)

type WebhookService interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*fulfillment.Result, error)
}

type WebhookHandler struct {
	fulfillment WebhookService
	timeout     time.Duration
}

func NewWebhookHandler(svc WebhookService, timeout time.Duration) *WebhookHandler {
	return &WebhookHandler{
		fulfillment: svc,
		timeout:     timeout,
	}
}

type WebhookResponseDTO struct {
	Received bool `json:"received"`
}

// POST /api/v1/webhooks/stripe
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "webhook body exceeds size limit")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "unable to read body")
		return
	}

	if _, err := h.fulfillment.HandleWebhook(ctx, payload, r.Header.Get(stripeSignatureHeader)); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, WebhookResponseDTO{Received: true})
}
