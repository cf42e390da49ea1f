package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/fjod/go_store/internal/cart"
	"github.com/fjod/go_store/internal/checkout"
	"github.com/fjod/go_store/internal/domain"
)

type CheckoutService interface {
	InitiateCheckout(ctx context.Context, caller *domain.Identity, items []domain.ManifestItem) (string, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	carts    CartOpener
	timeout  time.Duration
}

func NewCheckoutHandler(svc CheckoutService, carts CartOpener, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: svc,
		carts:    carts,
		timeout:  timeout,
	}
}

type CheckoutItemDTO struct {
	ID       string `json:"id"`
	Quantity int64  `json:"quantity"`
}

type InitiateCheckoutRequestDTO struct {
	Items []CheckoutItemDTO `json:"items"`
}

type CheckoutResponseDTO struct {
	URL string `json:"url"`
}

// POST /api/v1/checkout
//
// An empty body checks out the caller's saved cart.
func (h *CheckoutHandler) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	caller := identity(r)
	if caller == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req InitiateCheckoutRequestDTO
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	items := make([]domain.ManifestItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.ManifestItem{ID: it.ID, Quantity: it.Quantity})
	}
	if len(items) == 0 && h.carts != nil {
		st, err := h.carts.Open(ctx, cart.Owner{Email: caller.Email})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		items = st.Cart().Manifest()
	}

	url, err := h.checkout.InitiateCheckout(ctx, caller, items)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CheckoutResponseDTO{URL: url})
}

var _ CheckoutService = (*checkout.Service)(nil)
