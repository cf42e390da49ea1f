package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_store/internal/cart"
	"github.com/fjod/go_store/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	deviceCookieName   = "cart_device"
	deviceCookieMaxAge = 30 * 24 * 60 * 60
)

type CartOpener interface {
	Open(ctx context.Context, owner cart.Owner) (*cart.Store, error)
}

type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type CartHandler struct {
	carts    CartOpener
	products ProductLookup
	timeout  time.Duration
}

func NewCartHandler(carts CartOpener, products ProductLookup, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:    carts,
		products: products,
		timeout:  timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int64 `json:"quantity"`
}

type CartItemDTO struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	PriceInCents int64  `json:"price_in_cents"`
	Price        string `json:"price"`
	ImagePath    string `json:"image_path"`
	Quantity     int64  `json:"quantity"`
}

type CartResponseDTO struct {
	Items             []CartItemDTO `json:"items"`
	TotalItems        int64         `json:"total_items"`
	TotalPriceInCents int64         `json:"total_price_in_cents"`
	TotalPrice        string        `json:"total_price"`
}

func toCartResponse(c *cart.Cart) CartResponseDTO {
	items := c.Items()
	dto := CartResponseDTO{
		Items:             make([]CartItemDTO, 0, len(items)),
		TotalItems:        c.TotalItems(),
		TotalPriceInCents: c.TotalPrice(),
		TotalPrice:        formatCents(c.TotalPrice()),
	}
	for _, it := range items {
		dto.Items = append(dto.Items, CartItemDTO{
			ProductID:    it.ProductID,
			Name:         it.Name,
			PriceInCents: it.PriceInCents,
			Price:        formatCents(it.PriceInCents),
			ImagePath:    it.ImagePath,
			Quantity:     it.Quantity,
		})
	}
	return dto
}

// owner resolves the cart owner. Anonymous shoppers get a device cookie so
// their guest carts do not collide.
func (h *CartHandler) owner(w http.ResponseWriter, r *http.Request) cart.Owner {
	if id := identity(r); id != nil {
		return cart.Owner{Email: id.Email}
	}
	if c, err := r.Cookie(deviceCookieName); err == nil && c.Value != "" {
		return cart.Owner{DeviceID: c.Value}
	}
	device := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     deviceCookieName,
		Value:    device,
		Path:     "/",
		MaxAge:   deviceCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return cart.Owner{DeviceID: device}
}

func (h *CartHandler) open(ctx context.Context, w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	st, err := h.carts.Open(ctx, h.owner(w, r))
	if err != nil {
		handleServiceError(w, r, err)
		return nil, false
	}
	return st, true
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	st, ok := h.open(ctx, w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(st.Cart()))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	// price and name come from the catalog, never from the client
	p, err := h.products.GetProduct(ctx, req.ProductID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if !p.Purchasable() {
		respondError(w, http.StatusBadRequest, "product_unavailable", "product is not available for purchase")
		return
	}

	st, ok := h.open(ctx, w, r)
	if !ok {
		return
	}
	err = st.Add(ctx, cart.Item{
		ProductID:    p.ID,
		Name:         p.Name,
		PriceInCents: p.PriceInCents,
		ImagePath:    p.ImagePath,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toCartResponse(st.Cart()))
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateQuantityRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	st, ok := h.open(ctx, w, r)
	if !ok {
		return
	}
	if err := st.SetQuantity(ctx, chi.URLParam(r, "product_id"), req.Quantity); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(st.Cart()))
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	st, ok := h.open(ctx, w, r)
	if !ok {
		return
	}
	if err := st.Remove(ctx, chi.URLParam(r, "product_id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(st.Cart()))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	st, ok := h.open(ctx, w, r)
	if !ok {
		return
	}
	if err := st.Clear(ctx); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(st.Cart()))
}
