package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_store/internal/domain"
	"github.com/go-chi/chi/v5"
)

type OrdersService interface {
	History(ctx context.Context, caller *domain.Identity) ([]*domain.OrderDetails, error)
	Get(ctx context.Context, caller *domain.Identity, id string) (*domain.OrderDetails, error)
	Recent(ctx context.Context, caller *domain.Identity, limit int) ([]*domain.OrderDetails, error)
	Stats(ctx context.Context, caller *domain.Identity) (*domain.SalesStats, error)
}

type OrdersHandler struct {
	orders  OrdersService
	timeout time.Duration
}

func NewOrdersHandler(orders OrdersService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

type OrderResponseDTO struct {
	ID               string    `json:"id"`
	ProductID        string    `json:"product_id"`
	ProductName      string    `json:"product_name"`
	UserID           string    `json:"user_id"`
	UserEmail        string    `json:"user_email,omitempty"`
	PricePaidInCents int64     `json:"price_paid_in_cents"`
	PricePaid        string    `json:"price_paid"`
	CreatedAt        time.Time `json:"created_at"`
}

type SalesStatsDTO struct {
	ProductCount           int64  `json:"product_count"`
	AvailableProductCount  int64  `json:"available_product_count"`
	OrderCount             int64  `json:"order_count"`
	UserCount              int64  `json:"user_count"`
	RevenueInCents         int64  `json:"revenue_in_cents"`
	Revenue                string `json:"revenue"`
	AverageOrderValueCents int64  `json:"average_order_value_cents"`
	AverageOrderValue      string `json:"average_order_value"`
}

func convertOrder(o *domain.OrderDetails) OrderResponseDTO {
	return OrderResponseDTO{
		ID:               o.ID,
		ProductID:        o.ProductID,
		ProductName:      o.ProductName,
		UserID:           o.UserID,
		UserEmail:        o.UserEmail,
		PricePaidInCents: o.PricePaidInCents,
		PricePaid:        formatCents(o.PricePaidInCents),
		CreatedAt:        o.CreatedAt,
	}
}

func convertOrders(list []*domain.OrderDetails) []OrderResponseDTO {
	dtos := make([]OrderResponseDTO, 0, len(list))
	for _, o := range list {
		dtos = append(dtos, convertOrder(o))
	}
	return dtos
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.orders.History(ctx, identity(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertOrders(list))
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	o, err := h.orders.Get(ctx, identity(r), orderID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertOrder(o))
}

// GET /api/v1/admin/orders
func (h *OrdersHandler) RecentOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := h.orders.Recent(ctx, identity(r), limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertOrders(list))
}

// GET /api/v1/admin/stats
func (h *OrdersHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, err := h.orders.Stats(ctx, identity(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, SalesStatsDTO{
		ProductCount:           s.ProductCount,
		AvailableProductCount:  s.AvailableProductCount,
		OrderCount:             s.OrderCount,
		UserCount:              s.UserCount,
		RevenueInCents:         s.RevenueInCents,
		Revenue:                formatCents(s.RevenueInCents),
		AverageOrderValueCents: s.AverageOrderValueCents,
		AverageOrderValue:      formatCents(s.AverageOrderValueCents),
	})
}
