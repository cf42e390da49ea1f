package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_store/internal/catalog"
	"github.com/fjod/go_store/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type CatalogService interface {
	ListProducts(ctx context.Context, caller *domain.Identity, filter domain.ProductFilter) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, caller *domain.Identity, in catalog.ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, caller *domain.Identity, id string, u domain.ProductUpdate) (*domain.Product, error)
	DeleteProduct(ctx context.Context, caller *domain.Identity, id string) (*catalog.DeleteResult, error)

	ListCategories(ctx context.Context) ([]*domain.Category, error)
	CreateCategory(ctx context.Context, caller *domain.Identity, in catalog.CategoryInput) (*domain.Category, error)
	UpdateCategory(ctx context.Context, caller *domain.Identity, id string, in catalog.CategoryInput) (*domain.Category, error)
	DeleteCategory(ctx context.Context, caller *domain.Identity, id string) error
}

type ProductHandler struct {
	catalog CatalogService
	timeout time.Duration
}

func NewProductHandler(catalog CatalogService, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

type ProductResponse struct {
	ID                     string             `json:"id"`
	Name                   string             `json:"name"`
	Description            string             `json:"description"`
	PriceInCents           int64              `json:"price_in_cents"`
	Price                  string             `json:"price"`
	ImagePath              string             `json:"image_path"`
	FilePath               string             `json:"file_path,omitempty"`
	IsAvailableForPurchase bool               `json:"is_available_for_purchase"`
	IsDeleted              bool               `json:"is_deleted,omitempty"`
	OrderCount             int64              `json:"order_count"`
	Categories             []CategoryResponse `json:"categories"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

type ProductsResponse struct {
	Products []ProductResponse `json:"products"`
}

type CreateProductRequestDTO struct {
	Name                   string   `json:"name"`
	PriceInCents           int64    `json:"price_in_cents"`
	Description            string   `json:"description"`
	ImagePath              string   `json:"image_path"`
	FilePath               string   `json:"file_path"`
	IsAvailableForPurchase *bool    `json:"is_available_for_purchase"`
	CategoryIDs            []string `json:"category_ids"`
}

type UpdateProductRequestDTO struct {
	Name                   *string   `json:"name"`
	PriceInCents           *int64    `json:"price_in_cents"`
	Description            *string   `json:"description"`
	ImagePath              *string   `json:"image_path"`
	FilePath               *string   `json:"file_path"`
	IsAvailableForPurchase *bool     `json:"is_available_for_purchase"`
	CategoryIDs            *[]string `json:"category_ids"`
}

type DeleteProductResponse struct {
	Message   string `json:"message"`
	HasOrders bool   `json:"hasOrders"`
}

// formatCents renders an amount in cents as a fixed two-decimal string.
func formatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// toProductResponse hides the deliverable file reference from non-admins.
func toProductResponse(p *domain.Product, admin bool) ProductResponse {
	categories := make([]CategoryResponse, 0, len(p.Categories))
	for _, c := range p.Categories {
		categories = append(categories, toCategoryResponse(&c))
	}
	resp := ProductResponse{
		ID:                     p.ID,
		Name:                   p.Name,
		Description:            p.Description,
		PriceInCents:           p.PriceInCents,
		Price:                  formatCents(p.PriceInCents),
		ImagePath:              p.ImagePath,
		IsAvailableForPurchase: p.IsAvailableForPurchase,
		OrderCount:             p.OrderCount,
		Categories:             categories,
		CreatedAt:              p.CreatedAt,
		UpdatedAt:              p.UpdatedAt,
	}
	if admin {
		resp.FilePath = p.FilePath
		resp.IsDeleted = p.IsDeleted
	}
	return resp
}

// GET /api/v1/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	caller := identity(r)
	filter := parseProductFilter(r)
	products, err := h.catalog.ListProducts(ctx, caller, filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	admin := caller != nil && caller.IsAdmin
	resp := ProductsResponse{Products: make([]ProductResponse, len(products))}
	for i, p := range products {
		resp.Products[i] = toProductResponse(p, admin)
	}
	respondJSON(w, http.StatusOK, resp)
}

func parseProductFilter(r *http.Request) domain.ProductFilter {
	q := r.URL.Query()
	available, _ := strconv.ParseBool(q.Get("available"))
	includeDeleted, _ := strconv.ParseBool(q.Get("includeDeleted"))
	return domain.ProductFilter{
		AvailableOnly:  available,
		IncludeDeleted: includeDeleted,
		Search:         strings.TrimSpace(q.Get("search")),
		CategorySlug:   strings.TrimSpace(q.Get("category")),
		SortBy:         domain.SortField(q.Get("sortBy")),
		Ascending:      strings.EqualFold(q.Get("order"), "asc"),
	}
}

// GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	caller := identity(r)
	admin := caller != nil && caller.IsAdmin
	p, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if p.IsDeleted && !admin {
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
		return
	}
	respondJSON(w, http.StatusOK, toProductResponse(p, admin))
}

// POST /api/v1/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreateProductRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	p, err := h.catalog.CreateProduct(ctx, identity(r), catalog.ProductInput{
		Name:                   req.Name,
		PriceInCents:           req.PriceInCents,
		Description:            req.Description,
		ImagePath:              req.ImagePath,
		FilePath:               req.FilePath,
		IsAvailableForPurchase: req.IsAvailableForPurchase,
		CategoryIDs:            req.CategoryIDs,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toProductResponse(p, true))
}

// PUT /api/v1/products/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateProductRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	p, err := h.catalog.UpdateProduct(ctx, identity(r), chi.URLParam(r, "id"), domain.ProductUpdate{
		Name:                   req.Name,
		PriceInCents:           req.PriceInCents,
		Description:            req.Description,
		ImagePath:              req.ImagePath,
		FilePath:               req.FilePath,
		IsAvailableForPurchase: req.IsAvailableForPurchase,
		CategoryIDs:            req.CategoryIDs,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toProductResponse(p, true))
}

// DELETE /api/v1/products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.catalog.DeleteProduct(ctx, identity(r), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, DeleteProductResponse{
		Message:   "Product deleted successfully",
		HasOrders: res.HasOrders,
	})
}
