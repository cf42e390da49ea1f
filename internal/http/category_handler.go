package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_store/internal/catalog"
	"github.com/fjod/go_store/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CategoryHandler struct {
	catalog CatalogService
	timeout time.Duration
}

func NewCategoryHandler(catalog CatalogService, timeout time.Duration) *CategoryHandler {
	return &CategoryHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

type CategoryResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

type CategoryRequestDTO struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func toCategoryResponse(c *domain.Category) CategoryResponse {
	return CategoryResponse{
		ID:        c.ID,
		Name:      c.Name,
		Slug:      c.Slug,
		CreatedAt: c.CreatedAt,
	}
}

// GET /api/v1/categories
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	resp := make([]CategoryResponse, len(categories))
	for i, c := range categories {
		resp[i] = toCategoryResponse(c)
	}
	respondJSON(w, http.StatusOK, resp)
}

// POST /api/v1/categories
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CategoryRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	c, err := h.catalog.CreateCategory(ctx, identity(r), catalog.CategoryInput{Name: req.Name, Slug: req.Slug})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toCategoryResponse(c))
}

// PUT /api/v1/categories/{id}
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CategoryRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	c, err := h.catalog.UpdateCategory(ctx, identity(r), chi.URLParam(r, "id"), catalog.CategoryInput{Name: req.Name, Slug: req.Slug})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toCategoryResponse(c))
}

// DELETE /api/v1/categories/{id}
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.catalog.DeleteCategory(ctx, identity(r), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Category deleted successfully"})
}
