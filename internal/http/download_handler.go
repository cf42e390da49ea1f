package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_store/internal/domain"
	"github.com/fjod/go_store/internal/download"
	"github.com/fjod/go_store/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type DownloadGate interface {
	Issue(ctx context.Context, caller *domain.Identity, orderID string) (*domain.DownloadVerification, error)
	Redeem(ctx context.Context, token string) (*download.Delivery, error)
}

type DownloadHandler struct {
	gate    DownloadGate
	baseURL string
	timeout time.Duration
}

func NewDownloadHandler(gate DownloadGate, baseURL string, timeout time.Duration) *DownloadHandler {
	return &DownloadHandler{
		gate:    gate,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

type DownloadLinkDTO struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// POST /api/v1/orders/{order_id}/downloads
func (h *DownloadHandler) Issue(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	v, err := h.gate.Issue(ctx, identity(r), chi.URLParam(r, "order_id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, DownloadLinkDTO{
		ID:        v.ID,
		URL:       h.baseURL + "/api/v1/downloads/" + v.ID,
		ExpiresAt: v.ExpiresAt,
	})
}

// GET /api/v1/downloads/{id}
//
// The request timeout covers token consumption only; streaming a large file
// is bounded by the server write timeout.
func (h *DownloadHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	d, err := h.gate.Redeem(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if d.IsRedirect() {
		http.Redirect(w, r, d.RedirectURL, http.StatusTemporaryRedirect)
		return
	}
	defer d.Body.Close()

	w.Header().Set("Content-Type", d.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.Filename))
	if d.ContentLength >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(d.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, d.Body); err != nil {
		logger.FromContext(r.Context()).Warn().Err(err).Msg("download stream interrupted")
	}
}
