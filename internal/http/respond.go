package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_store/internal/auth"
	"github.com/fjod/go_store/internal/catalog"
	"github.com/fjod/go_store/internal/checkout"
	"github.com/fjod/go_store/internal/download"
	"github.com/fjod/go_store/internal/fulfillment"
	"github.com/fjod/go_store/internal/orders"
	"github.com/fjod/go_store/internal/repository"
	"github.com/fjod/go_store/pkg/logger"
	"github.com/rs/zerolog/log"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

type errorMapping struct {
	status int
	code   string
}

// errorTable is matched in order; the first sentinel found in the chain wins.
var errorTable = []struct {
	target error
	errorMapping
}{
	{catalog.ErrUnauthorized, errorMapping{http.StatusUnauthorized, "unauthorized"}},
	{checkout.ErrUnauthorized, errorMapping{http.StatusUnauthorized, "unauthorized"}},
	{download.ErrUnauthorized, errorMapping{http.StatusUnauthorized, "unauthorized"}},
	{orders.ErrUnauthorized, errorMapping{http.StatusUnauthorized, "unauthorized"}},
	{auth.ErrInvalidToken, errorMapping{http.StatusUnauthorized, "invalid_token"}},
	{auth.ErrInvalidCredentials, errorMapping{http.StatusUnauthorized, "invalid_credentials"}},

	{checkout.ErrEmptyCart, errorMapping{http.StatusBadRequest, "empty_cart"}},
	{checkout.ErrInvalidQuantity, errorMapping{http.StatusBadRequest, "invalid_quantity"}},
	{checkout.ErrProductsUnavailable, errorMapping{http.StatusBadRequest, "products_unavailable"}},
	{catalog.ErrInvalidProduct, errorMapping{http.StatusBadRequest, "invalid_product"}},
	{catalog.ErrInvalidCategory, errorMapping{http.StatusBadRequest, "invalid_category"}},
	{fulfillment.ErrMissingSignature, errorMapping{http.StatusBadRequest, "missing_signature"}},
	{fulfillment.ErrInvalidSignature, errorMapping{http.StatusBadRequest, "invalid_signature"}},
	{auth.ErrInvalidEmail, errorMapping{http.StatusBadRequest, "invalid_email"}},
	{auth.ErrWeakPassword, errorMapping{http.StatusBadRequest, "weak_password"}},

	{repository.ErrProductNotFound, errorMapping{http.StatusNotFound, "product_not_found"}},
	{repository.ErrCategoryNotFound, errorMapping{http.StatusNotFound, "category_not_found"}},
	{repository.ErrOrderNotFound, errorMapping{http.StatusNotFound, "order_not_found"}},
	{repository.ErrUserNotFound, errorMapping{http.StatusNotFound, "user_not_found"}},
	{download.ErrInvalidToken, errorMapping{http.StatusNotFound, "invalid_download_link"}},
	{download.ErrFileNotFound, errorMapping{http.StatusNotFound, "file_not_found"}},

	{repository.ErrSlugTaken, errorMapping{http.StatusConflict, "slug_taken"}},
	{repository.ErrEmailTaken, errorMapping{http.StatusConflict, "email_taken"}},

	{download.ErrLinkExpired, errorMapping{http.StatusGone, "link_expired"}},

	{checkout.ErrCheckoutSession, errorMapping{http.StatusInternalServerError, "checkout_session_failed"}},
	{fulfillment.ErrHandlerFailed, errorMapping{http.StatusInternalServerError, "webhook_handler_failed"}},
	{context.DeadlineExceeded, errorMapping{http.StatusGatewayTimeout, "timeout"}},
}

// handleServiceError converts a service error into a JSON error response.
// Unknown errors are logged and reported as internal errors without detail.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			if e.status >= http.StatusInternalServerError {
				logger.FromContext(r.Context()).Error().Err(err).Str("code", e.code).Msg("request failed")
			}
			resp := ErrorResponse{Error: e.target.Error(), Code: e.code}
			if e.status == http.StatusBadRequest {
				resp.Details = err.Error()
			}
			respondJSON(w, e.status, resp)
			return
		}
	}

	logger.FromContext(r.Context()).Error().Err(err).Msg("unhandled service error")
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
