package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/fjod/go_store/internal/auth"
	"github.com/fjod/go_store/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type requestIDKey struct{}

type TokenVerifier interface {
	Verify(raw string) (*domain.Identity, error)
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return requestID
	}
	return ""
}

// RequestLogger stores a request scoped logger in the context so services can
// log through logger.FromContext.
func RequestLogger(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := base.With().
				Str("request_id", getRequestID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger()
			next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
		})
	}
}

// AuthMiddleware attaches the bearer token's identity to the request. Requests
// without a token pass through anonymously; a bad token is rejected.
func AuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				respondError(w, http.StatusUnauthorized, "invalid_token", "authorization header must be a bearer token")
				return
			}
			id, err := verifier.Verify(strings.TrimSpace(raw))
			if err != nil {
				respondError(w, http.StatusUnauthorized, "invalid_token", auth.ErrInvalidToken.Error())
				return
			}

			ctx := auth.WithIdentity(r.Context(), id)
			l := zerolog.Ctx(ctx).With().Str("user_id", id.UserID).Logger()
			ctx = l.WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MaxBodySize caps request bodies at n bytes.
func MaxBodySize(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if n > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func identity(r *http.Request) *domain.Identity {
	return auth.IdentityFromContext(r.Context())
}
