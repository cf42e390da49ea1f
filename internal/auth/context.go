package auth

import (
	"context"

	"github.com/fjod/go_store/internal/domain"
)

type identityKey struct{}

func WithIdentity(ctx context.Context, id *domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns nil for anonymous requests.
func IdentityFromContext(ctx context.Context) *domain.Identity {
	id, _ := ctx.Value(identityKey{}).(*domain.Identity)
	return id
}
