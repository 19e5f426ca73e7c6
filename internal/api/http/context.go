package http

import (
	"context"
	"fmt"
	"net/http"

	"feepay-backend/internal/domain"
)

type contextKey int

const (
	identityKey contextKey = iota
	requestIDKey
)

func withIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromRequest returns the verified caller the auth middleware attached to r.
func IdentityFromRequest(r *http.Request) (domain.Identity, error) {
	id, ok := r.Context().Value(identityKey).(domain.Identity)
	if !ok || id.UserID == "" {
		return domain.Identity{}, fmt.Errorf("%w: no authenticated caller", domain.ErrForbidden)
	}
	return id, nil
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}
