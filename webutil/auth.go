package webutil

import (
	"context"
	"net/http"

	"github.com/coreybb/quire/models"
)

type contextKey string

const userContextKey contextKey = "user"

// ContextWithUser stores the authenticated user on ctx.
func ContextWithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok && user != nil
}

// RequireUser returns the authenticated user or a 401 HTTPError.
func RequireUser(r *http.Request) (*models.User, error) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		return nil, ErrUnauthorized("Authentication required")
	}
	return user, nil
}
