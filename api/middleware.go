package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/coreybb/quire/models"
	"github.com/coreybb/quire/webutil"
)

// AuthCookieName carries {"email": "..."} identifying the signed-in author.
const AuthCookieName = "mock-auth"

// UserFinder resolves the identity in the auth cookie.
type UserFinder interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// RequireAuth rejects requests without a valid auth cookie with 401 and puts
// the resolved user on the request context.
func RequireAuth(users UserFinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userFromCookie(r, users)
			if !ok {
				webutil.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			next.ServeHTTP(w, r.WithContext(webutil.ContextWithUser(r.Context(), user)))
		})
	}
}

func userFromCookie(r *http.Request, users UserFinder) (*models.User, bool) {
	cookie, err := r.Cookie(AuthCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}

	raw := cookie.Value
	if unescaped, err := url.QueryUnescape(raw); err == nil {
		raw = unescaped
	}

	var identity struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal([]byte(raw), &identity); err != nil || identity.Email == "" {
		return nil, false
	}

	user, err := users.GetUserByEmail(r.Context(), identity.Email)
	if err != nil {
		slog.DebugContext(r.Context(), "auth cookie did not resolve to a user", "error", err)
		return nil, false
	}
	return user, true
}
