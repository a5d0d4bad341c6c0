package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// contextKey is an unexported type used for context keys in this package.
//
// Using a package-private type prevents collisions: only this package can
// create a key of type contextKey, so only this package can read or write
// the viewer id in the context.
type contextKey string

const viewerIDKey contextKey = "viewerID"

// CookieName is the cookie RequireAuth falls back to when no bearer header is sent.
const CookieName = "token"

var errNoToken = errors.New("auth: no token")

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the JWT from the Authorization header ("Bearer <jwt>") or, failing
// that, from the "token" cookie. A valid token puts the viewer id in the
// request context; anything else is a 401 and the chain stops.
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			viewerID, err := extractViewerID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithViewerID(r.Context(), viewerID)))
		})
	}
}

// WithViewerID returns a copy of ctx carrying viewerID.
func WithViewerID(ctx context.Context, viewerID int64) context.Context {
	return context.WithValue(ctx, viewerIDKey, viewerID)
}

// ViewerIDFromContext retrieves the authenticated viewer's id.
//
// Returns (0, false) if the request did not pass RequireAuth.
//
//	viewerID, ok := auth.ViewerIDFromContext(r.Context())
func ViewerIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(viewerIDKey).(int64)
	return id, ok && id > 0
}

func extractViewerID(r *http.Request, tokens *TokenService) (int64, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, found := strings.Cut(h, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return 0, errNoToken
		}
		return tokens.Validate(strings.TrimSpace(token))
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return 0, errNoToken
	}
	return tokens.Validate(cookie.Value)
}
