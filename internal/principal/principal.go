// Package principal carries the caller identity through request contexts.
// Identity is an opaque id taken from the X-User-ID header; the gateway
// performs no authentication, it only scopes job ownership.
package principal

import (
	"context"
	"net/http"
	"strings"
)

const userHeader = "X-User-ID"

type contextKey string

const userIDKey contextKey = "principal_user_id"

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the caller's opaque id, empty for anonymous
// requests.
func UserIDFromContext(ctx context.Context) string {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(userHeader))
		if userID != "" {
			r = r.WithContext(WithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}
