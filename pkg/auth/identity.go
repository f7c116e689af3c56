// Package auth carries the caller identity through request handling.
// Authentication itself happens upstream (SSO gateway or reverse
// proxy); this package only plumbs the already-verified identity into
// handlers and the permission middleware.
package auth

import (
	"context"
	"net/http"
	"strconv"
)

// Identity is the authenticated principal attached to a request
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
}

type contextKey struct{}

// WithIdentity returns a context carrying the identity
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity, or nil when the request is
// anonymous.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(contextKey{}).(*Identity)
	return id
}

// FromRequest is shorthand for FromContext(r.Context())
func FromRequest(r *http.Request) *Identity {
	return FromContext(r.Context())
}

// TrustedHeaderMiddleware reads the identity injected by the fronting
// proxy from X-Planwise-User-Id / X-Planwise-Username. Requests without
// the header pass through anonymous; permission middleware rejects them
// later. Only deploy behind a proxy that strips these headers from
// client traffic.
func TrustedHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-Planwise-User-Id")
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			http.Error(w, "invalid identity header", http.StatusBadRequest)
			return
		}
		identity := &Identity{
			UserID:   userID,
			Username: r.Header.Get("X-Planwise-Username"),
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}
