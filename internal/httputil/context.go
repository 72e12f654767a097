package httputil

import (
	"context"
	"net/http"
)

type contextKey string

const ownerIDKey contextKey = "ownerID"

// WithOwnerID stores the authenticated owner on the request context
func WithOwnerID(r *http.Request, ownerID string) *http.Request {
	return r.WithContext(ContextWithOwnerID(r.Context(), ownerID))
}

// ContextWithOwnerID is WithOwnerID for code that only has a context
func ContextWithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

// GetOwnerID returns the authenticated owner, or "" if auth did not run
func GetOwnerID(r *http.Request) string {
	ownerID, _ := r.Context().Value(ownerIDKey).(string)
	return ownerID
}
