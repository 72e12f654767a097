package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/Sakenfor/pixsim7-sub004/internal/auth"
	"github.com/Sakenfor/pixsim7-sub004/internal/httputil"
)

// DevOwnerHeader lets local clients act as a specific owner when no JWKS is configured
const DevOwnerHeader = "X-Owner-ID"

// publicPaths skip authentication
var publicPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// AuthMiddleware resolves the request's owner from a bearer token and stores
// it with httputil.WithOwnerID
func AuthMiddleware(verifier auth.JWTVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				logger.Debug("authentication failed", "path", r.URL.Path, "error", err)
				httputil.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, httputil.WithOwnerID(r, claims.GetOwnerID()))
		})
	}
}

// DevAuthMiddleware trusts the X-Owner-ID header, falling back to
// defaultOwnerID. Never use outside development.
func DevAuthMiddleware(defaultOwnerID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ownerID := strings.TrimSpace(r.Header.Get(DevOwnerHeader))
			if ownerID == "" {
				ownerID = defaultOwnerID
			}
			next.ServeHTTP(w, httputil.WithOwnerID(r, ownerID))
		})
	}
}
