package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/Sakenfor/pixsim7-sub004/internal/httputil"
)

// Recovery turns a panic in a handler into a logged 500. Any open
// transaction is rolled back by the deferred cleanup in ExecTx as the
// panic unwinds, before this handler sees it.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						"panic", err,
						"path", r.URL.Path,
						"method", r.Method,
						"stack", string(debug.Stack()),
					)

					httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
