package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sakenfor/pixsim7-sub004/internal/domain"
	"github.com/Sakenfor/pixsim7-sub004/internal/domain/models"
	"github.com/Sakenfor/pixsim7-sub004/internal/httputil"
)

type stubVerifier struct {
	tokens map[string]string
}

func (s stubVerifier) VerifyToken(token string) (*models.AccessClaims, error) {
	owner, ok := s.tokens[token]
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	claims := &models.AccessClaims{}
	claims.Subject = owner
	return claims, nil
}

func (s stubVerifier) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// echoOwner writes the owner the middleware resolved
var echoOwner = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(httputil.GetOwnerID(r)))
})

func TestAuthMiddleware(t *testing.T) {
	handler := AuthMiddleware(stubVerifier{tokens: map[string]string{"good": "owner-1"}}, discardLogger())(echoOwner)

	tests := []struct {
		name      string
		method    string
		path      string
		header    string
		wantCode  int
		wantOwner string
	}{
		{name: "valid token", method: http.MethodGet, path: "/api/families", header: "Bearer good", wantCode: http.StatusOK, wantOwner: "owner-1"},
		{name: "missing header", method: http.MethodGet, path: "/api/families", wantCode: http.StatusUnauthorized},
		{name: "wrong scheme", method: http.MethodGet, path: "/api/families", header: "Basic good", wantCode: http.StatusUnauthorized},
		{name: "bad token", method: http.MethodGet, path: "/api/families", header: "Bearer bad", wantCode: http.StatusUnauthorized},
		{name: "health is public", method: http.MethodGet, path: "/health", wantCode: http.StatusOK},
		{name: "preflight passes", method: http.MethodOptions, path: "/api/families", wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantOwner != "" {
				assert.Equal(t, tt.wantOwner, w.Body.String())
			}
		})
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	handler := DevAuthMiddleware("dev-owner")(echoOwner)

	req := httptest.NewRequest(http.MethodGet, "/api/families", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "dev-owner", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/families", nil)
	req.Header.Set(DevOwnerHeader, "alice")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "alice", w.Body.String())
}

func TestRecovery(t *testing.T) {
	handler := Recovery(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/entities/x", nil)
	w := httptest.NewRecorder()

	assert.NotPanics(t, func() { handler.ServeHTTP(w, req) })
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}
