package auth

import "github.com/Sakenfor/pixsim7-sub004/internal/domain/models"

// JWTVerifier validates bearer tokens. The middleware only needs the owner
// id, so implementations can be swapped without touching it.
type JWTVerifier interface {
	// VerifyToken validates a JWT and returns its claims.
	// Returns domain.ErrUnauthorized if the token is invalid, expired or badly signed.
	VerifyToken(tokenString string) (*models.AccessClaims, error)

	// Close releases any resources held by the verifier
	Close() error
}
