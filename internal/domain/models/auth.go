package models

import "github.com/golang-jwt/jwt/v5"

// AccessClaims is the JWT claim set issued by the identity provider.
// Only the subject is used: it becomes the owner_id of families and entities.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
}

// GetOwnerID returns the owner ID from the JWT subject claim.
func (c *AccessClaims) GetOwnerID() string {
	return c.Subject
}
