package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the signed claim set carried by a session token.
// Possession of a valid, unexpired token is the sole authorization proof;
// there is no server-side revocation list.
type TokenClaims struct {
	UserID   int    `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
