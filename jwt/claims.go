package jwt

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	// TypeAccess marks short-lived tokens presented on protected requests.
	TypeAccess TokenType = "access"
	// TypeRefresh marks long-lived tokens redeemed for a new token pair.
	TypeRefresh TokenType = "refresh"
)

// Claims is the signed content of a jwtgate token.
//
// Subject, Issuer, IssuedAt, ExpiresAt and ID (the jti, refresh tokens only)
// live in the embedded registered claims.
type Claims struct {
	Roles []string  `json:"roles,omitempty"`
	Type  TokenType `json:"type"`
	jwt.RegisteredClaims
}

// HasRole reports whether role is granted by the token.
func (c *Claims) HasRole(role string) bool {
	if c == nil {
		return false
	}
	return slices.Contains(c.Roles, role)
}

// HasAnyRole reports whether at least one of roles is granted by the token.
func (c *Claims) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if c.HasRole(role) {
			return true
		}
	}
	return false
}
