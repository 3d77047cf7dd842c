package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityClaims is the subset of the identity endpoint's token the storefront relies on.
// Older tokens carry the user id in "id" rather than "user_id"; Subject is the last resort.
type IdentityClaims struct {
	UserID   string `json:"user_id,omitempty"`
	LegacyID string `json:"id,omitempty"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Identifier returns the user id carried by the token.
func (c *IdentityClaims) Identifier() string {
	if c == nil {
		return ""
	}
	for _, candidate := range []string{c.UserID, c.LegacyID, c.Subject} {
		if id := strings.TrimSpace(candidate); id != "" {
			return id
		}
	}
	return ""
}
