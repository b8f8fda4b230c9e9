// Package auth provides JWT authentication for the SciAuthZ API.
package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/hms-dbmi/sciauthz/pkg/authz/models"
)

// TokenType indicates whether a token is an access token or refresh token.
type TokenType string

const (
	// TokenTypeAccess is a short-lived token used for API authorization.
	TokenTypeAccess TokenType = "access"
	// TokenTypeRefresh is a long-lived token used to obtain new access tokens.
	TokenTypeRefresh TokenType = "refresh"
)

// Claims represents JWT claims for SciAuthZ authentication.
//
// The email claim is the authorization identity: every permission decision
// keys off the verified email, not the username. Tokens from the local
// issuer carry both; external issuers only need to supply email.
type Claims struct {
	jwt.RegisteredClaims

	// UserID is the unique identifier (UUID) for the user.
	UserID string `json:"uid,omitempty"`

	// Username is the human-readable username.
	Username string `json:"username,omitempty"`

	// Email is the verified identity email used for authorization decisions.
	Email string `json:"email"`

	// Role is the user's role ("admin" or "user").
	Role string `json:"role,omitempty"`

	// TokenType indicates whether this is an access or refresh token.
	TokenType TokenType `json:"token_type"`
}

// IsAccessToken returns true if this is an access token.
func (c *Claims) IsAccessToken() bool {
	return c.TokenType == TokenTypeAccess
}

// IsRefreshToken returns true if this is a refresh token.
func (c *Claims) IsRefreshToken() bool {
	return c.TokenType == TokenTypeRefresh
}

// IsAdmin returns true if the user has admin role.
func (c *Claims) IsAdmin() bool {
	return c.Role == "admin"
}

// Identity returns the canonical email used for authorization. Falls back
// to the subject claim for tokens from issuers that omit the email field.
func (c *Claims) Identity() string {
	if c.Email != "" {
		return models.CanonicalEmail(c.Email)
	}
	return models.CanonicalEmail(c.Subject)
}
