package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenClaims are the claims carried by a session token.
type TokenClaims struct {
	UserID   uuid.UUID  `json:"user_id"`
	TenantID *uuid.UUID `json:"tenant_id,omitempty"`
	Role     Role       `json:"role"`
	TokenID  string     `json:"token_id"`
	jwt.RegisteredClaims
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	UserID      string    `json:"user_id"`
	TenantID    string    `json:"tenant_id,omitempty"`
	Role        Role      `json:"role"`
	IssuedAt    time.Time `json:"issued_at"`
}

// Principal is the resolved caller of an authenticated request.
type Principal struct {
	UserID   uuid.UUID
	Role     Role
	TokenID  string
	Tenant   *Tenant
	Scope    TenantScope
	IssuedAt time.Time
}

// HasTenant reports whether the principal carries a usable tenant scope.
func (p *Principal) HasTenant() bool {
	return p != nil && !p.Scope.IsZero()
}
