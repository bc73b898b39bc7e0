package common

import (
	"context"
	"fmt"
	"strings"

	"invoicehub/internal/models"

	"github.com/google/uuid"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	TenantIDKey  contextKey = "tenant_id"
	PrincipalKey contextKey = "principal"
)

// WithPrincipal stores the resolved caller in ctx.
func WithPrincipal(ctx context.Context, p *models.Principal) context.Context {
	ctx = context.WithValue(ctx, PrincipalKey, p)
	ctx = context.WithValue(ctx, UserIDKey, p.UserID)
	if p.HasTenant() {
		ctx = context.WithValue(ctx, TenantIDKey, p.Scope.TenantID())
	}
	return ctx
}

// PrincipalFromContext returns the caller resolved by the session guard.
func PrincipalFromContext(ctx context.Context) (*models.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(*models.Principal)
	return p, ok && p != nil
}

// ScopeFromContext returns the caller's tenant scope, or ErrAccessDenied when the
// caller has no active tenant.
func ScopeFromContext(ctx context.Context) (models.TenantScope, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return models.TenantScope{}, ErrUnauthorized
	}
	if !p.HasTenant() {
		return models.TenantScope{}, ErrAccessDenied
	}
	return p.Scope, nil
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// GetTenantIDFromContext extracts the tenant ID from the request context
func GetTenantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	tenantID, ok := ctx.Value(TenantIDKey).(uuid.UUID)
	return tenantID, ok
}

// ActorFromContext returns the caller's user id for audit entries, nil when anonymous.
func ActorFromContext(ctx context.Context) *uuid.UUID {
	if id, ok := GetUserIDFromContext(ctx); ok {
		return &id
	}
	return nil
}

// ValidateUUID validates UUID format with comprehensive checks
func ValidateUUID(idStr string, fieldName string) (uuid.UUID, error) {
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		return uuid.Nil, NewValidationError(fieldName, fmt.Sprintf("%s is required", fieldName))
	}
	if len(idStr) != 36 {
		return uuid.Nil, NewValidationError(fieldName, fmt.Sprintf("%s must be a valid UUID", fieldName))
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, NewValidationError(fieldName, fmt.Sprintf("%s must be a valid UUID", fieldName))
	}
	return id, nil
}

// ValidatePaginationParams validates pagination parameters
func ValidatePaginationParams(limit, offset int) (int, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	if offset > 1000000 {
		return 0, 0, NewValidationError("offset", "offset cannot exceed 1,000,000")
	}
	return limit, offset, nil
}

// SafeString safely handles string pointer operations
func SafeString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// NilIfEmpty trims s and returns nil for an empty result.
func NilIfEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
