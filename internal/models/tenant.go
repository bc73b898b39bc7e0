package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "ACTIVE"
	TenantStatusSuspended TenantStatus = "SUSPENDED"
	TenantStatusDeleted   TenantStatus = "DELETED"
)

func (s TenantStatus) Valid() bool {
	switch s {
	case TenantStatusActive, TenantStatusSuspended, TenantStatusDeleted:
		return true
	}
	return false
}

type Tenant struct {
	ID                uuid.UUID    `json:"id" db:"id"`
	CompanyName       string       `json:"company_name" db:"company_name"`
	Status            TenantStatus `json:"status" db:"status"`
	DefaultTemplateID *uuid.UUID   `json:"default_template_id,omitempty" db:"default_template_id"`
	SubscriptionID    *string      `json:"subscription_id,omitempty" db:"subscription_id"`
	CreatedAt         time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at" db:"updated_at"`
}

// ErrTenantInactive is returned by ScopeFor for tenants that are not ACTIVE.
var ErrTenantInactive = errors.New("tenant is not active")

// TenantScope is proof that a tenant was loaded and found active. Repositories
// filter every tenant-owned read and write by it. The zero value matches nothing.
type TenantScope struct {
	tenantID uuid.UUID
}

// ScopeFor returns the scope for an active tenant.
func ScopeFor(tenant *Tenant) (TenantScope, error) {
	if tenant == nil || tenant.ID == uuid.Nil {
		return TenantScope{}, ErrTenantInactive
	}
	if tenant.Status != TenantStatusActive {
		return TenantScope{}, ErrTenantInactive
	}
	return TenantScope{tenantID: tenant.ID}, nil
}

// TenantID returns the scoped tenant id, uuid.Nil for the zero scope.
func (s TenantScope) TenantID() uuid.UUID {
	return s.tenantID
}

func (s TenantScope) IsZero() bool {
	return s.tenantID == uuid.Nil
}

// TenantStatusRequest is the payload for changing a tenant's status.
type TenantStatusRequest struct {
	Status TenantStatus `json:"status" validate:"required,oneof=ACTIVE SUSPENDED DELETED"`
	Reason string       `json:"reason" validate:"max=500"`
}

type OnboardingRequest struct {
	CompanyName string `json:"company_name" validate:"required,min=2,max=200,singleline"`
}
