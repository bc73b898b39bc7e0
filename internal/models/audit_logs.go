package models

import (
	"time"

	"github.com/google/uuid"
)

// JSONB is an opaque key-value payload stored as jsonb.
type JSONB map[string]interface{}

type AuditAction string

const (
	ActionUserSignedUp        AuditAction = "USER_SIGNED_UP"
	ActionTenantOnboarded     AuditAction = "TENANT_ONBOARDED"
	ActionTenantStatusChanged AuditAction = "TENANT_STATUS_CHANGED"
	ActionPasswordReset       AuditAction = "PASSWORD_RESET"
	ActionInvoiceCreated      AuditAction = "INVOICE_CREATED"
	ActionInvoiceSent         AuditAction = "INVOICE_SENT"
	ActionInvoiceViewed       AuditAction = "INVOICE_VIEWED"
	ActionInvoiceDeleted      AuditAction = "INVOICE_DELETED"
	ActionPaymentRecorded     AuditAction = "PAYMENT_RECORDED"
	ActionTaxCreated          AuditAction = "TAX_CREATED"
	ActionTaxUpdated          AuditAction = "TAX_UPDATED"
	ActionTaxDeleted          AuditAction = "TAX_DELETED"
	ActionCustomerCreated     AuditAction = "CUSTOMER_CREATED"
	ActionAdminRequest        AuditAction = "ADMIN_REQUEST"
)

// Entity types referenced by audit entries.
const (
	EntityUser     = "user"
	EntityTenant   = "tenant"
	EntityInvoice  = "invoice"
	EntityTax      = "tax"
	EntityCustomer = "customer"
	EntityRequest  = "request"
)

// AuditLog is an append-only record of a sensitive state change.
type AuditLog struct {
	ID         uuid.UUID   `json:"id" db:"id"`
	TenantID   *uuid.UUID  `json:"tenant_id,omitempty" db:"tenant_id"`
	UserID     *uuid.UUID  `json:"user_id,omitempty" db:"user_id"`
	Action     AuditAction `json:"action" db:"action"`
	EntityType string      `json:"entity_type" db:"entity_type"`
	EntityID   string      `json:"entity_id" db:"entity_id"`
	Metadata   JSONB       `json:"metadata" db:"metadata"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}

// AuditLogFilters narrows an audit log listing. TenantID nil means all tenants.
type AuditLogFilters struct {
	TenantID   *uuid.UUID   `json:"tenant_id"`
	UserID     *uuid.UUID   `json:"user_id"`
	EntityType *string      `json:"entity_type"`
	EntityID   *string      `json:"entity_id"`
	Action     *AuditAction `json:"action"`
	StartDate  *time.Time   `json:"start_date"`
	EndDate    *time.Time   `json:"end_date"`
	Limit      int          `json:"limit"`
	Offset     int          `json:"offset"`
}
