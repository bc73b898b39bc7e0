package models

// Role is the closed set of roles a user can hold.
type Role string

const (
	RoleSuperAdmin  Role = "SUPER_ADMIN"
	RoleTenantAdmin Role = "TENANT_ADMIN"
	RoleMember      Role = "MEMBER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleTenantAdmin, RoleMember:
		return true
	}
	return false
}

// Capability names an action that the capability matrix can grant.
type Capability string

const (
	CapInvoicesRead   Capability = "invoices:read"
	CapInvoicesWrite  Capability = "invoices:write"
	CapInvoicesSend   Capability = "invoices:send"
	CapPaymentsRecord Capability = "payments:record"
	CapCustomersRead  Capability = "customers:read"
	CapCustomersWrite Capability = "customers:write"
	CapTaxesRead      Capability = "taxes:read"
	CapTaxesWrite     Capability = "taxes:write"
	CapAuditRead      Capability = "audit:read"
	CapTenantsManage  Capability = "tenants:manage"
)

// TenantScoped reports whether the capability only makes sense inside a tenant.
func (c Capability) TenantScoped() bool {
	switch c {
	case CapTenantsManage, CapAuditRead:
		return false
	}
	return true
}
