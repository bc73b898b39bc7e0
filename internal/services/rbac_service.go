package services

import (
	"sort"

	"invoicehub/internal/common"
	"invoicehub/internal/models"
)

// RBACService answers capability checks against the fixed role matrix.
type RBACService interface {
	Allowed(role models.Role, capability models.Capability) bool
	// Authorize checks the principal's role and, for tenant-scoped
	// capabilities, that the principal carries an active tenant scope.
	Authorize(p *models.Principal, capability models.Capability) error
	Capabilities(role models.Role) []models.Capability
}

var capabilityMatrix = map[models.Role][]models.Capability{
	models.RoleSuperAdmin: {
		models.CapAuditRead,
		models.CapTenantsManage,
	},
	models.RoleTenantAdmin: {
		models.CapInvoicesRead,
		models.CapInvoicesWrite,
		models.CapInvoicesSend,
		models.CapPaymentsRecord,
		models.CapCustomersRead,
		models.CapCustomersWrite,
		models.CapTaxesRead,
		models.CapTaxesWrite,
		models.CapAuditRead,
	},
	models.RoleMember: {
		models.CapInvoicesRead,
		models.CapInvoicesWrite,
		models.CapInvoicesSend,
		models.CapCustomersRead,
		models.CapCustomersWrite,
		models.CapTaxesRead,
	},
}

type rbacService struct {
	grants map[models.Role]map[models.Capability]struct{}
}

func NewRBACService() RBACService {
	grants := make(map[models.Role]map[models.Capability]struct{}, len(capabilityMatrix))
	for role, caps := range capabilityMatrix {
		set := make(map[models.Capability]struct{}, len(caps))
		for _, c := range caps {
			set[c] = struct{}{}
		}
		grants[role] = set
	}
	return &rbacService{grants: grants}
}

func (s *rbacService) Allowed(role models.Role, capability models.Capability) bool {
	_, ok := s.grants[role][capability]
	return ok
}

func (s *rbacService) Authorize(p *models.Principal, capability models.Capability) error {
	if p == nil {
		return common.ErrUnauthorized
	}
	if !s.Allowed(p.Role, capability) {
		return common.ErrAccessDenied
	}
	if capability.TenantScoped() && !p.HasTenant() {
		return common.ErrAccessDenied
	}
	// audit:read for a tenant admin only makes sense inside its tenant
	if capability == models.CapAuditRead && p.Role != models.RoleSuperAdmin && !p.HasTenant() {
		return common.ErrAccessDenied
	}
	return nil
}

func (s *rbacService) Capabilities(role models.Role) []models.Capability {
	caps := make([]models.Capability, 0, len(s.grants[role]))
	for c := range s.grants[role] {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}
