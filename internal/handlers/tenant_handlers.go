package handlers

import (
	"net/http"

	"invoicehub/internal/models"
	"invoicehub/internal/services"

	"github.com/labstack/echo/v4"
)

// TenantHandlers serves the super-admin tenant endpoints.
type TenantHandlers struct {
	tenantService services.TenantService
}

func NewTenantHandlers(tenantService services.TenantService) *TenantHandlers {
	return &TenantHandlers{tenantService: tenantService}
}

// ListTenants handles GET /v1/admin/tenants
func (h *TenantHandlers) ListTenants(c echo.Context) error {
	limit, offset, err := pagination(c)
	if err != nil {
		return err
	}
	var status *models.TenantStatus
	if s := c.QueryParam("status"); s != "" {
		st := models.TenantStatus(s)
		status = &st
	}

	tenants, err := h.tenantService.List(c.Request().Context(), status, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ListResponse[*models.Tenant]{Data: tenants, Limit: limit, Offset: offset})
}

// GetTenant handles GET /v1/admin/tenants/:id
func (h *TenantHandlers) GetTenant(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	tenant, err := h.tenantService.GetByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tenant)
}

// ChangeTenantStatus handles PATCH /v1/admin/tenants/:id/status. Suspending a
// tenant takes effect on that tenant's next request.
func (h *TenantHandlers) ChangeTenantStatus(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req models.TenantStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	tenant, err := h.tenantService.ChangeStatus(c.Request().Context(), id, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tenant)
}
