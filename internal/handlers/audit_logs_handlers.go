package handlers

import (
	"net/http"
	"time"

	"invoicehub/internal/common"
	"invoicehub/internal/models"
	"invoicehub/internal/services"

	"github.com/labstack/echo/v4"
)

// AuditLogsHandlers handles HTTP requests for audit logs
type AuditLogsHandlers struct {
	auditLogsService services.AuditLogsService
}

// NewAuditLogsHandlers creates a new audit logs handlers instance
func NewAuditLogsHandlers(auditLogsService services.AuditLogsService) *AuditLogsHandlers {
	return &AuditLogsHandlers{auditLogsService: auditLogsService}
}

// ListAuditLogs handles GET /v1/audit-logs and GET /v1/admin/audit-logs
func (h *AuditLogsHandlers) ListAuditLogs(c echo.Context) error {
	ctx := c.Request().Context()
	principal, ok := common.PrincipalFromContext(ctx)
	if !ok {
		return common.ErrUnauthorized
	}

	filters, err := parseAuditFilters(c)
	if err != nil {
		return err
	}
	if err := h.auditLogsService.ValidateAuditFilters(filters); err != nil {
		return err
	}

	logs, err := h.auditLogsService.ListAuditLogs(ctx, principal, filters)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ListResponse[*models.AuditLog]{Data: logs, Limit: filters.Limit, Offset: filters.Offset})
}

func parseAuditFilters(c echo.Context) (*models.AuditLogFilters, error) {
	filters := &models.AuditLogFilters{}

	if v := c.QueryParam("tenant_id"); v != "" {
		id, err := common.ValidateUUID(v, "tenant_id")
		if err != nil {
			return nil, err
		}
		filters.TenantID = &id
	}
	if v := c.QueryParam("user_id"); v != "" {
		id, err := common.ValidateUUID(v, "user_id")
		if err != nil {
			return nil, err
		}
		filters.UserID = &id
	}
	if v := c.QueryParam("entity_type"); v != "" {
		filters.EntityType = &v
	}
	if v := c.QueryParam("entity_id"); v != "" {
		filters.EntityID = &v
	}
	if v := c.QueryParam("action"); v != "" {
		action := models.AuditAction(v)
		filters.Action = &action
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"start_date", &filters.StartDate},
		{"end_date", &filters.EndDate},
	} {
		v := c.QueryParam(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, common.NewValidationError(p.name, "must be an RFC3339 timestamp")
		}
		*p.dst = &t
	}

	limit, offset, err := pagination(c)
	if err != nil {
		return nil, err
	}
	filters.Limit = limit
	filters.Offset = offset
	return filters, nil
}
