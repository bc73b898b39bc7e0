package middleware

import (
	"net/http"

	"invoicehub/internal/common"
	"invoicehub/internal/models"
	"invoicehub/internal/services"

	"github.com/labstack/echo/v4"
)

// AuditMiddleware records administrative requests in the audit log.
type AuditMiddleware struct {
	recorder services.AuditRecorder
}

func NewAuditMiddleware(recorder services.AuditRecorder) *AuditMiddleware {
	return &AuditMiddleware{recorder: recorder}
}

// AuditAdminRequest records every state-changing request that reaches the
// wrapped handler, successful or not. Reads are not recorded.
func (m *AuditMiddleware) AuditAdminRequest() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			method := c.Request().Method
			if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
				return err
			}
			ctx := c.Request().Context()
			p, ok := common.PrincipalFromContext(ctx)
			if !ok {
				return err
			}

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !c.Response().Committed {
					status = 0
				}
			}
			metadata := models.JSONB{
				"method":     method,
				"path":       c.Path(),
				"ip":         c.RealIP(),
				"user_agent": c.Request().UserAgent(),
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
				"succeeded":  err == nil,
			}
			if status != 0 {
				metadata["status"] = status
			}

			entry := &models.AuditLog{
				UserID:     &p.UserID,
				Action:     models.ActionAdminRequest,
				EntityType: models.EntityRequest,
				EntityID:   method + " " + c.Path(),
				Metadata:   metadata,
			}
			if p.HasTenant() {
				tenantID := p.Scope.TenantID()
				entry.TenantID = &tenantID
			}
			m.recorder.Record(ctx, entry)
			return err
		}
	}
}
