package middleware

import (
	"invoicehub/internal/common"
	"invoicehub/internal/models"
	"invoicehub/internal/services"

	"github.com/labstack/echo/v4"
)

type RBACMiddleware struct {
	rbacService services.RBACService
}

func NewRBACMiddleware(rbacService services.RBACService) *RBACMiddleware {
	return &RBACMiddleware{
		rbacService: rbacService,
	}
}

// RequireCapability rejects callers whose role does not grant capability.
// Tenant-scoped capabilities also need an active tenant.
func (m *RBACMiddleware) RequireCapability(capability models.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := common.PrincipalFromContext(c.Request().Context())
			if !ok {
				return common.ErrUnauthorized
			}
			if err := m.rbacService.Authorize(p, capability); err != nil {
				return err
			}
			return next(c)
		}
	}
}
