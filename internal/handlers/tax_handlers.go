package handlers

import (
	"net/http"

	"invoicehub/internal/common"
	"invoicehub/internal/models"
	"invoicehub/internal/services"

	"github.com/labstack/echo/v4"
)

// TaxHandlers handles HTTP requests for tenant tax rates
type TaxHandlers struct {
	taxService services.TaxService
}

// NewTaxHandlers creates a new tax handlers instance
func NewTaxHandlers(taxService services.TaxService) *TaxHandlers {
	return &TaxHandlers{taxService: taxService}
}

// ListTaxes handles GET /v1/taxes
func (h *TaxHandlers) ListTaxes(c echo.Context) error {
	ctx := c.Request().Context()
	scope, err := common.ScopeFromContext(ctx)
	if err != nil {
		return err
	}

	taxes, err := h.taxService.List(ctx, scope)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, taxes)
}

// GetTax handles GET /v1/taxes/:id
func (h *TaxHandlers) GetTax(c echo.Context) error {
	ctx := c.Request().Context()
	scope, err := common.ScopeFromContext(ctx)
	if err != nil {
		return err
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	tax, err := h.taxService.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tax)
}

// CreateTax handles POST /v1/taxes
func (h *TaxHandlers) CreateTax(c echo.Context) error {
	ctx := c.Request().Context()
	scope, err := common.ScopeFromContext(ctx)
	if err != nil {
		return err
	}

	var req models.TaxRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	tax, err := h.taxService.Create(ctx, scope, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, tax)
}

// UpdateTax handles PUT /v1/taxes/:id
func (h *TaxHandlers) UpdateTax(c echo.Context) error {
	ctx := c.Request().Context()
	scope, err := common.ScopeFromContext(ctx)
	if err != nil {
		return err
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	var req models.TaxRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	tax, err := h.taxService.Update(ctx, scope, id, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tax)
}

// DeleteTax handles DELETE /v1/taxes/:id
func (h *TaxHandlers) DeleteTax(c echo.Context) error {
	ctx := c.Request().Context()
	scope, err := common.ScopeFromContext(ctx)
	if err != nil {
		return err
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.taxService.Delete(ctx, scope, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
