package handlers

import (
	"net/http"

	"invoicehub/internal/common"
	"invoicehub/internal/models"
	"invoicehub/internal/services"

	"github.com/labstack/echo/v4"
)

// InvoiceHandlers handles HTTP requests for invoices
type InvoiceHandlers struct {
	invoiceService  services.InvoiceService
	documentService services.InvoiceDocumentService
}

// NewInvoiceHandlers creates a new invoice handlers instance
func NewInvoiceHandlers(invoiceService services.InvoiceService, documentService services.InvoiceDocumentService) *InvoiceHandlers {
	return &InvoiceHandlers{
		invoiceService:  invoiceService,
		documentService: documentService,
	}
}

// ExportResponse points at a rendered invoice document.
type ExportResponse struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

// CreateInvoice handles POST /v1/invoices
func (h *InvoiceHandlers) CreateInvoice(c echo.Context) error {
	ctx := c.Request().Context()
	scope, err := common.ScopeFromContext(ctx)
	if err != nil {
		return err
	}

	var req models.CreateInvoiceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	invoice, err := h.invoiceService.Create(ctx, scope, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, invoice)
}

// ListInvoices handles GET /v1/invoices
func (h *InvoiceHandlers) ListInvoices(c echo.Context) error {
	ctx := c.Request().Context()
	scope, err := common.ScopeFromContext(ctx)
	if err != nil {
		return err
	}

	limit, offset, err := pagination(c)
	if err != nil {
		return err
	}
	filters := models.InvoiceFilters{Limit: limit, Offset: offset}
	if s := c.QueryParam("status"); s != "" {
		status := models.InvoiceStatus(s)
		filters.Status = &status
	}

	invoices, err := h.invoiceService.List(ctx, scope, filters)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ListResponse[*models.Invoice]{Data: invoices, Limit: limit, Offset: offset})
}

// GetInvoice handles GET /v1/invoices/:id
func (h *InvoiceHandlers) GetInvoice(c echo.Context) error {
	ctx := c.Request().Context()
	scope, err := common.ScopeFromContext(ctx)
	if err != nil {
		return err
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	invoice, err := h.invoiceService.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, invoice)
}

// SendInvoice handles POST /v1/invoices/:id/send
func (h *InvoiceHandlers) SendInvoice(c echo.Context) error {
	ctx := c.Request().Context()
	scope, err := common.ScopeFromContext(ctx)
	if err != nil {
		return err
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	invoice, err := h.invoiceService.Send(ctx, scope, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, invoice)
}

// RecordPayment handles POST /v1/invoices/:id/payments
func (h *InvoiceHandlers) RecordPayment(c echo.Context) error {
	ctx := c.Request().Context()
	scope, err := common.ScopeFromContext(ctx)
	if err != nil {
		return err
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	var req models.RecordPaymentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.invoiceService.RecordPayment(ctx, scope, id, &req)
	if err != nil {
		return err
	}
	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	return c.JSON(status, result)
}

// ListPayments handles GET /v1/invoices/:id/payments
func (h *InvoiceHandlers) ListPayments(c echo.Context) error {
	ctx := c.Request().Context()
	scope, err := common.ScopeFromContext(ctx)
	if err != nil {
		return err
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	payments, err := h.invoiceService.ListPayments(ctx, scope, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payments)
}

// ExportInvoice handles GET /v1/invoices/:id/pdf
func (h *InvoiceHandlers) ExportInvoice(c echo.Context) error {
	ctx := c.Request().Context()
	scope, err := common.ScopeFromContext(ctx)
	if err != nil {
		return err
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	url, err := h.documentService.Export(ctx, scope, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ExportResponse{URL: url, ExpiresIn: int(services.DocumentURLExpiry.Seconds())})
}

// DeleteInvoice handles DELETE /v1/invoices/:id
func (h *InvoiceHandlers) DeleteInvoice(c echo.Context) error {
	ctx := c.Request().Context()
	scope, err := common.ScopeFromContext(ctx)
	if err != nil {
		return err
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.invoiceService.Delete(ctx, scope, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ViewPublicInvoice handles GET /v1/public/invoices/:id. No session is
// required; the invoice id is the capability.
func (h *InvoiceHandlers) ViewPublicInvoice(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return common.ErrNotFound
	}
	view, err := h.invoiceService.ViewPublic(c.Request().Context(), id)
	if err != nil {
		return err
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, view)
}
