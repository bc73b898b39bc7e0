package handlers

import (
	"net/http"

	"invoicehub/internal/common"
	"invoicehub/internal/models"
	"invoicehub/internal/services"

	"github.com/labstack/echo/v4"
)

// CustomerHandlers handles HTTP requests for customers
type CustomerHandlers struct {
	customerService services.CustomerService
}

// NewCustomerHandlers creates a new customer handlers instance
func NewCustomerHandlers(customerService services.CustomerService) *CustomerHandlers {
	return &CustomerHandlers{customerService: customerService}
}

// CreateCustomer handles POST /v1/customers
func (h *CustomerHandlers) CreateCustomer(c echo.Context) error {
	ctx := c.Request().Context()
	scope, err := common.ScopeFromContext(ctx)
	if err != nil {
		return err
	}

	var req models.CustomerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	customer, err := h.customerService.Create(ctx, scope, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, customer)
}

// GetCustomer handles GET /v1/customers/:id
func (h *CustomerHandlers) GetCustomer(c echo.Context) error {
	ctx := c.Request().Context()
	scope, err := common.ScopeFromContext(ctx)
	if err != nil {
		return err
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	customer, err := h.customerService.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, customer)
}

// ListCustomers handles GET /v1/customers
func (h *CustomerHandlers) ListCustomers(c echo.Context) error {
	ctx := c.Request().Context()
	scope, err := common.ScopeFromContext(ctx)
	if err != nil {
		return err
	}
	limit, offset, err := pagination(c)
	if err != nil {
		return err
	}

	customers, err := h.customerService.List(ctx, scope, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ListResponse[*models.Customer]{Data: customers, Limit: limit, Offset: offset})
}
