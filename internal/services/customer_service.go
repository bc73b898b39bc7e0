package services

import (
	"context"
	"strings"

	"invoicehub/internal/common"
	"invoicehub/internal/models"
	"invoicehub/internal/repositories"

	"github.com/google/uuid"
)

type CustomerService interface {
	Create(ctx context.Context, scope models.TenantScope, req *models.CustomerRequest) (*models.Customer, error)
	Get(ctx context.Context, scope models.TenantScope, id uuid.UUID) (*models.Customer, error)
	List(ctx context.Context, scope models.TenantScope, limit, offset int) ([]*models.Customer, error)
}

type customerService struct {
	customerRepo repositories.CustomerRepository
	audit        AuditRecorder
}

func NewCustomerService(customerRepo repositories.CustomerRepository, audit AuditRecorder) CustomerService {
	return &customerService{customerRepo: customerRepo, audit: audit}
}

func (s *customerService) Create(ctx context.Context, scope models.TenantScope, req *models.CustomerRequest) (*models.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, common.NewValidationError("name", "name is required")
	}

	customer := &models.Customer{
		ID:       uuid.New(),
		TenantID: scope.TenantID(),
		Name:     name,
		Email:    common.NilIfEmpty(req.Email),
		Phone:    common.NilIfEmpty(req.Phone),
		Address:  common.NilIfEmpty(req.Address),
	}
	if customer.Email != nil {
		email := models.NormalizeEmail(*customer.Email)
		customer.Email = &email
	}

	if err := s.customerRepo.Create(ctx, scope, customer); err != nil {
		return nil, common.SecureErrorMessage("create customer", err)
	}

	tenantID := scope.TenantID()
	s.audit.Record(ctx, &models.AuditLog{
		TenantID:   &tenantID,
		UserID:     common.ActorFromContext(ctx),
		Action:     models.ActionCustomerCreated,
		EntityType: models.EntityCustomer,
		EntityID:   customer.ID.String(),
	})
	return customer, nil
}

func (s *customerService) Get(ctx context.Context, scope models.TenantScope, id uuid.UUID) (*models.Customer, error) {
	customer, err := s.customerRepo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, common.SecureErrorMessage("load customer", err)
	}
	return customer, nil
}

func (s *customerService) List(ctx context.Context, scope models.TenantScope, limit, offset int) ([]*models.Customer, error) {
	limit, offset, err := common.ValidatePaginationParams(limit, offset)
	if err != nil {
		return nil, err
	}
	customers, err := s.customerRepo.List(ctx, scope, limit, offset)
	if err != nil {
		return nil, common.SecureErrorMessage("list customers", err)
	}
	return customers, nil
}
