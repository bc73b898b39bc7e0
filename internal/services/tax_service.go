package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"invoicehub/internal/common"
	"invoicehub/internal/models"
	"invoicehub/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var maxTaxRate = decimal.NewFromInt(100)

// TaxService manages a tenant's tax rates. At most one tax per tenant is the
// default; marking a tax default unsets the previous one.
type TaxService interface {
	List(ctx context.Context, scope models.TenantScope) ([]*models.Tax, error)
	Get(ctx context.Context, scope models.TenantScope, id uuid.UUID) (*models.Tax, error)
	Create(ctx context.Context, scope models.TenantScope, req *models.TaxRequest) (*models.Tax, error)
	Update(ctx context.Context, scope models.TenantScope, id uuid.UUID, req *models.TaxRequest) (*models.Tax, error)
	Delete(ctx context.Context, scope models.TenantScope, id uuid.UUID) error
}

type taxService struct {
	taxRepo repositories.TaxRepository
	audit   AuditRecorder
}

func NewTaxService(taxRepo repositories.TaxRepository, audit AuditRecorder) TaxService {
	return &taxService{taxRepo: taxRepo, audit: audit}
}

func validateTax(req *models.TaxRequest) (string, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return "", common.NewValidationError("name", "name is required")
	}
	if utf8.RuneCountInString(name) > 100 {
		return "", common.NewValidationError("name", "name must be at most 100 characters")
	}
	if req.Rate.IsNegative() || req.Rate.GreaterThan(maxTaxRate) {
		return "", common.NewValidationError("rate", "rate must be between 0 and 100")
	}
	return name, nil
}

func (s *taxService) List(ctx context.Context, scope models.TenantScope) ([]*models.Tax, error) {
	taxes, err := s.taxRepo.List(ctx, scope)
	if err != nil {
		return nil, common.SecureErrorMessage("list taxes", err)
	}
	return taxes, nil
}

func (s *taxService) Get(ctx context.Context, scope models.TenantScope, id uuid.UUID) (*models.Tax, error) {
	tax, err := s.taxRepo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, common.SecureErrorMessage("load tax", err)
	}
	return tax, nil
}

func (s *taxService) Create(ctx context.Context, scope models.TenantScope, req *models.TaxRequest) (*models.Tax, error) {
	name, err := validateTax(req)
	if err != nil {
		return nil, err
	}
	tax := &models.Tax{
		ID:        uuid.New(),
		TenantID:  scope.TenantID(),
		Name:      name,
		Rate:      req.Rate,
		IsDefault: req.IsDefault,
	}
	if err := s.taxRepo.Create(ctx, scope, tax); err != nil {
		return nil, common.SecureErrorMessage("create tax", err)
	}
	s.record(ctx, scope, models.ActionTaxCreated, tax)
	return tax, nil
}

func (s *taxService) Update(ctx context.Context, scope models.TenantScope, id uuid.UUID, req *models.TaxRequest) (*models.Tax, error) {
	name, err := validateTax(req)
	if err != nil {
		return nil, err
	}
	tax, err := s.taxRepo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, common.SecureErrorMessage("load tax", err)
	}
	tax.Name = name
	tax.Rate = req.Rate
	tax.IsDefault = req.IsDefault

	if err := s.taxRepo.Update(ctx, scope, tax); err != nil {
		return nil, common.SecureErrorMessage("update tax", err)
	}
	s.record(ctx, scope, models.ActionTaxUpdated, tax)
	return tax, nil
}

func (s *taxService) Delete(ctx context.Context, scope models.TenantScope, id uuid.UUID) error {
	if err := s.taxRepo.Delete(ctx, scope, id); err != nil {
		return common.SecureErrorMessage("delete tax", err)
	}
	tenantID := scope.TenantID()
	s.audit.Record(ctx, &models.AuditLog{
		TenantID:   &tenantID,
		UserID:     common.ActorFromContext(ctx),
		Action:     models.ActionTaxDeleted,
		EntityType: models.EntityTax,
		EntityID:   id.String(),
	})
	return nil
}

func (s *taxService) record(ctx context.Context, scope models.TenantScope, action models.AuditAction, tax *models.Tax) {
	tenantID := scope.TenantID()
	s.audit.Record(ctx, &models.AuditLog{
		TenantID:   &tenantID,
		UserID:     common.ActorFromContext(ctx),
		Action:     action,
		EntityType: models.EntityTax,
		EntityID:   tax.ID.String(),
		Metadata: models.JSONB{
			"name":       tax.Name,
			"rate":       tax.Rate.String(),
			"is_default": tax.IsDefault,
		},
	})
}
