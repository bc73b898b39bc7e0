package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"invoicehub/internal/caching"
	"invoicehub/internal/common"
	"invoicehub/internal/models"
	"invoicehub/internal/repositories"
	"invoicehub/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const tenantCacheTTL = 5 * time.Minute

type TenantService interface {
	// GetByID loads a tenant, reading through the cache.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	List(ctx context.Context, status *models.TenantStatus, limit, offset int) ([]*models.Tenant, error)
	ChangeStatus(ctx context.Context, id uuid.UUID, req *models.TenantStatusRequest) (*models.Tenant, error)
}

type tenantService struct {
	tenantRepo repositories.TenantRepository
	cacheSvc   caching.CacheService
	audit      AuditRecorder
}

func NewTenantService(tenantRepo repositories.TenantRepository, cacheSvc caching.CacheService, audit AuditRecorder) TenantService {
	return &tenantService{
		tenantRepo: tenantRepo,
		cacheSvc:   cacheSvc,
		audit:      audit,
	}
}

func (s *tenantService) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	log := logger.FromContext(ctx)

	if s.cacheSvc != nil {
		tenant, err := s.cacheSvc.GetTenant(ctx, id)
		if err != nil {
			log.Warn("tenant cache read failed", zap.String("tenant_id", id.String()), zap.Error(err))
		} else if tenant != nil {
			return tenant, nil
		}
	}

	tenant, err := s.tenantRepo.GetByID(ctx, id)
	if err != nil {
		return nil, common.SecureErrorMessage("load tenant", err)
	}

	if s.cacheSvc != nil {
		if err := s.cacheSvc.SetTenant(ctx, tenant, tenantCacheTTL); err != nil {
			log.Warn("tenant cache write failed", zap.String("tenant_id", id.String()), zap.Error(err))
		}
	}
	return tenant, nil
}

func (s *tenantService) List(ctx context.Context, status *models.TenantStatus, limit, offset int) ([]*models.Tenant, error) {
	if status != nil && !status.Valid() {
		return nil, common.NewValidationError("status", "status must be one of ACTIVE SUSPENDED DELETED")
	}
	limit, offset, err := common.ValidatePaginationParams(limit, offset)
	if err != nil {
		return nil, err
	}
	tenants, err := s.tenantRepo.List(ctx, status, limit, offset)
	if err != nil {
		return nil, common.SecureErrorMessage("list tenants", err)
	}
	return tenants, nil
}

func (s *tenantService) ChangeStatus(ctx context.Context, id uuid.UUID, req *models.TenantStatusRequest) (*models.Tenant, error) {
	if req == nil || !req.Status.Valid() {
		return nil, common.NewValidationError("status", "status must be one of ACTIVE SUSPENDED DELETED")
	}

	tenant, err := s.tenantRepo.GetByID(ctx, id)
	if err != nil {
		return nil, common.SecureErrorMessage("load tenant", err)
	}
	previous := tenant.Status

	if err := s.tenantRepo.UpdateStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, common.SecureErrorMessage("update tenant status", err)
	}
	tenant.Status = req.Status
	tenant.UpdatedAt = time.Now().UTC()

	if s.cacheSvc != nil {
		if err := s.cacheSvc.DeleteTenant(ctx, id); err != nil {
			logger.FromContext(ctx).Warn("tenant cache invalidation failed", zap.String("tenant_id", id.String()), zap.Error(err))
		}
	}

	s.audit.Record(ctx, &models.AuditLog{
		TenantID:   &id,
		UserID:     common.ActorFromContext(ctx),
		Action:     models.ActionTenantStatusChanged,
		EntityType: models.EntityTenant,
		EntityID:   id.String(),
		Metadata: models.JSONB{
			"from":   string(previous),
			"to":     string(req.Status),
			"reason": strings.TrimSpace(req.Reason),
		},
	})
	return tenant, nil
}
