package services

import (
	"context"
	"time"

	"invoicehub/internal/common"
	"invoicehub/internal/models"
	"invoicehub/internal/repositories"
	"invoicehub/pkg/logger"
	"invoicehub/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const auditWriteTimeout = 5 * time.Second

// AuditRecorder appends audit entries. Recording is best-effort: a failed write
// is logged and counted but never fails the operation being audited.
type AuditRecorder interface {
	Record(ctx context.Context, entry *models.AuditLog)
}

type AuditLogsService interface {
	AuditRecorder
	// ListAuditLogs returns entries visible to p. Tenant admins only see their
	// own tenant; super admins may filter by any tenant or none.
	ListAuditLogs(ctx context.Context, p *models.Principal, filters *models.AuditLogFilters) ([]*models.AuditLog, error)
	ValidateAuditFilters(filters *models.AuditLogFilters) error
}

type auditLogsService struct {
	auditLogsRepo repositories.AuditLogsRepository
	now           func() time.Time
}

func NewAuditLogsService(auditLogsRepo repositories.AuditLogsRepository) AuditLogsService {
	return &auditLogsService{
		auditLogsRepo: auditLogsRepo,
		now:           time.Now,
	}
}

func (s *auditLogsService) Record(ctx context.Context, entry *models.AuditLog) {
	if entry == nil || entry.Action == "" {
		return
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}

	// the write must outlive a cancelled request
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if err := s.auditLogsRepo.Create(writeCtx, entry); err != nil {
		metrics.AuditWriteFailures.Inc()
		logger.FromContext(ctx).Error("failed to write audit entry",
			zap.String("action", string(entry.Action)),
			zap.String("entity_type", entry.EntityType),
			zap.String("entity_id", entry.EntityID),
			zap.Error(err),
		)
	}
}

func (s *auditLogsService) ListAuditLogs(ctx context.Context, p *models.Principal, filters *models.AuditLogFilters) ([]*models.AuditLog, error) {
	if p == nil {
		return nil, common.ErrUnauthorized
	}
	if filters == nil {
		filters = &models.AuditLogFilters{}
	}
	if err := s.ValidateAuditFilters(filters); err != nil {
		return nil, err
	}

	switch p.Role {
	case models.RoleSuperAdmin:
	case models.RoleTenantAdmin:
		if !p.HasTenant() {
			return nil, common.ErrAccessDenied
		}
		tenantID := p.Scope.TenantID()
		if filters.TenantID != nil && *filters.TenantID != tenantID {
			return nil, common.ErrAccessDenied
		}
		filters.TenantID = &tenantID
	default:
		return nil, common.ErrAccessDenied
	}

	logs, err := s.auditLogsRepo.List(ctx, filters)
	if err != nil {
		return nil, common.SecureErrorMessage("list audit logs", err)
	}
	return logs, nil
}

// ValidateAuditFilters validates audit log filter parameters
func (s *auditLogsService) ValidateAuditFilters(filters *models.AuditLogFilters) error {
	if filters.StartDate != nil && filters.EndDate != nil && filters.StartDate.After(*filters.EndDate) {
		return common.NewValidationError("start_date", "start_date cannot be after end_date")
	}
	limit, offset, err := common.ValidatePaginationParams(filters.Limit, filters.Offset)
	if err != nil {
		return err
	}
	filters.Limit, filters.Offset = limit, offset
	return nil
}
