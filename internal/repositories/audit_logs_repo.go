package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"invoicehub/internal/models"

	"github.com/google/uuid"
)

// AuditLogsRepository is append-only: there is no update or delete.
type AuditLogsRepository interface {
	Create(ctx context.Context, auditLog *models.AuditLog) error
	List(ctx context.Context, filters *models.AuditLogFilters) ([]*models.AuditLog, error)
}

type auditLogsRepo struct {
	db DB
}

func NewAuditLogsRepo(db DB) AuditLogsRepository {
	return &auditLogsRepo{db: db}
}

func (r *auditLogsRepo) Create(ctx context.Context, auditLog *models.AuditLog) error {
	if auditLog.ID == uuid.Nil {
		auditLog.ID = uuid.New()
	}
	if auditLog.CreatedAt.IsZero() {
		auditLog.CreatedAt = time.Now().UTC()
	}

	metadata := []byte("{}")
	if auditLog.Metadata != nil {
		var err error
		metadata, err = json.Marshal(auditLog.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_logs (id, tenant_id, user_id, action, entity_type, entity_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		auditLog.ID,
		auditLog.TenantID,
		auditLog.UserID,
		auditLog.Action,
		auditLog.EntityType,
		auditLog.EntityID,
		metadata,
		auditLog.CreatedAt,
	)
	return err
}

func (r *auditLogsRepo) List(ctx context.Context, filters *models.AuditLogFilters) ([]*models.AuditLog, error) {
	if filters == nil {
		filters = &models.AuditLogFilters{}
	}

	query := `
		SELECT id, tenant_id, user_id, action, entity_type, entity_id, metadata, created_at
		FROM audit_logs
		WHERE 1 = 1`
	var args []interface{}
	add := func(clause string, value interface{}) {
		args = append(args, value)
		query += fmt.Sprintf(clause, len(args))
	}

	if filters.TenantID != nil {
		add(" AND tenant_id = $%d", *filters.TenantID)
	}
	if filters.UserID != nil {
		add(" AND user_id = $%d", *filters.UserID)
	}
	if filters.EntityType != nil {
		add(" AND entity_type = $%d", *filters.EntityType)
	}
	if filters.EntityID != nil {
		add(" AND entity_id = $%d", *filters.EntityID)
	}
	if filters.Action != nil {
		add(" AND action = $%d", string(*filters.Action))
	}
	if filters.StartDate != nil {
		add(" AND created_at >= $%d", *filters.StartDate)
	}
	if filters.EndDate != nil {
		add(" AND created_at <= $%d", *filters.EndDate)
	}

	query += " ORDER BY created_at DESC"
	if filters.Limit > 0 {
		add(" LIMIT $%d", filters.Limit)
		if filters.Offset > 0 {
			add(" OFFSET $%d", filters.Offset)
		}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	auditLogs := []*models.AuditLog{}
	for rows.Next() {
		auditLog := &models.AuditLog{}
		var metadata []byte
		if err := rows.Scan(&auditLog.ID, &auditLog.TenantID, &auditLog.UserID, &auditLog.Action,
			&auditLog.EntityType, &auditLog.EntityID, &metadata, &auditLog.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &auditLog.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		auditLogs = append(auditLogs, auditLog)
	}
	return auditLogs, rows.Err()
}
