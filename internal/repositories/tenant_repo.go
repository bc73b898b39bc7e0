package repositories

import (
	"context"

	"invoicehub/internal/common"
	"invoicehub/internal/models"

	"github.com/google/uuid"
)

type TenantRepository interface {
	// CreateWithOwner inserts the tenant and makes ownerID its TENANT_ADMIN.
	CreateWithOwner(ctx context.Context, tenant *models.Tenant, ownerID uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	List(ctx context.Context, status *models.TenantStatus, limit, offset int) ([]*models.Tenant, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.TenantStatus) error
}

type tenantRepo struct {
	db DB
}

func NewTenantRepo(db DB) TenantRepository {
	return &tenantRepo{db: db}
}

func (r *tenantRepo) CreateWithOwner(ctx context.Context, tenant *models.Tenant, ownerID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer rollback(ctx, tx)

	insert := `
		INSERT INTO tenants (id, company_name, status, default_template_id, subscription_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	`
	if _, err := tx.Exec(ctx, insert, tenant.ID, tenant.CompanyName, tenant.Status, tenant.DefaultTemplateID, tenant.SubscriptionID); err != nil {
		return err
	}

	assign := `UPDATE users SET tenant_id = $1, role = $2, updated_at = NOW() WHERE id = $3 AND tenant_id IS NULL`
	tag, err := tx.Exec(ctx, assign, tenant.ID, models.RoleTenantAdmin, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyOnboarded
	}

	return tx.Commit(ctx)
}

func (r *tenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	query := `
		SELECT id, company_name, status, default_template_id, subscription_id, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(&tenant.ID, &tenant.CompanyName, &tenant.Status, &tenant.DefaultTemplateID, &tenant.SubscriptionID, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return tenant, nil
}

func (r *tenantRepo) List(ctx context.Context, status *models.TenantStatus, limit, offset int) ([]*models.Tenant, error) {
	query := `
		SELECT id, company_name, status, default_template_id, subscription_id, created_at, updated_at
		FROM tenants
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	var statusArg *string
	if status != nil {
		s := string(*status)
		statusArg = &s
	}
	rows, err := r.db.Query(ctx, query, statusArg, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		tenant := &models.Tenant{}
		if err := rows.Scan(&tenant.ID, &tenant.CompanyName, &tenant.Status, &tenant.DefaultTemplateID, &tenant.SubscriptionID, &tenant.CreatedAt, &tenant.UpdatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

func (r *tenantRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.TenantStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE tenants SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}
