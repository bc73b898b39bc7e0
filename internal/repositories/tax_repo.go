package repositories

import (
	"context"

	"invoicehub/internal/common"
	"invoicehub/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type TaxRepository interface {
	// List returns the tenant's taxes, default first, then by creation order.
	List(ctx context.Context, scope models.TenantScope) ([]*models.Tax, error)
	GetByID(ctx context.Context, scope models.TenantScope, id uuid.UUID) (*models.Tax, error)
	GetDefault(ctx context.Context, scope models.TenantScope) (*models.Tax, error)
	// Create and Update unset any other default in the same transaction when
	// tax.IsDefault is true.
	Create(ctx context.Context, scope models.TenantScope, tax *models.Tax) error
	Update(ctx context.Context, scope models.TenantScope, tax *models.Tax) error
	Delete(ctx context.Context, scope models.TenantScope, id uuid.UUID) error
}

type taxRepo struct {
	db DB
}

func NewTaxRepo(db DB) TaxRepository {
	return &taxRepo{db: db}
}

const taxColumns = `id, tenant_id, name, rate, is_default, created_at, updated_at`

func scanTax(row pgx.Row) (*models.Tax, error) {
	t := &models.Tax{}
	if err := row.Scan(&t.ID, &t.TenantID, &t.Name, &t.Rate, &t.IsDefault, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *taxRepo) List(ctx context.Context, scope models.TenantScope) ([]*models.Tax, error) {
	query := `SELECT ` + taxColumns + ` FROM taxes WHERE tenant_id = $1 ORDER BY is_default DESC, created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, scope.TenantID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var taxes []*models.Tax
	for rows.Next() {
		t, err := scanTax(rows)
		if err != nil {
			return nil, err
		}
		taxes = append(taxes, t)
	}
	return taxes, rows.Err()
}

func (r *taxRepo) GetByID(ctx context.Context, scope models.TenantScope, id uuid.UUID) (*models.Tax, error) {
	query := `SELECT ` + taxColumns + ` FROM taxes WHERE tenant_id = $1 AND id = $2`
	t, err := scanTax(r.db.QueryRow(ctx, query, scope.TenantID(), id))
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

func (r *taxRepo) GetDefault(ctx context.Context, scope models.TenantScope) (*models.Tax, error) {
	query := `SELECT ` + taxColumns + ` FROM taxes WHERE tenant_id = $1 AND is_default`
	t, err := scanTax(r.db.QueryRow(ctx, query, scope.TenantID()))
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

func (r *taxRepo) Create(ctx context.Context, scope models.TenantScope, tax *models.Tax) error {
	tax.TenantID = scope.TenantID()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer rollback(ctx, tx)

	if tax.IsDefault {
		if err := clearDefaultTax(ctx, tx, scope, tax.ID); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO taxes (id, tenant_id, name, rate, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	if err := tx.QueryRow(ctx, query, tax.ID, tax.TenantID, tax.Name, tax.Rate, tax.IsDefault).Scan(&tax.CreatedAt, &tax.UpdatedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *taxRepo) Update(ctx context.Context, scope models.TenantScope, tax *models.Tax) error {
	tax.TenantID = scope.TenantID()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer rollback(ctx, tx)

	if tax.IsDefault {
		if err := clearDefaultTax(ctx, tx, scope, tax.ID); err != nil {
			return err
		}
	}

	query := `
		UPDATE taxes SET name = $1, rate = $2, is_default = $3, updated_at = NOW()
		WHERE tenant_id = $4 AND id = $5
		RETURNING created_at, updated_at
	`
	if err := tx.QueryRow(ctx, query, tax.Name, tax.Rate, tax.IsDefault, tax.TenantID, tax.ID).Scan(&tax.CreatedAt, &tax.UpdatedAt); err != nil {
		return notFound(err)
	}
	return tx.Commit(ctx)
}

func (r *taxRepo) Delete(ctx context.Context, scope models.TenantScope, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM taxes WHERE tenant_id = $1 AND id = $2`, scope.TenantID(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

// clearDefaultTax locks the tenant row, so default swaps of one tenant run one
// at a time, then unsets every other default.
func clearDefaultTax(ctx context.Context, tx pgx.Tx, scope models.TenantScope, keep uuid.UUID) error {
	if _, err := tx.Exec(ctx, `SELECT 1 FROM tenants WHERE id = $1 FOR NO KEY UPDATE`, scope.TenantID()); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `UPDATE taxes SET is_default = false, updated_at = NOW() WHERE tenant_id = $1 AND is_default AND id <> $2`, scope.TenantID(), keep)
	return err
}
