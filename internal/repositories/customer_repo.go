package repositories

import (
	"context"

	"invoicehub/internal/models"

	"github.com/google/uuid"
)

type CustomerRepository interface {
	Create(ctx context.Context, scope models.TenantScope, customer *models.Customer) error
	GetByID(ctx context.Context, scope models.TenantScope, id uuid.UUID) (*models.Customer, error)
	List(ctx context.Context, scope models.TenantScope, limit, offset int) ([]*models.Customer, error)
}

type customerRepo struct {
	db DB
}

func NewCustomerRepo(db DB) CustomerRepository {
	return &customerRepo{db: db}
}

func (r *customerRepo) Create(ctx context.Context, scope models.TenantScope, customer *models.Customer) error {
	customer.TenantID = scope.TenantID()
	query := `
		INSERT INTO customers (id, tenant_id, name, email, phone, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query, customer.ID, customer.TenantID, customer.Name, customer.Email, customer.Phone, customer.Address).
		Scan(&customer.CreatedAt, &customer.UpdatedAt)
}

func (r *customerRepo) GetByID(ctx context.Context, scope models.TenantScope, id uuid.UUID) (*models.Customer, error) {
	c := &models.Customer{}
	query := `
		SELECT id, tenant_id, name, email, phone, address, created_at, updated_at
		FROM customers
		WHERE tenant_id = $1 AND id = $2
	`
	err := r.db.QueryRow(ctx, query, scope.TenantID(), id).Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (r *customerRepo) List(ctx context.Context, scope models.TenantScope, limit, offset int) ([]*models.Customer, error) {
	query := `
		SELECT id, tenant_id, name, email, phone, address, created_at, updated_at
		FROM customers
		WHERE tenant_id = $1
		ORDER BY name
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, scope.TenantID(), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []*models.Customer
	for rows.Next() {
		c := &models.Customer{}
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}
