package repositories

import (
	"context"
	"fmt"
	"time"

	"invoicehub/internal/common"
	"invoicehub/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type InvoiceRepository interface {
	// NextSequence atomically increments and returns the tenant's counter for year.
	NextSequence(ctx context.Context, scope models.TenantScope, year int) (int64, error)
	NumberExists(ctx context.Context, scope models.TenantScope, invoiceNumber string) (bool, error)
	Create(ctx context.Context, scope models.TenantScope, invoice *models.Invoice) error
	GetByID(ctx context.Context, scope models.TenantScope, id uuid.UUID) (*models.Invoice, error)
	List(ctx context.Context, scope models.TenantScope, filters models.InvoiceFilters) ([]*models.Invoice, error)
	// GetTenantIDByInvoiceID resolves the owner of an invoice for the public view.
	GetTenantIDByInvoiceID(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	// MarkSent moves a DRAFT to SENT and stamps sent_at; other unpaid statuses keep their status.
	MarkSent(ctx context.Context, scope models.TenantScope, id uuid.UUID, at time.Time) (models.InvoiceStatus, error)
	// MarkViewed sets viewed_at if it is still null and moves SENT to VIEWED.
	// It reports whether this call was the one that set viewed_at.
	MarkViewed(ctx context.Context, scope models.TenantScope, id uuid.UUID, at time.Time) (bool, error)
	ApplyPayment(ctx context.Context, scope models.TenantScope, payment *models.Payment) (*models.PaymentResult, error)
	ListPayments(ctx context.Context, scope models.TenantScope, invoiceID uuid.UUID) ([]*models.Payment, error)
	DeleteDraft(ctx context.Context, scope models.TenantScope, id uuid.UUID) error
}

type invoiceRepo struct {
	db DB
}

func NewInvoiceRepo(db DB) InvoiceRepository {
	return &invoiceRepo{db: db}
}

const invoiceColumns = `id, tenant_id, customer_id, invoice_number, status, currency, issue_date, due_date, notes, tax_id, tax_rate,
	subtotal, tax_amount, total, amount_paid, viewed_at, sent_at, paid_at, created_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (*models.Invoice, error) {
	inv := &models.Invoice{}
	err := row.Scan(&inv.ID, &inv.TenantID, &inv.CustomerID, &inv.InvoiceNumber, &inv.Status, &inv.Currency, &inv.IssueDate,
		&inv.DueDate, &inv.Notes, &inv.TaxID, &inv.TaxRate, &inv.Subtotal, &inv.TaxAmount, &inv.Total, &inv.AmountPaid,
		&inv.ViewedAt, &inv.SentAt, &inv.PaidAt, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *invoiceRepo) NextSequence(ctx context.Context, scope models.TenantScope, year int) (int64, error) {
	query := `
		INSERT INTO invoice_sequences (tenant_id, year, last_value, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (tenant_id, year) DO UPDATE SET last_value = invoice_sequences.last_value + 1, updated_at = NOW()
		RETURNING last_value
	`
	var next int64
	if err := r.db.QueryRow(ctx, query, scope.TenantID(), year).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to allocate invoice sequence: %w", err)
	}
	return next, nil
}

func (r *invoiceRepo) NumberExists(ctx context.Context, scope models.TenantScope, invoiceNumber string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM invoices WHERE tenant_id = $1 AND invoice_number = $2)`
	err := r.db.QueryRow(ctx, query, scope.TenantID(), invoiceNumber).Scan(&exists)
	return exists, err
}

func (r *invoiceRepo) Create(ctx context.Context, scope models.TenantScope, inv *models.Invoice) error {
	inv.TenantID = scope.TenantID()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer rollback(ctx, tx)

	query := `
		INSERT INTO invoices (id, tenant_id, customer_id, invoice_number, status, currency, issue_date, due_date, notes, tax_id,
			tax_rate, subtotal, tax_amount, total, amount_paid, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query, inv.ID, inv.TenantID, inv.CustomerID, inv.InvoiceNumber, inv.Status, inv.Currency, inv.IssueDate,
		inv.DueDate, inv.Notes, inv.TaxID, inv.TaxRate, inv.Subtotal, inv.TaxAmount, inv.Total, inv.AmountPaid, inv.CreatedBy).
		Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}

	itemQuery := `
		INSERT INTO invoice_items (id, invoice_id, position, description, quantity, unit_price, amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i := range inv.Items {
		item := &inv.Items[i]
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.InvoiceID = inv.ID
		if _, err := tx.Exec(ctx, itemQuery, item.ID, item.InvoiceID, item.Position, item.Description, item.Quantity, item.UnitPrice, item.Amount); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *invoiceRepo) GetByID(ctx context.Context, scope models.TenantScope, id uuid.UUID) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE tenant_id = $1 AND id = $2`
	inv, err := scanInvoice(r.db.QueryRow(ctx, query, scope.TenantID(), id))
	if err != nil {
		return nil, notFound(err)
	}

	items, err := r.items(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return inv, nil
}

func (r *invoiceRepo) items(ctx context.Context, invoiceID uuid.UUID) ([]models.InvoiceItem, error) {
	query := `
		SELECT id, invoice_id, position, description, quantity, unit_price, amount
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY position
	`
	rows, err := r.db.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.InvoiceItem{}
	for rows.Next() {
		var item models.InvoiceItem
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Position, &item.Description, &item.Quantity, &item.UnitPrice, &item.Amount); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *invoiceRepo) List(ctx context.Context, scope models.TenantScope, filters models.InvoiceFilters) ([]*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE tenant_id = $1`
	args := []interface{}{scope.TenantID()}

	if filters.Status != nil {
		args = append(args, *filters.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY issue_date DESC, invoice_number DESC"
	args = append(args, filters.Limit, filters.Offset)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := []*models.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *invoiceRepo) GetTenantIDByInvoiceID(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var tenantID uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT tenant_id FROM invoices WHERE id = $1`, id).Scan(&tenantID)
	if err != nil {
		return uuid.Nil, notFound(err)
	}
	return tenantID, nil
}

func (r *invoiceRepo) MarkSent(ctx context.Context, scope models.TenantScope, id uuid.UUID, at time.Time) (models.InvoiceStatus, error) {
	query := `
		UPDATE invoices
		SET status = CASE WHEN status = 'DRAFT' THEN 'SENT' ELSE status END, sent_at = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status <> 'PAID'
		RETURNING status
	`
	var status models.InvoiceStatus
	if err := r.db.QueryRow(ctx, query, scope.TenantID(), id, at).Scan(&status); err != nil {
		return "", notFound(err)
	}
	return status, nil
}

func (r *invoiceRepo) MarkViewed(ctx context.Context, scope models.TenantScope, id uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE invoices
		SET viewed_at = $3, status = CASE WHEN status = 'SENT' THEN 'VIEWED' ELSE status END, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND viewed_at IS NULL
	`
	tag, err := r.db.Exec(ctx, query, scope.TenantID(), id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *invoiceRepo) ApplyPayment(ctx context.Context, scope models.TenantScope, payment *models.Payment) (*models.PaymentResult, error) {
	payment.TenantID = scope.TenantID()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback(ctx, tx)

	lock := `SELECT ` + invoiceColumns + ` FROM invoices WHERE tenant_id = $1 AND id = $2 FOR UPDATE`
	inv, err := scanInvoice(tx.QueryRow(ctx, lock, payment.TenantID, payment.InvoiceID))
	if err != nil {
		return nil, notFound(err)
	}
	result := &models.PaymentResult{Invoice: inv, Payment: payment, Previous: inv.Status}

	var duplicate bool
	dupQuery := `SELECT EXISTS(SELECT 1 FROM payments WHERE tenant_id = $1 AND reference = $2)`
	if err := tx.QueryRow(ctx, dupQuery, payment.TenantID, payment.Reference).Scan(&duplicate); err != nil {
		return nil, err
	}
	if duplicate {
		result.Duplicate = true
		return result, nil
	}

	paid := inv.AmountPaid.Add(payment.Amount)
	next, err := models.StatusAfterPayment(inv.Status, paid, inv.Total)
	if err != nil {
		return nil, err
	}

	insert := `
		INSERT INTO payments (id, tenant_id, invoice_id, amount, source, reference, method, recorded_by, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := tx.Exec(ctx, insert, payment.ID, payment.TenantID, payment.InvoiceID, payment.Amount, payment.Source,
		payment.Reference, payment.Method, payment.RecordedBy, payment.ReceivedAt); err != nil {
		if isUniqueViolation(err) {
			result.Duplicate = true
			return result, nil
		}
		return nil, err
	}

	var paidAt *time.Time
	if next == models.InvoiceStatusPaid {
		paidAt = &payment.ReceivedAt
	}
	update := `
		UPDATE invoices SET amount_paid = $1, status = $2, paid_at = COALESCE(paid_at, $3), updated_at = NOW()
		WHERE tenant_id = $4 AND id = $5
	`
	if _, err := tx.Exec(ctx, update, paid, next, paidAt, payment.TenantID, payment.InvoiceID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	inv.AmountPaid = paid
	inv.Status = next
	if paidAt != nil && inv.PaidAt == nil {
		inv.PaidAt = paidAt
	}
	return result, nil
}

func (r *invoiceRepo) ListPayments(ctx context.Context, scope models.TenantScope, invoiceID uuid.UUID) ([]*models.Payment, error) {
	query := `
		SELECT id, tenant_id, invoice_id, amount, source, reference, method, recorded_by, received_at
		FROM payments
		WHERE tenant_id = $1 AND invoice_id = $2
		ORDER BY received_at
	`
	rows, err := r.db.Query(ctx, query, scope.TenantID(), invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []*models.Payment{}
	for rows.Next() {
		p := &models.Payment{}
		if err := rows.Scan(&p.ID, &p.TenantID, &p.InvoiceID, &p.Amount, &p.Source, &p.Reference, &p.Method, &p.RecordedBy, &p.ReceivedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *invoiceRepo) DeleteDraft(ctx context.Context, scope models.TenantScope, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM invoices WHERE tenant_id = $1 AND id = $2 AND status = 'DRAFT'`, scope.TenantID(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}
