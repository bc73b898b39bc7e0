package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"invoicehub/internal/common"
	"invoicehub/internal/models"
	"invoicehub/internal/repositories"
	"invoicehub/pkg/logger"
	"invoicehub/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultCurrency = "USD"

// InvoiceService owns the invoice lifecycle:
// DRAFT -> SENT -> VIEWED, and any unpaid status -> PARTIALLY_PAID -> PAID.
type InvoiceService interface {
	Create(ctx context.Context, scope models.TenantScope, req *models.CreateInvoiceRequest) (*models.Invoice, error)
	Get(ctx context.Context, scope models.TenantScope, id uuid.UUID) (*models.Invoice, error)
	List(ctx context.Context, scope models.TenantScope, filters models.InvoiceFilters) ([]*models.Invoice, error)
	// Send delivers the invoice to its customer. A DRAFT becomes SENT; other
	// unpaid invoices are redelivered without a status change.
	Send(ctx context.Context, scope models.TenantScope, id uuid.UUID) (*models.Invoice, error)
	// ViewPublic serves the unauthenticated customer view. The first view of a
	// sent invoice records viewed_at and moves SENT to VIEWED.
	ViewPublic(ctx context.Context, id uuid.UUID) (*models.InvoiceView, error)
	RecordPayment(ctx context.Context, scope models.TenantScope, id uuid.UUID, req *models.RecordPaymentRequest) (*models.PaymentResult, error)
	// ReconcileGatewayPayment applies a captured gateway payment to the invoice
	// it references. Replays of the same gateway payment are no-ops.
	ReconcileGatewayPayment(ctx context.Context, captured *CapturedPayment) (*models.PaymentResult, error)
	ListPayments(ctx context.Context, scope models.TenantScope, id uuid.UUID) ([]*models.Payment, error)
	Delete(ctx context.Context, scope models.TenantScope, id uuid.UUID) error
}

type invoiceService struct {
	invoiceRepo   repositories.InvoiceRepository
	customerRepo  repositories.CustomerRepository
	taxRepo       repositories.TaxRepository
	tenantSvc     TenantService
	numbering     NumberingService
	notifier      NotificationService
	audit         AuditRecorder
	publicBaseURL string
	now           func() time.Time
}

func NewInvoiceService(
	invoiceRepo repositories.InvoiceRepository,
	customerRepo repositories.CustomerRepository,
	taxRepo repositories.TaxRepository,
	tenantSvc TenantService,
	numbering NumberingService,
	notifier NotificationService,
	audit AuditRecorder,
	publicBaseURL string,
) InvoiceService {
	return &invoiceService{
		invoiceRepo:   invoiceRepo,
		customerRepo:  customerRepo,
		taxRepo:       taxRepo,
		tenantSvc:     tenantSvc,
		numbering:     numbering,
		notifier:      notifier,
		audit:         audit,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		now:           time.Now,
	}
}

// PublicLink is the customer-facing URL of an invoice.
func PublicLink(baseURL string, invoiceID uuid.UUID) string {
	return strings.TrimRight(baseURL, "/") + "/v1/public/invoices/" + invoiceID.String()
}

func (s *invoiceService) Create(ctx context.Context, scope models.TenantScope, req *models.CreateInvoiceRequest) (*models.Invoice, error) {
	if len(req.Items) == 0 {
		return nil, common.NewValidationError("items", "items must contain at least 1 item")
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.Description) == "" {
			return nil, common.NewValidationError("items.description", "description is required")
		}
		if !item.Quantity.IsPositive() {
			return nil, common.NewValidationError("items.quantity", "quantity must be greater than 0")
		}
		if item.UnitPrice.IsNegative() {
			return nil, common.NewValidationError("items.unit_price", "unit_price cannot be negative")
		}
	}

	now := s.now().UTC()
	issueDate := now.Truncate(24 * time.Hour)
	if req.IssueDate != nil {
		issueDate = req.IssueDate.UTC()
	}
	if req.DueDate != nil && req.DueDate.Before(issueDate) {
		return nil, common.NewValidationError("due_date", "due_date cannot be before issue_date")
	}

	if _, err := s.customerRepo.GetByID(ctx, scope, req.CustomerID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NewValidationError("customer_id", "customer does not exist")
		}
		return nil, common.SecureErrorMessage("load customer", err)
	}

	inv := &models.Invoice{
		ID:         uuid.New(),
		TenantID:   scope.TenantID(),
		CustomerID: req.CustomerID,
		Status:     models.InvoiceStatusDraft,
		Currency:   strings.ToUpper(strings.TrimSpace(req.Currency)),
		IssueDate:  issueDate,
		DueDate:    req.DueDate,
		Notes:      common.NilIfEmpty(req.Notes),
		CreatedBy:  common.ActorFromContext(ctx),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if inv.Currency == "" {
		inv.Currency = defaultCurrency
	}

	tax, err := s.resolveTax(ctx, scope, req.TaxID)
	if err != nil {
		return nil, err
	}
	if tax != nil {
		inv.TaxID = &tax.ID
		inv.TaxRate = tax.Rate
	}

	for _, item := range req.Items {
		inv.Items = append(inv.Items, models.InvoiceItem{
			ID:          uuid.New(),
			InvoiceID:   inv.ID,
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	inv.Recalculate()

	number, err := s.numbering.NextInvoiceNumber(ctx, scope)
	if err != nil {
		return nil, err
	}
	inv.InvoiceNumber = number

	if err := s.invoiceRepo.Create(ctx, scope, inv); err != nil {
		return nil, common.SecureErrorMessage("create invoice", err)
	}
	metrics.InvoicesCreated.Inc()

	s.record(ctx, scope, models.ActionInvoiceCreated, inv.ID, models.JSONB{
		"invoice_number": inv.InvoiceNumber,
		"total":          inv.Total.StringFixed(2),
		"currency":       inv.Currency,
	})
	return inv, nil
}

// resolveTax returns the requested tax, or the tenant default when none is
// requested. No default means no tax.
func (s *invoiceService) resolveTax(ctx context.Context, scope models.TenantScope, taxID *uuid.UUID) (*models.Tax, error) {
	if taxID != nil {
		tax, err := s.taxRepo.GetByID(ctx, scope, *taxID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return nil, common.NewValidationError("tax_id", "tax does not exist")
			}
			return nil, common.SecureErrorMessage("load tax", err)
		}
		return tax, nil
	}
	tax, err := s.taxRepo.GetDefault(ctx, scope)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil
		}
		return nil, common.SecureErrorMessage("load default tax", err)
	}
	return tax, nil
}

func (s *invoiceService) Get(ctx context.Context, scope models.TenantScope, id uuid.UUID) (*models.Invoice, error) {
	inv, err := s.invoiceRepo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, common.SecureErrorMessage("load invoice", err)
	}
	return inv, nil
}

func (s *invoiceService) List(ctx context.Context, scope models.TenantScope, filters models.InvoiceFilters) ([]*models.Invoice, error) {
	if filters.Status != nil && !filters.Status.Valid() {
		return nil, common.NewValidationError("status", "unknown invoice status")
	}
	limit, offset, err := common.ValidatePaginationParams(filters.Limit, filters.Offset)
	if err != nil {
		return nil, err
	}
	filters.Limit, filters.Offset = limit, offset

	invoices, err := s.invoiceRepo.List(ctx, scope, filters)
	if err != nil {
		return nil, common.SecureErrorMessage("list invoices", err)
	}
	return invoices, nil
}

func (s *invoiceService) Send(ctx context.Context, scope models.TenantScope, id uuid.UUID) (*models.Invoice, error) {
	log := logger.FromContext(ctx)

	inv, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if inv.Status.Terminal() {
		return nil, common.NewValidationError("status", "invoice is already paid")
	}

	customer, err := s.customerRepo.GetByID(ctx, scope, inv.CustomerID)
	if err != nil {
		return nil, common.SecureErrorMessage("load customer", err)
	}
	email := common.SafeString(customer.Email)
	phone := common.SafeString(customer.Phone)
	if email == "" && phone == "" {
		return nil, common.NewValidationError("customer", "customer has no email address or phone number")
	}

	tenant, err := s.tenantSvc.GetByID(ctx, scope.TenantID())
	if err != nil {
		return nil, err
	}

	msg := InvoiceMessage{
		CustomerName:  customer.Name,
		CompanyName:   tenant.CompanyName,
		InvoiceNumber: inv.InvoiceNumber,
		Amount:        FormatAmount(inv),
		Link:          PublicLink(s.publicBaseURL, inv.ID),
	}
	if inv.DueDate != nil {
		msg.DueDate = inv.DueDate.Format("2006-01-02")
	}

	channels := []string{}
	if email != "" {
		if err := s.notifier.SendInvoiceEmail(ctx, email, msg); err != nil {
			return nil, common.SecureErrorMessage("send invoice email", err)
		}
		channels = append(channels, "email")
	}
	smsDelivered := false
	if phone != "" {
		smsDelivered = s.notifier.SendInvoiceSMS(ctx, phone, msg)
		if smsDelivered {
			channels = append(channels, "sms")
		}
	}
	if len(channels) == 0 {
		return nil, common.SecureErrorMessage("send invoice", errors.New("no channel accepted the invoice"))
	}

	previous := inv.Status
	sentAt := s.now().UTC()
	status, err := s.invoiceRepo.MarkSent(ctx, scope, id, sentAt)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// paid or deleted between load and update
			log.Warn("invoice changed while sending", zap.String("invoice_id", id.String()))
		}
		return nil, common.SecureErrorMessage("mark invoice sent", err)
	}
	inv.Status = status
	inv.SentAt = &sentAt
	if status != previous {
		metrics.InvoiceTransitions.WithLabelValues(string(status)).Inc()
	}

	s.record(ctx, scope, models.ActionInvoiceSent, inv.ID, models.JSONB{
		"invoice_number":  inv.InvoiceNumber,
		"channels":        channels,
		"previous_status": string(previous),
		"status":          string(status),
		"sms_delivered":   smsDelivered,
	})
	return inv, nil
}

func (s *invoiceService) ViewPublic(ctx context.Context, id uuid.UUID) (*models.InvoiceView, error) {
	tenantID, err := s.invoiceRepo.GetTenantIDByInvoiceID(ctx, id)
	if err != nil {
		return nil, common.SecureErrorMessage("load invoice", err)
	}
	tenant, err := s.tenantSvc.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	// invoices of inactive tenants are not publicly visible
	scope, err := models.ScopeFor(tenant)
	if err != nil {
		return nil, common.ErrNotFound
	}

	inv, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == models.InvoiceStatusDraft {
		return nil, common.ErrNotFound
	}

	viewedAt := s.now().UTC()
	first, err := s.invoiceRepo.MarkViewed(ctx, scope, id, viewedAt)
	if err != nil {
		return nil, common.SecureErrorMessage("mark invoice viewed", err)
	}
	if first {
		previous := inv.Status
		inv.ViewedAt = &viewedAt
		if inv.Status == models.InvoiceStatusSent {
			inv.Status = models.InvoiceStatusViewed
			metrics.InvoiceTransitions.WithLabelValues(string(inv.Status)).Inc()
		}
		s.audit.Record(ctx, &models.AuditLog{
			TenantID:   &tenantID,
			Action:     models.ActionInvoiceViewed,
			EntityType: models.EntityInvoice,
			EntityID:   inv.ID.String(),
			Metadata: models.JSONB{
				"previous_status": string(previous),
				"status":          string(inv.Status),
			},
		})
	}

	view := &models.InvoiceView{
		Invoice:      inv,
		PaymentStamp: inv.PaymentStamp(),
		CompanyName:  tenant.CompanyName,
	}
	customer, err := s.customerRepo.GetByID(ctx, scope, inv.CustomerID)
	if err != nil {
		logger.FromContext(ctx).Warn("public view: customer lookup failed", zap.String("invoice_id", id.String()), zap.Error(err))
	} else {
		view.CustomerName = customer.Name
		view.CustomerEmail = customer.Email
	}
	return view, nil
}

func (s *invoiceService) RecordPayment(ctx context.Context, scope models.TenantScope, id uuid.UUID, req *models.RecordPaymentRequest) (*models.PaymentResult, error) {
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return nil, common.NewValidationError("reference", "reference is required")
	}
	payment := &models.Payment{
		ID:         uuid.New(),
		InvoiceID:  id,
		Amount:     req.Amount,
		Source:     models.PaymentSourceManual,
		Reference:  reference,
		Method:     strings.TrimSpace(req.Method),
		RecordedBy: common.ActorFromContext(ctx),
		ReceivedAt: s.now().UTC(),
	}
	return s.applyPayment(ctx, scope, payment)
}

func (s *invoiceService) ReconcileGatewayPayment(ctx context.Context, captured *CapturedPayment) (*models.PaymentResult, error) {
	if captured == nil || captured.InvoiceID == uuid.Nil {
		return nil, common.NewValidationError("notes.invoice_id", "payment does not reference an invoice")
	}
	tenantID, err := s.invoiceRepo.GetTenantIDByInvoiceID(ctx, captured.InvoiceID)
	if err != nil {
		return nil, common.SecureErrorMessage("load invoice", err)
	}
	tenant, err := s.tenantSvc.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	scope, err := models.ScopeFor(tenant)
	if err != nil {
		return nil, common.ErrAccessDenied
	}

	inv, err := s.Get(ctx, scope, captured.InvoiceID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(inv.Currency, captured.Currency) {
		return nil, common.NewValidationError("currency", "payment currency does not match the invoice")
	}

	payment := &models.Payment{
		ID:         uuid.New(),
		InvoiceID:  captured.InvoiceID,
		Amount:     captured.Amount,
		Source:     models.PaymentSourceRazorpay,
		Reference:  captured.PaymentID,
		Method:     captured.Method,
		ReceivedAt: captured.CapturedAt,
	}
	if payment.ReceivedAt.IsZero() {
		payment.ReceivedAt = s.now().UTC()
	}
	return s.applyPayment(ctx, scope, payment)
}

func (s *invoiceService) applyPayment(ctx context.Context, scope models.TenantScope, payment *models.Payment) (*models.PaymentResult, error) {
	if !payment.Amount.IsPositive() {
		return nil, common.NewValidationError("amount", "amount must be greater than 0")
	}

	result, err := s.invoiceRepo.ApplyPayment(ctx, scope, payment)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvoicePaid):
			return nil, common.NewValidationError("status", "invoice is already paid")
		case errors.Is(err, models.ErrInvalidTransition):
			return nil, common.NewValidationError("amount", "amount must be greater than 0")
		}
		return nil, common.SecureErrorMessage("record payment", err)
	}
	if result.Duplicate {
		logger.FromContext(ctx).Info("payment reference already recorded",
			zap.String("invoice_id", payment.InvoiceID.String()),
			zap.String("reference", payment.Reference),
		)
		return result, nil
	}

	if result.Invoice.Status != result.Previous {
		metrics.InvoiceTransitions.WithLabelValues(string(result.Invoice.Status)).Inc()
	}
	s.record(ctx, scope, models.ActionPaymentRecorded, payment.InvoiceID, models.JSONB{
		"payment_id":      payment.ID.String(),
		"amount":          payment.Amount.StringFixed(2),
		"reference":       payment.Reference,
		"source":          string(payment.Source),
		"previous_status": string(result.Previous),
		"status":          string(result.Invoice.Status),
	})
	return result, nil
}

func (s *invoiceService) ListPayments(ctx context.Context, scope models.TenantScope, id uuid.UUID) ([]*models.Payment, error) {
	if _, err := s.Get(ctx, scope, id); err != nil {
		return nil, err
	}
	payments, err := s.invoiceRepo.ListPayments(ctx, scope, id)
	if err != nil {
		return nil, common.SecureErrorMessage("list payments", err)
	}
	return payments, nil
}

func (s *invoiceService) Delete(ctx context.Context, scope models.TenantScope, id uuid.UUID) error {
	inv, err := s.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if inv.Status != models.InvoiceStatusDraft {
		return common.NewValidationError("status", "only draft invoices can be deleted")
	}
	if err := s.invoiceRepo.DeleteDraft(ctx, scope, id); err != nil {
		return common.SecureErrorMessage("delete invoice", err)
	}
	s.record(ctx, scope, models.ActionInvoiceDeleted, id, models.JSONB{"invoice_number": inv.InvoiceNumber})
	return nil
}

func (s *invoiceService) record(ctx context.Context, scope models.TenantScope, action models.AuditAction, invoiceID uuid.UUID, metadata models.JSONB) {
	tenantID := scope.TenantID()
	s.audit.Record(ctx, &models.AuditLog{
		TenantID:   &tenantID,
		UserID:     common.ActorFromContext(ctx),
		Action:     action,
		EntityType: models.EntityInvoice,
		EntityID:   invoiceID.String(),
		Metadata:   metadata,
	})
}
