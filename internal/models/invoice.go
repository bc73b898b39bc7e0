package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"
	InvoiceStatusSent          InvoiceStatus = "SENT"
	InvoiceStatusViewed        InvoiceStatus = "VIEWED"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
)

// PaymentStamp is the display label derived from an invoice status.
type PaymentStamp string

const (
	PaymentStampUnpaid        PaymentStamp = "UNPAID"
	PaymentStampPartiallyPaid PaymentStamp = "PARTIALLY_PAID"
	PaymentStampPaid          PaymentStamp = "PAID"
)

var (
	ErrInvalidTransition = errors.New("invalid invoice status transition")
	ErrInvoicePaid       = errors.New("invoice is already paid")
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusViewed, InvoiceStatusPartiallyPaid, InvoiceStatusPaid:
		return true
	}
	return false
}

func (s InvoiceStatus) Terminal() bool {
	return s == InvoiceStatusPaid
}

// CanTransitionTo reports whether next is reachable from s in one step.
// Staying in the same status is not a transition.
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	if s.Terminal() || s == next {
		return false
	}
	switch next {
	case InvoiceStatusSent:
		return s == InvoiceStatusDraft
	case InvoiceStatusViewed:
		return s == InvoiceStatusSent
	case InvoiceStatusPartiallyPaid, InvoiceStatusPaid:
		return true
	}
	return false
}

// Stamp derives the payment stamp from the status.
func (s InvoiceStatus) Stamp() PaymentStamp {
	switch s {
	case InvoiceStatusPaid:
		return PaymentStampPaid
	case InvoiceStatusPartiallyPaid:
		return PaymentStampPartiallyPaid
	default:
		return PaymentStampUnpaid
	}
}

// StatusAfterPayment returns the status an invoice moves to once amountPaid
// has been received in total against invoiceTotal.
func StatusAfterPayment(current InvoiceStatus, amountPaid, invoiceTotal decimal.Decimal) (InvoiceStatus, error) {
	if current.Terminal() {
		return current, ErrInvoicePaid
	}
	if !amountPaid.IsPositive() {
		return current, ErrInvalidTransition
	}
	if amountPaid.GreaterThanOrEqual(invoiceTotal) {
		return InvoiceStatusPaid, nil
	}
	if current == InvoiceStatusPartiallyPaid {
		return current, nil
	}
	return InvoiceStatusPartiallyPaid, nil
}

type Invoice struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	TenantID      uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	CustomerID    uuid.UUID       `json:"customer_id" db:"customer_id"`
	InvoiceNumber string          `json:"invoice_number" db:"invoice_number"`
	Status        InvoiceStatus   `json:"status" db:"status"`
	Currency      string          `json:"currency" db:"currency"`
	IssueDate     time.Time       `json:"issue_date" db:"issue_date"`
	DueDate       *time.Time      `json:"due_date,omitempty" db:"due_date"`
	Notes         *string         `json:"notes,omitempty" db:"notes"`
	TaxID         *uuid.UUID      `json:"tax_id,omitempty" db:"tax_id"`
	TaxRate       decimal.Decimal `json:"tax_rate" db:"tax_rate"`
	Subtotal      decimal.Decimal `json:"subtotal" db:"subtotal"`
	TaxAmount     decimal.Decimal `json:"tax_amount" db:"tax_amount"`
	Total         decimal.Decimal `json:"total" db:"total"`
	AmountPaid    decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	ViewedAt      *time.Time      `json:"viewed_at,omitempty" db:"viewed_at"`
	SentAt        *time.Time      `json:"sent_at,omitempty" db:"sent_at"`
	PaidAt        *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	CreatedBy     *uuid.UUID      `json:"created_by,omitempty" db:"created_by"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
	Items         []InvoiceItem   `json:"items"`
}

func (i *Invoice) PaymentStamp() PaymentStamp {
	return i.Status.Stamp()
}

// BalanceDue is the outstanding amount, never negative.
func (i *Invoice) BalanceDue() decimal.Decimal {
	due := i.Total.Sub(i.AmountPaid)
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}

// Recalculate sets line amounts and invoice totals from the items and tax rate.
// Amounts are rounded to 2 decimal places.
func (i *Invoice) Recalculate() {
	subtotal := decimal.Zero
	for idx := range i.Items {
		item := &i.Items[idx]
		item.Position = idx + 1
		item.Amount = item.Quantity.Mul(item.UnitPrice).Round(2)
		subtotal = subtotal.Add(item.Amount)
	}
	i.Subtotal = subtotal
	i.TaxAmount = subtotal.Mul(i.TaxRate).Div(decimal.NewFromInt(100)).Round(2)
	i.Total = i.Subtotal.Add(i.TaxAmount)
}

type InvoiceItem struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	InvoiceID   uuid.UUID       `json:"invoice_id" db:"invoice_id"`
	Position    int             `json:"position" db:"position"`
	Description string          `json:"description" db:"description"`
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
}

// InvoiceView is the public, unauthenticated representation of an invoice.
type InvoiceView struct {
	Invoice       *Invoice     `json:"invoice"`
	PaymentStamp  PaymentStamp `json:"payment_stamp"`
	CompanyName   string       `json:"company_name"`
	CustomerName  string       `json:"customer_name"`
	CustomerEmail *string      `json:"customer_email,omitempty"`
}

type InvoiceFilters struct {
	Status *InvoiceStatus
	Limit  int
	Offset int
}

type CreateInvoiceRequest struct {
	CustomerID uuid.UUID                  `json:"customer_id" validate:"required"`
	Currency   string                     `json:"currency" validate:"omitempty,len=3,alpha"`
	IssueDate  *time.Time                 `json:"issue_date"`
	DueDate    *time.Time                 `json:"due_date"`
	Notes      *string                    `json:"notes" validate:"omitempty,max=2000"`
	TaxID      *uuid.UUID                 `json:"tax_id"`
	Items      []CreateInvoiceItemRequest `json:"items" validate:"required,min=1,max=200,dive"`
}

type CreateInvoiceItemRequest struct {
	Description string          `json:"description" validate:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type RecordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference" validate:"required,max=100"`
	Method    string          `json:"method" validate:"omitempty,max=50"`
}
