package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentSource string

const (
	PaymentSourceManual   PaymentSource = "MANUAL"
	PaymentSourceRazorpay PaymentSource = "RAZORPAY"
)

// Payment is a single amount received against an invoice. Reference is unique
// per tenant so gateway retries are applied once.
type Payment struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	TenantID   uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	InvoiceID  uuid.UUID       `json:"invoice_id" db:"invoice_id"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Source     PaymentSource   `json:"source" db:"source"`
	Reference  string          `json:"reference" db:"reference"`
	Method     string          `json:"method" db:"method"`
	RecordedBy *uuid.UUID      `json:"recorded_by,omitempty" db:"recorded_by"`
	ReceivedAt time.Time       `json:"received_at" db:"received_at"`
}

// PaymentResult is the outcome of applying a payment.
type PaymentResult struct {
	Invoice   *Invoice      `json:"invoice"`
	Payment   *Payment      `json:"payment"`
	Previous  InvoiceStatus `json:"previous_status"`
	Duplicate bool          `json:"duplicate"`
}
