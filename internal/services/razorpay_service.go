package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"invoicehub/internal/common"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const EventPaymentCaptured = "payment.captured"

var ErrInvalidSignature = errors.New("invalid webhook signature")

// PaymentGateway verifies and decodes Razorpay webhook deliveries.
type PaymentGateway interface {
	VerifyWebhook(rawBody []byte, signature string) (*WebhookEvent, error)
	ParsePaymentCaptured(event *WebhookEvent) (*CapturedPayment, error)
}

type WebhookEvent struct {
	Entity    string         `json:"entity"`
	AccountID string         `json:"account_id"`
	Event     string         `json:"event"`
	Contains  []string       `json:"contains"`
	Payload   WebhookPayload `json:"payload"`
	CreatedAt int64          `json:"created_at"`
}

type WebhookPayload struct {
	Payment *struct {
		Entity GatewayPayment `json:"entity"`
	} `json:"payment,omitempty"`
}

// GatewayPayment is the payment entity of a webhook. Amount is in the
// currency's minor unit.
type GatewayPayment struct {
	ID        string            `json:"id"`
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Status    string            `json:"status"`
	Method    string            `json:"method"`
	OrderID   string            `json:"order_id"`
	Notes     map[string]string `json:"notes"`
	CreatedAt int64             `json:"created_at"`
}

// CapturedPayment is a gateway payment ready to be applied to an invoice.
type CapturedPayment struct {
	PaymentID  string
	InvoiceID  uuid.UUID
	Amount     decimal.Decimal
	Currency   string
	Method     string
	CapturedAt time.Time
}

type razorpayGateway struct {
	webhookSecret []byte
}

func NewRazorpayGateway(webhookSecret string) PaymentGateway {
	return &razorpayGateway{webhookSecret: []byte(webhookSecret)}
}

// Signature returns the hex HMAC-SHA256 of body, as sent in X-Razorpay-Signature.
func Signature(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (g *razorpayGateway) VerifyWebhook(rawBody []byte, signature string) (*WebhookEvent, error) {
	if len(g.webhookSecret) == 0 || signature == "" {
		return nil, ErrInvalidSignature
	}
	expected := Signature(g.webhookSecret, rawBody)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature)))) {
		return nil, ErrInvalidSignature
	}

	var event WebhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, common.NewValidationError("body", "malformed webhook payload")
	}
	return &event, nil
}

func (g *razorpayGateway) ParsePaymentCaptured(event *WebhookEvent) (*CapturedPayment, error) {
	if event == nil || event.Event != EventPaymentCaptured || event.Payload.Payment == nil {
		return nil, common.NewValidationError("event", "not a payment.captured event")
	}
	p := event.Payload.Payment.Entity
	if p.ID == "" {
		return nil, common.NewValidationError("payment.id", "payment id is missing")
	}
	if p.Amount <= 0 {
		return nil, common.NewValidationError("payment.amount", "amount must be greater than 0")
	}
	invoiceID, err := uuid.Parse(strings.TrimSpace(p.Notes["invoice_id"]))
	if err != nil {
		return nil, common.NewValidationError("notes.invoice_id", fmt.Sprintf("payment %s does not reference an invoice", p.ID))
	}

	captured := &CapturedPayment{
		PaymentID: p.ID,
		InvoiceID: invoiceID,
		Amount:    decimal.New(p.Amount, -2),
		Currency:  strings.ToUpper(p.Currency),
		Method:    p.Method,
	}
	if p.CreatedAt > 0 {
		captured.CapturedAt = time.Unix(p.CreatedAt, 0).UTC()
	}
	return captured, nil
}
