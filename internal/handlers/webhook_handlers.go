package handlers

import (
	"errors"
	"io"
	"net/http"

	"invoicehub/internal/common"
	"invoicehub/internal/services"
	"invoicehub/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// maxWebhookBody bounds the payload read before the signature is checked.
const maxWebhookBody = 1 << 20

// WebhookHandlers handles HTTP requests for webhooks
type WebhookHandlers struct {
	gateway        services.PaymentGateway
	invoiceService services.InvoiceService
}

// NewWebhookHandlers creates a new webhook handlers instance
func NewWebhookHandlers(gateway services.PaymentGateway, invoiceService services.InvoiceService) *WebhookHandlers {
	return &WebhookHandlers{
		gateway:        gateway,
		invoiceService: invoiceService,
	}
}

// WebhookAck is returned for every authenticated delivery.
type WebhookAck struct {
	Status string `json:"status"`
	Event  string `json:"event"`
}

// RazorpayWebhook handles POST /v1/webhooks/razorpay
//
// Deliveries with a valid signature are always acknowledged with 200 so the
// gateway stops retrying; failures to apply them are logged instead.
func (h *WebhookHandlers) RazorpayWebhook(c echo.Context) error {
	ctx := c.Request().Context()
	log := logger.FromContext(ctx)

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return common.NewValidationError("body", "failed to read request body")
	}

	event, err := h.gateway.VerifyWebhook(body, c.Request().Header.Get("X-Razorpay-Signature"))
	if err != nil {
		if errors.Is(err, services.ErrInvalidSignature) {
			log.Warn("rejected razorpay webhook", zap.String("ip", c.RealIP()))
			return common.ErrUnauthorized
		}
		return err
	}

	if event.Event != services.EventPaymentCaptured {
		log.Debug("ignoring razorpay event", zap.String("event", event.Event))
		return c.JSON(http.StatusOK, WebhookAck{Status: "ignored", Event: event.Event})
	}

	captured, err := h.gateway.ParsePaymentCaptured(event)
	if err != nil {
		log.Warn("unusable payment.captured event", zap.Error(err))
		return c.JSON(http.StatusOK, WebhookAck{Status: "ignored", Event: event.Event})
	}

	result, err := h.invoiceService.ReconcileGatewayPayment(ctx, captured)
	if err != nil {
		log.Error("failed to reconcile gateway payment",
			zap.String("payment_id", captured.PaymentID),
			zap.String("invoice_id", captured.InvoiceID.String()),
			zap.Error(err))
		return c.JSON(http.StatusOK, WebhookAck{Status: "failed", Event: event.Event})
	}

	status := "applied"
	if result.Duplicate {
		status = "duplicate"
	}
	log.Info("razorpay payment reconciled",
		zap.String("payment_id", captured.PaymentID),
		zap.String("invoice_id", captured.InvoiceID.String()),
		zap.String("status", status))
	return c.JSON(http.StatusOK, WebhookAck{Status: status, Event: event.Event})
}
