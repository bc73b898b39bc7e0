package services

import (
	"context"
	"fmt"
	"time"

	"invoicehub/internal/common"
	"invoicehub/internal/models"
	"invoicehub/pkg/logger"

	"go.uber.org/zap"
)

const maxNumberAttempts = 5

// SequenceStore is the counter storage behind invoice numbering.
type SequenceStore interface {
	NextSequence(ctx context.Context, scope models.TenantScope, year int) (int64, error)
	NumberExists(ctx context.Context, scope models.TenantScope, invoiceNumber string) (bool, error)
}

// NumberingService hands out invoice numbers of the form INV-{year}-{seq}.
type NumberingService interface {
	NextInvoiceNumber(ctx context.Context, scope models.TenantScope) (string, error)
}

type numberingService struct {
	store SequenceStore
	now   func() time.Time
}

func NewNumberingService(store SequenceStore) NumberingService {
	return &numberingService{store: store, now: time.Now}
}

// FormatInvoiceNumber pads the sequence to four digits; wider sequences are
// printed as is.
func FormatInvoiceNumber(year int, seq int64) string {
	return fmt.Sprintf("INV-%d-%04d", year, seq)
}

func (s *numberingService) NextInvoiceNumber(ctx context.Context, scope models.TenantScope) (string, error) {
	if scope.IsZero() {
		return "", common.ErrAccessDenied
	}
	year := s.now().UTC().Year()

	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		seq, err := s.store.NextSequence(ctx, scope, year)
		if err != nil {
			return "", common.SecureErrorMessage("allocate invoice number", err)
		}
		number := FormatInvoiceNumber(year, seq)

		taken, err := s.store.NumberExists(ctx, scope, number)
		if err != nil {
			return "", common.SecureErrorMessage("allocate invoice number", err)
		}
		if !taken {
			return number, nil
		}
		logger.FromContext(ctx).Warn("invoice number already taken, advancing sequence",
			zap.String("tenant_id", scope.TenantID().String()),
			zap.String("invoice_number", number),
			zap.Int("attempt", attempt),
		)
	}
	return "", common.SecureErrorMessage("allocate invoice number",
		fmt.Errorf("no free invoice number after %d attempts", maxNumberAttempts))
}
