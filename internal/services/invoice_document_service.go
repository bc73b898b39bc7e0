package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"invoicehub/internal/common"
	"invoicehub/internal/models"
	"invoicehub/internal/repositories"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
)

const DocumentURLExpiry = 15 * time.Minute

// InvoiceDocumentService renders invoices to PDF and publishes them to object storage.
type InvoiceDocumentService interface {
	// Export renders the invoice, stores it and returns a short-lived download URL.
	Export(ctx context.Context, scope models.TenantScope, id uuid.UUID) (string, error)
}

type invoiceDocumentService struct {
	invoiceRepo  repositories.InvoiceRepository
	customerRepo repositories.CustomerRepository
	tenantSvc    TenantService
	storage      DocumentStorage
}

func NewInvoiceDocumentService(
	invoiceRepo repositories.InvoiceRepository,
	customerRepo repositories.CustomerRepository,
	tenantSvc TenantService,
	storage DocumentStorage,
) InvoiceDocumentService {
	return &invoiceDocumentService{
		invoiceRepo:  invoiceRepo,
		customerRepo: customerRepo,
		tenantSvc:    tenantSvc,
		storage:      storage,
	}
}

func (s *invoiceDocumentService) Export(ctx context.Context, scope models.TenantScope, id uuid.UUID) (string, error) {
	inv, err := s.invoiceRepo.GetByID(ctx, scope, id)
	if err != nil {
		return "", common.SecureErrorMessage("load invoice", err)
	}
	customer, err := s.customerRepo.GetByID(ctx, scope, inv.CustomerID)
	if err != nil {
		return "", common.SecureErrorMessage("load customer", err)
	}
	tenant, err := s.tenantSvc.GetByID(ctx, scope.TenantID())
	if err != nil {
		return "", err
	}

	doc, err := RenderInvoicePDF(inv, customer, tenant.CompanyName)
	if err != nil {
		return "", common.SecureErrorMessage("render invoice", err)
	}

	object := fmt.Sprintf("%s/%s.pdf", scope.TenantID(), inv.InvoiceNumber)
	if err := s.storage.Upload(ctx, object, "application/pdf", bytes.NewReader(doc), int64(len(doc))); err != nil {
		return "", common.SecureErrorMessage("store invoice document", err)
	}
	url, err := s.storage.PresignedURL(ctx, object, DocumentURLExpiry)
	if err != nil {
		return "", common.SecureErrorMessage("sign invoice document url", err)
	}
	return url, nil
}

// RenderInvoicePDF lays out an invoice on a single A4 page (more when the item
// list overflows).
func RenderInvoicePDF(inv *models.Invoice, customer *models.Customer, companyName string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	margin := 20.0
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(33, 37, 41)
	pdf.Cell(0, 10, tr(companyName))
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Invoice "+inv.InvoiceNumber)
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, "Issue date: "+inv.IssueDate.Format("02-Jan-2006"))
	pdf.Ln(6)
	if inv.DueDate != nil {
		pdf.Cell(0, 6, "Due date: "+inv.DueDate.Format("02-Jan-2006"))
		pdf.Ln(6)
	}
	pdf.Cell(0, 6, "Status: "+string(inv.PaymentStamp()))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 8, "BILL TO:")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, tr(customer.Name))
	pdf.Ln(6)
	if customer.Email != nil {
		pdf.Cell(0, 6, *customer.Email)
		pdf.Ln(6)
	}
	if customer.Address != nil {
		pdf.MultiCell(0, 6, tr(*customer.Address), "", "L", false)
	}
	pdf.Ln(6)

	headers := []string{"Description", "Qty", "Unit price", "Amount"}
	widths := []float64{85, 20, 30, 35}
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(240, 240, 240)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	for _, item := range inv.Items {
		pdf.CellFormat(widths[0], 8, tr(item.Description), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 8, item.Quantity.String(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], 8, item.UnitPrice.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 8, item.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(8)
	}

	label := widths[0] + widths[1] + widths[2]
	totals := []struct {
		name  string
		value string
	}{
		{"Subtotal", inv.Subtotal.StringFixed(2)},
		{fmt.Sprintf("Tax (%s%%)", inv.TaxRate.String()), inv.TaxAmount.StringFixed(2)},
		{"Total " + inv.Currency, inv.Total.StringFixed(2)},
		{"Paid", inv.AmountPaid.StringFixed(2)},
		{"Balance due", inv.BalanceDue().StringFixed(2)},
	}
	for _, t := range totals {
		pdf.CellFormat(label, 8, t.name, "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 8, t.value, "1", 0, "R", false, 0, "")
		pdf.Ln(8)
	}

	if inv.Notes != nil {
		pdf.Ln(6)
		pdf.MultiCell(0, 6, tr(*inv.Notes), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
