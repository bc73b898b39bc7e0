package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"invoicehub/internal/common"
	"invoicehub/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type InvoiceServiceTestSuite struct {
	suite.Suite
	invoices  *MockInvoiceRepository
	customers *MockCustomerRepository
	taxes     *MockTaxRepository
	tenants   *MockTenantService
	numbering *MockNumberingService
	notifier  *MockNotificationService
	audit     *auditSpy
	service   *invoiceService

	tenant   *models.Tenant
	scope    models.TenantScope
	customer *models.Customer
	now      time.Time
	ctx      context.Context
}

func (suite *InvoiceServiceTestSuite) SetupTest() {
	suite.invoices = &MockInvoiceRepository{}
	suite.customers = &MockCustomerRepository{}
	suite.taxes = &MockTaxRepository{}
	suite.tenants = &MockTenantService{}
	suite.numbering = &MockNumberingService{}
	suite.notifier = &MockNotificationService{}
	suite.audit = &auditSpy{}

	suite.tenant = activeTenant()
	suite.scope = scopeOf(suite.tenant)
	email, phone := "billing@globex.test", "+14155550100"
	suite.customer = &models.Customer{ID: uuid.New(), TenantID: suite.tenant.ID, Name: "Globex", Email: &email, Phone: &phone}
	suite.now = time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)
	suite.ctx = context.Background()

	svc := NewInvoiceService(suite.invoices, suite.customers, suite.taxes, suite.tenants, suite.numbering,
		suite.notifier, suite.audit, "https://pay.invoicehub.test/")
	suite.service = svc.(*invoiceService)
	suite.service.now = func() time.Time { return suite.now }
}

func (suite *InvoiceServiceTestSuite) TearDownTest() {
	suite.invoices.AssertExpectations(suite.T())
	suite.customers.AssertExpectations(suite.T())
	suite.taxes.AssertExpectations(suite.T())
	suite.notifier.AssertExpectations(suite.T())
}

func TestInvoiceServiceTestSuite(t *testing.T) {
	suite.Run(t, new(InvoiceServiceTestSuite))
}

func (suite *InvoiceServiceTestSuite) invoice(status models.InvoiceStatus) *models.Invoice {
	return &models.Invoice{
		ID:            uuid.New(),
		TenantID:      suite.tenant.ID,
		CustomerID:    suite.customer.ID,
		InvoiceNumber: "INV-2026-0007",
		Status:        status,
		Currency:      "USD",
		Total:         decimal.RequireFromString("100.00"),
		AmountPaid:    decimal.Zero,
	}
}

func (suite *InvoiceServiceTestSuite) TestCreate_UsesDefaultTaxAndNumber() {
	tax := &models.Tax{ID: uuid.New(), TenantID: suite.tenant.ID, Name: "VAT", Rate: decimal.NewFromInt(18), IsDefault: true}
	suite.customers.On("GetByID", suite.ctx, suite.scope, suite.customer.ID).Return(suite.customer, nil)
	suite.taxes.On("GetDefault", suite.ctx, suite.scope).Return(tax, nil)
	suite.numbering.On("NextInvoiceNumber", suite.ctx, suite.scope).Return("INV-2026-0001", nil)
	suite.invoices.On("Create", suite.ctx, suite.scope, mock.AnythingOfType("*models.Invoice")).Return(nil)

	inv, err := suite.service.Create(suite.ctx, suite.scope, &models.CreateInvoiceRequest{
		CustomerID: suite.customer.ID,
		Items: []models.CreateInvoiceItemRequest{
			{Description: "Consulting", Quantity: decimal.NewFromInt(3), UnitPrice: decimal.RequireFromString("150.00")},
			{Description: "Travel", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("51.49")},
		},
	})

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "INV-2026-0001", inv.InvoiceNumber)
	assert.Equal(suite.T(), models.InvoiceStatusDraft, inv.Status)
	assert.Equal(suite.T(), "USD", inv.Currency)
	assert.Equal(suite.T(), &tax.ID, inv.TaxID)
	assert.Equal(suite.T(), "501.49", inv.Subtotal.StringFixed(2))
	assert.Equal(suite.T(), "90.27", inv.TaxAmount.StringFixed(2))
	assert.Equal(suite.T(), "591.76", inv.Total.StringFixed(2))
	assert.Equal(suite.T(), []models.AuditAction{models.ActionInvoiceCreated}, suite.audit.actions())
}

func (suite *InvoiceServiceTestSuite) TestCreate_UnknownCustomer() {
	id := uuid.New()
	suite.customers.On("GetByID", suite.ctx, suite.scope, id).Return(nil, common.ErrNotFound)

	_, err := suite.service.Create(suite.ctx, suite.scope, &models.CreateInvoiceRequest{
		CustomerID: id,
		Items:      []models.CreateInvoiceItemRequest{{Description: "x", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1)}},
	})

	var ve *common.ValidationError
	require.ErrorAs(suite.T(), err, &ve)
	assert.Equal(suite.T(), "customer_id", ve.Field)
}

func (suite *InvoiceServiceTestSuite) TestCreate_RejectsNonPositiveQuantity() {
	_, err := suite.service.Create(suite.ctx, suite.scope, &models.CreateInvoiceRequest{
		CustomerID: suite.customer.ID,
		Items:      []models.CreateInvoiceItemRequest{{Description: "x", Quantity: decimal.Zero, UnitPrice: decimal.NewFromInt(1)}},
	})
	var ve *common.ValidationError
	assert.ErrorAs(suite.T(), err, &ve)
}

func (suite *InvoiceServiceTestSuite) TestGet_NotFound() {
	id := uuid.New()
	suite.invoices.On("GetByID", suite.ctx, suite.scope, id).Return(nil, common.ErrNotFound)

	_, err := suite.service.Get(suite.ctx, suite.scope, id)
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *InvoiceServiceTestSuite) TestGet_StorageFailureIsOperationFailed() {
	id := uuid.New()
	suite.invoices.On("GetByID", suite.ctx, suite.scope, id).Return(nil, errors.New("pq: too many connections"))

	_, err := suite.service.Get(suite.ctx, suite.scope, id)
	assert.ErrorIs(suite.T(), err, common.ErrOperationFailed)
}

func (suite *InvoiceServiceTestSuite) TestSend_DraftBecomesSent() {
	inv := suite.invoice(models.InvoiceStatusDraft)
	suite.invoices.On("GetByID", suite.ctx, suite.scope, inv.ID).Return(inv, nil)
	suite.customers.On("GetByID", suite.ctx, suite.scope, suite.customer.ID).Return(suite.customer, nil)
	suite.tenants.On("GetByID", suite.ctx, suite.tenant.ID).Return(suite.tenant, nil)
	suite.notifier.On("SendInvoiceEmail", suite.ctx, "billing@globex.test", mock.MatchedBy(func(m InvoiceMessage) bool {
		return m.Link == "https://pay.invoicehub.test/v1/public/invoices/"+inv.ID.String() &&
			m.CompanyName == "Acme Ltd" && m.Amount == "USD 100.00"
	})).Return(nil)
	suite.notifier.On("SendInvoiceSMS", suite.ctx, "+14155550100", mock.AnythingOfType("services.InvoiceMessage")).Return(true)
	suite.invoices.On("MarkSent", suite.ctx, suite.scope, inv.ID, suite.now).Return(models.InvoiceStatusSent, nil)

	sent, err := suite.service.Send(suite.ctx, suite.scope, inv.ID)

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.InvoiceStatusSent, sent.Status)
	assert.Equal(suite.T(), &suite.now, sent.SentAt)
	require.Len(suite.T(), suite.audit.entries, 1)
	assert.Equal(suite.T(), models.ActionInvoiceSent, suite.audit.entries[0].Action)
	assert.Equal(suite.T(), []string{"email", "sms"}, suite.audit.entries[0].Metadata["channels"])
}

func (suite *InvoiceServiceTestSuite) TestSend_SMSFailureDoesNotFailSend() {
	inv := suite.invoice(models.InvoiceStatusViewed)
	suite.invoices.On("GetByID", suite.ctx, suite.scope, inv.ID).Return(inv, nil)
	suite.customers.On("GetByID", suite.ctx, suite.scope, suite.customer.ID).Return(suite.customer, nil)
	suite.tenants.On("GetByID", suite.ctx, suite.tenant.ID).Return(suite.tenant, nil)
	suite.notifier.On("SendInvoiceEmail", suite.ctx, mock.Anything, mock.Anything).Return(nil)
	suite.notifier.On("SendInvoiceSMS", suite.ctx, mock.Anything, mock.Anything).Return(false)
	suite.invoices.On("MarkSent", suite.ctx, suite.scope, inv.ID, suite.now).Return(models.InvoiceStatusViewed, nil)

	sent, err := suite.service.Send(suite.ctx, suite.scope, inv.ID)

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.InvoiceStatusViewed, sent.Status, "re-sending keeps the status")
	assert.Equal(suite.T(), false, suite.audit.entries[0].Metadata["sms_delivered"])
}

func (suite *InvoiceServiceTestSuite) TestSend_PaidInvoiceIsRejected() {
	inv := suite.invoice(models.InvoiceStatusPaid)
	suite.invoices.On("GetByID", suite.ctx, suite.scope, inv.ID).Return(inv, nil)

	_, err := suite.service.Send(suite.ctx, suite.scope, inv.ID)

	var ve *common.ValidationError
	assert.ErrorAs(suite.T(), err, &ve)
	assert.Empty(suite.T(), suite.audit.entries)
}

func (suite *InvoiceServiceTestSuite) TestSend_EmailFailureLeavesDraft() {
	inv := suite.invoice(models.InvoiceStatusDraft)
	suite.invoices.On("GetByID", suite.ctx, suite.scope, inv.ID).Return(inv, nil)
	suite.customers.On("GetByID", suite.ctx, suite.scope, suite.customer.ID).Return(suite.customer, nil)
	suite.tenants.On("GetByID", suite.ctx, suite.tenant.ID).Return(suite.tenant, nil)
	suite.notifier.On("SendInvoiceEmail", suite.ctx, mock.Anything, mock.Anything).Return(errors.New("relay refused"))

	_, err := suite.service.Send(suite.ctx, suite.scope, inv.ID)

	assert.ErrorIs(suite.T(), err, common.ErrOperationFailed)
	suite.invoices.AssertNotCalled(suite.T(), "MarkSent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *InvoiceServiceTestSuite) TestViewPublic_FirstViewMovesSentToViewed() {
	inv := suite.invoice(models.InvoiceStatusSent)
	suite.invoices.On("GetTenantIDByInvoiceID", suite.ctx, inv.ID).Return(suite.tenant.ID, nil)
	suite.tenants.On("GetByID", suite.ctx, suite.tenant.ID).Return(suite.tenant, nil)
	suite.invoices.On("GetByID", suite.ctx, suite.scope, inv.ID).Return(inv, nil)
	suite.invoices.On("MarkViewed", suite.ctx, suite.scope, inv.ID, suite.now).Return(true, nil)
	suite.customers.On("GetByID", suite.ctx, suite.scope, suite.customer.ID).Return(suite.customer, nil)

	view, err := suite.service.ViewPublic(suite.ctx, inv.ID)

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.InvoiceStatusViewed, view.Invoice.Status)
	assert.Equal(suite.T(), &suite.now, view.Invoice.ViewedAt)
	assert.Equal(suite.T(), models.PaymentStampUnpaid, view.PaymentStamp)
	assert.Equal(suite.T(), "Acme Ltd", view.CompanyName)
	assert.Equal(suite.T(), "Globex", view.CustomerName)
	require.Len(suite.T(), suite.audit.entries, 1)
	assert.Equal(suite.T(), models.ActionInvoiceViewed, suite.audit.entries[0].Action)
	assert.Nil(suite.T(), suite.audit.entries[0].UserID)
}

func (suite *InvoiceServiceTestSuite) TestViewPublic_LaterViewsChangeNothing() {
	earlier := suite.now.Add(-time.Hour)
	inv := suite.invoice(models.InvoiceStatusPartiallyPaid)
	inv.ViewedAt = &earlier
	suite.invoices.On("GetTenantIDByInvoiceID", suite.ctx, inv.ID).Return(suite.tenant.ID, nil)
	suite.tenants.On("GetByID", suite.ctx, suite.tenant.ID).Return(suite.tenant, nil)
	suite.invoices.On("GetByID", suite.ctx, suite.scope, inv.ID).Return(inv, nil)
	suite.invoices.On("MarkViewed", suite.ctx, suite.scope, inv.ID, suite.now).Return(false, nil)
	suite.customers.On("GetByID", suite.ctx, suite.scope, suite.customer.ID).Return(suite.customer, nil)

	view, err := suite.service.ViewPublic(suite.ctx, inv.ID)

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.InvoiceStatusPartiallyPaid, view.Invoice.Status)
	assert.Equal(suite.T(), &earlier, view.Invoice.ViewedAt)
	assert.Equal(suite.T(), models.PaymentStampPartiallyPaid, view.PaymentStamp)
	assert.Empty(suite.T(), suite.audit.entries)
}

func (suite *InvoiceServiceTestSuite) TestViewPublic_DraftIsNotVisible() {
	inv := suite.invoice(models.InvoiceStatusDraft)
	suite.invoices.On("GetTenantIDByInvoiceID", suite.ctx, inv.ID).Return(suite.tenant.ID, nil)
	suite.tenants.On("GetByID", suite.ctx, suite.tenant.ID).Return(suite.tenant, nil)
	suite.invoices.On("GetByID", suite.ctx, suite.scope, inv.ID).Return(inv, nil)

	_, err := suite.service.ViewPublic(suite.ctx, inv.ID)

	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *InvoiceServiceTestSuite) TestViewPublic_SuspendedTenantIsNotVisible() {
	suspended := &models.Tenant{ID: uuid.New(), CompanyName: "Gone", Status: models.TenantStatusSuspended}
	id := uuid.New()
	suite.invoices.On("GetTenantIDByInvoiceID", suite.ctx, id).Return(suspended.ID, nil)
	suite.tenants.On("GetByID", suite.ctx, suspended.ID).Return(suspended, nil)

	_, err := suite.service.ViewPublic(suite.ctx, id)

	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *InvoiceServiceTestSuite) TestRecordPayment_Partial() {
	inv := suite.invoice(models.InvoiceStatusViewed)
	after := *inv
	after.Status = models.InvoiceStatusPartiallyPaid
	after.AmountPaid = decimal.NewFromInt(40)
	suite.invoices.On("ApplyPayment", suite.ctx, suite.scope, mock.MatchedBy(func(p *models.Payment) bool {
		return p.InvoiceID == inv.ID && p.Reference == "CHQ-1001" && p.Source == models.PaymentSourceManual &&
			p.Amount.Equal(decimal.NewFromInt(40)) && p.ReceivedAt.Equal(suite.now)
	})).Return(&models.PaymentResult{Invoice: &after, Previous: models.InvoiceStatusViewed}, nil)

	result, err := suite.service.RecordPayment(suite.ctx, suite.scope, inv.ID, &models.RecordPaymentRequest{
		Amount:    decimal.NewFromInt(40),
		Reference: " CHQ-1001 ",
	})

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.InvoiceStatusPartiallyPaid, result.Invoice.Status)
	require.Len(suite.T(), suite.audit.entries, 1)
	assert.Equal(suite.T(), "VIEWED", suite.audit.entries[0].Metadata["previous_status"])
	assert.Equal(suite.T(), "PARTIALLY_PAID", suite.audit.entries[0].Metadata["status"])
}

func (suite *InvoiceServiceTestSuite) TestRecordPayment_DuplicateReferenceIsNotAudited() {
	inv := suite.invoice(models.InvoiceStatusPartiallyPaid)
	suite.invoices.On("ApplyPayment", suite.ctx, suite.scope, mock.Anything).
		Return(&models.PaymentResult{Invoice: inv, Previous: inv.Status, Duplicate: true}, nil)

	result, err := suite.service.RecordPayment(suite.ctx, suite.scope, inv.ID, &models.RecordPaymentRequest{
		Amount: decimal.NewFromInt(10), Reference: "CHQ-1001",
	})

	require.NoError(suite.T(), err)
	assert.True(suite.T(), result.Duplicate)
	assert.Empty(suite.T(), suite.audit.entries)
}

func (suite *InvoiceServiceTestSuite) TestRecordPayment_PaidInvoiceIsRejected() {
	id := uuid.New()
	suite.invoices.On("ApplyPayment", suite.ctx, suite.scope, mock.Anything).Return(nil, models.ErrInvoicePaid)

	_, err := suite.service.RecordPayment(suite.ctx, suite.scope, id, &models.RecordPaymentRequest{
		Amount: decimal.NewFromInt(10), Reference: "late",
	})

	var ve *common.ValidationError
	require.ErrorAs(suite.T(), err, &ve)
	assert.Equal(suite.T(), "status", ve.Field)
}

func (suite *InvoiceServiceTestSuite) TestRecordPayment_NonPositiveAmount() {
	_, err := suite.service.RecordPayment(suite.ctx, suite.scope, uuid.New(), &models.RecordPaymentRequest{
		Amount: decimal.NewFromInt(-5), Reference: "refund",
	})
	var ve *common.ValidationError
	require.ErrorAs(suite.T(), err, &ve)
	assert.Equal(suite.T(), "amount", ve.Field)
}

func (suite *InvoiceServiceTestSuite) TestReconcileGatewayPayment_CurrencyMismatch() {
	inv := suite.invoice(models.InvoiceStatusSent)
	suite.invoices.On("GetTenantIDByInvoiceID", suite.ctx, inv.ID).Return(suite.tenant.ID, nil)
	suite.tenants.On("GetByID", suite.ctx, suite.tenant.ID).Return(suite.tenant, nil)
	suite.invoices.On("GetByID", suite.ctx, suite.scope, inv.ID).Return(inv, nil)

	_, err := suite.service.ReconcileGatewayPayment(suite.ctx, &CapturedPayment{
		PaymentID: "pay_29QQoUBi66xm2f", InvoiceID: inv.ID, Amount: decimal.NewFromInt(100), Currency: "INR",
	})

	var ve *common.ValidationError
	require.ErrorAs(suite.T(), err, &ve)
	assert.Equal(suite.T(), "currency", ve.Field)
}

func (suite *InvoiceServiceTestSuite) TestReconcileGatewayPayment_AppliesAsRazorpayPayment() {
	inv := suite.invoice(models.InvoiceStatusSent)
	paid := *inv
	paid.Status = models.InvoiceStatusPaid
	captured := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	suite.invoices.On("GetTenantIDByInvoiceID", suite.ctx, inv.ID).Return(suite.tenant.ID, nil)
	suite.tenants.On("GetByID", suite.ctx, suite.tenant.ID).Return(suite.tenant, nil)
	suite.invoices.On("GetByID", suite.ctx, suite.scope, inv.ID).Return(inv, nil)
	suite.invoices.On("ApplyPayment", suite.ctx, suite.scope, mock.MatchedBy(func(p *models.Payment) bool {
		return p.Source == models.PaymentSourceRazorpay && p.Reference == "pay_29QQoUBi66xm2f" &&
			p.RecordedBy == nil && p.ReceivedAt.Equal(captured)
	})).Return(&models.PaymentResult{Invoice: &paid, Previous: models.InvoiceStatusSent}, nil)

	result, err := suite.service.ReconcileGatewayPayment(suite.ctx, &CapturedPayment{
		PaymentID: "pay_29QQoUBi66xm2f", InvoiceID: inv.ID, Amount: decimal.NewFromInt(100),
		Currency: "usd", CapturedAt: captured,
	})

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.InvoiceStatusPaid, result.Invoice.Status)
	assert.Equal(suite.T(), []models.AuditAction{models.ActionPaymentRecorded}, suite.audit.actions())
}

func (suite *InvoiceServiceTestSuite) TestDelete_OnlyDrafts() {
	inv := suite.invoice(models.InvoiceStatusSent)
	suite.invoices.On("GetByID", suite.ctx, suite.scope, inv.ID).Return(inv, nil)

	err := suite.service.Delete(suite.ctx, suite.scope, inv.ID)

	var ve *common.ValidationError
	assert.ErrorAs(suite.T(), err, &ve)
}

func (suite *InvoiceServiceTestSuite) TestList_RejectsUnknownStatus() {
	status := models.InvoiceStatus("ARCHIVED")
	_, err := suite.service.List(suite.ctx, suite.scope, models.InvoiceFilters{Status: &status})
	var ve *common.ValidationError
	assert.ErrorAs(suite.T(), err, &ve)
}

func (suite *InvoiceServiceTestSuite) TestTenantIsolation_OtherTenantsInvoiceIsNotFound() {
	other := scopeOf(activeTenant())
	id := uuid.New()
	suite.invoices.On("GetByID", suite.ctx, other, id).Return(nil, common.ErrNotFound)

	_, err := suite.service.Get(suite.ctx, other, id)
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}
