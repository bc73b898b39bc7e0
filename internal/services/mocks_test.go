package services

import (
	"context"
	"io"
	"sync"
	"time"

	"invoicehub/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) ListByTenant(ctx context.Context, scope models.TenantScope, limit, offset int) ([]*models.User, error) {
	args := m.Called(ctx, scope, limit, offset)
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockUserRepository) SetResetToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *MockUserRepository) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, newPasswordHash string) (*models.User, error) {
	args := m.Called(ctx, tokenHash, now, newPasswordHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) CreateWithOwner(ctx context.Context, tenant *models.Tenant, ownerID uuid.UUID) error {
	args := m.Called(ctx, tenant, ownerID)
	return args.Error(0)
}

func (m *MockTenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) List(ctx context.Context, status *models.TenantStatus, limit, offset int) ([]*models.Tenant, error) {
	args := m.Called(ctx, status, limit, offset)
	return args.Get(0).([]*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.TenantStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) Create(ctx context.Context, scope models.TenantScope, customer *models.Customer) error {
	args := m.Called(ctx, scope, customer)
	return args.Error(0)
}

func (m *MockCustomerRepository) GetByID(ctx context.Context, scope models.TenantScope, id uuid.UUID) (*models.Customer, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Customer), args.Error(1)
}

func (m *MockCustomerRepository) List(ctx context.Context, scope models.TenantScope, limit, offset int) ([]*models.Customer, error) {
	args := m.Called(ctx, scope, limit, offset)
	return args.Get(0).([]*models.Customer), args.Error(1)
}

type MockTaxRepository struct {
	mock.Mock
}

func (m *MockTaxRepository) List(ctx context.Context, scope models.TenantScope) ([]*models.Tax, error) {
	args := m.Called(ctx, scope)
	return args.Get(0).([]*models.Tax), args.Error(1)
}

func (m *MockTaxRepository) GetByID(ctx context.Context, scope models.TenantScope, id uuid.UUID) (*models.Tax, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tax), args.Error(1)
}

func (m *MockTaxRepository) GetDefault(ctx context.Context, scope models.TenantScope) (*models.Tax, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tax), args.Error(1)
}

func (m *MockTaxRepository) Create(ctx context.Context, scope models.TenantScope, tax *models.Tax) error {
	args := m.Called(ctx, scope, tax)
	return args.Error(0)
}

func (m *MockTaxRepository) Update(ctx context.Context, scope models.TenantScope, tax *models.Tax) error {
	args := m.Called(ctx, scope, tax)
	return args.Error(0)
}

func (m *MockTaxRepository) Delete(ctx context.Context, scope models.TenantScope, id uuid.UUID) error {
	args := m.Called(ctx, scope, id)
	return args.Error(0)
}

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) NextSequence(ctx context.Context, scope models.TenantScope, year int) (int64, error) {
	args := m.Called(ctx, scope, year)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockInvoiceRepository) NumberExists(ctx context.Context, scope models.TenantScope, invoiceNumber string) (bool, error) {
	args := m.Called(ctx, scope, invoiceNumber)
	return args.Bool(0), args.Error(1)
}

func (m *MockInvoiceRepository) Create(ctx context.Context, scope models.TenantScope, invoice *models.Invoice) error {
	args := m.Called(ctx, scope, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) GetByID(ctx context.Context, scope models.TenantScope, id uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) List(ctx context.Context, scope models.TenantScope, filters models.InvoiceFilters) ([]*models.Invoice, error) {
	args := m.Called(ctx, scope, filters)
	return args.Get(0).([]*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) GetTenantIDByInvoiceID(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockInvoiceRepository) MarkSent(ctx context.Context, scope models.TenantScope, id uuid.UUID, at time.Time) (models.InvoiceStatus, error) {
	args := m.Called(ctx, scope, id, at)
	return args.Get(0).(models.InvoiceStatus), args.Error(1)
}

func (m *MockInvoiceRepository) MarkViewed(ctx context.Context, scope models.TenantScope, id uuid.UUID, at time.Time) (bool, error) {
	args := m.Called(ctx, scope, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockInvoiceRepository) ApplyPayment(ctx context.Context, scope models.TenantScope, payment *models.Payment) (*models.PaymentResult, error) {
	args := m.Called(ctx, scope, payment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentResult), args.Error(1)
}

func (m *MockInvoiceRepository) ListPayments(ctx context.Context, scope models.TenantScope, invoiceID uuid.UUID) ([]*models.Payment, error) {
	args := m.Called(ctx, scope, invoiceID)
	return args.Get(0).([]*models.Payment), args.Error(1)
}

func (m *MockInvoiceRepository) DeleteDraft(ctx context.Context, scope models.TenantScope, id uuid.UUID) error {
	args := m.Called(ctx, scope, id)
	return args.Error(0)
}

type MockAuditLogsRepository struct {
	mock.Mock
}

func (m *MockAuditLogsRepository) Create(ctx context.Context, auditLog *models.AuditLog) error {
	args := m.Called(ctx, auditLog)
	return args.Error(0)
}

func (m *MockAuditLogsRepository) List(ctx context.Context, filters *models.AuditLogFilters) ([]*models.AuditLog, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AuditLog), args.Error(1)
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetTenant(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockCacheService) SetTenant(ctx context.Context, tenant *models.Tenant, ttl time.Duration) error {
	args := m.Called(ctx, tenant, ttl)
	return args.Error(0)
}

func (m *MockCacheService) DeleteTenant(ctx context.Context, tenantID uuid.UUID) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

func (m *MockCacheService) RevokeSession(ctx context.Context, tokenID string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, ttl)
	return args.Error(0)
}

func (m *MockCacheService) IsSessionRevoked(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheService) SetSessionsValidAfter(ctx context.Context, userID uuid.UUID, t time.Time, ttl time.Duration) error {
	args := m.Called(ctx, userID, t, ttl)
	return args.Error(0)
}

func (m *MockCacheService) GetSessionsValidAfter(ctx context.Context, userID uuid.UUID) (time.Time, bool, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(time.Time), args.Bool(1), args.Error(2)
}

func (m *MockCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockTenantService struct {
	mock.Mock
}

func (m *MockTenantService) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantService) List(ctx context.Context, status *models.TenantStatus, limit, offset int) ([]*models.Tenant, error) {
	args := m.Called(ctx, status, limit, offset)
	return args.Get(0).([]*models.Tenant), args.Error(1)
}

func (m *MockTenantService) ChangeStatus(ctx context.Context, id uuid.UUID, req *models.TenantStatusRequest) (*models.Tenant, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) SendInvoiceEmail(ctx context.Context, to string, msg InvoiceMessage) error {
	args := m.Called(ctx, to, msg)
	return args.Error(0)
}

func (m *MockNotificationService) SendInvoiceSMS(ctx context.Context, to string, msg InvoiceMessage) bool {
	args := m.Called(ctx, to, msg)
	return args.Bool(0)
}

func (m *MockNotificationService) SendPasswordResetEmail(ctx context.Context, to, name, link string, expiresAt time.Time) error {
	args := m.Called(ctx, to, name, link, expiresAt)
	return args.Error(0)
}

type MockNumberingService struct {
	mock.Mock
}

func (m *MockNumberingService) NextInvoiceNumber(ctx context.Context, scope models.TenantScope) (string, error) {
	args := m.Called(ctx, scope)
	return args.String(0), args.Error(1)
}

type MockDocumentStorage struct {
	mock.Mock
}

func (m *MockDocumentStorage) Upload(ctx context.Context, objectName, contentType string, reader io.Reader, size int64) error {
	args := m.Called(ctx, objectName, contentType, reader, size)
	return args.Error(0)
}

func (m *MockDocumentStorage) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, objectName, expiry)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentStorage) EnsureBucket(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// auditSpy keeps every recorded entry in memory.
type auditSpy struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (a *auditSpy) Record(_ context.Context, entry *models.AuditLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *auditSpy) actions() []models.AuditAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.AuditAction, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

func activeTenant() *models.Tenant {
	return &models.Tenant{ID: uuid.New(), CompanyName: "Acme Ltd", Status: models.TenantStatusActive}
}

func scopeOf(t *models.Tenant) models.TenantScope {
	scope, err := models.ScopeFor(t)
	if err != nil {
		panic(err)
	}
	return scope
}
