package services

import (
	"context"
	"errors"
	"testing"

	"invoicehub/internal/common"
	"invoicehub/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type TenantServiceTestSuite struct {
	suite.Suite
	mockRepo  *MockTenantRepository
	mockCache *MockCacheService
	audit     *auditSpy
	service   TenantService
	tenant    *models.Tenant
	ctx       context.Context
}

func (suite *TenantServiceTestSuite) SetupTest() {
	suite.mockRepo = &MockTenantRepository{}
	suite.mockCache = &MockCacheService{}
	suite.audit = &auditSpy{}
	suite.service = NewTenantService(suite.mockRepo, suite.mockCache, suite.audit)
	suite.tenant = activeTenant()
	suite.ctx = context.Background()
}

func (suite *TenantServiceTestSuite) TearDownTest() {
	suite.mockRepo.AssertExpectations(suite.T())
	suite.mockCache.AssertExpectations(suite.T())
}

func TestTenantServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TenantServiceTestSuite))
}

func (suite *TenantServiceTestSuite) TestGetByID_CacheHit() {
	suite.mockCache.On("GetTenant", suite.ctx, suite.tenant.ID).Return(suite.tenant, nil)

	tenant, err := suite.service.GetByID(suite.ctx, suite.tenant.ID)

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), suite.tenant, tenant)
	suite.mockRepo.AssertNotCalled(suite.T(), "GetByID", mock.Anything, mock.Anything)
}

func (suite *TenantServiceTestSuite) TestGetByID_CacheMissFillsCache() {
	suite.mockCache.On("GetTenant", suite.ctx, suite.tenant.ID).Return(nil, nil)
	suite.mockRepo.On("GetByID", suite.ctx, suite.tenant.ID).Return(suite.tenant, nil)
	suite.mockCache.On("SetTenant", suite.ctx, suite.tenant, tenantCacheTTL).Return(nil)

	tenant, err := suite.service.GetByID(suite.ctx, suite.tenant.ID)

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), suite.tenant.ID, tenant.ID)
}

func (suite *TenantServiceTestSuite) TestGetByID_CacheOutageFallsBackToDatabase() {
	suite.mockCache.On("GetTenant", suite.ctx, suite.tenant.ID).Return(nil, errors.New("redis: connection refused"))
	suite.mockRepo.On("GetByID", suite.ctx, suite.tenant.ID).Return(suite.tenant, nil)
	suite.mockCache.On("SetTenant", suite.ctx, suite.tenant, tenantCacheTTL).Return(errors.New("redis: connection refused"))

	tenant, err := suite.service.GetByID(suite.ctx, suite.tenant.ID)

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), suite.tenant, tenant)
}

func (suite *TenantServiceTestSuite) TestGetByID_NotFound() {
	id := uuid.New()
	suite.mockCache.On("GetTenant", suite.ctx, id).Return(nil, nil)
	suite.mockRepo.On("GetByID", suite.ctx, id).Return(nil, common.ErrNotFound)

	_, err := suite.service.GetByID(suite.ctx, id)
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *TenantServiceTestSuite) TestChangeStatus_SuspendInvalidatesCache() {
	suite.mockRepo.On("GetByID", suite.ctx, suite.tenant.ID).Return(suite.tenant, nil)
	suite.mockRepo.On("UpdateStatus", suite.ctx, suite.tenant.ID, models.TenantStatusSuspended).Return(nil)
	suite.mockCache.On("DeleteTenant", suite.ctx, suite.tenant.ID).Return(nil)

	tenant, err := suite.service.ChangeStatus(suite.ctx, suite.tenant.ID, &models.TenantStatusRequest{
		Status: models.TenantStatusSuspended,
		Reason: " unpaid subscription ",
	})

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.TenantStatusSuspended, tenant.Status)
	_, scopeErr := models.ScopeFor(tenant)
	assert.Error(suite.T(), scopeErr)

	require.Len(suite.T(), suite.audit.entries, 1)
	entry := suite.audit.entries[0]
	assert.Equal(suite.T(), models.ActionTenantStatusChanged, entry.Action)
	assert.Equal(suite.T(), "ACTIVE", entry.Metadata["from"])
	assert.Equal(suite.T(), "SUSPENDED", entry.Metadata["to"])
	assert.Equal(suite.T(), "unpaid subscription", entry.Metadata["reason"])
}

func (suite *TenantServiceTestSuite) TestChangeStatus_RejectsUnknownStatus() {
	_, err := suite.service.ChangeStatus(suite.ctx, suite.tenant.ID, &models.TenantStatusRequest{Status: "FROZEN"})

	var ve *common.ValidationError
	assert.ErrorAs(suite.T(), err, &ve)
	assert.Empty(suite.T(), suite.audit.entries)
}

func (suite *TenantServiceTestSuite) TestList_ClampsPagination() {
	status := models.TenantStatusActive
	suite.mockRepo.On("List", suite.ctx, &status, 200, 0).Return([]*models.Tenant{suite.tenant}, nil)

	tenants, err := suite.service.List(suite.ctx, &status, 5000, -1)

	require.NoError(suite.T(), err)
	assert.Len(suite.T(), tenants, 1)
}
