package services

import (
	"context"
	"errors"
	"testing"

	"invoicehub/internal/common"
	"invoicehub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCustomerService_CreateNormalizesContact(t *testing.T) {
	repo := &MockCustomerRepository{}
	audit := &auditSpy{}
	svc := NewCustomerService(repo, audit)
	scope := scopeOf(activeTenant())
	ctx := context.Background()

	email, blank := "  Billing@Globex.TEST ", "   "
	repo.On("Create", ctx, scope, mock.AnythingOfType("*models.Customer")).Return(nil)

	customer, err := svc.Create(ctx, scope, &models.CustomerRequest{Name: " Globex ", Email: &email, Phone: &blank})

	require.NoError(t, err)
	assert.Equal(t, "Globex", customer.Name)
	require.NotNil(t, customer.Email)
	assert.Equal(t, "billing@globex.test", *customer.Email)
	assert.Nil(t, customer.Phone)
	assert.Equal(t, scope.TenantID(), customer.TenantID)
	assert.Equal(t, []models.AuditAction{models.ActionCustomerCreated}, audit.actions())
	repo.AssertExpectations(t)
}

func TestCustomerService_CreateRequiresName(t *testing.T) {
	svc := NewCustomerService(&MockCustomerRepository{}, &auditSpy{})

	_, err := svc.Create(context.Background(), scopeOf(activeTenant()), &models.CustomerRequest{Name: " "})

	var ve *common.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name", ve.Field)
}

func TestCustomerService_StorageErrorIsHidden(t *testing.T) {
	repo := &MockCustomerRepository{}
	svc := NewCustomerService(repo, &auditSpy{})
	scope := scopeOf(activeTenant())
	repo.On("Create", mock.Anything, scope, mock.Anything).Return(errors.New("relation \"customers\" does not exist"))

	_, err := svc.Create(context.Background(), scope, &models.CustomerRequest{Name: "Initech"})

	assert.ErrorIs(t, err, common.ErrOperationFailed)
	assert.NotContains(t, err.Error(), "relation")
}
