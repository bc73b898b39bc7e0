package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"invoicehub/internal/common"
	"invoicehub/internal/config"
	"invoicehub/internal/models"
	"invoicehub/internal/repositories"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test-secret-with-at-least-32-bytes!!"

type AuthServiceTestSuite struct {
	suite.Suite
	users   *MockUserRepository
	tenants *MockTenantRepository
	tenant  *MockTenantService
	cache   *MockCacheService
	audit   *auditSpy
	service *authService

	acme *models.Tenant
	user *models.User
	now  time.Time
	ctx  context.Context
}

func (suite *AuthServiceTestSuite) SetupTest() {
	suite.users = &MockUserRepository{}
	suite.tenants = &MockTenantRepository{}
	suite.tenant = &MockTenantService{}
	suite.cache = &MockCacheService{}
	suite.audit = &auditSpy{}
	suite.now = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	suite.ctx = context.Background()

	svc := NewAuthService(suite.users, suite.tenants, suite.tenant, suite.cache, suite.audit, config.AuthConfig{
		JWTSecret:  testJWTSecret,
		SessionTTL: 24 * time.Hour,
		BcryptCost: 12,
	})
	suite.service = svc.(*authService)
	suite.service.now = func() time.Time { return suite.now }
	suite.service.bcryptCost = bcrypt.MinCost

	suite.acme = activeTenant()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	suite.Require().NoError(err)
	suite.user = &models.User{
		ID:           uuid.New(),
		TenantID:     &suite.acme.ID,
		Email:        "owner@acme.test",
		PasswordHash: string(hash),
		Role:         models.RoleTenantAdmin,
	}
}

func TestAuthServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}

func (suite *AuthServiceTestSuite) claimsFor(user *models.User, issued time.Time) *models.TokenClaims {
	return &models.TokenClaims{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Role:     user.Role,
		TokenID:  "tok-1",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(issued),
		},
	}
}

func (suite *AuthServiceTestSuite) TestLogin_IssuesVerifiableToken() {
	suite.users.On("GetByEmail", suite.ctx, "owner@acme.test").Return(suite.user, nil)
	suite.tenant.On("GetByID", suite.ctx, suite.acme.ID).Return(suite.acme, nil)

	resp, err := suite.service.Login(suite.ctx, &models.LoginRequest{Email: " Owner@Acme.test", Password: "correct-horse"})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Bearer", resp.TokenType)
	assert.Equal(suite.T(), 86400, resp.ExpiresIn)
	assert.Equal(suite.T(), suite.acme.ID.String(), resp.TenantID)

	claims := &models.TokenClaims{}
	token, err := jwt.ParseWithClaims(resp.AccessToken, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer("invoicehub"),
		jwt.WithAudience("invoicehub-api"),
		jwt.WithTimeFunc(func() time.Time { return suite.now.Add(time.Minute) }),
	)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), token.Valid)
	assert.Equal(suite.T(), suite.user.ID, claims.UserID)
	assert.Equal(suite.T(), models.RoleTenantAdmin, claims.Role)
	assert.NotEmpty(suite.T(), claims.TokenID)
}

func (suite *AuthServiceTestSuite) TestLogin_WrongPasswordAndUnknownEmailLookAlike() {
	suite.users.On("GetByEmail", suite.ctx, "owner@acme.test").Return(suite.user, nil)
	suite.users.On("GetByEmail", suite.ctx, "ghost@acme.test").Return(nil, common.ErrNotFound)

	_, wrong := suite.service.Login(suite.ctx, &models.LoginRequest{Email: "owner@acme.test", Password: "battery-staple"})
	_, unknown := suite.service.Login(suite.ctx, &models.LoginRequest{Email: "ghost@acme.test", Password: "battery-staple"})

	assert.ErrorIs(suite.T(), wrong, common.ErrUnauthorized)
	assert.Equal(suite.T(), wrong, unknown)
}

func (suite *AuthServiceTestSuite) TestLogin_SuspendedTenant() {
	suite.acme.Status = models.TenantStatusSuspended
	suite.users.On("GetByEmail", suite.ctx, "owner@acme.test").Return(suite.user, nil)
	suite.tenant.On("GetByID", suite.ctx, suite.acme.ID).Return(suite.acme, nil)

	_, err := suite.service.Login(suite.ctx, &models.LoginRequest{Email: "owner@acme.test", Password: "correct-horse"})
	assert.ErrorIs(suite.T(), err, common.ErrAccessDenied)
}

func (suite *AuthServiceTestSuite) TestSignup_DuplicateEmail() {
	suite.users.On("Create", suite.ctx, mock.AnythingOfType("*models.User")).Return(repositories.ErrDuplicate)

	_, err := suite.service.Signup(suite.ctx, &models.SignupRequest{Email: "owner@acme.test", Password: "long-enough", FullName: "Ada"})

	var ve *common.ValidationError
	require.ErrorAs(suite.T(), err, &ve)
	assert.Equal(suite.T(), "email", ve.Field)
	assert.Empty(suite.T(), suite.audit.entries)
}

func (suite *AuthServiceTestSuite) TestSignup_CreatesMemberWithoutTenant() {
	suite.users.On("Create", suite.ctx, mock.MatchedBy(func(u *models.User) bool {
		return u.Role == models.RoleMember && u.TenantID == nil && u.Email == "new@acme.test" &&
			bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("long-enough")) == nil
	})).Return(nil)

	user, err := suite.service.Signup(suite.ctx, &models.SignupRequest{Email: "New@Acme.test", Password: "long-enough"})

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.RoleMember, user.Role)
	assert.Equal(suite.T(), []models.AuditAction{models.ActionUserSignedUp}, suite.audit.actions())
}

func (suite *AuthServiceTestSuite) TestResolvePrincipal_ActiveTenant() {
	suite.cache.On("IsSessionRevoked", suite.ctx, "tok-1").Return(false, nil)
	suite.cache.On("GetSessionsValidAfter", suite.ctx, suite.user.ID).Return(time.Time{}, false, nil)
	suite.users.On("GetByID", suite.ctx, suite.user.ID).Return(suite.user, nil)
	suite.tenant.On("GetByID", suite.ctx, suite.acme.ID).Return(suite.acme, nil)

	p, err := suite.service.ResolvePrincipal(suite.ctx, suite.claimsFor(suite.user, suite.now))

	require.NoError(suite.T(), err)
	assert.True(suite.T(), p.HasTenant())
	assert.Equal(suite.T(), suite.acme.ID, p.Scope.TenantID())
	assert.Equal(suite.T(), models.RoleTenantAdmin, p.Role)
}

func (suite *AuthServiceTestSuite) TestResolvePrincipal_SuspendedTenantIsDenied() {
	suite.acme.Status = models.TenantStatusSuspended
	suite.cache.On("IsSessionRevoked", suite.ctx, "tok-1").Return(false, nil)
	suite.cache.On("GetSessionsValidAfter", suite.ctx, suite.user.ID).Return(time.Time{}, false, nil)
	suite.users.On("GetByID", suite.ctx, suite.user.ID).Return(suite.user, nil)
	suite.tenant.On("GetByID", suite.ctx, suite.acme.ID).Return(suite.acme, nil)

	_, err := suite.service.ResolvePrincipal(suite.ctx, suite.claimsFor(suite.user, suite.now))
	assert.ErrorIs(suite.T(), err, common.ErrAccessDenied)
}

func (suite *AuthServiceTestSuite) TestResolvePrincipal_RevokedSession() {
	suite.cache.On("IsSessionRevoked", suite.ctx, "tok-1").Return(true, nil)

	_, err := suite.service.ResolvePrincipal(suite.ctx, suite.claimsFor(suite.user, suite.now))
	assert.ErrorIs(suite.T(), err, common.ErrUnauthorized)
}

func (suite *AuthServiceTestSuite) TestResolvePrincipal_TokenIssuedBeforePasswordReset() {
	suite.cache.On("IsSessionRevoked", suite.ctx, "tok-1").Return(false, nil)
	suite.cache.On("GetSessionsValidAfter", suite.ctx, suite.user.ID).Return(suite.now, true, nil)

	_, err := suite.service.ResolvePrincipal(suite.ctx, suite.claimsFor(suite.user, suite.now.Add(-time.Minute)))
	assert.ErrorIs(suite.T(), err, common.ErrUnauthorized)
}

func (suite *AuthServiceTestSuite) TestResolvePrincipal_TokenIssuedInSameSecondAsReset() {
	cutoff := time.Unix(suite.now.Unix(), 0)
	suite.cache.On("IsSessionRevoked", suite.ctx, "tok-1").Return(false, nil)
	suite.cache.On("GetSessionsValidAfter", suite.ctx, suite.user.ID).Return(cutoff, true, nil)

	_, err := suite.service.ResolvePrincipal(suite.ctx, suite.claimsFor(suite.user, cutoff.Add(400*time.Millisecond)))
	assert.ErrorIs(suite.T(), err, common.ErrUnauthorized)
}

func (suite *AuthServiceTestSuite) TestResolvePrincipal_TokenIssuedAfterReset() {
	cutoff := time.Unix(suite.now.Unix(), 0)
	suite.cache.On("IsSessionRevoked", suite.ctx, "tok-1").Return(false, nil)
	suite.cache.On("GetSessionsValidAfter", suite.ctx, suite.user.ID).Return(cutoff, true, nil)
	suite.users.On("GetByID", suite.ctx, suite.user.ID).Return(suite.user, nil)
	suite.tenant.On("GetByID", suite.ctx, suite.acme.ID).Return(suite.acme, nil)

	p, err := suite.service.ResolvePrincipal(suite.ctx, suite.claimsFor(suite.user, cutoff.Add(time.Second)))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), suite.user.ID, p.UserID)
}

func (suite *AuthServiceTestSuite) TestResolvePrincipal_CacheOutageFailsClosed() {
	suite.cache.On("IsSessionRevoked", suite.ctx, "tok-1").Return(false, errors.New("redis: i/o timeout"))

	_, err := suite.service.ResolvePrincipal(suite.ctx, suite.claimsFor(suite.user, suite.now))
	assert.ErrorIs(suite.T(), err, common.ErrOperationFailed)
}

func (suite *AuthServiceTestSuite) TestResolvePrincipal_DeletedUser() {
	suite.cache.On("IsSessionRevoked", suite.ctx, "tok-1").Return(false, nil)
	suite.cache.On("GetSessionsValidAfter", suite.ctx, suite.user.ID).Return(time.Time{}, false, nil)
	suite.users.On("GetByID", suite.ctx, suite.user.ID).Return(nil, common.ErrNotFound)

	_, err := suite.service.ResolvePrincipal(suite.ctx, suite.claimsFor(suite.user, suite.now))
	assert.ErrorIs(suite.T(), err, common.ErrUnauthorized)
}

func (suite *AuthServiceTestSuite) TestResolvePrincipal_UserWithoutTenant() {
	loner := &models.User{ID: uuid.New(), Email: "new@acme.test", Role: models.RoleMember}
	suite.cache.On("IsSessionRevoked", suite.ctx, "tok-1").Return(false, nil)
	suite.cache.On("GetSessionsValidAfter", suite.ctx, loner.ID).Return(time.Time{}, false, nil)
	suite.users.On("GetByID", suite.ctx, loner.ID).Return(loner, nil)

	p, err := suite.service.ResolvePrincipal(suite.ctx, suite.claimsFor(loner, suite.now))

	require.NoError(suite.T(), err)
	assert.False(suite.T(), p.HasTenant())
	assert.Nil(suite.T(), p.Tenant)
}

func (suite *AuthServiceTestSuite) TestLogout_RevokesForRemainingLifetime() {
	claims := suite.claimsFor(suite.user, suite.now)
	claims.ExpiresAt = jwt.NewNumericDate(suite.now.Add(3 * time.Hour))
	suite.cache.On("RevokeSession", suite.ctx, "tok-1", 3*time.Hour).Return(nil)

	require.NoError(suite.T(), suite.service.Logout(suite.ctx, claims))
	suite.cache.AssertExpectations(suite.T())
}

func (suite *AuthServiceTestSuite) TestOnboard_CreatesTenantAndFreshToken() {
	loner := &models.User{ID: uuid.New(), Email: "new@acme.test", Role: models.RoleMember}
	p := &models.Principal{UserID: loner.ID, Role: models.RoleMember}
	suite.tenants.On("CreateWithOwner", suite.ctx, mock.MatchedBy(func(t *models.Tenant) bool {
		return t.CompanyName == "Initech" && t.Status == models.TenantStatusActive
	}), loner.ID).Return(nil)
	promoted := *loner
	suite.users.On("GetByID", suite.ctx, loner.ID).Return(&promoted, nil).Run(func(args mock.Arguments) {
		promoted.Role = models.RoleTenantAdmin
	})

	tenant, token, err := suite.service.Onboard(suite.ctx, p, &models.OnboardingRequest{CompanyName: " Initech "})

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Initech", tenant.CompanyName)
	assert.Equal(suite.T(), models.RoleTenantAdmin, token.Role)
	assert.Equal(suite.T(), []models.AuditAction{models.ActionTenantOnboarded}, suite.audit.actions())
}

func (suite *AuthServiceTestSuite) TestOnboard_RejectsLineBreaksInCompanyName() {
	p := &models.Principal{UserID: uuid.New(), Role: models.RoleMember}

	_, _, err := suite.service.Onboard(suite.ctx, p, &models.OnboardingRequest{CompanyName: "Acme\r\nBcc: attacker@evil.test"})

	var ve *common.ValidationError
	require.ErrorAs(suite.T(), err, &ve)
	assert.Equal(suite.T(), "company_name", ve.Field)
	suite.tenants.AssertNotCalled(suite.T(), "CreateWithOwner", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *AuthServiceTestSuite) TestOnboard_AlreadyInTenant() {
	p := &models.Principal{UserID: suite.user.ID, Role: models.RoleTenantAdmin, Tenant: suite.acme, Scope: scopeOf(suite.acme)}

	_, _, err := suite.service.Onboard(suite.ctx, p, &models.OnboardingRequest{CompanyName: "Second Co"})

	var ve *common.ValidationError
	assert.ErrorAs(suite.T(), err, &ve)
}
