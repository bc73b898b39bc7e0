package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"invoicehub/internal/caching"
	"invoicehub/internal/common"
	"invoicehub/internal/config"
	"invoicehub/internal/models"
	"invoicehub/internal/repositories"
	"invoicehub/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	TokenIssuer   = "invoicehub"
	TokenAudience = "invoicehub-api"
	minBcryptCost = 10
)

// AuthService handles accounts, sessions and the resolution of a session into
// a Principal.
type AuthService interface {
	Signup(ctx context.Context, req *models.SignupRequest) (*models.User, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.TokenResponse, error)
	Logout(ctx context.Context, claims *models.TokenClaims) error
	Me(ctx context.Context, p *models.Principal) (*models.User, error)
	// Onboard creates a tenant owned by the caller and returns a fresh session
	// carrying the new tenant.
	Onboard(ctx context.Context, p *models.Principal, req *models.OnboardingRequest) (*models.Tenant, *models.TokenResponse, error)
	IssueToken(user *models.User) (*models.TokenResponse, error)
	// ResolvePrincipal turns validated claims into a Principal using stored
	// state: current role and tenant, revocations and tenant status.
	ResolvePrincipal(ctx context.Context, claims *models.TokenClaims) (*models.Principal, error)
}

type authService struct {
	userRepo   repositories.UserRepository
	tenantRepo repositories.TenantRepository
	tenantSvc  TenantService
	cacheSvc   caching.CacheService
	audit      AuditRecorder
	jwtSecret  []byte
	sessionTTL time.Duration
	bcryptCost int
	now        func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

func NewAuthService(
	userRepo repositories.UserRepository,
	tenantRepo repositories.TenantRepository,
	tenantSvc TenantService,
	cacheSvc caching.CacheService,
	audit AuditRecorder,
	cfg config.AuthConfig,
) AuthService {
	return &authService{
		userRepo:   userRepo,
		tenantRepo: tenantRepo,
		tenantSvc:  tenantSvc,
		cacheSvc:   cacheSvc,
		audit:      audit,
		jwtSecret:  []byte(cfg.JWTSecret),
		sessionTTL: cfg.SessionTTL,
		bcryptCost: bcryptCost(cfg.BcryptCost),
		now:        time.Now,
	}
}

func bcryptCost(configured int) int {
	if configured < minBcryptCost {
		return minBcryptCost
	}
	if configured > bcrypt.MaxCost {
		return bcrypt.MaxCost
	}
	return configured
}

func (s *authService) Signup(ctx context.Context, req *models.SignupRequest) (*models.User, error) {
	email := models.NormalizeEmail(req.Email)
	if email == "" {
		return nil, common.NewValidationError("email", "email is required")
	}
	if len(req.Password) < 8 {
		return nil, common.NewValidationError("password", "password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, common.SecureErrorMessage("hash password", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         models.RoleMember,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, common.NewValidationError("email", "email is already registered")
		}
		return nil, common.SecureErrorMessage("create user", err)
	}

	s.audit.Record(ctx, &models.AuditLog{
		UserID:     &user.ID,
		Action:     models.ActionUserSignedUp,
		EntityType: models.EntityUser,
		EntityID:   user.ID.String(),
	})
	return user, nil
}

func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*models.TokenResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, models.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// keep the response time close to that of a wrong password
			_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(req.Password))
			return nil, common.ErrUnauthorized
		}
		return nil, common.SecureErrorMessage("load user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, common.ErrUnauthorized
	}

	if user.TenantID != nil {
		tenant, err := s.tenantSvc.GetByID(ctx, *user.TenantID)
		if err != nil {
			return nil, err
		}
		if tenant.Status != models.TenantStatusActive {
			return nil, common.ErrAccessDenied
		}
	}
	return s.IssueToken(user)
}

func (s *authService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.bcryptCost)
	})
	return s.dummyHash
}

func (s *authService) Logout(ctx context.Context, claims *models.TokenClaims) error {
	if claims == nil || claims.TokenID == "" {
		return common.ErrUnauthorized
	}
	ttl := s.sessionTTL
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(s.now())
	}
	if err := s.cacheSvc.RevokeSession(ctx, claims.TokenID, ttl); err != nil {
		return common.SecureErrorMessage("revoke session", err)
	}
	return nil
}

func (s *authService) Me(ctx context.Context, p *models.Principal) (*models.User, error) {
	if p == nil {
		return nil, common.ErrUnauthorized
	}
	user, err := s.userRepo.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, common.SecureErrorMessage("load user", err)
	}
	return user, nil
}

func (s *authService) Onboard(ctx context.Context, p *models.Principal, req *models.OnboardingRequest) (*models.Tenant, *models.TokenResponse, error) {
	if p == nil {
		return nil, nil, common.ErrUnauthorized
	}
	if p.Role == models.RoleSuperAdmin || p.Tenant != nil {
		return nil, nil, common.NewValidationError("tenant", "user already belongs to a tenant")
	}
	name := strings.TrimSpace(req.CompanyName)
	if len(name) < 2 {
		return nil, nil, common.NewValidationError("company_name", "company_name must be at least 2 characters")
	}
	if common.HasControlChars(name) {
		return nil, nil, common.NewValidationError("company_name", "company_name must not contain line breaks or control characters")
	}

	tenant := &models.Tenant{
		ID:          uuid.New(),
		CompanyName: name,
		Status:      models.TenantStatusActive,
	}
	if err := s.tenantRepo.CreateWithOwner(ctx, tenant, p.UserID); err != nil {
		if errors.Is(err, repositories.ErrAlreadyOnboarded) {
			return nil, nil, common.NewValidationError("tenant", "user already belongs to a tenant")
		}
		return nil, nil, common.SecureErrorMessage("onboard tenant", err)
	}
	now := s.now().UTC()
	tenant.CreatedAt, tenant.UpdatedAt = now, now

	s.audit.Record(ctx, &models.AuditLog{
		TenantID:   &tenant.ID,
		UserID:     &p.UserID,
		Action:     models.ActionTenantOnboarded,
		EntityType: models.EntityTenant,
		EntityID:   tenant.ID.String(),
		Metadata:   models.JSONB{"company_name": tenant.CompanyName},
	})

	user, err := s.userRepo.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, nil, common.SecureErrorMessage("load user", err)
	}
	token, err := s.IssueToken(user)
	if err != nil {
		return nil, nil, err
	}
	return tenant, token, nil
}

// IssueToken signs an HS256 session token for user.
func (s *authService) IssueToken(user *models.User) (*models.TokenResponse, error) {
	now := s.now()
	tokenID := uuid.NewString()

	claims := models.TokenClaims{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Role:     user.Role,
		TokenID:  tokenID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Subject:   user.ID.String(),
			Audience:  jwt.ClaimStrings{TokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        tokenID,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, common.SecureErrorMessage("sign session token", err)
	}

	resp := &models.TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.sessionTTL.Seconds()),
		UserID:      user.ID.String(),
		Role:        user.Role,
		IssuedAt:    now,
	}
	if user.TenantID != nil {
		resp.TenantID = user.TenantID.String()
	}
	return resp, nil
}

func (s *authService) ResolvePrincipal(ctx context.Context, claims *models.TokenClaims) (*models.Principal, error) {
	if claims == nil || claims.UserID == uuid.Nil {
		return nil, common.ErrUnauthorized
	}
	log := logger.FromContext(ctx)

	if claims.TokenID != "" {
		revoked, err := s.cacheSvc.IsSessionRevoked(ctx, claims.TokenID)
		if err != nil {
			log.Error("session revocation check failed", zap.Error(err))
			return nil, common.SecureErrorMessage("check session", err)
		}
		if revoked {
			return nil, common.ErrUnauthorized
		}
	}

	validAfter, ok, err := s.cacheSvc.GetSessionsValidAfter(ctx, claims.UserID)
	if err != nil {
		log.Error("session validity check failed", zap.Error(err))
		return nil, common.SecureErrorMessage("check session", err)
	}
	var issuedAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	// both sides carry whole seconds; a session from the reset's own second is revoked too
	if ok && !issuedAt.After(validAfter) {
		return nil, common.ErrUnauthorized
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, common.SecureErrorMessage("load user", err)
	}
	if !user.Role.Valid() {
		return nil, common.ErrAccessDenied
	}

	p := &models.Principal{
		UserID:   user.ID,
		Role:     user.Role,
		TokenID:  claims.TokenID,
		IssuedAt: issuedAt,
	}
	if user.TenantID == nil {
		return p, nil
	}

	tenant, err := s.tenantSvc.GetByID(ctx, *user.TenantID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrAccessDenied
		}
		return nil, err
	}
	scope, err := models.ScopeFor(tenant)
	if err != nil {
		return nil, common.ErrAccessDenied
	}
	p.Tenant = tenant
	p.Scope = scope
	return p, nil
}
