package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"net/url"
	"strings"
	"time"

	"invoicehub/internal/caching"
	"invoicehub/internal/common"
	"invoicehub/internal/models"
	"invoicehub/internal/repositories"
	"invoicehub/pkg/logger"
	"invoicehub/pkg/metrics"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// ResetTokenTTL is how long a reset link stays usable.
	ResetTokenTTL    = time.Hour
	resetTokenBytes  = 32
	minPasswordLen   = 8
	maxPasswordBytes = 72

	resetDeliveryTimeout = 30 * time.Second
)

// PasswordResetService issues and redeems single-use password reset tokens.
type PasswordResetService interface {
	// RequestReset never reveals whether the address belongs to an account:
	// the caller always gets a nil error back.
	RequestReset(ctx context.Context, email string) error
	PerformReset(ctx context.Context, token, newPassword string) error
	// ClearExpired removes reset tokens past their expiry.
	ClearExpired(ctx context.Context) (int64, error)
}

// PasswordResetConfig holds the settings the reset workflow needs.
type PasswordResetConfig struct {
	PublicBaseURL   string
	BcryptCost      int
	SessionTTL      time.Duration
	RequestsPerHour int
}

type passwordResetService struct {
	userRepo repositories.UserRepository
	cacheSvc caching.CacheService
	notifier NotificationService
	audit    AuditRecorder
	cfg      PasswordResetConfig
	now      func() time.Time
	random   io.Reader
	// dispatch runs token delivery off the request path, so known and
	// unknown addresses answer in the same time.
	dispatch func(func())
}

func NewPasswordResetService(
	userRepo repositories.UserRepository,
	cacheSvc caching.CacheService,
	notifier NotificationService,
	audit AuditRecorder,
	cfg PasswordResetConfig,
) PasswordResetService {
	cfg.BcryptCost = bcryptCost(cfg.BcryptCost)
	return &passwordResetService{
		userRepo: userRepo,
		cacheSvc: cacheSvc,
		notifier: notifier,
		audit:    audit,
		cfg:      cfg,
		now:      time.Now,
		random:   rand.Reader,
		dispatch: func(f func()) { go f() },
	}
}

// hashResetToken is the digest stored in place of the raw token.
func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *passwordResetService) newToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *passwordResetService) RequestReset(ctx context.Context, email string) error {
	log := logger.FromContext(ctx)
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil
	}
	metrics.PasswordResets.WithLabelValues("requested").Inc()

	if s.cacheSvc != nil && s.cfg.RequestsPerHour > 0 {
		limited, err := s.cacheSvc.IsRateLimited(ctx, "reset:"+email, s.cfg.RequestsPerHour, time.Hour)
		if err != nil {
			log.Warn("reset rate limit check failed", zap.Error(err))
		} else if limited {
			log.Info("reset request rate limited")
			return nil
		}
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			log.Error("reset request: user lookup failed", zap.Error(err))
		}
		return nil
	}

	detached := context.WithoutCancel(ctx)
	s.dispatch(func() {
		ctx, cancel := context.WithTimeout(detached, resetDeliveryTimeout)
		defer cancel()
		s.deliverResetToken(ctx, user)
	})
	return nil
}

func (s *passwordResetService) deliverResetToken(ctx context.Context, user *models.User) {
	log := logger.FromContext(ctx)
	token, err := s.newToken()
	if err != nil {
		log.Error("reset request: token generation failed", zap.Error(err))
		return
	}
	expiresAt := s.now().UTC().Add(ResetTokenTTL)

	if err := s.userRepo.SetResetToken(ctx, user.ID, hashResetToken(token), expiresAt); err != nil {
		log.Error("reset request: storing token failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		return
	}

	link := s.cfg.PublicBaseURL + "/reset-password?token=" + url.QueryEscape(token)
	if err := s.notifier.SendPasswordResetEmail(ctx, user.Email, user.FullName, link, expiresAt); err != nil {
		log.Error("reset request: email delivery failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		return
	}
	metrics.PasswordResets.WithLabelValues("issued").Inc()
}

func (s *passwordResetService) PerformReset(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return common.NewValidationError("new_password", "new_password must be at least 8 characters")
	}
	if len(newPassword) > maxPasswordBytes {
		return common.NewValidationError("new_password", "new_password must be at most 72 bytes")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return common.ErrInvalidOrExpiredToken
	}

	// hashed up front so unknown and valid tokens cost the same
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return common.SecureErrorMessage("hash password", err)
	}

	now := s.now().UTC()
	user, err := s.userRepo.ConsumeResetToken(ctx, hashResetToken(token), now, string(passwordHash))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			metrics.PasswordResets.WithLabelValues("rejected").Inc()
			return common.ErrInvalidOrExpiredToken
		}
		return common.SecureErrorMessage("reset password", err)
	}
	metrics.PasswordResets.WithLabelValues("completed").Inc()

	if s.cacheSvc != nil {
		if err := s.cacheSvc.SetSessionsValidAfter(ctx, user.ID, now, s.cfg.SessionTTL); err != nil {
			logger.FromContext(ctx).Error("failed to revoke sessions after password reset",
				zap.String("user_id", user.ID.String()), zap.Error(err))
		}
	}

	s.audit.Record(ctx, &models.AuditLog{
		TenantID:   user.TenantID,
		UserID:     &user.ID,
		Action:     models.ActionPasswordReset,
		EntityType: models.EntityUser,
		EntityID:   user.ID.String(),
		Metadata:   models.JSONB{"method": "reset_token"},
	})
	return nil
}

func (s *passwordResetService) ClearExpired(ctx context.Context) (int64, error) {
	n, err := s.userRepo.ClearExpiredResetTokens(ctx, s.now().UTC())
	if err != nil {
		return 0, common.SecureErrorMessage("clear expired reset tokens", err)
	}
	return n, nil
}
