package middleware

import (
	"errors"
	"fmt"

	"invoicehub/internal/common"
	"invoicehub/internal/models"
	"invoicehub/internal/services"
	"invoicehub/pkg/logger"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	tokenContextKey  = "user"
	claimsContextKey = "session_claims"
)

var errNoSigningKey = errors.New("no key configured for signing method")

// SessionKeyFunc selects the verification key by algorithm: HS256 tokens are
// checked against secret and RS256 tokens against the JWKS, when configured.
func SessionKeyFunc(secret []byte, jwks *keyfunc.JWKS) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		switch t.Method.Alg() {
		case jwt.SigningMethodHS256.Alg():
			if len(secret) == 0 {
				return nil, errNoSigningKey
			}
			return secret, nil
		case jwt.SigningMethodRS256.Alg():
			if jwks == nil {
				return nil, errNoSigningKey
			}
			return jwks.Keyfunc(t)
		}
		return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
	}
}

// ParseSessionToken verifies a bearer token and decodes its claims.
func ParseSessionToken(raw string, keyFunc jwt.Keyfunc) (*jwt.Token, error) {
	return jwt.ParseWithClaims(raw, &models.TokenClaims{}, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(services.TokenIssuer),
		jwt.WithAudience(services.TokenAudience),
		jwt.WithExpirationRequired(),
	)
}

// SessionConfig is the echo-jwt configuration for bearer session tokens.
// Every failure is reported as ErrUnauthorized.
func SessionConfig(secret string, jwks *keyfunc.JWKS) echojwt.Config {
	keyFunc := SessionKeyFunc([]byte(secret), jwks)
	return echojwt.Config{
		ContextKey: tokenContextKey,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return &models.TokenClaims{}
		},
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return ParseSessionToken(auth, keyFunc)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			logger.FromContext(c.Request().Context()).Debug("session token rejected", zap.Error(err))
			return common.ErrUnauthorized
		},
	}
}

// SessionGuard turns a verified token into a Principal. It runs after the
// echo-jwt middleware and rejects revoked sessions, deleted users and users
// of inactive tenants.
type SessionGuard struct {
	authSvc services.AuthService
}

func NewSessionGuard(authSvc services.AuthService) *SessionGuard {
	return &SessionGuard{authSvc: authSvc}
}

func (g *SessionGuard) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get(tokenContextKey).(*jwt.Token)
			if !ok || !token.Valid {
				return common.ErrUnauthorized
			}
			claims, ok := token.Claims.(*models.TokenClaims)
			if !ok {
				return common.ErrUnauthorized
			}

			ctx := c.Request().Context()
			p, err := g.authSvc.ResolvePrincipal(ctx, claims)
			if err != nil {
				return err
			}

			l := logger.FromContext(ctx).With(zap.String("user_id", p.UserID.String()))
			if p.HasTenant() {
				l = l.With(zap.String("tenant_id", p.Scope.TenantID().String()))
			}
			ctx = logger.WithContext(common.WithPrincipal(ctx, p), l)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set(claimsContextKey, claims)
			return next(c)
		}
	}
}

// ClaimsFromContext returns the verified claims of the current request.
func ClaimsFromContext(c echo.Context) (*models.TokenClaims, bool) {
	claims, ok := c.Get(claimsContextKey).(*models.TokenClaims)
	return claims, ok
}

// Authenticated chains token verification and principal resolution.
func Authenticated(cfg echojwt.Config, guard *SessionGuard) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{echojwt.WithConfig(cfg), guard.Middleware()}
}
