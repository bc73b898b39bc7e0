package handlers

import (
	"net/http"

	"invoicehub/internal/common"
	"invoicehub/internal/middleware"
	"invoicehub/internal/models"
	"invoicehub/internal/services"

	"github.com/labstack/echo/v4"
)

// forgotPasswordAck is returned for every well-formed request, whether or not
// the account exists.
const forgotPasswordAck = "If an account exists for this email, a password reset link has been sent."

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	authService   services.AuthService
	passwordReset services.PasswordResetService
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(authService services.AuthService, passwordReset services.PasswordResetService) *AuthHandlers {
	return &AuthHandlers{
		authService:   authService,
		passwordReset: passwordReset,
	}
}

// OnboardingResponse carries the new tenant and a session that includes it.
type OnboardingResponse struct {
	Tenant *models.Tenant        `json:"tenant"`
	Token  *models.TokenResponse `json:"token"`
}

// Signup handles POST /v1/auth/signup
func (h *AuthHandlers) Signup(c echo.Context) error {
	var req models.SignupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.authService.Signup(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

// Login handles POST /v1/auth/login
func (h *AuthHandlers) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	token, err := h.authService.Login(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, token)
}

// Logout handles POST /v1/auth/logout
func (h *AuthHandlers) Logout(c echo.Context) error {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return common.ErrUnauthorized
	}
	if err := h.authService.Logout(c.Request().Context(), claims); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Me handles GET /v1/auth/me
func (h *AuthHandlers) Me(c echo.Context) error {
	ctx := c.Request().Context()
	p, ok := common.PrincipalFromContext(ctx)
	if !ok {
		return common.ErrUnauthorized
	}
	user, err := h.authService.Me(ctx, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Onboard handles POST /v1/auth/onboard
func (h *AuthHandlers) Onboard(c echo.Context) error {
	ctx := c.Request().Context()
	p, ok := common.PrincipalFromContext(ctx)
	if !ok {
		return common.ErrUnauthorized
	}
	var req models.OnboardingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	tenant, token, err := h.authService.Onboard(ctx, p, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, OnboardingResponse{Tenant: tenant, Token: token})
}

// ForgotPassword handles POST /v1/auth/forgot-password
func (h *AuthHandlers) ForgotPassword(c echo.Context) error {
	var req models.ForgotPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.passwordReset.RequestReset(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, MessageResponse{Message: forgotPasswordAck})
}

// ResetPassword handles POST /v1/auth/reset-password
func (h *AuthHandlers) ResetPassword(c echo.Context) error {
	var req models.ResetPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.passwordReset.PerformReset(c.Request().Context(), req.Token, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Password has been reset. Please sign in again."})
}
