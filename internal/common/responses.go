package common

import (
	"errors"
	"net/http"

	"invoicehub/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// CreateErrorResponse creates a standardized error response
func CreateErrorResponse(code string, message string, details map[string]string) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	return &resp
}

// SendValidationError sends a validation error response
func SendValidationError(c echo.Context, field, message string) error {
	var details map[string]string
	if field != "" {
		details = map[string]string{field: message}
	}
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("VALIDATION_ERROR", message, details))
}

// SendNotFoundError sends a not found error response
func SendNotFoundError(c echo.Context, resource string) error {
	return c.JSON(http.StatusNotFound, CreateErrorResponse("NOT_FOUND", resource+" not found", nil))
}

// SendUnauthorizedError sends an unauthorized error response
func SendUnauthorizedError(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, CreateErrorResponse("UNAUTHORIZED", "Unauthorized access", nil))
}

func SendAccessDeniedError(c echo.Context) error {
	return c.JSON(http.StatusForbidden, CreateErrorResponse("ACCESS_DENIED", "Access denied", nil))
}

// SendServerError sends a server error response
func SendServerError(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError, CreateErrorResponse("SERVER_ERROR", "Something went wrong, please try again later", nil))
}

// HTTPErrorHandler maps the error taxonomy onto the error envelope. Unexpected
// errors are logged with their cause and answered with a generic message.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		ve      *ValidationError
		httpErr *echo.HTTPError
		sendErr error
	)
	switch {
	case errors.As(err, &ve):
		sendErr = SendValidationError(c, ve.Field, ve.Message)
	case errors.Is(err, ErrInvalidOrExpiredToken):
		sendErr = c.JSON(http.StatusBadRequest, CreateErrorResponse("INVALID_OR_EXPIRED_TOKEN", "Invalid or expired token", nil))
	case errors.Is(err, ErrUnauthorized):
		sendErr = SendUnauthorizedError(c)
	case errors.Is(err, ErrAccessDenied):
		sendErr = SendAccessDeniedError(c)
	case errors.Is(err, ErrNotFound):
		sendErr = SendNotFoundError(c, "Resource")
	case errors.As(err, &httpErr):
		sendErr = sendHTTPError(c, httpErr)
	default:
		logger.FromContext(c.Request().Context()).Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		sendErr = SendServerError(c)
	}
	if sendErr != nil {
		logger.FromContext(c.Request().Context()).Warn("failed to write error response", zap.Error(sendErr))
	}
}

func sendHTTPError(c echo.Context, he *echo.HTTPError) error {
	code := "CLIENT_ERROR"
	switch he.Code {
	case http.StatusUnauthorized:
		return SendUnauthorizedError(c)
	case http.StatusForbidden:
		return SendAccessDeniedError(c)
	case http.StatusNotFound:
		code = "NOT_FOUND"
	case http.StatusTooManyRequests:
		code = "RATE_LIMITED"
	case http.StatusMethodNotAllowed:
		code = "METHOD_NOT_ALLOWED"
	}
	if he.Code >= http.StatusInternalServerError {
		if he.Internal != nil {
			logger.FromContext(c.Request().Context()).Error("request failed", zap.Error(he.Internal))
		}
		return SendServerError(c)
	}
	msg, ok := he.Message.(string)
	if !ok {
		msg = http.StatusText(he.Code)
	}
	return c.JSON(he.Code, CreateErrorResponse(code, msg, nil))
}
