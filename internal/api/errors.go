package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"taskflow/internal/logger"
	"taskflow/internal/service"
	"taskflow/internal/session"
)

// Messages shown to clients. Internal error text never leaves the server.
const (
	msgInvalidCredentials = "Invalid username/email and/or password"
	msgTaskNotFound       = "Task not found or unauthorized"
	msgUsernameTaken      = "Username already exists."
	msgEmailTaken         = "Email address already registered."
	msgInternal           = "Something went wrong. Please try again."
)

// ErrorHandler turns errors returned by handlers into the response envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	ctx := c.UserContext()

	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return errorResponse(c, fiber.StatusBadRequest, ErrCodeValidation, "Validation failed", verr.Reasons)
	}

	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		return errorResponse(c, ferr.Code, codeForStatus(ferr.Code), ferr.Message, nil)
	}

	switch {
	case errors.Is(err, service.ErrDuplicateUsername), errors.Is(err, service.ErrDuplicateEmail):
		var details []string
		if errors.Is(err, service.ErrDuplicateUsername) {
			details = append(details, msgUsernameTaken)
		}
		if errors.Is(err, service.ErrDuplicateEmail) {
			details = append(details, msgEmailTaken)
		}
		return errorResponse(c, fiber.StatusConflict, ErrCodeConflict, details[0], details)

	case errors.Is(err, service.ErrInvalidCredentials):
		return errorResponse(c, fiber.StatusUnauthorized, ErrCodeUnauthorized, msgInvalidCredentials, nil)

	case errors.Is(err, session.ErrExpiredToken):
		return errorResponse(c, fiber.StatusUnauthorized, ErrCodeUnauthorized, "Session has expired", nil)

	case errors.Is(err, session.ErrInvalidToken), errors.Is(err, session.ErrRevokedToken), errors.Is(err, service.ErrUserNotFound):
		return errorResponse(c, fiber.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required", nil)

	case errors.Is(err, service.ErrNotFoundOrUnauthorized):
		return errorResponse(c, fiber.StatusNotFound, ErrCodeNotFound, msgTaskNotFound, nil)
	}

	logger.ErrorContext(ctx, "request failed", "method", c.Method(), "path", c.Path(), "error", err)
	return errorResponse(c, fiber.StatusInternalServerError, ErrCodeInternalError, msgInternal, nil)
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return ErrCodeBadRequest
	case fiber.StatusUnauthorized:
		return ErrCodeUnauthorized
	case fiber.StatusForbidden:
		return ErrCodeForbidden
	case fiber.StatusNotFound:
		return ErrCodeNotFound
	case fiber.StatusConflict:
		return ErrCodeConflict
	case fiber.StatusTooManyRequests:
		return ErrCodeTooManyRequests
	default:
		if status < fiber.StatusInternalServerError {
			return ErrCodeBadRequest
		}
		return ErrCodeInternalError
	}
}
