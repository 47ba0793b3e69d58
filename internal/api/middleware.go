package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"taskflow/internal/logger"
	"taskflow/internal/session"
)

const (
	RequestIDHeader = "X-Request-ID"
	SessionCookie   = "taskflow_session"

	localsRequestID = "request_id"
	localsClaims    = "claims"
)

// RequestID tags the request and its context with an id, reusing the
// client's X-Request-ID when present.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(RequestIDHeader, requestID)
		c.SetUserContext(logger.ContextWithRequestID(c.UserContext(), requestID))
		c.Locals(localsRequestID, requestID)
		return c.Next()
	}
}

// RequestLogger logs one line per finished request.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			// Let the error handler write the status before it is logged.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
			err = nil
		}

		status := c.Response().StatusCode()
		logFunc := logger.InfoContext
		if status >= 500 {
			logFunc = logger.ErrorContext
		} else if status >= 400 {
			logFunc = logger.WarnContext
		}
		logFunc(c.UserContext(), "request completed",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", time.Since(start).String(),
			"ip", c.IP(),
		)
		return err
	}
}

// Protected rejects requests without a valid session and stores the claims
// for handlers.
func Protected(sessions *session.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := sessions.Parse(c.UserContext(), sessionToken(c))
		if err != nil {
			logger.WarnContext(c.UserContext(), "session rejected", "error", err)
			return err
		}
		c.Locals(localsClaims, claims)
		return c.Next()
	}
}

// sessionToken prefers the Authorization header over the cookie.
func sessionToken(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return c.Cookies(SessionCookie)
}

func currentClaims(c *fiber.Ctx) *session.Claims {
	claims, _ := c.Locals(localsClaims).(*session.Claims)
	return claims
}

func currentUserID(c *fiber.Ctx) uint {
	if claims := currentClaims(c); claims != nil {
		return claims.UserID
	}
	return 0
}
