package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"taskflow/internal/logger"
	"taskflow/internal/model"
	"taskflow/internal/service"
	"taskflow/internal/session"
)

type registerRequest struct {
	Username  string `json:"username" form:"username"`
	Email     string `json:"email" form:"email"`
	FirstName string `json:"first_name" form:"first_name"`
	LastName  string `json:"last_name" form:"last_name"`
	Password  string `json:"password" form:"password"`
}

type loginRequest struct {
	UsernameOrEmail string `json:"username_or_email" form:"username_or_email" label:"username or email" validate:"required"`
	Password        string `json:"password" form:"password" validate:"required"`
	RememberMe      bool   `json:"remember_me" form:"remember_me"`
}

type deleteAccountRequest struct {
	Password string `json:"password" form:"password" validate:"required"`
}

type userResponse struct {
	ID             uint      `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	FullName       string    `json:"full_name"`
	TelegramLinked bool      `json:"telegram_linked"`
	CreatedAt      time.Time `json:"created_at"`
}

type sessionResponse struct {
	User      userResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		FullName:       u.FullName(),
		TelegramLinked: u.TelegramID != nil,
		CreatedAt:      u.CreatedAt,
	}
}

type AuthHandler struct {
	users         *service.UserService
	sessions      *session.Manager
	secureCookies bool
}

func NewAuthHandler(users *service.UserService, sessions *session.Manager, secureCookies bool) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, secureCookies: secureCookies}
}

// Register creates the account and signs the user in with a long session.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.users.Register(ctx, service.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		logger.WarnContext(ctx, "registration failed", "username", req.Username, "error", err)
		return err
	}

	resp, err := h.startSession(c, user, true)
	if err != nil {
		return err
	}
	return createdResponse(c, "Registration successful! Welcome to TaskFlow!", resp)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validateStruct(&req); err != nil {
		return err
	}

	user, err := h.users.Authenticate(ctx, req.UsernameOrEmail, req.Password)
	if err != nil {
		logger.WarnContext(ctx, "login failed", "login", req.UsernameOrEmail, "error", err)
		return err
	}

	resp, err := h.startSession(c, user, req.RememberMe)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return successResponse(c, "Welcome back, "+user.FirstName+"!", resp)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	ctx := c.UserContext()
	claims := currentClaims(c)

	if err := h.sessions.Revoke(ctx, claims); err != nil {
		return err
	}
	c.ClearCookie(SessionCookie)

	logger.InfoContext(ctx, "user logged out", "user_id", claims.UserID)
	return successResponse(c, "Goodbye, "+claims.Username+"! You've been logged out.", nil)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := h.users.Get(c.UserContext(), currentUserID(c))
	if err != nil {
		return err
	}
	return successResponse(c, "", toUserResponse(user))
}

// DeleteAccount removes the user and all their tasks after a password check.
func (h *AuthHandler) DeleteAccount(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req deleteAccountRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validateStruct(&req); err != nil {
		return err
	}

	claims := currentClaims(c)
	removed, err := h.users.DeleteAccount(ctx, claims.UserID, req.Password)
	if err != nil {
		return err
	}

	if err := h.sessions.Revoke(ctx, claims); err != nil {
		logger.WarnContext(ctx, "revoke session after account deletion", "error", err)
	}
	c.ClearCookie(SessionCookie)

	return successResponse(c, "Your account has been deleted.", fiber.Map{"tasks_removed": removed})
}

func (h *AuthHandler) startSession(c *fiber.Ctx, user *model.User, remember bool) (sessionResponse, error) {
	token, claims, err := h.sessions.Issue(user.ID, user.Username, remember)
	if err != nil {
		return sessionResponse{}, err
	}

	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt.Time,
		HTTPOnly: true,
		Secure:   h.secureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return sessionResponse{
		User:      toUserResponse(user),
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
