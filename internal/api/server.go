// Package api exposes accounts and tasks over HTTP with fiber.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"taskflow/internal/logger"
	"taskflow/internal/service"
	"taskflow/internal/session"
)

// Deps are the services the routes call into.
type Deps struct {
	Users      *service.UserService
	Tasks      *service.TaskService
	Categories *service.CategoryService
	Links      *service.LinkService
	Sessions   *session.Manager
}

// Options tune transport behavior.
type Options struct {
	SecureCookies  bool
	AllowOrigins   string
	LoginRateLimit int           // per client per minute, 0 disables
	LimiterStorage fiber.Storage // shared counters, nil keeps them in memory
}

// NewApp builds the fiber app with middleware and routes.
func NewApp(deps Deps, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "TaskFlow",
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
	})

	app.Use(recover.New())
	app.Use(RequestID())
	app.Use(RequestLogger())

	allowOrigins := opts.AllowOrigins
	if allowOrigins == "" {
		allowOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization," + RequestIDHeader,
	}))

	app.Get("/health", health)

	auth := NewAuthHandler(deps.Users, deps.Sessions, opts.SecureCookies)
	tasks := NewTaskHandler(deps.Tasks, deps.Categories)
	telegram := NewTelegramHandler(deps.Links)
	protected := Protected(deps.Sessions)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", auth.Register)
	if opts.LoginRateLimit > 0 {
		authGroup.Post("/login", loginLimiter(opts.LoginRateLimit, opts.LimiterStorage), auth.Login)
	} else {
		authGroup.Post("/login", auth.Login)
	}
	authGroup.Post("/logout", protected, auth.Logout)
	authGroup.Get("/me", protected, auth.Me)
	authGroup.Delete("/me", protected, auth.DeleteAccount)

	taskGroup := api.Group("/tasks", protected)
	taskGroup.Get("/", tasks.List)
	taskGroup.Get("/stats", tasks.Stats)
	taskGroup.Post("/", tasks.Create)
	taskGroup.Get("/:id", tasks.Get)
	taskGroup.Put("/:id", tasks.Update)
	taskGroup.Post("/:id/toggle", tasks.Toggle)
	taskGroup.Delete("/:id", tasks.Delete)

	api.Get("/categories", protected, tasks.Categories)
	api.Post("/telegram/link-code", protected, telegram.LinkCode)

	return app
}

func loginLimiter(max int, storage fiber.Storage) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		Storage:    storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "login:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			logger.WarnContext(c.UserContext(), "login rate limit reached", "ip", c.IP())
			return errorResponse(c, fiber.StatusTooManyRequests, ErrCodeTooManyRequests,
				"Too many login attempts. Please try again later.", nil)
		},
	})
}

func health(c *fiber.Ctx) error {
	return successResponse(c, "", fiber.Map{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// Server runs the app on an address until shut down.
type Server struct {
	app  *fiber.App
	addr string
}

func NewServer(app *fiber.App, addr string) *Server {
	return &Server{app: app, addr: addr}
}

// Start listens in the background and fails fast on bind errors.
func (s *Server) Start() error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.app.Listen(s.addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("start http server: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	logger.InfoContext(context.Background(), "http server started", "addr", s.addr)
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.InfoContext(ctx, "http server stopped")
	return nil
}
