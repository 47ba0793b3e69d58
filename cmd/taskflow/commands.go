package main

import (
	"context"
	"errors"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	fiberredis "github.com/gofiber/storage/redis/v3"
	"gorm.io/gorm"

	"taskflow/internal/api"
	"taskflow/internal/bot"
	"taskflow/internal/config"
	"taskflow/internal/events"
	"taskflow/internal/logger"
	"taskflow/internal/repository"
	"taskflow/internal/service"
	"taskflow/internal/session"
)

// components is everything the commands are built from. close releases
// the outside connections in reverse order of opening.
type components struct {
	db         *gorm.DB
	users      *service.UserService
	tasks      *service.TaskService
	categories *service.CategoryService
	summary    *service.SummaryService
	links      *service.LinkService
	seeder     *service.Seeder
	sessions   *session.Manager
	limiter    *fiberredis.Storage

	closers []func() error
}

func build(ctx context.Context, cfg config.Config) (*components, error) {
	c := &components{}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, codeError(1, "database: %s", err)
	}
	c.db = db
	if sqlDB, err := db.DB(); err == nil {
		c.closers = append(c.closers, sqlDB.Close)
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.NATSURL != "" {
		nats, err := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix)
		if err != nil {
			c.close()
			return nil, codeError(1, "nats: %s", err)
		}
		publisher = nats
		c.closers = append(c.closers, nats.Close)
		logger.InfoContext(ctx, "publishing events to nats", "prefix", cfg.NATSSubjectPrefix)
	}

	var revoked session.RevocationStore
	if cfg.RedisURL != "" {
		store, err := session.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			c.close()
			return nil, codeError(1, "redis: %s", err)
		}
		revoked = store
		c.closers = append(c.closers, store.Close)

		// redis storage panics when it cannot connect; the ping above
		// already proved the server is reachable.
		c.limiter = fiberredis.New(fiberredis.Config{URL: cfg.RedisURL})
		c.closers = append(c.closers, c.limiter.Close)
		logger.InfoContext(ctx, "sessions and rate limits backed by redis")
	}

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	tx := repository.NewTransactor(db)

	c.users = service.NewUserService(userRepo, service.NewPasswordHasher(cfg.BcryptCost), publisher)
	c.tasks = service.NewTaskService(taskRepo, tx, publisher, cfg.Location)
	c.categories = service.NewCategoryService(repository.NewCategoryRepository(db))
	c.summary = service.NewSummaryService(taskRepo)
	c.seeder = service.NewSeeder(c.users, userRepo, taskRepo, tx)
	c.links, err = service.NewLinkService(repository.NewLinkCodeRepository(db), userRepo, cfg.LinkCodeTTL)
	if err != nil {
		c.close()
		return nil, codeError(1, "link codes: %s", err)
	}

	c.sessions = session.NewManager(session.Config{
		Secret:      cfg.SessionSecret,
		TTL:         cfg.SessionTTL,
		RememberTTL: cfg.RememberTTL,
	}, revoked)

	return c, nil
}

func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			logger.WarnContext(context.Background(), "close resource", "error", err)
		}
	}
	c.closers = nil
}

func runServe(ctx context.Context, cfg config.Config) error {
	c, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.close()

	if cfg.SeedDemoData {
		seed(ctx, c, cfg)
	}

	opts := api.Options{
		SecureCookies:  cfg.SecureCookies,
		LoginRateLimit: cfg.LoginRateLimit,
	}
	if c.limiter != nil {
		opts.LimiterStorage = c.limiter
	}
	server := api.NewServer(api.NewApp(api.Deps{
		Users:      c.users,
		Tasks:      c.tasks,
		Categories: c.categories,
		Links:      c.links,
		Sessions:   c.sessions,
	}, opts), cfg.Addr)

	var telegram *bot.Bot
	if cfg.TelegramToken != "" {
		telegram, err = bot.New(cfg.TelegramToken, bot.Deps{
			Users:      c.users,
			Links:      c.links,
			Tasks:      c.tasks,
			Categories: c.categories,
			Summary:    c.summary,
			Location:   cfg.Location,
		})
		if err != nil {
			return codeError(1, "telegram: %s", err)
		}
	}

	if err := server.Start(); err != nil {
		return codeError(1, "%s", err)
	}

	botCtx, stopBot := context.WithCancel(context.Background())
	defer stopBot()
	botDone := make(chan struct{})
	if telegram != nil {
		go func() {
			defer close(botDone)
			if err := telegram.Start(botCtx); err != nil {
				logger.ErrorContext(botCtx, "telegram bot stopped", "error", err)
			}
		}()
	} else {
		close(botDone)
	}

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": server.Shutdown,
			"telegram": func(ctx context.Context) error {
				stopBot()
				select {
				case <-botDone:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		},
	)

	if code := <-wait; code != 0 {
		return codeError(code, "shutdown did not finish cleanly")
	}
	logger.InfoContext(ctx, "shutdown complete")
	return nil
}

func runMigrate(ctx context.Context, cfg config.Config) error {
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return codeError(1, "database: %s", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	logger.InfoContext(ctx, "schema is up to date", "database", cfg.DatabaseURL)
	return nil
}

func runSeed(ctx context.Context, cfg config.Config) error {
	c, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.close()

	if !seed(ctx, c, cfg) {
		return codeError(1, "seeding failed")
	}
	return nil
}

// seed reports false only when seeding failed.
func seed(ctx context.Context, c *components, cfg config.Config) bool {
	created, err := c.seeder.Seed(ctx, time.Now().In(cfg.Location))
	if err != nil {
		logger.ErrorContext(ctx, "seed demo data", "error", err)
		return false
	}
	if created {
		logger.InfoContext(ctx, "demo account created", "username", service.DemoUsername)
	} else {
		logger.InfoContext(ctx, "database already has users, skipping demo data")
	}
	return true
}

func runDeleteUser(ctx context.Context, cfg config.Config, username string) error {
	c, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.close()

	removed, err := c.users.DeleteByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return codeError(3, "no user named %q", username)
		}
		return codeError(1, "delete user: %s", err)
	}
	logger.InfoContext(ctx, "user deleted", "username", username, "tasks_removed", removed)
	return nil
}
