package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"taskflow/internal/logger"
)

const devSessionSecret = "taskflow-dev-secret-change-me"

// Config keeps runtime settings for the server, bot and CLI.
type Config struct {
	Env             string
	Addr            string
	DatabaseURL     string
	Location        *time.Location
	SeedDemoData    bool
	ShutdownTimeout time.Duration

	SessionSecret string
	SessionTTL    time.Duration
	RememberTTL   time.Duration
	SecureCookies bool
	BcryptCost    int

	LoginRateLimit int // attempts per minute per client, 0 disables

	RedisURL          string
	NATSURL           string
	NATSSubjectPrefix string

	TelegramToken string
	LinkCodeTTL   time.Duration

	Log logger.Config
}

// Load reads configuration from the environment, after an optional .env file,
// with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:               getEnv("APP_ENV", "development"),
		Addr:              getEnv("APP_ADDR", ":8080"),
		DatabaseURL:       getEnv("DATABASE_URL", "taskflow.db"),
		SeedDemoData:      getBool("SEED_DEMO_DATA", true),
		ShutdownTimeout:   getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		SessionSecret:     getEnv("SESSION_SECRET", ""),
		SessionTTL:        getDuration("SESSION_TTL", 24*time.Hour),
		RememberTTL:       getDuration("REMEMBER_TTL", 30*24*time.Hour),
		SecureCookies:     getBool("SECURE_COOKIES", false),
		BcryptCost:        getInt("BCRYPT_COST", bcrypt.DefaultCost),
		LoginRateLimit:    getInt("LOGIN_RATE_LIMIT", 10),
		RedisURL:          getEnv("REDIS_URL", ""),
		NATSURL:           getEnv("NATS_URL", ""),
		NATSSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "taskflow"),
		TelegramToken:     getEnv("TELEGRAM_TOKEN", ""),
		LinkCodeTTL:       getDuration("LINK_CODE_TTL", 10*time.Minute),
		Log: logger.Config{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "text"),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
			FilePath:   getEnv("LOG_FILE", "logs/taskflow.log"),
			MaxSize:    getInt("LOG_MAX_SIZE", 100),
			MaxBackups: getInt("LOG_MAX_BACKUPS", 5),
			MaxAge:     getInt("LOG_MAX_AGE", 30),
			Compress:   getBool("LOG_COMPRESS", true),
		},
	}

	loc, err := time.LoadLocation(getEnv("APP_TIMEZONE", "Local"))
	if err != nil {
		return cfg, fmt.Errorf("APP_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return cfg, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	if cfg.SessionSecret == "" {
		if !cfg.IsDevelopment() {
			return cfg, errors.New("SESSION_SECRET is required outside development")
		}
		cfg.SessionSecret = devSessionSecret
	}

	return cfg, nil
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "test"
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return b
}

// getDuration accepts Go durations ("90m") and bare numbers of seconds.
func getDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
