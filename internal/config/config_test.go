package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("BCRYPT_COST", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "taskflow.db", cfg.DatabaseURL)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, bcrypt.DefaultCost, cfg.BcryptCost)
	assert.Equal(t, devSessionSecret, cfg.SessionSecret)
	assert.Empty(t, cfg.TelegramToken)
	assert.NotNil(t, cfg.Location)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("SESSION_TTL", "90m")
	t.Setenv("LINK_CODE_TTL", "120")
	t.Setenv("SEED_DEMO_DATA", "false")
	t.Setenv("APP_TIMEZONE", "UTC")
	t.Setenv("BCRYPT_COST", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.SessionSecret)
	assert.Equal(t, 90*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 2*time.Minute, cfg.LinkCodeTTL)
	assert.False(t, cfg.SeedDemoData)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 4, cfg.BcryptCost)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_RequiresSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("SESSION_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "SESSION_SECRET")
}

func TestLoad_RejectsBadBcryptCost(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("BCRYPT_COST", "99")

	_, err := Load()
	assert.ErrorContains(t, err, "BCRYPT_COST")
}

func TestLoad_BadDurationFallsBack(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("SESSION_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
}
