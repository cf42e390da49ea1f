package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "./internal/repository/migrations/sqlite", cfg.MigrationsPath)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 24*time.Hour, cfg.DownloadTokenTTL)
	assert.Equal(t, "purchase-events", cfg.KafkaTopic)
	assert.Empty(t, cfg.Brokers())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DOWNLOAD_TOKEN_TTL", "90m")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("ADMIN_EMAILS", "root@example.com")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 6543, cfg.DBPort)
	assert.Equal(t, "./internal/repository/migrations/postgres", cfg.MigrationsPath)
	assert.Equal(t, 90*time.Minute, cfg.DownloadTokenTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers())
	assert.Equal(t, []string{"root@example.com"}, cfg.AdminEmailList())
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")
	t.Setenv("DB_DRIVER", "oracle")
	t.Setenv("CART_STORAGE", "disk")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DRIVER")
	assert.Contains(t, err.Error(), "CART_STORAGE")
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "STRIPE_WEBHOOK_SECRET")
}

func TestLoad_RequiresWebhookSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRIPE_WEBHOOK_SECRET is required")
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storefront.yaml")
	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL: debug\nHTTP_PORT: \"9000\"\n"), 0o600))

	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_PORT", "9100")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "9100", cfg.HTTPPort)
}
