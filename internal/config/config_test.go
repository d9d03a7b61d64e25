package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadWithDefaults(t *testing.T) {
	configPath := writeConfig(t, `port: 8080
retention_hours: 48`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 48, cfg.RetentionHours)

	assert.Equal(t, 25.0, cfg.MaxSize)
	assert.Equal(t, "http://localhost:3002/", cfg.BaseURL)
	assert.Equal(t, 60, cfg.SignedURLTTLSeconds)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, DefaultSQLitePath, cfg.Database.DSN)
	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
	assert.Equal(t, DefaultStoragePath, cfg.Storage.LocalPath)
	assert.Equal(t, 5, cfg.PinAttempt.MaxFailures)
	assert.True(t, cfg.Expiration.Enabled)
	assert.Equal(t, 60, cfg.Expiration.CheckInterval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, DefaultPreviewBots, cfg.PreviewBots)
}

func TestLoadWithNonExistentFile(t *testing.T) {
	cfg, err := Load("/non/existent/path.yaml")

	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadWithInvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `port: 8080
invalid: yaml: content: [`)

	cfg, err := Load(configPath)
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadWithAllFields(t *testing.T) {
	configPath := writeConfig(t, `port: 9000
base_url: "https://share.example.com/"
max_size_mib: 10
retention_hours: 168
signed_url_ttl_seconds: 30
sentry_dsn: ""
database:
  driver: pgx
  dsn: "postgres://u:p@localhost/ezyshare"
storage:
  backend: s3
  signing_key: "k"
  s3:
    region: eu-west-1
    bucket: shares
    endpoint: "http://minio:9000"
pin_attempts:
  max_failures: 0
expiration:
  enabled: false
  check_interval_min: 5
log:
  level: debug
  format: json
preview_bots:
  - custombot
  - anotherbot`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "https://share.example.com/", cfg.BaseURL)
	assert.Equal(t, 10.0, cfg.MaxSize)
	assert.Equal(t, 7*24*time.Hour, cfg.Retention())
	assert.Equal(t, 30*time.Second, cfg.SignedURLTTL())
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, BackendS3, cfg.Storage.Backend)
	assert.Equal(t, "shares", cfg.Storage.S3.Bucket)
	assert.Equal(t, "http://minio:9000", cfg.Storage.S3.Endpoint)
	assert.Equal(t, 0, cfg.PinAttempt.MaxFailures)
	assert.False(t, cfg.Expiration.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Expiration.CheckIntervalDuration())
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{"custombot", "anotherbot"}, cfg.PreviewBots)
}

func TestLoadEnvOverride(t *testing.T) {
	configPath := writeConfig(t, `port: 8080`)

	t.Setenv("EZYSHARE_PORT", "9191")
	t.Setenv("EZYSHARE_DATABASE_DSN", "/tmp/override.db")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Port)
	assert.Equal(t, "/tmp/override.db", cfg.Database.DSN)
}

func TestLoadFromEnvWithoutFile(t *testing.T) {
	t.Setenv("EZYSHARE_BASE_URL", "https://share.example.com/")
	t.Setenv("EZYSHARE_RETENTION_HOURS", "1")
	t.Setenv("EZYSHARE_STORAGE_BACKEND", "s3")
	t.Setenv("EZYSHARE_STORAGE_S3_BUCKET", "env-bucket")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://share.example.com/", cfg.BaseURL)
	assert.Equal(t, time.Hour, cfg.Retention())
	assert.Equal(t, BackendS3, cfg.Storage.Backend)
	assert.Equal(t, "env-bucket", cfg.Storage.S3.Bucket)
	assert.Equal(t, 3002, cfg.Port)
}

func TestLoadFromEnvRejectsInvalid(t *testing.T) {
	t.Setenv("EZYSHARE_RETENTION_HOURS", "0")

	cfg, err := Load("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestCheckIntervalDuration(t *testing.T) {
	assert.Equal(t, 5*time.Minute, ExpirationConfig{CheckInterval: 5}.CheckIntervalDuration())
	assert.Equal(t, time.Hour, ExpirationConfig{}.CheckIntervalDuration())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero retention", "retention_hours: 0"},
		{"negative size", "max_size_mib: -1"},
		{"zero signed ttl", "signed_url_ttl_seconds: 0"},
		{"unknown driver", "database:\n  driver: mysql"},
		{"unknown backend", "storage:\n  backend: ftp"},
		{"s3 without bucket", "storage:\n  backend: s3\n  s3:\n    bucket: \"\""},
		{"negative attempts", "pin_attempts:\n  max_failures: -1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 24*time.Hour, cfg.Retention())
	assert.Equal(t, time.Minute, cfg.SignedURLTTL())
}

func TestMaxSizeToBytes(t *testing.T) {
	cfg := &Config{MaxSize: 25.0}

	result := cfg.MaxSizeToBytes()
	expected := int64(25 * 1024 * 1024)

	assert.Equal(t, expected, result)
}

func TestPinAttemptDurations(t *testing.T) {
	p := PinAttemptConfig{MaxFailures: 3, WindowMinutes: 10, BlockMinutes: 30}

	assert.Equal(t, 10*time.Minute, p.Window())
	assert.Equal(t, 30*time.Minute, p.Block())
}
