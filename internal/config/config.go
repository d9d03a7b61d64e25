package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Constants for default paths
const (
	DefaultStoragePath = "./uploads"
	DefaultSQLitePath  = "./data/ezyshare.db"
	EnvPrefix          = "EZYSHARE"
)

// DefaultPreviewBots are matched case-insensitively against the User-Agent.
var DefaultPreviewBots = []string{
	"slack",
	"slackbot",
	"facebookexternalhit",
	"twitterbot",
	"discordbot",
	"whatsapp",
	"googlebot",
	"linkedinbot",
	"telegram",
	"skype",
	"viber",
}

// Supported database drivers and storage backends
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"

	BackendLocal = "local"
	BackendS3    = "s3"
)

// Config represents the application configuration
type Config struct {
	Port                int     `mapstructure:"port"`
	BaseURL             string  `mapstructure:"base_url"`               // Origin used to build share links
	MaxSize             float64 `mapstructure:"max_size_mib"`           // Maximum file size in MiB
	RetentionHours      int     `mapstructure:"retention_hours"`        // Lifetime of a share
	SignedURLTTLSeconds int     `mapstructure:"signed_url_ttl_seconds"` // Lifetime of a retrieval URL
	SentryDSN           string  `mapstructure:"sentry_dsn"`

	// User agents that only fetch link previews. They never trigger the
	// automatic PIN check of a scanned share link.
	PreviewBots []string `mapstructure:"preview_bots"`

	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	PinAttempt PinAttemptConfig `mapstructure:"pin_attempts"`
	Expiration ExpirationConfig `mapstructure:"expiration"`
	Log        LogConfig        `mapstructure:"log"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type StorageConfig struct {
	Backend    string   `mapstructure:"backend"`
	LocalPath  string   `mapstructure:"local_path"`
	SigningKey string   `mapstructure:"signing_key"`
	S3         S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Endpoint  string `mapstructure:"endpoint"` // MinIO, R2, ...
}

// PinAttemptConfig bounds wrong PIN submissions per share and client.
// MaxFailures of 0 disables throttling entirely.
type PinAttemptConfig struct {
	MaxFailures   int `mapstructure:"max_failures"`
	WindowMinutes int `mapstructure:"window_minutes"`
	BlockMinutes  int `mapstructure:"block_minutes"`
}

type ExpirationConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	CheckInterval int  `mapstructure:"check_interval_min"` // How often to sweep expired shares
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 3002)
	v.SetDefault("base_url", "http://localhost:3002/")
	v.SetDefault("max_size_mib", 25.0)
	v.SetDefault("retention_hours", 24)
	v.SetDefault("signed_url_ttl_seconds", 60)
	v.SetDefault("sentry_dsn", "")
	v.SetDefault("preview_bots", DefaultPreviewBots)

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", DefaultSQLitePath)

	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.local_path", DefaultStoragePath)
	v.SetDefault("storage.signing_key", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket", "file-shares")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.endpoint", "")

	v.SetDefault("pin_attempts.max_failures", 5)
	v.SetDefault("pin_attempts.window_minutes", 15)
	v.SetDefault("pin_attempts.block_minutes", 15)

	v.SetDefault("expiration.enabled", true)
	v.SetDefault("expiration.check_interval_min", 60)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load builds the configuration from defaults and EZYSHARE_* environment
// variables, layering the YAML file at path in between when path is set.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.MaxSize <= 0 {
		return errors.New("max_size_mib must be greater than 0")
	}
	if c.RetentionHours <= 0 {
		return errors.New("retention_hours must be greater than 0")
	}
	if c.SignedURLTTLSeconds <= 0 {
		return errors.New("signed_url_ttl_seconds must be greater than 0")
	}
	if c.Expiration.Enabled && c.Expiration.CheckInterval <= 0 {
		return errors.New("check_interval_min must be greater than 0")
	}
	if c.PinAttempt.MaxFailures < 0 {
		return errors.New("pin_attempts.max_failures must not be negative")
	}
	if c.PinAttempt.MaxFailures > 0 && (c.PinAttempt.WindowMinutes <= 0 || c.PinAttempt.BlockMinutes <= 0) {
		return errors.New("pin_attempts window and block must be greater than 0")
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Storage.Backend {
	case BackendLocal, BackendS3:
	default:
		return fmt.Errorf("unsupported storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == BackendS3 && c.Storage.S3.Bucket == "" {
		return errors.New("storage.s3.bucket is required for the s3 backend")
	}

	return nil
}

func (c *Config) MaxSizeToBytes() int64 {
	return int64(c.MaxSize * 1024 * 1024)
}

// Retention is the fixed lifetime of every share.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

func (c *Config) SignedURLTTL() time.Duration {
	return time.Duration(c.SignedURLTTLSeconds) * time.Second
}

// CheckIntervalDuration is how often the sweeper runs, one hour when unset.
func (e ExpirationConfig) CheckIntervalDuration() time.Duration {
	if e.CheckInterval <= 0 {
		return time.Hour
	}
	return time.Duration(e.CheckInterval) * time.Minute
}

func (p PinAttemptConfig) Window() time.Duration {
	return time.Duration(p.WindowMinutes) * time.Minute
}

func (p PinAttemptConfig) Block() time.Duration {
	return time.Duration(p.BlockMinutes) * time.Minute
}
