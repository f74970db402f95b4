package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the environment driven configuration for the chat service.
type Config struct {
	// Service Configuration
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"chat-api"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"CHAT_API_PORT" envDefault:"8290"`
	LogLevel        string        `env:"CHAT_LOG_LEVEL" envDefault:"info"`
	EnableTracing   bool          `env:"ENABLE_TRACING" envDefault:"false"`
	OTLPEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Database
	DatabaseURL    string        `env:"DB_POSTGRESQL_WRITE_DSN,notEmpty"`
	DBMaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBMaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"15"`
	DBConnLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	DBAutoCreate   bool          `env:"CHAT_DB_AUTO_CREATE" envDefault:"true"`

	// Change feed (NATS). Empty URL selects the in-process bus.
	NATSURL string `env:"CHAT_NATS_URL"`

	// Storage Backend Selection
	StorageBackend string `env:"CHAT_STORAGE_BACKEND" envDefault:"s3"` // Options: "s3" or "local"

	// Local Storage Configuration
	LocalStoragePath    string `env:"CHAT_LOCAL_STORAGE_PATH"`
	LocalStorageBaseURL string `env:"CHAT_LOCAL_STORAGE_BASE_URL"`

	// S3 Storage Configuration
	S3Endpoint       string `env:"CHAT_S3_ENDPOINT"`
	S3PublicEndpoint string `env:"CHAT_S3_PUBLIC_ENDPOINT"`
	S3Region         string `env:"CHAT_S3_REGION" envDefault:"us-west-2"`
	S3Bucket         string `env:"CHAT_S3_BUCKET"`
	S3AccessKeyID    string `env:"CHAT_S3_ACCESS_KEY_ID"`
	S3SecretKey      string `env:"CHAT_S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle   bool   `env:"CHAT_S3_USE_PATH_STYLE" envDefault:"true"`

	// Messaging
	MaxAttachmentBytes int64         `env:"CHAT_MAX_ATTACHMENT_BYTES" envDefault:"20971520"`
	SendTimeout        time.Duration `env:"CHAT_SEND_TIMEOUT" envDefault:"30s"`

	// Notifications
	NotificationRetention time.Duration `env:"CHAT_NOTIFICATION_RETENTION" envDefault:"24h"`
	RetentionSweepEvery   time.Duration `env:"CHAT_RETENTION_SWEEP_INTERVAL" envDefault:"1h"`
	UnreadPollInterval    time.Duration `env:"CHAT_UNREAD_POLL_INTERVAL" envDefault:"30s"`

	// Push registration
	PushPersistRetryDelay time.Duration `env:"CHAT_PUSH_PERSIST_RETRY_DELAY" envDefault:"5s"`
	PushFailureRetryDelay time.Duration `env:"CHAT_PUSH_FAILURE_RETRY_DELAY" envDefault:"10s"`

	// Authentication
	AuthEnabled  bool   `env:"AUTH_ENABLED" envDefault:"false"`
	AuthIssuer   string `env:"AUTH_ISSUER"`
	AuthAudience string `env:"AUTH_AUDIENCE"`
	AuthJWKSURL  string `env:"AUTH_JWKS_URL"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.S3Bucket = strings.TrimSpace(cfg.S3Bucket)
	cfg.S3AccessKeyID = strings.TrimSpace(cfg.S3AccessKeyID)
	cfg.S3SecretKey = strings.TrimSpace(cfg.S3SecretKey)
	cfg.S3Endpoint = strings.TrimSpace(cfg.S3Endpoint)
	cfg.S3PublicEndpoint = strings.TrimSpace(cfg.S3PublicEndpoint)
	if cfg.MaxAttachmentBytes <= 0 {
		cfg.MaxAttachmentBytes = 20 * 1024 * 1024
	}
	if cfg.NotificationRetention <= 0 {
		cfg.NotificationRetention = 24 * time.Hour
	}
	if cfg.AuthEnabled {
		if strings.TrimSpace(cfg.AuthIssuer) == "" {
			return nil, fmt.Errorf("AUTH_ISSUER is required when AUTH_ENABLED is true")
		}
		if strings.TrimSpace(cfg.AuthJWKSURL) == "" {
			return nil, fmt.Errorf("AUTH_JWKS_URL is required when AUTH_ENABLED is true")
		}
	}
	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// IsLocalStorage returns true if the local storage backend is configured.
func (c *Config) IsLocalStorage() bool {
	return strings.ToLower(strings.TrimSpace(c.StorageBackend)) == "local"
}
