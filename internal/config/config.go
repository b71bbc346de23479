// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads application configuration from CLUB_ environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/olegiv/clubcms/internal/model"
)

// knownWeakSecrets contains default/example secrets that must be rejected in production.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Media backends.
const (
	MediaLocal  = "local"
	MediaGCS    = "gcs"
	MediaMemory = "memory"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string `env:"CLUB_DB_PATH" envDefault:"./data/clubcms.db"`
	SessionSecret string `env:"CLUB_SESSION_SECRET,required"`
	ServerHost    string `env:"CLUB_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"CLUB_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"CLUB_ENV" envDefault:"development"`
	LogLevel      string `env:"CLUB_LOG_LEVEL" envDefault:"info"`

	// Authoring account
	AdminEmail        string `env:"CLUB_ADMIN_EMAIL"`
	AdminPasswordHash string `env:"CLUB_ADMIN_PASSWORD_HASH"` // argon2id encoded hash

	// Media storage. MediaBaseURL is the public base URL for the local and
	// memory backends. ReclaimSchedule is the cron spec of the media
	// reclamation sweep; empty disables it.
	MediaBackend    string        `env:"CLUB_MEDIA_BACKEND" envDefault:"local"`
	MediaDir        string        `env:"CLUB_MEDIA_DIR" envDefault:"./media"`
	MediaBaseURL    string        `env:"CLUB_MEDIA_BASE_URL" envDefault:"/media/"`
	GCSCredentials  string        `env:"CLUB_GCS_CREDENTIALS_FILE"`
	GCSCDNDomain    string        `env:"CLUB_GCS_CDN_DOMAIN"`
	BucketNews      string        `env:"CLUB_BUCKET_NEWS" envDefault:"news"`
	BucketEvents    string        `env:"CLUB_BUCKET_EVENTS" envDefault:"events"`
	BucketGallery   string        `env:"CLUB_BUCKET_GALLERY" envDefault:"gallery"`
	BucketLeaders   string        `env:"CLUB_BUCKET_LEADERSHIP" envDefault:"leadership"`
	MaxUploadSize   int64         `env:"CLUB_MAX_UPLOAD_SIZE" envDefault:"10485760"`
	StorageTimeout  time.Duration `env:"CLUB_STORAGE_TIMEOUT" envDefault:"30s"`
	ReclaimSchedule string        `env:"CLUB_RECLAIM_SCHEDULE" envDefault:"@every 6h"`
	ReclaimGrace    time.Duration `env:"CLUB_RECLAIM_GRACE" envDefault:"24h"`

	// Cache configuration
	RedisURL     string        `env:"CLUB_REDIS_URL"`                          // Optional Redis URL for the list cache and change bus
	CachePrefix  string        `env:"CLUB_CACHE_PREFIX" envDefault:"clubcms:"` // Redis key prefix
	CacheTTL     time.Duration `env:"CLUB_CACHE_TTL" envDefault:"5m"`          // List page TTL
	CacheMaxSize int           `env:"CLUB_CACHE_MAX_SIZE" envDefault:"10000"`  // Max memory cache entries

	// Change notification. NotifyDebounce is the coalescing window per
	// content type; 0 publishes every change immediately.
	NotifyPrefix   string        `env:"CLUB_NOTIFY_PREFIX" envDefault:"clubcms:"`
	NotifyDebounce time.Duration `env:"CLUB_NOTIFY_DEBOUNCE" envDefault:"0s"`

	AuditRetention time.Duration `env:"CLUB_AUDIT_RETENTION" envDefault:"2160h"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedis returns true if Redis is configured for caching and notification.
func (c Config) UseRedis() bool {
	return c.RedisURL != ""
}

// Buckets returns the bucket name per content type.
func (c Config) Buckets() map[model.ContentType]string {
	return map[model.ContentType]string{
		model.TypeNews:       c.BucketNews,
		model.TypeEvents:     c.BucketEvents,
		model.TypeGallery:    c.BucketGallery,
		model.TypeLeadership: c.BucketLeaders,
	}
}

// SlogLevel maps LogLevel to a slog level. Unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// MinSessionSecretLength is the minimum required length for the session secret.
// AES-256 requires 32 bytes minimum for secure encryption.
const MinSessionSecretLength = 32

// bucketName follows the GCS naming rules, which are the strictest of the backends.
var bucketName = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{1,61}[a-z0-9]$`)

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Warn about low-entropy secrets
	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("CLUB_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	return cfg, nil
}

// Validate checks values that env tags cannot express.
func (c *Config) Validate() error {
	if len(c.SessionSecret) < MinSessionSecretLength {
		return fmt.Errorf("CLUB_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(c.SessionSecret))
	}
	for _, weak := range knownWeakSecrets {
		if c.SessionSecret == weak {
			return errors.New("CLUB_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	switch c.MediaBackend {
	case MediaLocal, MediaGCS, MediaMemory:
	default:
		return fmt.Errorf("CLUB_MEDIA_BACKEND must be one of local, gcs, memory; got %q", c.MediaBackend)
	}

	seen := make(map[string]model.ContentType)
	for _, t := range model.ContentTypes {
		name := c.Buckets()[t]
		if !bucketName.MatchString(name) || strings.Contains(name, "..") {
			return fmt.Errorf("invalid bucket name %q for %s", name, t)
		}
		if other, dup := seen[name]; dup && c.MediaBackend == MediaGCS {
			return fmt.Errorf("bucket %q is used for both %s and %s", name, other, t)
		}
		seen[name] = t
	}

	if c.AdminEmail != "" {
		if _, err := mail.ParseAddress(c.AdminEmail); err != nil {
			return fmt.Errorf("CLUB_ADMIN_EMAIL is not a valid address: %w", err)
		}
		if c.AdminPasswordHash == "" {
			return errors.New("CLUB_ADMIN_PASSWORD_HASH is required when CLUB_ADMIN_EMAIL is set")
		}
	}

	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("CLUB_MAX_UPLOAD_SIZE must be positive, got %d", c.MaxUploadSize)
	}
	if c.StorageTimeout <= 0 {
		return fmt.Errorf("CLUB_STORAGE_TIMEOUT must be positive, got %s", c.StorageTimeout)
	}
	if c.NotifyDebounce < 0 || c.ReclaimGrace < 0 {
		return errors.New("CLUB_NOTIFY_DEBOUNCE and CLUB_RECLAIM_GRACE must not be negative")
	}
	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
