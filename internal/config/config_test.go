// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/olegiv/clubcms/internal/model"
)

const testSecret = "test-secret-key-32-bytes-long!!!"

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set %s: %v", key, err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	// Clear environment and set only required var
	os.Clearenv()
	setEnv(t, "CLUB_SESSION_SECRET", testSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBPath != "./data/clubcms.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "./data/clubcms.db")
	}
	if cfg.ServerAddr() != "localhost:8080" {
		t.Errorf("ServerAddr() = %q, want %q", cfg.ServerAddr(), "localhost:8080")
	}
	if !cfg.IsDevelopment() {
		t.Errorf("Env = %q, want development", cfg.Env)
	}
	if cfg.MediaBackend != MediaLocal {
		t.Errorf("MediaBackend = %q, want %q", cfg.MediaBackend, MediaLocal)
	}
	if cfg.StorageTimeout != 30*time.Second {
		t.Errorf("StorageTimeout = %s, want 30s", cfg.StorageTimeout)
	}
	if cfg.ReclaimGrace != 24*time.Hour {
		t.Errorf("ReclaimGrace = %s, want 24h", cfg.ReclaimGrace)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %s, want 5m", cfg.CacheTTL)
	}
	if cfg.NotifyDebounce != 0 {
		t.Errorf("NotifyDebounce = %s, want 0", cfg.NotifyDebounce)
	}
	if cfg.UseRedis() {
		t.Error("UseRedis() = true without CLUB_REDIS_URL")
	}

	buckets := cfg.Buckets()
	for _, ct := range model.ContentTypes {
		if buckets[ct] != string(ct) {
			t.Errorf("bucket for %s = %q, want %q", ct, buckets[ct], ct)
		}
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Clearenv()
	setEnv(t, "CLUB_SESSION_SECRET", testSecret)
	setEnv(t, "CLUB_DB_PATH", "/custom/path.db")
	setEnv(t, "CLUB_SERVER_HOST", "0.0.0.0")
	setEnv(t, "CLUB_SERVER_PORT", "3000")
	setEnv(t, "CLUB_ENV", "production")
	setEnv(t, "CLUB_MEDIA_BACKEND", "gcs")
	setEnv(t, "CLUB_BUCKET_LEADERSHIP", "club-leaders")
	setEnv(t, "CLUB_STORAGE_TIMEOUT", "5s")
	setEnv(t, "CLUB_REDIS_URL", "redis://localhost:6379/0")
	setEnv(t, "CLUB_NOTIFY_DEBOUNCE", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBPath != "/custom/path.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/custom/path.db")
	}
	if cfg.ServerAddr() != "0.0.0.0:3000" {
		t.Errorf("ServerAddr() = %q", cfg.ServerAddr())
	}
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment() = true for production")
	}
	if cfg.MediaBackend != MediaGCS {
		t.Errorf("MediaBackend = %q", cfg.MediaBackend)
	}
	if cfg.Buckets()[model.TypeLeadership] != "club-leaders" {
		t.Errorf("leadership bucket = %q", cfg.Buckets()[model.TypeLeadership])
	}
	if cfg.StorageTimeout != 5*time.Second {
		t.Errorf("StorageTimeout = %s", cfg.StorageTimeout)
	}
	if !cfg.UseRedis() {
		t.Error("UseRedis() = false with CLUB_REDIS_URL set")
	}
	if cfg.NotifyDebounce != 250*time.Millisecond {
		t.Errorf("NotifyDebounce = %s", cfg.NotifyDebounce)
	}
}

func TestLoad_RequiredSessionSecret(t *testing.T) {
	os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail when CLUB_SESSION_SECRET is not set")
	}
}

func TestLoad_SessionSecretTooShort(t *testing.T) {
	tests := []struct {
		name   string
		secret string
	}{
		{"empty", ""},
		{"short", "short"},
		{"31_bytes", "1234567890123456789012345678901"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			setEnv(t, "CLUB_SESSION_SECRET", tt.secret)

			if _, err := Load(); err == nil {
				t.Fatalf("Load() should fail with %d-byte secret", len(tt.secret))
			}
		})
	}
}

func TestLoad_WeakSecret(t *testing.T) {
	for _, weak := range knownWeakSecrets {
		os.Clearenv()
		setEnv(t, "CLUB_SESSION_SECRET", weak)
		if _, err := Load(); err == nil {
			t.Errorf("Load() accepted known weak secret %q", weak)
		}
	}
}

func validConfig() Config {
	return Config{
		SessionSecret:  testSecret,
		MediaBackend:   MediaLocal,
		BucketNews:     "news",
		BucketEvents:   "events",
		BucketGallery:  "gallery",
		BucketLeaders:  "leadership",
		MaxUploadSize:  1 << 20,
		StorageTimeout: time.Second,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown backend", func(c *Config) { c.MediaBackend = "s3" }, "CLUB_MEDIA_BACKEND"},
		{"uppercase bucket", func(c *Config) { c.BucketNews = "News" }, "invalid bucket name"},
		{"bucket with slash", func(c *Config) { c.BucketGallery = "a/b" }, "invalid bucket name"},
		{"bucket with dots", func(c *Config) { c.BucketEvents = "a..b" }, "invalid bucket name"},
		{"shared bucket on gcs", func(c *Config) {
			c.MediaBackend = MediaGCS
			c.BucketEvents = "news"
		}, "used for both"},
		{"shared bucket on local", func(c *Config) { c.BucketEvents = "news" }, ""},
		{"admin without hash", func(c *Config) { c.AdminEmail = "secretary@club.test" }, "CLUB_ADMIN_PASSWORD_HASH"},
		{"bad admin email", func(c *Config) {
			c.AdminEmail = "not an address"
			c.AdminPasswordHash = "x"
		}, "CLUB_ADMIN_EMAIL"},
		{"zero upload size", func(c *Config) { c.MaxUploadSize = 0 }, "CLUB_MAX_UPLOAD_SIZE"},
		{"zero storage timeout", func(c *Config) { c.StorageTimeout = 0 }, "CLUB_STORAGE_TIMEOUT"},
		{"negative grace", func(c *Config) { c.ReclaimGrace = -time.Hour }, "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_SlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := Config{LogLevel: tt.level}
			if got := cfg.SlogLevel(); got != tt.want {
				t.Errorf("SlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasMinimumEntropy(t *testing.T) {
	tests := []struct {
		secret string
		want   bool
	}{
		{"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", false},
		{"abcdefghABCDEFGH1234567890abcdef", true},
		{testSecret, true},
	}
	for _, tt := range tests {
		if got := hasMinimumEntropy(tt.secret); got != tt.want {
			t.Errorf("hasMinimumEntropy(%q) = %v, want %v", tt.secret, got, tt.want)
		}
	}
}
