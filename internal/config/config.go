// Package config loads server settings from the environment.
//
// A .env file in the working directory, if present, is loaded first;
// variables already set in the environment win over it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
	StoreBolt   = "bolt"

	BlobDisk = "disk"
	BlobB2   = "b2"
)

type Config struct {
	Port     int
	LogLevel slog.Level

	StoreBackend  string
	DBPath        string
	BoltPath      string
	MongoURI      string
	MongoDatabase string

	JWTSecret   string
	SessionTTL  time.Duration
	RememberTTL time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
	StateHashKey       string

	BlobBackend    string
	UploadDir      string
	FileOrigin     string
	B2AccountID    string
	B2AppKey       string
	B2Bucket       string
	MaxUploadBytes int64

	BootstrapAdminEmail    string
	BootstrapAdminPassword string
	BootstrapAdminName     string
}

// Load reads .env (if any) and the environment, then validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv without touching the process
// environment.
func FromEnv(getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	var errs []error
	port, err := strconv.Atoi(env("PORT", "8080"))
	if err != nil || port <= 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %q is not a valid port", env("PORT", "")))
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(env("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	sessionTTL, err := time.ParseDuration(env("SESSION_TTL", "15m"))
	if err != nil || sessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL %q is not a positive duration", env("SESSION_TTL", "")))
	}
	rememberTTL, err := time.ParseDuration(env("REMEMBER_TTL", "720h"))
	if err != nil || rememberTTL <= 0 {
		errs = append(errs, fmt.Errorf("REMEMBER_TTL %q is not a positive duration", env("REMEMBER_TTL", "")))
	}

	maxUpload, err := strconv.ParseInt(env("MAX_UPLOAD_BYTES", strconv.Itoa(16<<20)), 10, 64)
	if err != nil || maxUpload <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES %q is not a positive integer", env("MAX_UPLOAD_BYTES", "")))
	}

	cfg := &Config{
		Port:     port,
		LogLevel: level,

		StoreBackend:  env("STORE_BACKEND", StoreSQLite),
		DBPath:        env("DB_PATH", "data/smartwork.db"),
		BoltPath:      env("BOLT_PATH", "data/smartwork.bolt"),
		MongoURI:      env("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: env("MONGO_DATABASE", "smartwork"),

		JWTSecret:   getenv("JWT_SECRET"),
		SessionTTL:  sessionTTL,
		RememberTTL: rememberTTL,

		GoogleClientID:     env("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: env("GOOGLE_CLIENT_SECRET", ""),
		GoogleCallbackURL:  env("GOOGLE_CALLBACK_URL", fmt.Sprintf("http://localhost:%d/auth/google/callback", port)),
		StateHashKey:       getenv("STATE_HASH_KEY"),

		BlobBackend:    env("BLOB_BACKEND", BlobDisk),
		UploadDir:      env("UPLOAD_DIR", "data/uploads"),
		FileOrigin:     env("FILE_ORIGIN", fmt.Sprintf("http://localhost:%d", port)),
		B2AccountID:    env("B2_ACCOUNT_ID", ""),
		B2AppKey:       getenv("B2_APP_KEY"),
		B2Bucket:       env("B2_BUCKET", ""),
		MaxUploadBytes: maxUpload,

		BootstrapAdminEmail:    env("BOOTSTRAP_ADMIN_EMAIL", ""),
		BootstrapAdminPassword: getenv("BOOTSTRAP_ADMIN_PASSWORD"),
		BootstrapAdminName:     env("BOOTSTRAP_ADMIN_NAME", "Administrator"),
	}

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be set to at least 16 characters"))
	}

	switch c.StoreBackend {
	case StoreSQLite, StoreBolt:
	case StoreMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND %q must be %q, %q or %q", c.StoreBackend, StoreSQLite, StoreMongo, StoreBolt))
	}

	switch c.BlobBackend {
	case BlobDisk:
	case BlobB2:
		if c.B2AccountID == "" || c.B2AppKey == "" || c.B2Bucket == "" {
			errs = append(errs, errors.New("B2_ACCOUNT_ID, B2_APP_KEY and B2_BUCKET are required for the b2 blob backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("BLOB_BACKEND %q must be %q or %q", c.BlobBackend, BlobDisk, BlobB2))
	}

	if c.GoogleClientID != "" {
		if c.GoogleClientSecret == "" {
			errs = append(errs, errors.New("GOOGLE_CLIENT_SECRET is required when GOOGLE_CLIENT_ID is set"))
		}
		if len(c.StateHashKey) < 32 {
			errs = append(errs, errors.New("STATE_HASH_KEY must be at least 32 characters when Google sign-in is enabled"))
		}
	}

	if c.BootstrapAdminEmail != "" && len(c.BootstrapAdminPassword) < 8 {
		errs = append(errs, errors.New("BOOTSTRAP_ADMIN_PASSWORD must be at least 8 characters"))
	}
	return errs
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != ""
}
