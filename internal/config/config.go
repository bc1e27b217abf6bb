package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment  string
	HTTPPort     string
	DatabaseDSN  string
	JWTSecret    string
	TokenTTL     time.Duration
	LockTimeout  time.Duration
	FilesDir     string
	LogDir       string
	Debug        bool
	CORSOrigins  []string
	SeedEnabled  bool
	MaxUploadMiB int64

	DueScanSchedule string
	DueWindowDays   int
	NotifyURLs      []string
}

// MaxUploadBytes is the attachment size limit in bytes.
func (c Config) MaxUploadBytes() int64 {
	return c.MaxUploadMiB << 20
}

// IsProduction reports whether the server runs with production settings.
func (c Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// Load reads env vars and falls back to defaults so the server can boot with zero configuration.
// A .env file in the working directory is loaded first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:     getEnv("EQT_ENV", "development"),
		HTTPPort:        getEnv("EQT_HTTP_PORT", "8080"),
		DatabaseDSN:     getEnv("EQT_DB_DSN", filepath.Join("data", "equiptrack.db")),
		JWTSecret:       getEnv("EQT_JWT_SECRET", "dev-secret"),
		FilesDir:        getEnv("EQT_FILES_DIR", filepath.Join("data", "files")),
		LogDir:          getEnv("EQT_LOG_DIR", filepath.Join("data", "logs")),
		CORSOrigins:     splitList(getEnv("EQT_CORS_ORIGINS", "*")),
		DueScanSchedule: getEnv("EQT_DUE_SCAN_SCHEDULE", "@daily"),
		NotifyURLs:      splitList(getEnv("EQT_NOTIFY_URLS", "")),
	}

	var err error
	if cfg.TokenTTL, err = getDuration("EQT_TOKEN_TTL", 8*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.LockTimeout, err = getDuration("EQT_LOCK_TIMEOUT", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.DueWindowDays, err = getInt("EQT_DUE_WINDOW_DAYS", 30); err != nil {
		return Config{}, err
	}
	maxUpload, err := getInt("EQT_MAX_UPLOAD_MIB", 25)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxUploadMiB = int64(maxUpload)
	if cfg.Debug, err = getBool("EQT_DEBUG", false); err != nil {
		return Config{}, err
	}
	if cfg.SeedEnabled, err = getBool("EQT_SEED_ENABLED", true); err != nil {
		return Config{}, err
	}

	if cfg.IsProduction() && cfg.JWTSecret == "dev-secret" {
		return Config{}, fmt.Errorf("EQT_JWT_SECRET must be set in production")
	}

	if !isPostgresDSN(cfg.DatabaseDSN) {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabaseDSN), 0o755); err != nil {
			return Config{}, fmt.Errorf("ensure data directory: %w", err)
		}
	}
	if err := os.MkdirAll(cfg.FilesDir, 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure files directory: %w", err)
	}

	return cfg, nil
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("parse %s: duration must be positive", key)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("parse %s: must be positive", key)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
