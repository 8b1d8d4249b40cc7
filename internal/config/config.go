package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// minJWTSecretLength はセッショントークン署名鍵の最小バイト数。
const minJWTSecretLength = 32

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// OIDC
	OIDCIssuerURL    string
	OIDCInternalURL  string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string

	// Session
	JWTSecret     string
	SessionMaxAge int // 秒

	// Rate Limit
	RateLimitGeneral int // 1ユーザーあたりのreq/min

	// Health
	HealthProbeTimeout time.Duration

	// Backup
	BackupWALWait       time.Duration
	BackupSweepSchedule string
	BackupSweepMaxAge   time.Duration

	// Logging
	LogLevel slog.Level

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// KANBAN_ENV_FILE（デフォルト .env）が存在する場合は先に読み込むが、
// 既に設定されている環境変数は上書きしない。
// 必須環境変数が未設定の場合は、未設定のものをまとめてエラーで返す。
func Load() (*Config, error) {
	if err := loadEnvFile(getEnvString("KANBAN_ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{}

	// Required fields
	var missing []string
	require := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg.DatabaseURL = require("DATABASE_URL")
	cfg.OIDCClientID = require("OIDC_CLIENT_ID")
	cfg.OIDCClientSecret = require("OIDC_CLIENT_SECRET")
	cfg.OIDCRedirectURL = require("OIDC_REDIRECT_URL")
	cfg.JWTSecret = require("JWT_SECRET")
	cfg.BaseURL = require("BASE_URL")

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}
	if len(cfg.JWTSecret) < minJWTSecretLength {
		return nil, fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLength)
	}

	// Optional fields with defaults
	cfg.OIDCIssuerURL = strings.TrimRight(getEnvString("OIDC_ISSUER_URL", "http://authentik:9000"), "/")
	cfg.OIDCInternalURL = strings.TrimRight(getEnvString("OIDC_INTERNAL_URL", cfg.OIDCIssuerURL), "/")
	cfg.RedisURL = getEnvString("REDIS_URL", "redis://redis:6379")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 7*24*60*60)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.HealthProbeTimeout = getEnvDuration("HEALTH_PROBE_TIMEOUT", 5*time.Second)
	cfg.BackupWALWait = getEnvDuration("BACKUP_WAL_WAIT", 2*time.Second)
	cfg.BackupSweepSchedule = getEnvString("BACKUP_SWEEP_SCHEDULE", "@hourly")
	cfg.BackupSweepMaxAge = getEnvDuration("BACKUP_SWEEP_MAX_AGE", time.Hour)
	cfg.LogLevel = getEnvLevel("LOG_LEVEL", slog.LevelInfo)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "")

	return cfg, nil
}

// SessionTTL はセッションの有効期間をtime.Durationで返す。
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionMaxAge) * time.Second
}

// loadEnvFile は.envファイルを読み込む。ファイルが存在しない場合は何もしない。
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvLevel(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return defaultVal
	}
	return level
}
