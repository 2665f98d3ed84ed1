package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ゲートのバックエンド種別。
const (
	RateLimitBackendPostgres = "postgres"
	RateLimitBackendRedis    = "redis"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Server
	ServerPort      string
	BaseURL         string // 末尾は常に"/"
	ShutdownTimeout time.Duration

	// CORS
	CORSAllowedOrigins []string

	// 投稿間隔のゲート
	RateLimitWindow  time.Duration
	RateLimitBackend string
	RedisURL         string
	CleanupInterval  time.Duration // workerによる古い記録の削除間隔

	// リクエストスロットル
	RequestRatePerMin int
	RequestBurst      int

	// 通知
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	SMTPFrom          string
	Language          string

	// 入力の扱い
	StripMarkup       bool
	TrustProxyHeaders bool

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む。既に設定済みの環境変数は上書きしない。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	return load(".env")
}

func load(dotenvPath string) (*Config, error) {
	if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", dotenvPath, err)
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = strings.TrimSpace(os.Getenv("BASE_URL"))
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.NotificationEmail = strings.TrimSpace(os.Getenv("NOTIFICATION_EMAIL"))
	if cfg.NotificationEmail == "" {
		missing = append(missing, "NOTIFICATION_EMAIL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	cfg.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS")
	cfg.RateLimitWindow = getEnvDuration("RATE_LIMIT_WINDOW", 30*time.Second)
	cfg.RateLimitBackend = strings.ToLower(getEnvString("RATE_LIMIT_BACKEND", RateLimitBackendPostgres))
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 10*time.Minute)
	cfg.RequestRatePerMin = getEnvInt("REQUEST_RATE_PER_MIN", 60)
	cfg.RequestBurst = getEnvInt("REQUEST_BURST", 20)
	cfg.SMTPHost = getEnvString("SMTP_HOST", "")
	cfg.SMTPPort = getEnvInt("SMTP_PORT", 587)
	cfg.SMTPUsername = getEnvString("SMTP_USERNAME", "")
	cfg.SMTPPassword = getEnvString("SMTP_PASSWORD", "")
	cfg.SMTPFrom = getEnvString("SMTP_FROM", "")
	cfg.Language = getEnvString("LANGUAGE", "en")
	cfg.StripMarkup = getEnvBool("STRIP_MARKUP", false)
	cfg.TrustProxyHeaders = getEnvBool("TRUST_PROXY_HEADERS", false)
	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))

	switch cfg.RateLimitBackend {
	case RateLimitBackendPostgres:
	case RateLimitBackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when RATE_LIMIT_BACKEND=%s", RateLimitBackendRedis)
		}
	default:
		return nil, fmt.Errorf("unsupported RATE_LIMIT_BACKEND: %q", cfg.RateLimitBackend)
	}

	if cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %v", cfg.RateLimitWindow)
	}

	return cfg, nil
}

// SMTPConfigured はSMTPによるメール送信が設定されているかを返す。
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != ""
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

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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

// getEnvList はカンマ区切りの値を空要素を除いて返す。
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
