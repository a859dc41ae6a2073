package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ストレージドライバー
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Storage
	StorageDriver string
	DatabaseURL   string

	// Session
	SessionSecret     string
	SessionMaxAge     int // 秒
	SessionCookieName string
	// SessionRetention は期限切れセッションをクリーンアップで削除するまでの猶予。
	SessionRetention time.Duration

	// Password reset
	ResetTokenTTL time.Duration

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("STORAGE_DRIVER", StorageDriverPostgres)
	v.SetDefault("SESSION_MAX_AGE", 2592000)
	v.SetDefault("SESSION_COOKIE_NAME", "__session")
	v.SetDefault("SESSION_RETENTION", time.Duration(0))
	v.SetDefault("RESET_TOKEN_TTL", time.Hour)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("CORS_ALLOWED_ORIGIN", "http://localhost:5173")

	cfg := &Config{
		StorageDriver:     strings.ToLower(v.GetString("STORAGE_DRIVER")),
		DatabaseURL:       v.GetString("DATABASE_URL"),
		SessionSecret:     v.GetString("SESSION_SECRET"),
		SessionMaxAge:     v.GetInt("SESSION_MAX_AGE"),
		SessionCookieName: v.GetString("SESSION_COOKIE_NAME"),
		SessionRetention:  v.GetDuration("SESSION_RETENTION"),
		ResetTokenTTL:     v.GetDuration("RESET_TOKEN_TTL"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		ServerPort:        v.GetString("SERVER_PORT"),
		BaseURL:           v.GetString("BASE_URL"),
		CookieDomain:      v.GetString("COOKIE_DOMAIN"),
		CORSAllowedOrigin: v.GetString("CORS_ALLOWED_ORIGIN"),
	}

	// Required fields
	var missing []string

	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}
	if cfg.StorageDriver == StorageDriverPostgres && cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	switch cfg.StorageDriver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q: must be %s or %s",
			cfg.StorageDriver, StorageDriverPostgres, StorageDriverMemory)
	}

	// 不正な値は既定値に戻す
	if cfg.SessionMaxAge <= 0 {
		cfg.SessionMaxAge = 2592000
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = time.Hour
	}
	if cfg.SessionRetention < 0 {
		cfg.SessionRetention = 0
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	return cfg, nil
}
