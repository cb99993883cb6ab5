// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// セッションストアの種類
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // HTTPサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// TrustedProxies は X-Forwarded-For を信用するプロキシのIP/CIDRです。
	// 空の場合はどのプロキシも信用せず、接続元アドレスをクライアントIPとして扱います。
	TrustedProxies []string

	MetricsEnabled bool // /metrics を公開するか

	// データベース設定
	DatabaseURL      string // 完全なDSN（指定時は個別設定より優先）
	DatabaseHost     string
	DatabasePort     string
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseSSLMode  string

	// セッション設定
	SessionSecret   string // セッションクッキー署名用の秘密鍵
	SessionStore    string // memory または redis
	SessionRedisURL string // SessionStore=redis のときの接続URL

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// ログイン試行制限（0で無効）
	LoginMaxAttempts int
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		Port:    getEnv("PORT", "3000"),
		GinMode: getEnv("GIN_MODE", "debug"),

		TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DatabaseHost:     getEnv("POSTGRES_HOST", "db"),
		DatabasePort:     getEnv("POSTGRES_PORT", "5432"),
		DatabaseName:     getEnv("POSTGRES_DB", ""),
		DatabaseUser:     getEnv("POSTGRES_USER", ""),
		DatabasePassword: getEnv("POSTGRES_PASSWORD", ""),
		DatabaseSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		SessionSecret:   getEnv("SESSION_SECRET", ""),
		SessionStore:    getEnv("SESSION_STORE", SessionStoreMemory),
		SessionRedisURL: getEnv("SESSION_REDIS_URL", "redis://127.0.0.1:6379/0"),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),

		LoginMaxAttempts: getEnvAsInt("LOGIN_MAX_ATTEMPTS", 5),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	switch c.SessionStore {
	case SessionStoreMemory, SessionStoreRedis:
	default:
		return fmt.Errorf("SESSION_STORE must be %q or %q, got %q", SessionStoreMemory, SessionStoreRedis, c.SessionStore)
	}
	if c.SessionStore == SessionStoreRedis && c.SessionRedisURL == "" {
		return fmt.Errorf("SESSION_REDIS_URL is required when SESSION_STORE=redis")
	}
	if c.LoginMaxAttempts < 0 {
		return fmt.Errorf("LOGIN_MAX_ATTEMPTS must not be negative")
	}
	for _, proxy := range c.TrustedProxies {
		if strings.Contains(proxy, "/") {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("TRUSTED_PROXIES: invalid CIDR %q", proxy)
			}
		} else if net.ParseIP(proxy) == nil {
			return fmt.Errorf("TRUSTED_PROXIES: invalid IP %q", proxy)
		}
	}

	// 本番環境では厳格にチェックする
	if c.GinMode == "release" {
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required in release mode")
		}
		if c.DatabaseURL == "" && c.DatabaseName == "" {
			return fmt.Errorf("POSTGRES_DB or DATABASE_URL is required in release mode")
		}
	}

	return nil
}

// DatabaseDSN は pgx に渡す接続文字列を返します。
func (c *Config) DatabaseDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.DatabaseHost, c.DatabasePort),
		Path:   "/" + c.DatabaseName,
	}
	if c.DatabaseUser != "" {
		if c.DatabasePassword != "" {
			u.User = url.UserPassword(c.DatabaseUser, c.DatabasePassword)
		} else {
			u.User = url.User(c.DatabaseUser)
		}
	}
	q := url.Values{}
	if c.DatabaseSSLMode != "" {
		q.Set("sslmode", c.DatabaseSSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します。
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList はカンマ区切りの環境変数を空要素を除いたスライスで返します。
func getEnvAsList(key string) []string {
	var values []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}
