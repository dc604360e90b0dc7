package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DBDriver    string // postgres / sqlite
	DatabaseURL string // あれば最優先

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	PostgresSSLMode  string

	SQLitePath string

	JWTSecret string // JWT署名シークレット

	RedisAddr          string // 空なら在庫通知のpublishはしない
	RedisDB            int
	RedisChannelPrefix string

	OrderRetryAttempts int // 在庫競合時の再試行回数
	LogLevel           string
}

// Loadは環境変数
func Load() (Config, error) {
	cfg := Config{
		Port:               getenv("PORT", "8080"),
		DBDriver:           strings.ToLower(getenv("DB_DRIVER", DriverPostgres)),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		PostgresUser:       getenv("POSTGRES_USER", "postgres"),
		PostgresPassword:   getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:         getenv("POSTGRES_DB", "marketplace"),
		PostgresHost:       getenv("POSTGRES_HOST", "localhost"),
		PostgresSSLMode:    getenv("POSTGRES_SSLMODE", "disable"),
		SQLitePath:         getenv("SQLITE_PATH", "marketplace.db"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisChannelPrefix: getenv("REDIS_CHANNEL_PREFIX", "marketplace"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.PostgresPort, err = atoiDefault("POSTGRES_PORT", 5432); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = atoiDefault("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.OrderRetryAttempts, err = atoiDefault("ORDER_RETRY_ATTEMPTS", 3); err != nil {
		return Config{}, err
	}

	//必須チェック
	switch cfg.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return Config{}, fmt.Errorf("DB_DRIVER must be %q or %q", DriverPostgres, DriverSQLite)
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.OrderRetryAttempts < 1 {
		return Config{}, fmt.Errorf("ORDER_RETRY_ATTEMPTS must be >= 1")
	}

	return cfg, nil
}

func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// DATABASE_URLがあればそれを使う
func (c Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

func getenv(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}
