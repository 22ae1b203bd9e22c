package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	Port          string
	Environment   string
	APIKey        string
	AdminUsername string
	AdminPassword string
	LogLevel      string

	// 予測リクエストの既定値
	DefaultCollection string
	DefaultPeriods    int
	MaxPeriods        int
	DefaultTopN       int
	RequestTimeout    time.Duration

	// ドキュメントストア
	StoreBackend       string
	FirestoreProjectID string
	DatabaseDSN        string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RedisKeyPrefix     string
	ExcelPath          string

	// ForecasterConfigFile is an optional YAML file overriding Forecaster.
	ForecasterConfigFile string
	Forecaster           ForecasterSettings
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		APIKey:        getEnv("API_KEY", ""),
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DefaultCollection: getEnv("DEFAULT_COLLECTION", "sales"),
		DefaultPeriods:    getEnvInt("DEFAULT_PERIODS", 30),
		MaxPeriods:        getEnvInt("MAX_PERIODS", 365),
		DefaultTopN:       getEnvInt("DEFAULT_TOP_N", 5),
		RequestTimeout:    getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),

		StoreBackend:       getEnv("STORE_BACKEND", "firestore"),
		FirestoreProjectID: getEnv("FIRESTORE_PROJECT_ID", os.Getenv("GOOGLE_CLOUD_PROJECT")),
		DatabaseDSN:        GetDatabaseDSN(),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		RedisKeyPrefix:     getEnv("REDIS_KEY_PREFIX", "sales"),
		ExcelPath:          getEnv("EXCEL_PATH", "data/sales.xlsx"),

		ForecasterConfigFile: os.Getenv("CONFIG_FILE"),
		Forecaster:           forecasterSettingsFromEnv(),
	}
}

// Validate は設定値の整合性をチェックする
func (c *Config) Validate() error {
	if c.DefaultPeriods <= 0 {
		return fmt.Errorf("DEFAULT_PERIODS must be positive, got %d", c.DefaultPeriods)
	}
	if c.MaxPeriods < c.DefaultPeriods {
		return fmt.Errorf("MAX_PERIODS (%d) must be >= DEFAULT_PERIODS (%d)", c.MaxPeriods, c.DefaultPeriods)
	}
	if c.DefaultTopN <= 0 {
		return fmt.Errorf("DEFAULT_TOP_N must be positive, got %d", c.DefaultTopN)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.DefaultCollection == "" {
		return fmt.Errorf("DEFAULT_COLLECTION cannot be empty")
	}
	return c.Forecaster.validate()
}

// GetDatabaseDSN returns the MySQL connection string.
// DB_* variables win over DATABASE_DSN; the fallback is a local development database.
func GetDatabaseDSN() string {
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	database := os.Getenv("DB_NAME")

	if user != "" && password != "" && host != "" && port != "" && database != "" {
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", user, password, host, port, database)
	}

	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		return dsn
	}

	return "sales:sales@tcp(localhost:3306)/sales?parseTime=true"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt は整数の環境変数を読む。解析できない場合は既定値
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("45s") or plain seconds ("45").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
