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

// Source modes
const (
	SourceModeAPI      = "api"
	SourceModePostgres = "postgres"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Upstream data source
	SourceMode string // api, postgres
	TrendAPI   TrendAPIConfig

	// Database (SourceMode=postgres)
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Evidence
	EvidenceConfigPath string        // YAML thresholds/theme; empty = built-in defaults
	CacheTTL           time.Duration // upstream payload cache TTL

	// Scheduled refresh
	Refresh RefreshConfig

	// Live stream
	WSMaxMessagesPerSec int

	// Logging
	LogLevel  string
	LogFormat string
}

// TrendAPIConfig holds upstream trend service configuration
type TrendAPIConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	RPS     int // in-process request rate (0 = unlimited)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RefreshConfig holds the evidence refresh job configuration
type RefreshConfig struct {
	Enabled  bool
	Schedule string   // cron expression with seconds
	Topics   []string // topic ids to prewarm
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		SourceMode: strings.ToLower(getEnv("SOURCE_MODE", SourceModeAPI)),
		TrendAPI: TrendAPIConfig{
			BaseURL: strings.TrimRight(getEnv("TREND_API_BASE_URL", "http://localhost:8000/api"), "/"),
			APIKey:  getEnv("TREND_API_KEY", ""),
			Timeout: getEnvAsDuration("TREND_API_TIMEOUT", "10s"),
			RPS:     getEnvAsInt("TREND_API_RPS", 20),
		},

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		EvidenceConfigPath: getEnv("EVIDENCE_CONFIG", ""),
		CacheTTL:           getEnvAsDuration("CACHE_TTL", "1m"),

		Refresh: RefreshConfig{
			Enabled:  getEnvAsBool("REFRESH_ENABLED", false),
			Schedule: getEnv("REFRESH_SCHEDULE", "0 */5 * * * *"),
			Topics:   getEnvAsList("REFRESH_TOPICS"),
		},

		WSMaxMessagesPerSec: getEnvAsInt("WS_MAX_MESSAGES_PER_SEC", 5),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.SourceMode {
	case SourceModeAPI:
		if c.TrendAPI.BaseURL == "" {
			return fmt.Errorf("TREND_API_BASE_URL is required when SOURCE_MODE=api")
		}
	case SourceModePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when SOURCE_MODE=postgres")
		}
	default:
		return fmt.Errorf("SOURCE_MODE must be one of: api, postgres")
	}

	if c.Refresh.Enabled && len(c.Refresh.Topics) == 0 {
		return fmt.Errorf("REFRESH_TOPICS is required when REFRESH_ENABLED=true")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

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

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma separated value, dropping blanks
func getEnvAsList(key string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
