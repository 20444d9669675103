package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sundaybox/weekplanner/internal/logger"
)

type Config struct {
	GeminiAPIKey string
	CartURL      string
	Owner        string
	DB           DBConfig
	Redis        RedisConfig
	Session      SessionConfig
	Seed         SeedConfig
	Logger       LoggerConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type RedisConfig struct {
	Host string
	Port string
}

// Enabled reports whether a Redis-backed session store is configured.
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

// SeedConfig carries the duplicate-name policy applied when the harvested
// cart lists the same ingredient more than once.
type SeedConfig struct {
	DuplicatePolicy string // "sum" or "overwrite"
}

type LoggerConfig struct {
	Level      logger.LogLevel
	OutputPath string
	Format     string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.LevelDebug
	case "info":
		return logger.LevelInfo
	case "warn", "warning":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}

func parseDurationMinutes(key string, defaultMinutes int) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(defaultMinutes) * time.Minute
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return time.Duration(defaultMinutes) * time.Minute
	}
	return time.Duration(minutes) * time.Minute
}

func Load() (*Config, error) {
	dupPolicy := strings.ToLower(getEnvOrDefault("SEED_DUPLICATE_POLICY", "sum"))
	if dupPolicy != "sum" && dupPolicy != "overwrite" {
		return nil, fmt.Errorf("invalid SEED_DUPLICATE_POLICY %q: must be sum or overwrite", dupPolicy)
	}

	return &Config{
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		CartURL:      os.Getenv("CART_URL"),
		Owner:        getEnvOrDefault("PLAN_OWNER", "default"),
		DB: DBConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvOrDefault("DB_PORT", "5432"),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrDefault("DB_NAME", "weekplanner"),
		},
		Redis: RedisConfig{
			Host: os.Getenv("REDIS_HOST"),
			Port: getEnvOrDefault("REDIS_PORT", "6379"),
		},
		Session: SessionConfig{
			TTL:           parseDurationMinutes("SESSION_TTL_MINUTES", 120),
			SweepInterval: parseDurationMinutes("SESSION_SWEEP_MINUTES", 15),
		},
		Seed: SeedConfig{
			DuplicatePolicy: dupPolicy,
		},
		Logger: LoggerConfig{
			Level:      parseLogLevel(getEnvOrDefault("LOG_LEVEL", "info")),
			OutputPath: getEnvOrDefault("LOG_OUTPUT", "logs/planner.log"),
			Format:     getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}, nil
}
