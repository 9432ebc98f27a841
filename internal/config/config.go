package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	NewRelic     NewRelicConfig
	Matching     MatchingConfig
	ServiceHours ServiceHoursConfig
	Lifecycle    LifecycleConfig
	WebSocket    WebSocketConfig
	Cache        CacheConfig
	Log          LogConfig
}

type ServerConfig struct {
	Port string
	Env  string
	Host string
}

type DatabaseConfig struct {
	Host           string
	Port           int
	Name           string
	User           string
	Password       string
	SSLMode        string
	MaxConnections int
	MaxIdleConns   int
	OpTimeout      time.Duration
}

type RedisConfig struct {
	Host        string
	Port        string
	Password    string
	DB          int
	MaxRetries  int
	PoolSize    int
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

type NewRelicConfig struct {
	LicenseKey string
	AppName    string
	Enabled    bool
}

// MatchingConfig controls how create-or-join requests are grouped
type MatchingConfig struct {
	Window               time.Duration
	DefaultMaxPassengers int
}

// ServiceHoursConfig is the operating window checked against departure times
type ServiceHoursConfig struct {
	Enabled   bool
	OpenHour  int
	CloseHour int
}

// LifecycleConfig controls archival and purge sweeps
type LifecycleConfig struct {
	RetentionDays int
	SweepHour     int
	SweepInterval time.Duration
}

type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
}

type CacheConfig struct {
	TTLWaitingRides time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnvAsInt("DB_PORT", 5432),
			Name:           getEnv("DB_NAME", "carpool"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxConnections: getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MaxIdleConns:   getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 5),
			OpTimeout:      time.Duration(getEnvAsInt("DB_OP_TIMEOUT_SECONDS", 5)) * time.Second,
		},
		Redis: RedisConfig{
			Host:        getEnv("REDIS_HOST", "localhost"),
			Port:        getEnv("REDIS_PORT", "6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvAsInt("REDIS_DB", 0),
			MaxRetries:  getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:    getEnvAsInt("REDIS_POOL_SIZE", 50),
			DialTimeout: 5 * time.Second,
			ReadTimeout: 3 * time.Second,
		},
		NewRelic: NewRelicConfig{
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			AppName:    getEnv("NEW_RELIC_APP_NAME", "pg-carpool"),
			Enabled:    getEnvAsBool("NEW_RELIC_ENABLED", false),
		},
		Matching: MatchingConfig{
			Window:               time.Duration(getEnvAsInt("MATCHING_WINDOW_MINUTES", 30)) * time.Minute,
			DefaultMaxPassengers: getEnvAsInt("DEFAULT_MAX_PASSENGERS", 4),
		},
		ServiceHours: ServiceHoursConfig{
			Enabled:   getEnvAsBool("SERVICE_HOURS_ENABLED", true),
			OpenHour:  getEnvAsInt("SERVICE_HOURS_OPEN", 8),
			CloseHour: getEnvAsInt("SERVICE_HOURS_CLOSE", 20),
		},
		Lifecycle: LifecycleConfig{
			RetentionDays: getEnvAsInt("ARCHIVE_RETENTION_DAYS", 30),
			SweepHour:     getEnvAsInt("SWEEP_HOUR", 3),
			SweepInterval: time.Duration(getEnvAsInt("SWEEP_INTERVAL_MINUTES", 60)) * time.Minute,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getEnvAsInt("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize: getEnvAsInt("WS_WRITE_BUFFER_SIZE", 1024),
		},
		Cache: CacheConfig{
			TTLWaitingRides: time.Duration(getEnvAsInt("CACHE_TTL_WAITING_RIDES", 60)) * time.Second,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Matching.Window <= 0 {
		return fmt.Errorf("MATCHING_WINDOW_MINUTES must be positive")
	}
	if c.Matching.DefaultMaxPassengers < 1 || c.Matching.DefaultMaxPassengers > 8 {
		return fmt.Errorf("DEFAULT_MAX_PASSENGERS must be between 1 and 8")
	}
	if c.ServiceHours.Enabled {
		if c.ServiceHours.OpenHour < 0 || c.ServiceHours.OpenHour > 23 ||
			c.ServiceHours.CloseHour < 0 || c.ServiceHours.CloseHour > 23 ||
			c.ServiceHours.OpenHour >= c.ServiceHours.CloseHour {
			return fmt.Errorf("SERVICE_HOURS_OPEN/CLOSE must form a valid window")
		}
	}
	if c.Lifecycle.RetentionDays < 1 {
		return fmt.Errorf("ARCHIVE_RETENTION_DAYS must be at least 1")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
