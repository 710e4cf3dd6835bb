// Package config provides configuration management for the analytics service.
// It loads configuration from environment variables and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Upstream  UpstreamConfig
	Auth      AuthConfig
	Analytics AnalyticsConfig
	Sync      SyncConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds configuration of the optional ClickHouse mirror
type ClickHouseConfig struct {
	Enabled          bool
	Host             string // comma-separated for a replicated cluster
	Port             string
	Database         string
	User             string
	Password         string
	MaxOpenConns     int
	MaxIdleConns     int
	DialTimeout      time.Duration
	MaxExecutionTime time.Duration // per-query server limit for mirror batches
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// CacheConfig holds read cache configuration
type CacheConfig struct {
	TTL time.Duration
}

// UpstreamConfig holds the addresses of the ledger gRPC services
type UpstreamConfig struct {
	WalletAddress      string
	TransactionAddress string
	InvestmentAddress  string
	DialTimeout        time.Duration
}

// AuthConfig holds the shared secrets
type AuthConfig struct {
	InitialSyncKey string
	JWTSecret      string
}

// AnalyticsConfig holds settings of the projection transforms
type AnalyticsConfig struct {
	// TimeZone is the IANA zone in which calendar days and months are cut
	TimeZone string
}

// Location resolves TimeZone
func (a AnalyticsConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(a.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid ANALYTICS_TIMEZONE %q: %w", a.TimeZone, err)
	}
	return loc, nil
}

// SyncConfig holds settings of scheduled sync runs
type SyncConfig struct {
	// Interval between scheduled full syncs; zero disables the scheduler
	Interval time.Duration
	// Timeout bounds a single scheduled run
	Timeout time.Duration
}

// RateLimitConfig holds per-client request rate limits
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env is optional, the environment may be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "analytics"),
				User:           getEnv("POSTGRES_USER", "analytics"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			ClickHouse: ClickHouseConfig{
				Enabled:  getEnvAsBool("CLICKHOUSE_ENABLED", false),
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "analytics"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),

				MaxOpenConns:     getEnvAsInt("CLICKHOUSE_MAX_OPEN_CONNS", 4),
				MaxIdleConns:     getEnvAsInt("CLICKHOUSE_MAX_IDLE_CONNS", 2),
				DialTimeout:      getEnvAsDuration("CLICKHOUSE_DIAL_TIMEOUT", 10*time.Second),
				MaxExecutionTime: getEnvAsDuration("CLICKHOUSE_MAX_EXECUTION_TIME", 2*time.Minute),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		},
		Upstream: UpstreamConfig{
			WalletAddress:      getEnv("WALLET_ADDRESS", ""),
			TransactionAddress: getEnv("TRANSACTION_ADDRESS", ""),
			InvestmentAddress:  getEnv("INVESTMENT_ADDRESS", ""),
			DialTimeout:        getEnvAsDuration("GRPC_DIAL_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			InitialSyncKey: getEnv("INITIAL_SYNC_KEY", ""),
			JWTSecret:      getEnv("JWT_SECRET", ""),
		},
		Analytics: AnalyticsConfig{
			TimeZone: getEnv("ANALYTICS_TIMEZONE", "UTC"),
		},
		Sync: SyncConfig{
			Interval: getEnvAsDuration("SYNC_INTERVAL", 0),
			Timeout:  getEnvAsDuration("SYNC_TIMEOUT", 10*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// Validate reports every missing required setting in one error
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"WALLET_ADDRESS", c.Upstream.WalletAddress},
		{"TRANSACTION_ADDRESS", c.Upstream.TransactionAddress},
		{"INVESTMENT_ADDRESS", c.Upstream.InvestmentAddress},
		{"INITIAL_SYNC_KEY", c.Auth.InitialSyncKey},
		{"JWT_SECRET", c.Auth.JWTSecret},
	}

	var problems []string
	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		problems = append(problems, "missing required configuration: "+strings.Join(missing, ", "))
	}
	if _, err := c.Analytics.Location(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Sync.Interval < 0 {
		problems = append(problems, "SYNC_INTERVAL must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a bool with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}
