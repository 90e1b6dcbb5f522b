// Package config provides configuration management for the click router.
// It loads settings from environment variables with sensible defaults and
// validates them before the application starts.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// Database Configuration:
//   - DATABASE_TYPE: "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./click_router.db)
//   - POSTGRES_HOST / POSTGRES_PORT / POSTGRES_DB / POSTGRES_USER /
//     POSTGRES_PASSWORD / POSTGRES_SSL_MODE: PostgreSQL connection settings
//
// Redis Configuration:
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD, REDIS_DB, REDIS_POOL_SIZE
//
// Rate Limiting:
//   - RATE_LIMIT_ENABLED: Enable per-IP rate limiting (default: true)
//   - RATE_LIMIT_DEFAULT: Requests per window (default: 300)
//   - RATE_LIMIT_WINDOW: Window duration (default: 60s)
//
// Cloak Validation:
//   - CLOAK_CLICK_ID_PARAMS: Comma-separated click-id query parameter names
//   - CLOAK_ALLOWED_REFERRERS: Comma-separated ad platform referrer domains
//   - CLOAK_BYPASS_PARAM: QA bypass query flag name (empty = disabled)
//
// Decision Recording:
//   - RECORDER_QUEUE_SIZE: Async recorder queue capacity (default: 4096)
//   - SINK_TYPE: Event sink backend - "none", "rabbitmq", or "kafka"
//   - RABBITMQ_URL, CLICKS_QUEUE: RabbitMQ sink settings
//   - KAFKA_BROKERS, CLICKS_TOPIC: Kafka sink settings
//
// Expiry Janitor:
//   - JANITOR_SCHEDULE: Cron expression for the expiry sweep (default: @every 1m)
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the click router.
type Config struct {
	// Application settings
	Port     string
	LogLevel string
	TLSCert  string
	TLSKey   string

	// Database configuration
	DatabaseType     string // "sqlite" or "postgres"
	DatabasePath     string // SQLite database file path
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	// Redis configuration for counters and rate limiting
	RedisAddress  string
	RedisPassword string
	RedisDB       string
	RedisPoolSize string

	// Rate limiting on the redirect hot path
	RateLimitEnabled bool
	RateLimitDefault string
	RateLimitWindow  string

	// Cloak validation policy
	CloakClickIDParams    string // comma-separated parameter names
	CloakAllowedReferrers string // comma-separated domains
	CloakBypassParam      string // empty disables the QA bypass

	// Decision recording
	RecorderQueueSize string
	SinkType          string // "none", "rabbitmq", "kafka"
	RabbitMQURL       string
	ClicksQueue       string
	KafkaBrokers      string
	ClicksTopic       string

	// Expiry janitor
	JanitorSchedule string
}

// Load creates a Config from environment variables, applying defaults for
// anything unset. Call Validate() before use.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		TLSCert:  getEnv("TLS_CERT", ""),
		TLSKey:   getEnv("TLS_KEY", ""),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./click_router.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "click_router"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		RateLimitEnabled: getBoolEnv("RATE_LIMIT_ENABLED", true),
		RateLimitDefault: getEnv("RATE_LIMIT_DEFAULT", "300"),
		RateLimitWindow:  getEnv("RATE_LIMIT_WINDOW", "60s"),

		CloakClickIDParams:    getEnv("CLOAK_CLICK_ID_PARAMS", ""),
		CloakAllowedReferrers: getEnv("CLOAK_ALLOWED_REFERRERS", ""),
		CloakBypassParam:      getEnv("CLOAK_BYPASS_PARAM", ""),

		RecorderQueueSize: getEnv("RECORDER_QUEUE_SIZE", "4096"),
		SinkType:          getEnv("SINK_TYPE", "none"),
		RabbitMQURL:       getEnv("RABBITMQ_URL", ""),
		ClicksQueue:       getEnv("CLICKS_QUEUE", "clicks"),
		KafkaBrokers:      getEnv("KAFKA_BROKERS", ""),
		ClicksTopic:       getEnv("CLICKS_TOPIC", "clicks"),

		JanitorSchedule: getEnv("JANITOR_SCHEDULE", "@every 1m"),
	}
}

// Validate checks that the configuration is internally consistent and safe
// to start with.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	switch c.DatabaseType {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'sqlite' or 'postgres'")
	}

	if c.DatabaseType == "postgres" || c.DatabaseType == "postgresql" {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	}

	if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
		return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
	}

	if c.RateLimitEnabled {
		if limit, err := strconv.Atoi(c.RateLimitDefault); err != nil || limit < 1 {
			return fmt.Errorf("RATE_LIMIT_DEFAULT must be a positive integer")
		}
		if _, err := time.ParseDuration(c.RateLimitWindow); err != nil {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be a valid duration: %w", err)
		}
	}

	if size, err := strconv.Atoi(c.RecorderQueueSize); err != nil || size < 1 {
		return fmt.Errorf("RECORDER_QUEUE_SIZE must be a positive integer")
	}

	switch c.SinkType {
	case "none", "":
	case "rabbitmq":
		if c.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required when SINK_TYPE is rabbitmq")
		}
	case "kafka":
		if c.KafkaBrokers == "" {
			return fmt.Errorf("KAFKA_BROKERS is required when SINK_TYPE is kafka")
		}
	default:
		return fmt.Errorf("SINK_TYPE must be 'none', 'rabbitmq', or 'kafka'")
	}

	return nil
}

// RateLimitWindowDuration returns the parsed rate limit window.
func (c *Config) RateLimitWindowDuration() time.Duration {
	d, err := time.ParseDuration(c.RateLimitWindow)
	if err != nil {
		return time.Minute
	}
	return d
}

// RateLimitDefaultInt returns the parsed default rate limit.
func (c *Config) RateLimitDefaultInt() int {
	n, err := strconv.Atoi(c.RateLimitDefault)
	if err != nil {
		return 300
	}
	return n
}

// RecorderQueueSizeInt returns the parsed recorder queue capacity.
func (c *Config) RecorderQueueSizeInt() int {
	n, err := strconv.Atoi(c.RecorderQueueSize)
	if err != nil {
		return 4096
	}
	return n
}

// CloakClickIDParamList splits the configured click-id parameter names.
func (c *Config) CloakClickIDParamList() []string {
	return splitList(c.CloakClickIDParams)
}

// CloakAllowedReferrerList splits the configured referrer domains.
func (c *Config) CloakAllowedReferrerList() []string {
	return splitList(c.CloakAllowedReferrers)
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
