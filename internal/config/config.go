package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	applog "expenses/internal/log"
)

// Backend names accepted by DATA_BACKEND.
const (
	BackendMemory     = "memory"
	BackendJSON       = "json"
	BackendRelational = "relational"
)

var validBackends = []string{BackendMemory, BackendJSON, BackendRelational}

type Config struct {
	// Backend selection
	DataBackend string

	// JSON file backend
	JSONFilePath string

	// Relational backend
	DBURL      string
	DBUser     string
	DBPassword string

	// Timezone for stored timestamps without an offset. Empty means local.
	Timezone string

	// Categories
	CategoriesFile    string
	CategoryCacheSize int
	CategoryCacheTTL  time.Duration

	// AMQP events, disabled when AMQPURL is empty
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	LogLevel string
}

func Load() *Config {
	return &Config{
		DataBackend: getEnv("DATA_BACKEND", BackendMemory),

		JSONFilePath: getEnv("JSON_FILE_PATH", "expenses.json"),

		DBURL:      getEnv("DB_URL", ""),
		DBUser:     getEnv("DB_USER", ""),
		DBPassword: getEnv("DB_PASSWORD", ""),

		Timezone: getEnv("TIMEZONE", ""),

		CategoriesFile:    getEnv("CATEGORIES_FILE", "categories.json"),
		CategoryCacheSize: getEnvInt("CATEGORY_CACHE_SIZE", 256),
		CategoryCacheTTL:  getEnvDuration("CATEGORY_CACHE_TTL", 0),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "expenses"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "expense_events"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid.
// Relational credentials are checked when that backend is built, so a bad
// database setup does not block the other backends.
func (c *Config) Validate() error {
	var errors []string

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == BackendJSON && strings.TrimSpace(c.JSONFilePath) == "" {
		errors = append(errors, "JSON file path cannot be empty when using json backend")
	}

	if c.DataBackend == BackendRelational && strings.TrimSpace(c.DBURL) == "" {
		errors = append(errors, "DB_URL is required when using relational backend")
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if strings.TrimSpace(c.CategoriesFile) == "" {
		errors = append(errors, "categories file path cannot be empty")
	}
	if c.CategoryCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid category cache size %d: must be at least 0", c.CategoryCacheSize))
	}
	if c.CategoryCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid category cache ttl %v: must not be negative", c.CategoryCacheTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Location resolves Timezone, defaulting to the local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// EventsEnabled reports whether expense events should be published.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
