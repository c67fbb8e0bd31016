// Package config centralises configuration parsing for the signup service.
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config captures runtime configuration values for the signup binaries.
type Config struct {
	HTTPAddress       string
	MetricsAddress    string
	LogLevel          string
	LogFormat         string
	CatalogFile       string // Optional activity catalog; the built-in one is used when empty.
	CORSAllowedOrigin string

	EventsEnabled      bool
	KafkaBrokers       []string
	SchemaRegistryURL  string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	DLQPollInterval    time.Duration // Interval between DLQ polling iterations.
	DLQMaxRetries      int           // Maximum number of DLQ retry attempts before quarantine.
	DLQBaseDelay       time.Duration // Base delay used for exponential backoff.

	PostgresURL     string
	ConsumerGroupID string
	ConsumerTopics  []string

	AuthEnabled bool
	JWTSecret   string
	JWTIssuer   string
}

// Load reads .env (when present) and environment variables into Config,
// applying sensible defaults for local dev.
func Load() Config {
	_ = godotenv.Load()
	return fromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDRESS", ":8080")
	v.SetDefault("METRICS_ADDRESS", ":9102")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("CATALOG_FILE", "")
	v.SetDefault("CORS_ALLOWED_ORIGIN", "http://localhost:5173")

	v.SetDefault("EVENTS_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "kafka:9092")
	v.SetDefault("SCHEMA_REGISTRY_URL", "http://schema-registry:8081")
	v.SetDefault("OUTBOX_POLL_INTERVAL", 2*time.Second)
	v.SetDefault("OUTBOX_BATCH_SIZE", 25)
	v.SetDefault("DLQ_POLL_INTERVAL", 30*time.Second)
	v.SetDefault("DLQ_MAX_RETRIES", 5)
	v.SetDefault("DLQ_BASE_DELAY", time.Minute)

	v.SetDefault("POSTGRES_URL", "")
	v.SetDefault("CONSUMER_GROUP_ID", "signup-audit")
	v.SetDefault("CONSUMER_TOPICS", "activity_signups")

	v.SetDefault("AUTH_ENABLED", false)
	v.SetDefault("JWT_SECRET", "dev-secret-change-me")
	v.SetDefault("JWT_ISSUER", "signup.identity")
	return v
}

func fromViper(v *viper.Viper) Config {
	return Config{
		HTTPAddress:       v.GetString("HTTP_ADDRESS"),
		MetricsAddress:    v.GetString("METRICS_ADDRESS"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		LogFormat:         v.GetString("LOG_FORMAT"),
		CatalogFile:       v.GetString("CATALOG_FILE"),
		CORSAllowedOrigin: v.GetString("CORS_ALLOWED_ORIGIN"),

		EventsEnabled:      v.GetBool("EVENTS_ENABLED"),
		KafkaBrokers:       splitAndTrim(v.GetString("KAFKA_BROKERS")),
		SchemaRegistryURL:  v.GetString("SCHEMA_REGISTRY_URL"),
		OutboxPollInterval: positiveDuration(v.GetDuration("OUTBOX_POLL_INTERVAL"), 2*time.Second),
		OutboxBatchSize:    positiveInt(v.GetInt("OUTBOX_BATCH_SIZE"), 25),
		DLQPollInterval:    positiveDuration(v.GetDuration("DLQ_POLL_INTERVAL"), 30*time.Second),
		DLQMaxRetries:      positiveInt(v.GetInt("DLQ_MAX_RETRIES"), 5),
		DLQBaseDelay:       positiveDuration(v.GetDuration("DLQ_BASE_DELAY"), time.Minute),

		PostgresURL:     v.GetString("POSTGRES_URL"),
		ConsumerGroupID: v.GetString("CONSUMER_GROUP_ID"),
		ConsumerTopics:  splitAndTrim(v.GetString("CONSUMER_TOPICS")),

		AuthEnabled: v.GetBool("AUTH_ENABLED"),
		JWTSecret:   v.GetString("JWT_SECRET"),
		JWTIssuer:   v.GetString("JWT_ISSUER"),
	}
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// positiveDuration falls back when a value failed to parse (viper yields 0) or is negative.
func positiveDuration(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}

func positiveInt(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
