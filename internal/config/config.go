package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Campus   CampusConfig
	LogDir   string
}

type ServerConfig struct {
	Port         string
	CORSOrigin   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Driver        string // postgres or sqlite
	URL           string
	MaxOpenConns  int
	MaxIdleConns  int
	MaxLifetime   time.Duration
	MigrationsDir string
	AutoMigrate   bool
}

type RedisConfig struct {
	Enabled bool
	Addr    string
	LockTTL time.Duration
}

type KafkaConfig struct {
	Enabled     bool
	Brokers     []string
	TopicPrefix string
}

type AuthConfig struct {
	JWTSecret    string
	TokenTTL     time.Duration
	OIDCIssuer   string
	OIDCClientID string
	PassSecret   string
}

type CampusConfig struct {
	TimeZone           string
	FeedbackWindowDays int
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			CORSOrigin:   getEnv("CORS_ORIGIN", "*"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:        strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			URL:           getEnv("DATABASE_URL", "file:campus-events.db?cache=shared"),
			MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:   time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
			AutoMigrate:   getEnvBool("AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Enabled: getEnvBool("REDIS_ENABLED", false),
			Addr:    getEnv("REDIS_ADDR", "localhost:6379"),
			LockTTL: time.Duration(getEnvInt("EVENT_LOCK_TTL_SECONDS", 10)) * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled:     getEnvBool("KAFKA_ENABLED", false),
			Brokers:     getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", "campus"),
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET", "change-me"),
			TokenTTL:     time.Duration(getEnvInt("TOKEN_TTL_HOURS", 24)) * time.Hour,
			OIDCIssuer:   getEnv("OIDC_ISSUER", ""),
			OIDCClientID: getEnv("OIDC_CLIENT_ID", ""),
			PassSecret:   getEnv("PASS_SECRET", "change-me-too"),
		},
		Campus: CampusConfig{
			TimeZone:           getEnv("CAMPUS_TIMEZONE", "UTC"),
			FeedbackWindowDays: getEnvInt("FEEDBACK_WINDOW_DAYS", 2),
		},
		LogDir: getEnv("LOG_DIR", "logs"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
