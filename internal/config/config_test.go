package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_DRIVER", "KAFKA_BROKERS", "FEEDBACK_WINDOW_DAYS", "TOKEN_TTL_HOURS", "REDIS_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2, cfg.Campus.FeedbackWindowDays)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("FEEDBACK_WINDOW_DAYS", "3")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("EVENT_LOCK_TTL_SECONDS", "30")
	t.Setenv("OIDC_ISSUER", "https://sso.campus.test/realms/students")
	t.Setenv("OIDC_CLIENT_ID", "campus-events")

	cfg := Load()
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3, cfg.Campus.FeedbackWindowDays)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, "https://sso.campus.test/realms/students", cfg.Auth.OIDCIssuer)
	assert.Equal(t, "campus-events", cfg.Auth.OIDCClientID)
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "many")
	t.Setenv("REDIS_ENABLED", "sometimes")

	cfg := Load()
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.False(t, cfg.Redis.Enabled)
}
