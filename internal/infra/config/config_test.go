package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "campusmarket", cfg.MongoDB)
	assert.Equal(t, "chat.messages.v1", cfg.KafkaChatTopic)
	assert.Equal(t, "moderation.audit.v1", cfg.KafkaAuditTopic)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 24*time.Hour, cfg.UnreadTTL)
	assert.Empty(t, cfg.ScyllaHosts)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadRequiresTokenSecret(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadParsesLists(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "secret")
	t.Setenv("SCYLLA_HOSTS", "db1:9042, db2:9042 ,")
	t.Setenv("KAFKA_BROKERS", "broker1:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"db1:9042", "db2:9042"}, cfg.ScyllaHosts)
	assert.Equal(t, []string{"broker1:9092"}, cfg.KafkaBrokers)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "secret")
	t.Setenv("FETCH_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "secret")
	t.Setenv("FETCH_TIMEOUT", "3s")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("S3_USE_SSL", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.True(t, cfg.S3UseSSL)
}
