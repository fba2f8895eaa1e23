package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BIGGIM_BASE_URL", "")
	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("REDIS_HOST", "")

	cfg := Load()
	assert.Equal(t, "http://biggim.ncats.io/api", cfg.BigGIMBaseURL)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.PollMaxWait)
	assert.False(t, cfg.KafkaEnabled())
	assert.False(t, cfg.RedisEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("POLL_MAX_ATTEMPTS", "12")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("REDIS_HOST", "cache")

	cfg := Load()
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 12, cfg.PollMaxAttempts)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.RedisEnabled())
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("POLL_MAX_WAIT", "forever")
	t.Setenv("REDIS_DB", "zero")

	cfg := Load()
	assert.Equal(t, 10*time.Minute, cfg.PollMaxWait)
	assert.Equal(t, 0, cfg.RedisDB)
}
