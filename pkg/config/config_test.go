package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(testLogger())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.RedisOn)

	assert.Equal(t, 10*time.Second, cfg.Pipeline.SampleInterval)
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.RollupInterval)
	assert.Equal(t, 1000, cfg.Pipeline.MetricsRingSize)
	assert.Equal(t, 200, cfg.Pipeline.SentimentRingSize)
	assert.Equal(t, 100, cfg.Pipeline.AlertListSize)

	assert.Equal(t, 800.0, cfg.Pipeline.Thresholds.Latency.Warning)
	assert.Equal(t, 1500.0, cfg.Pipeline.Thresholds.Latency.Error)
	assert.Equal(t, -0.6, cfg.Pipeline.Thresholds.Sentiment.Error)

	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, []string{"localhost:6379"}, cfg.Redis.Addresses)
	assert.Equal(t, "callpulse.sentiment", cfg.AMQP.SentimentQueue)
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_LISTEN_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SAMPLE_INTERVAL", "30s")
	t.Setenv("METRICS_RING_SIZE", "500")
	t.Setenv("THRESHOLD_LATENCY_WARNING", "600")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("REDIS_ADDRESSES", "redis-a:6379,redis-b:6379")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("AMQP_AUDIO_QUEUE", "custom.audio")

	cfg, err := Load(testLogger())
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.SampleInterval)
	assert.Equal(t, 500, cfg.Pipeline.MetricsRingSize)
	assert.Equal(t, 600.0, cfg.Pipeline.Thresholds.Latency.Warning)
	assert.Equal(t, 5433, cfg.Postgres.Port)
	assert.Equal(t, []string{"redis-a:6379", "redis-b:6379"}, cfg.Redis.Addresses)
	assert.False(t, cfg.RedisOn)
	assert.Equal(t, "custom.audio", cfg.AMQP.AudioQueue)
}

func TestLoadIgnoresUnparseableValues(t *testing.T) {
	t.Setenv("SAMPLE_INTERVAL", "not-a-duration")
	t.Setenv("DB_PORT", "not-a-number")
	t.Setenv("THRESHOLD_LATENCY_ERROR", "not-a-float")

	cfg, err := Load(testLogger())
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Pipeline.SampleInterval)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, 1500.0, cfg.Pipeline.Thresholds.Latency.Error)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLogLevel("debug"))
	assert.Equal(t, logrus.WarnLevel, ParseLogLevel("WARN"))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel("bogus"))
}
