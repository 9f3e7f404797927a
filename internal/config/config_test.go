package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(lookupFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
database_url: postgres://file
kafka:
  brokers: [file-broker:9092]
  topic: file-topic
rate_limit:
  per_minute: 10
  burst: 2
tracing:
  sample_ratio: 0.5
`), 0o600))

	cfg, err := load(lookupFrom(map[string]string{
		"SALES_CONFIG":                path,
		"KAFKA_BROKERS":               "a:9092, b:9092,",
		"RATE_LIMIT_BURST":            "5",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "collector:4318",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "postgres://file", cfg.DatabaseURL)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "file-topic", cfg.Kafka.Topic)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, 10, cfg.RateLimit.PerMinute)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.Equal(t, "collector:4318", cfg.Tracing.Endpoint)
	assert.Equal(t, 0.5, cfg.Tracing.SampleRatio)
	assert.Equal(t, "development", cfg.LogMode)
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := load(lookupFrom(map[string]string{"RATE_LIMIT_PER_MINUTE": "lots"}))
	assert.ErrorContains(t, err, "RATE_LIMIT_PER_MINUTE")

	_, err = load(lookupFrom(map[string]string{"RATE_LIMIT_BURST": "-1"}))
	assert.ErrorContains(t, err, "rate_limit.burst")

	_, err = load(lookupFrom(map[string]string{"KAFKA_BROKERS": "a:9092", "KAFKA_TOPIC": ""}))
	assert.ErrorContains(t, err, "kafka.topic")

	_, err = load(lookupFrom(map[string]string{"SALES_CONFIG": filepath.Join(t.TempDir(), "missing.yaml")}))
	assert.ErrorContains(t, err, "failed to read config file")
}
