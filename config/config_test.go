package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.SnapshotInterval)
	assert.Equal(t, DriverKafkaGo, cfg.Kafka.Driver)
	assert.False(t, cfg.Kafka.Enabled)
	assert.True(t, cfg.Traffic.Enabled)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
server:
  log_level: debug
  log_format: json
engine:
  snapshot_interval: 2s
kafka:
  enabled: true
  driver: sarama
  broker_addr: "k1:9092, k2:9092"
  topic: fills
market_maker:
  levels: 5
  interval: 1500ms
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "json", cfg.Server.LogFormat)
	assert.Equal(t, 2*time.Second, cfg.Engine.SnapshotInterval)
	assert.Equal(t, DriverSarama, cfg.Kafka.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers())
	assert.Equal(t, "fills", cfg.Kafka.Topic)
	assert.Equal(t, 5, cfg.MarketMaker.Levels)
	assert.Equal(t, 1500*time.Millisecond, cfg.MarketMaker.Interval)

	// untouched sections keep their defaults
	assert.Equal(t, 10, cfg.Engine.SnapshotDepth)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
kafka:
  topic: from-file
`)
	t.Setenv("LOB_KAFKA_TOPIC", "from-env")
	t.Setenv("LOB_KAFKA_BROKERS", "a:1,b:2")
	t.Setenv("LOB_TRAFFIC_PRODUCERS", "9")
	t.Setenv("LOB_DASHBOARD_ENABLED", "false")
	t.Setenv("LOB_ENGINE_SNAPSHOT_INTERVAL", "75ms")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Kafka.Topic)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Brokers())
	assert.Equal(t, 9, cfg.Traffic.Producers)
	assert.False(t, cfg.Dashboard.Enabled)
	assert.Equal(t, 75*time.Millisecond, cfg.Engine.SnapshotInterval)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = LoadConfig(writeConfig(t, "server: [unterminated"))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "log format",
			mutate: func(c *Config) { c.Server.LogFormat = "xml" },
			want:   "server.log_format",
		},
		{
			name:   "snapshot interval",
			mutate: func(c *Config) { c.Engine.SnapshotInterval = 0 },
			want:   "engine.snapshot_interval",
		},
		{
			name: "kafka driver",
			mutate: func(c *Config) {
				c.Kafka.Enabled = true
				c.Kafka.Driver = "confluent"
			},
			want: "kafka.driver",
		},
		{
			name: "kafka brokers",
			mutate: func(c *Config) {
				c.Kafka.Enabled = true
				c.Kafka.BrokerAddr = " , "
			},
			want: "kafka.broker_addr",
		},
		{
			name:   "traffic producers",
			mutate: func(c *Config) { c.Traffic.Producers = 0 },
			want:   "traffic.producers",
		},
		{
			name:   "market maker size",
			mutate: func(c *Config) { c.MarketMaker.OrderSize = 0 },
			want:   "market_maker.order_size",
		},
		{
			name:   "dashboard interval",
			mutate: func(c *Config) { c.Dashboard.Interval = 0 },
			want:   "dashboard.interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidateSkipsDisabledSections(t *testing.T) {
	cfg := Default()
	cfg.Traffic.Enabled = false
	cfg.Traffic.Producers = 0
	cfg.Redis.Addr = ""
	cfg.Kafka.Driver = "unknown"

	assert.NoError(t, cfg.Validate())
}
