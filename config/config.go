package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. LOB_KAFKA_TOPIC
const EnvPrefix = "LOB"

// Kafka drivers
const (
	DriverKafkaGo = "kafka-go"
	DriverSarama  = "sarama"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		LogLevel  string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"`
	} `yaml:"server"`

	Engine struct {
		SnapshotDepth    int           `yaml:"snapshot_depth"`
		SnapshotInterval time.Duration `yaml:"snapshot_interval"`
		DispatchBuffer   int           `yaml:"dispatch_buffer"`
	} `yaml:"engine"`

	Telemetry struct {
		Enabled  bool   `yaml:"enabled"`
		Endpoint string `yaml:"endpoint"`
		Runtime  bool   `yaml:"runtime"`
	} `yaml:"telemetry"`

	Kafka struct {
		Enabled    bool   `yaml:"enabled"`
		Driver     string `yaml:"driver"`
		BrokerAddr string `yaml:"broker_addr"`
		Topic      string `yaml:"topic"`
	} `yaml:"kafka"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	Journal struct {
		Enabled bool   `yaml:"enabled"`
		Dir     string `yaml:"dir"`
	} `yaml:"journal"`

	TradeLog struct {
		Enabled     bool   `yaml:"enabled"`
		Path        string `yaml:"path"`
		LatencyPath string `yaml:"latency_path"`
	} `yaml:"tradelog"`

	Traffic struct {
		Enabled           bool    `yaml:"enabled"`
		Producers         int     `yaml:"producers"`
		OrdersPerProducer int     `yaml:"orders_per_producer"`
		Rate              float64 `yaml:"rate"`
		ReferencePrice    float64 `yaml:"reference_price"`
		Tick              float64 `yaml:"tick"`
		MaxQuantity       int64   `yaml:"max_quantity"`
		Seed              int64   `yaml:"seed"`
	} `yaml:"traffic"`

	MarketMaker struct {
		Enabled       bool          `yaml:"enabled"`
		Levels        int           `yaml:"levels"`
		SpreadPercent float64       `yaml:"spread_percent"`
		StepPercent   float64       `yaml:"step_percent"`
		OrderSize     int64         `yaml:"order_size"`
		Interval      time.Duration `yaml:"interval"`
	} `yaml:"market_maker"`

	Dashboard struct {
		Enabled  bool          `yaml:"enabled"`
		Interval time.Duration `yaml:"interval"`
		Depth    int           `yaml:"depth"`
	} `yaml:"dashboard"`
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	c := &Config{}
	c.Server.LogLevel = "info"
	c.Server.LogFormat = "pretty"

	c.Engine.SnapshotDepth = 10
	c.Engine.SnapshotInterval = 250 * time.Millisecond
	c.Engine.DispatchBuffer = 1024

	c.Telemetry.Endpoint = "localhost:4317"

	c.Kafka.Driver = DriverKafkaGo
	c.Kafka.BrokerAddr = "localhost:9092"
	c.Kafka.Topic = "lob-trades"

	c.Redis.Addr = "localhost:6379"
	c.Redis.Prefix = "lob"

	c.Journal.Dir = "data/journal"

	c.TradeLog.Path = "trades.csv"
	c.TradeLog.LatencyPath = "latency.csv"

	c.Traffic.Enabled = true
	c.Traffic.Producers = 4
	c.Traffic.OrdersPerProducer = 2500
	c.Traffic.Rate = 2000
	c.Traffic.ReferencePrice = 100
	c.Traffic.Tick = 0.5
	c.Traffic.MaxQuantity = 20
	c.Traffic.Seed = 1

	c.MarketMaker.Enabled = true
	c.MarketMaker.Levels = 3
	c.MarketMaker.SpreadPercent = 1
	c.MarketMaker.StepPercent = 0.5
	c.MarketMaker.OrderSize = 10
	c.MarketMaker.Interval = time.Second

	c.Dashboard.Enabled = true
	c.Dashboard.Interval = 500 * time.Millisecond
	c.Dashboard.Depth = 10

	return c
}

// LoadConfig builds the configuration from defaults, then the YAML file at
// path if one is given, then LOB_* environment variables, and validates it.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	if path != "" {
		yamlFile, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(yamlFile, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnv overrides settings from the environment
func applyEnv(c *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	integer := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	boolean := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}
	float := func(key string, dst *float64) {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v.IsSet(key) {
			*dst = v.GetDuration(key)
		}
	}

	str("SERVER_LOG_LEVEL", &c.Server.LogLevel)
	str("SERVER_LOG_FORMAT", &c.Server.LogFormat)

	integer("ENGINE_SNAPSHOT_DEPTH", &c.Engine.SnapshotDepth)
	duration("ENGINE_SNAPSHOT_INTERVAL", &c.Engine.SnapshotInterval)

	boolean("TELEMETRY_ENABLED", &c.Telemetry.Enabled)
	str("TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)

	boolean("KAFKA_ENABLED", &c.Kafka.Enabled)
	str("KAFKA_DRIVER", &c.Kafka.Driver)
	str("KAFKA_BROKERS", &c.Kafka.BrokerAddr)
	str("KAFKA_TOPIC", &c.Kafka.Topic)

	boolean("REDIS_ENABLED", &c.Redis.Enabled)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	integer("REDIS_DB", &c.Redis.DB)
	str("REDIS_PREFIX", &c.Redis.Prefix)

	boolean("JOURNAL_ENABLED", &c.Journal.Enabled)
	str("JOURNAL_DIR", &c.Journal.Dir)

	boolean("TRADELOG_ENABLED", &c.TradeLog.Enabled)
	str("TRADELOG_PATH", &c.TradeLog.Path)

	boolean("TRAFFIC_ENABLED", &c.Traffic.Enabled)
	integer("TRAFFIC_PRODUCERS", &c.Traffic.Producers)
	integer("TRAFFIC_ORDERS_PER_PRODUCER", &c.Traffic.OrdersPerProducer)
	float("TRAFFIC_RATE", &c.Traffic.Rate)

	boolean("MARKET_MAKER_ENABLED", &c.MarketMaker.Enabled)
	boolean("DASHBOARD_ENABLED", &c.Dashboard.Enabled)
}

// Brokers returns the configured Kafka broker list
func (c *Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.Kafka.BrokerAddr, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Validate checks settings that would otherwise fail deep inside a component
func (c *Config) Validate() error {
	var errs []error

	switch c.Server.LogFormat {
	case "json", "pretty":
	default:
		errs = append(errs, fmt.Errorf("server.log_format must be json or pretty, got %q", c.Server.LogFormat))
	}
	if c.Engine.SnapshotDepth < 0 {
		errs = append(errs, errors.New("engine.snapshot_depth must not be negative"))
	}
	if c.Engine.SnapshotInterval <= 0 {
		errs = append(errs, errors.New("engine.snapshot_interval must be positive"))
	}

	if c.Kafka.Enabled {
		if c.Kafka.Driver != DriverKafkaGo && c.Kafka.Driver != DriverSarama {
			errs = append(errs, fmt.Errorf("kafka.driver must be %s or %s, got %q", DriverKafkaGo, DriverSarama, c.Kafka.Driver))
		}
		if len(c.Brokers()) == 0 {
			errs = append(errs, errors.New("kafka.broker_addr must not be empty"))
		}
		if c.Kafka.Topic == "" {
			errs = append(errs, errors.New("kafka.topic must not be empty"))
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr must not be empty"))
	}
	if c.Journal.Enabled && c.Journal.Dir == "" {
		errs = append(errs, errors.New("journal.dir must not be empty"))
	}
	if c.TradeLog.Enabled && c.TradeLog.Path == "" {
		errs = append(errs, errors.New("tradelog.path must not be empty"))
	}

	if c.Traffic.Enabled {
		if c.Traffic.Producers <= 0 {
			errs = append(errs, errors.New("traffic.producers must be positive"))
		}
		if c.Traffic.OrdersPerProducer < 0 {
			errs = append(errs, errors.New("traffic.orders_per_producer must not be negative"))
		}
		if c.Traffic.ReferencePrice <= 0 || c.Traffic.Tick <= 0 {
			errs = append(errs, errors.New("traffic.reference_price and traffic.tick must be positive"))
		}
		if c.Traffic.MaxQuantity <= 0 {
			errs = append(errs, errors.New("traffic.max_quantity must be positive"))
		}
	}

	if c.MarketMaker.Enabled {
		if c.MarketMaker.Levels <= 0 {
			errs = append(errs, errors.New("market_maker.levels must be positive"))
		}
		if c.MarketMaker.SpreadPercent <= 0 || c.MarketMaker.StepPercent <= 0 {
			errs = append(errs, errors.New("market_maker spread and step must be positive"))
		}
		if c.MarketMaker.OrderSize <= 0 {
			errs = append(errs, errors.New("market_maker.order_size must be positive"))
		}
		if c.MarketMaker.Interval <= 0 {
			errs = append(errs, errors.New("market_maker.interval must be positive"))
		}
	}

	if c.Dashboard.Enabled && c.Dashboard.Interval <= 0 {
		errs = append(errs, errors.New("dashboard.interval must be positive"))
	}

	return errors.Join(errs...)
}
