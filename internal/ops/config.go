package ops

import (
	"encoding/json"
	"fmt"
	"os"

	"main/internal/model"
	"main/pkg/conn"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Postgres  PostgresConfig     `json:"postgres"`
	Kafka     KafkaConfig        `json:"kafka"`
	Tenant    TenantConfig       `json:"tenant"`
	Features  FeatureFlagsConfig `json:"features"`
	Profiling ProfilingConfig    `json:"profiling"`
}

// PostgresConfig describes the record-store connection.
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
	// InMemory switches the record store to the ephemeral in-memory
	// implementation; the connection fields are ignored when set.
	InMemory bool `json:"inMemory"`
}

// KafkaConfig describes the movement notification sink.
type KafkaConfig struct {
	Brokers       []string `json:"brokers"`
	Topic         string   `json:"topic"`
	QueueCapacity int      `json:"queueCapacity"`
}

// TenantConfig captures tenant-wide stock defaults.
type TenantConfig struct {
	TrackInventoryDefault *bool  `json:"trackInventoryDefault"`
	OutOfStockThreshold   *int64 `json:"outOfStockThreshold"`
}

// FeatureFlagsConfig captures optional runtime flags.
type FeatureFlagsConfig struct {
	HoldStock *bool `json:"holdStock"`
}

// FeatureFlags are resolved runtime flags.
type FeatureFlags struct {
	HoldStock bool
}

// ProfilingConfig enables continuous profiling when an address is set.
type ProfilingConfig struct {
	ServerAddress   string `json:"serverAddress"`
	ApplicationName string `json:"applicationName"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Postgres  conn.Option
	InMemory  bool
	Kafka     KafkaSpec
	Settings  model.TenantSettings
	Features  FeatureFlags
	Profiling ProfilingConfig
}

// KafkaSpec is the resolved notification sink definition.
type KafkaSpec struct {
	Brokers       []string
	Topic         string
	QueueCapacity int
}

const (
	defaultTopic         = "stock.movements"
	defaultQueueCapacity = 1024
)

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return Resolve(cfg)
}

// Resolve validates a file config and fills defaults.
func Resolve(cfg FileConfig) (Loaded, error) {
	kafka, err := resolveKafka(cfg.Kafka)
	if err != nil {
		return Loaded{}, err
	}
	return Loaded{
		Postgres: conn.Option{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
			SSLMode:  cfg.Postgres.SSLMode,
		},
		InMemory:  cfg.Postgres.InMemory,
		Kafka:     kafka,
		Settings:  resolveTenant(cfg.Tenant),
		Features:  resolveFeatures(cfg.Features),
		Profiling: cfg.Profiling,
	}, nil
}

func resolveKafka(cfg KafkaConfig) (KafkaSpec, error) {
	if len(cfg.Brokers) == 0 {
		return KafkaSpec{}, fmt.Errorf("kafka brokers are empty")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = defaultTopic
	}
	capacity := cfg.QueueCapacity
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return KafkaSpec{
		Brokers:       cfg.Brokers,
		Topic:         topic,
		QueueCapacity: capacity,
	}, nil
}

func resolveTenant(cfg TenantConfig) model.TenantSettings {
	settings := model.TenantSettings{TrackInventoryDefault: true}
	if cfg.TrackInventoryDefault != nil {
		settings.TrackInventoryDefault = *cfg.TrackInventoryDefault
	}
	if cfg.OutOfStockThreshold != nil {
		settings.OutOfStockThreshold = *cfg.OutOfStockThreshold
	}
	return settings
}

func resolveFeatures(cfg FeatureFlagsConfig) FeatureFlags {
	var flags FeatureFlags
	if cfg.HoldStock != nil {
		flags.HoldStock = *cfg.HoldStock
	}
	return flags
}
