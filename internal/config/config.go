package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment variable, e.g. ORDERSTATS_SERVER_ADDR.
const EnvPrefix = "ORDERSTATS"

// FileEnv names the optional YAML config file.
const FileEnv = EnvPrefix + "_CONFIG"

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Cache   CacheConfig   `yaml:"cache" envconfig:"CACHE"`
	Kafka   KafkaConfig   `yaml:"kafka" envconfig:"KAFKA"`
	Publish PublishConfig `yaml:"publish" envconfig:"PUBLISH"`
	Ingest  IngestConfig  `yaml:"ingest" envconfig:"INGEST"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" validate:"gt=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
}

// CacheConfig selects the report cache backend.
type CacheConfig struct {
	Backend    string `yaml:"backend" envconfig:"BACKEND" validate:"oneof=none memory pebble"`
	Dir        string `yaml:"dir" envconfig:"DIR" validate:"required_if=Backend pebble"`
	MaxEntries int    `yaml:"max_entries" envconfig:"MAX_ENTRIES" validate:"gte=0"`
}

// KafkaConfig is shared by the report sink and the row consumer.
type KafkaConfig struct {
	Brokers     string `yaml:"brokers" envconfig:"BROKERS"`
	ReportTopic string `yaml:"report_topic" envconfig:"REPORT_TOPIC"`
	RowsTopic   string `yaml:"rows_topic" envconfig:"ROWS_TOPIC"`
	GroupID     string `yaml:"group_id" envconfig:"GROUP_ID"`
}

// Enabled reports whether reports should be produced to Kafka.
func (k KafkaConfig) Enabled() bool { return k.Brokers != "" && k.ReportTopic != "" }

// PublishConfig configures the JSONL report sink.
type PublishConfig struct {
	Dir  string `yaml:"dir" envconfig:"DIR"`
	File string `yaml:"file" envconfig:"FILE"`
}

// IngestConfig tunes ingestion.
type IngestConfig struct {
	SampleLimit int `yaml:"sample_limit" envconfig:"SAMPLE_LIMIT" validate:"gte=0"`
	Workers     int `yaml:"workers" envconfig:"WORKERS" validate:"gte=0"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     90 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxUploadBytes:  32 << 20,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Cache:   CacheConfig{Backend: "memory", MaxEntries: 256},
		Kafka:   KafkaConfig{GroupID: "orderstats", RowsTopic: "orderstats.rows", ReportTopic: "orderstats.reports"},
		Publish: PublishConfig{File: "reports.jsonl"},
		Ingest:  IngestConfig{SampleLimit: 10},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (or $ORDERSTATS_CONFIG when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(FileEnv)
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// No default tags: envconfig then only overrides variables that are set.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	c.Cache.Backend = strings.ToLower(c.Cache.Backend)
	return validate.Struct(c)
}
