package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Collector kinds.
const (
	CollectorHTTP    = "http"
	CollectorSQS     = "sqs"
	CollectorDiscard = "discard"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config holds all daemon configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Store      StoreConfig      `yaml:"store"`
	Collector  CollectorConfig  `yaml:"collector"`
	Batcher    BatcherConfig    `yaml:"batcher"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
}

type ServerConfig struct {
	BindAddr            string        `yaml:"bind_addr"`
	ShutdownGracePeriod time.Duration `yaml:"shutdown_grace_period"`
	StatusInterval      time.Duration `yaml:"status_interval"`
}

type LoggingConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

type StoreConfig struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

type CollectorConfig struct {
	Kind   string    `yaml:"kind"`
	URL    string    `yaml:"url"`
	APIKey string    `yaml:"api_key"`
	SQS    SQSConfig `yaml:"sqs"`
}

type SQSConfig struct {
	QueueURL        string `yaml:"queue_url"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type BatcherConfig struct {
	BatchSize      int           `yaml:"batch_size"`
	QuietPeriod    time.Duration `yaml:"quiet_period"`
	MaxQueueLength int           `yaml:"max_queue_length"`
	BackoffInitial time.Duration `yaml:"backoff_initial"`
	BackoffMax     time.Duration `yaml:"backoff_max"`
}

type AggregatorConfig struct {
	MaxLogEntries int `yaml:"max_log_entries"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate returns every problem with the config joined into one error.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.BindAddr == "" {
		errs = append(errs, errors.New("server.bind_addr is required"))
	}
	if c.Server.ShutdownGracePeriod < 0 {
		errs = append(errs, errors.New("server.shutdown_grace_period must not be negative"))
	}
	switch c.Logging.Format {
	case LogFormatJSON, LogFormatText:
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be one of %s or %s", c.Logging.Format, LogFormatJSON, LogFormatText))
	}
	if _, err := ParseLogLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Store.Kind {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.kind %q must be one of %s or %s", c.Store.Kind, StoreMemory, StoreSQLite))
	}
	switch c.Collector.Kind {
	case CollectorHTTP:
		if u, err := url.Parse(c.Collector.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("collector.url %q must be an absolute url", c.Collector.URL))
		}
	case CollectorSQS:
		if c.Collector.SQS.QueueURL == "" {
			errs = append(errs, errors.New("collector.sqs.queue_url is required for the sqs collector"))
		}
	case CollectorDiscard:
	default:
		errs = append(errs, fmt.Errorf("collector.kind %q must be one of %s, %s or %s", c.Collector.Kind, CollectorHTTP, CollectorSQS, CollectorDiscard))
	}
	if c.Batcher.BatchSize <= 0 {
		errs = append(errs, errors.New("batcher.batch_size must be positive"))
	}
	if c.Batcher.QuietPeriod <= 0 {
		errs = append(errs, errors.New("batcher.quiet_period must be positive"))
	}
	if c.Batcher.MaxQueueLength < c.Batcher.BatchSize {
		errs = append(errs, errors.New("batcher.max_queue_length must be at least batcher.batch_size"))
	}
	if c.Batcher.BackoffInitial <= 0 || c.Batcher.BackoffMax < c.Batcher.BackoffInitial {
		errs = append(errs, errors.New("batcher.backoff_initial must be positive and no greater than batcher.backoff_max"))
	}
	if c.Aggregator.MaxLogEntries <= 0 {
		errs = append(errs, errors.New("aggregator.max_log_entries must be positive"))
	}
	return errors.Join(errs...)
}

// ParseLogLevel parses a level name as accepted by [slog.Level.UnmarshalText].
func ParseLogLevel(level string) (output slog.Level, err error) {
	if err = output.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		err = fmt.Errorf("logging.level %q is invalid: %w", level, err)
	}
	return
}
