package config

import "time"

// DefaultCollectorURL is the hosted collector events are shipped to by default.
const DefaultCollectorURL = "https://api.observatory-backend.com/logs"

// Default returns a Config populated with all default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddr:            "127.0.0.1:8420",
			ShutdownGracePeriod: 30 * time.Second,
			StatusInterval:      10 * time.Second,
		},
		Logging: LoggingConfig{
			Format: LogFormatJSON,
			Level:  "info",
		},
		Store: StoreConfig{
			Kind: StoreSQLite,
			Path: "observatory.db",
		},
		Collector: CollectorConfig{
			Kind: CollectorHTTP,
			URL:  DefaultCollectorURL,
		},
		Batcher: BatcherConfig{
			BatchSize:      10,
			QuietPeriod:    5 * time.Second,
			MaxQueueLength: 1000,
			BackoffInitial: 500 * time.Millisecond,
			BackoffMax:     8 * time.Second,
		},
		Aggregator: AggregatorConfig{
			MaxLogEntries: 1000,
		},
	}
}
