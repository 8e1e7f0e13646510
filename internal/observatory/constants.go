package observatory

import "time"

// Version is reported to collectors on every delivery.
const Version = "1.0.0"

const (
	// DefaultBatchSize is the number of queued events that triggers an immediate flush.
	DefaultBatchSize = 10
	// DefaultQuietPeriod is how long a partial batch waits before it is flushed.
	DefaultQuietPeriod = 5 * time.Second
	// DefaultMaxQueueLength caps the in-memory delivery queue.
	DefaultMaxQueueLength = 1000
	// DefaultMaxLogEntries caps each persisted domain log.
	DefaultMaxLogEntries = 1000
	// DefaultBackoffInitial is the delay after the first failed delivery.
	DefaultBackoffInitial = 500 * time.Millisecond
	// DefaultBackoffMax caps the delay between failed deliveries.
	DefaultBackoffMax = 8 * time.Second
	// MaxDurationMs caps the duration recorded for a single event.
	MaxDurationMs = int64(24 * time.Hour / time.Millisecond)
)

// Store key prefixes.
const (
	KeyPrefixTracking = "tracking_"
	KeyPrefixStats    = "stats_"
	KeyPrefixLogs     = "logs_"
)

// TrackingKey is the store key of a domain's tracking flag.
func TrackingKey(domain string) string { return KeyPrefixTracking + domain }

// StatsKey is the store key of a domain's [DomainStats].
func StatsKey(domain string) string { return KeyPrefixStats + domain }

// LogsKey is the store key of a domain's [DomainLog].
func LogsKey(domain string) string { return KeyPrefixLogs + domain }

const (
	// HeaderVersion carries [Version] on collector requests.
	HeaderVersion = "X-Observatory-Version"
)
