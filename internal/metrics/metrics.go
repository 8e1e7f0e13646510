package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "observatory"

// Drop reasons.
const (
	DropReasonType      = "type"
	DropReasonMalformed = "malformed"
	DropReasonDomain    = "domain"
)

// Delivery results.
const (
	DeliveryResultSuccess = "success"
	DeliveryResultFailure = "failure"
)

// Metrics are the prometheus collectors for the event pipeline.
type Metrics struct {
	registry        *prometheus.Registry
	EventsReceived  prometheus.Counter
	EventsDropped   *prometheus.CounterVec
	EventsPersisted prometheus.Counter
	StoreErrors     *prometheus.CounterVec
	Deliveries      *prometheus.CounterVec
	DeliveredEvents prometheus.Counter
	QueueEvictions  prometheus.Counter
	QueueDepth      prometheus.Gauge
	ActiveSessions  prometheus.Gauge
}

// New returns a new set of metrics registered to their own registry.
func New() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		EventsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Total well-formed events received from the relay",
		}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Total relayed messages dropped before processing by reason",
		}, []string{"reason"}),
		EventsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_persisted_total",
			Help:      "Total tracked events whose stats and log were both written",
		}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Total persisted store failures by operation",
		}, []string{"op"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Total batch send attempts to the collector by result",
		}, []string{"result"}),
		DeliveredEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivered_events_total",
			Help:      "Total events acknowledged by the collector",
		}),
		QueueEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_evictions_total",
			Help:      "Total undelivered events evicted from the delivery queue",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Events currently awaiting delivery",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of registered viewer sessions",
		}),
	}
	r.MustRegister(
		m.EventsReceived,
		m.EventsDropped,
		m.EventsPersisted,
		m.StoreErrors,
		m.Deliveries,
		m.DeliveredEvents,
		m.QueueEvictions,
		m.QueueDepth,
		m.ActiveSessions,
	)
	return m
}

// Registry returns the registry the metrics are registered to.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
