package observatory

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/wcharczuk/observatory/internal/metrics"
)

// NewAggregator returns a new aggregator over a store and a batcher.
func NewAggregator(store Store, batcher *Batcher) *Aggregator {
	return &Aggregator{
		store:         store,
		batcher:       batcher,
		sessions:      NewSessions(),
		clock:         clockwork.NewRealClock(),
		metrics:       metrics.New(),
		maxLogEntries: DefaultMaxLogEntries,
	}
}

// Aggregator receives relayed events, applies the per-domain tracking gate,
// keeps domain stats and logs, and hands tracked events to the batcher.
//
// Every well-formed event is forwarded to the viewer session of the tab it
// came from whether or not its domain is tracked.
type Aggregator struct {
	store         Store
	batcher       *Batcher
	sessions      *Sessions
	clock         clockwork.Clock
	metrics       *metrics.Metrics
	maxLogEntries int
	domainLocks   keyedMutex
}

// WithClock sets the aggregator clock and returns a reference to the same aggregator.
func (a *Aggregator) WithClock(clock clockwork.Clock) *Aggregator {
	a.clock = clock
	return a
}

// WithMetrics sets the aggregator metrics and returns a reference to the same aggregator.
func (a *Aggregator) WithMetrics(m *metrics.Metrics) *Aggregator {
	a.metrics = m
	return a
}

// WithSessions sets the viewer session registry and returns a reference to the same aggregator.
func (a *Aggregator) WithSessions(sessions *Sessions) *Aggregator {
	a.sessions = sessions
	return a
}

// WithMaxLogEntries sets the per-domain log cap and returns a reference to the same aggregator.
func (a *Aggregator) WithMaxLogEntries(maxLogEntries int) *Aggregator {
	if maxLogEntries > 0 {
		a.maxLogEntries = maxLogEntries
	}
	return a
}

// Sessions returns the viewer session registry.
func (a *Aggregator) Sessions() *Sessions { return a.sessions }

// Batcher returns the delivery batcher.
func (a *Aggregator) Batcher() *Batcher { return a.batcher }

// Metrics returns the aggregator metrics.
func (a *Aggregator) Metrics() *metrics.Metrics { return a.metrics }

// Receive processes one relayed envelope.
//
// Malformed envelopes and events without a resolvable domain are dropped
// silently. Store failures degrade to skipping the affected step.
func (a *Aggregator) Receive(ctx context.Context, env Envelope) {
	if env.Type != MessageTypeEvent {
		a.metrics.EventsDropped.WithLabelValues(metrics.DropReasonType).Inc()
		return
	}
	ev, ok := ParseEvent(env.Payload)
	if !ok {
		a.metrics.EventsDropped.WithLabelValues(metrics.DropReasonMalformed).Inc()
		return
	}
	ev, ok = a.enrich(ev)
	if !ok {
		a.metrics.EventsDropped.WithLabelValues(metrics.DropReasonDomain).Inc()
		return
	}
	a.metrics.EventsReceived.Inc()

	a.sessions.Send(env.TabID, LogMessage(ev))

	enabled, err := a.TrackingEnabled(ctx, ev.Domain)
	if err != nil {
		a.storeError("get_tracking", ev.Domain, err)
		return
	}
	if !enabled {
		return
	}
	if a.persist(ctx, ev) {
		a.metrics.EventsPersisted.Inc()
	}
	a.batcher.Enqueue(ev)
}

// enrich attaches the domain and fills in defaults.
func (a *Aggregator) enrich(ev RequestEvent) (RequestEvent, bool) {
	ev.Domain = DomainOf(ev.URL)
	if ev.Domain == "" {
		return ev, false
	}
	ev.URL = SanitizeRawURL(ev.URL)
	ev.Method = NormalizeMethod(ev.Method)
	ev.DurationMs = min(max(ev.DurationMs, 0), MaxDurationMs)
	if ev.Timestamp <= 0 {
		ev.Timestamp = Milliseconds(a.clock.Now())
	}
	return ev, true
}

// persist updates the stats and log of the event's domain, returning if both writes succeeded.
func (a *Aggregator) persist(ctx context.Context, ev RequestEvent) (ok bool) {
	unlock := a.domainLocks.Lock(ev.Domain)
	defer unlock()

	ok = true
	if stats, _, err := getJSON[DomainStats](ctx, a.store, StatsKey(ev.Domain)); err != nil {
		a.storeError("get_stats", ev.Domain, err)
		ok = false
	} else if err = setJSON(ctx, a.store, StatsKey(ev.Domain), stats.Apply(ev)); err != nil {
		a.storeError("set_stats", ev.Domain, err)
		ok = false
	}

	if log, _, err := getJSON[DomainLog](ctx, a.store, LogsKey(ev.Domain)); err != nil {
		a.storeError("get_logs", ev.Domain, err)
		ok = false
	} else if err = setJSON(ctx, a.store, LogsKey(ev.Domain), log.Append(ev, a.maxLogEntries)); err != nil {
		a.storeError("set_logs", ev.Domain, err)
		ok = false
	}
	return
}

// TrackingEnabled returns the persisted tracking flag for a domain; an absent flag is disabled.
func (a *Aggregator) TrackingEnabled(ctx context.Context, domain string) (bool, error) {
	enabled, _, err := getJSON[bool](ctx, a.store, TrackingKey(domain))
	return enabled, err
}

// SetTracking persists the tracking flag for a domain and pushes the new
// state to every viewer watching the domain.
func (a *Aggregator) SetTracking(ctx context.Context, domain string, enabled bool) error {
	if err := setJSON(ctx, a.store, TrackingKey(domain), enabled); err != nil {
		a.storeError("set_tracking", domain, err)
		return err
	}
	slog.Info("domain tracking updated", slog.String("domain", domain), slog.Bool("enabled", enabled))
	a.sessions.SendDomain(domain, a.State(ctx, domain))
	return nil
}

// Stats returns the stats for a domain, zero valued if none exist.
func (a *Aggregator) Stats(ctx context.Context, domain string) (DomainStats, error) {
	stats, _, err := getJSON[DomainStats](ctx, a.store, StatsKey(domain))
	return stats, err
}

// Logs returns the persisted log for a domain, oldest first.
func (a *Aggregator) Logs(ctx context.Context, domain string) (DomainLog, error) {
	log, _, err := getJSON[DomainLog](ctx, a.store, LogsKey(domain))
	return log, err
}

// ClearStats removes the stats and log for a domain. The tracking flag is kept.
func (a *Aggregator) ClearStats(ctx context.Context, domain string) error {
	unlock := a.domainLocks.Lock(domain)
	defer unlock()
	if err := a.store.Remove(ctx, StatsKey(domain), LogsKey(domain)); err != nil {
		a.storeError("clear_stats", domain, err)
		return err
	}
	slog.Info("domain stats cleared", slog.String("domain", domain))
	return nil
}

// State returns the STATE message for a domain.
//
// Store failures are reported as an untracked domain with empty stats.
func (a *Aggregator) State(ctx context.Context, domain string) Message {
	enabled, err := a.TrackingEnabled(ctx, domain)
	if err != nil {
		a.storeError("get_tracking", domain, err)
	}
	stats, err := a.Stats(ctx, domain)
	if err != nil {
		a.storeError("get_stats", domain, err)
	}
	return StateMessage(domain, enabled, stats)
}

// Register records a viewer session and, if it names a domain, sends it the
// current state of that domain.
func (a *Aggregator) Register(ctx context.Context, session Session, domain string) {
	a.sessions.Register(session, domain)
	slog.Debug("viewer session registered",
		slog.String("session_id", session.ID()),
		slog.Int("tab_id", session.TabID()),
		slog.String("domain", domain),
	)
	if domain != "" {
		a.sessions.Send(session.TabID(), a.State(ctx, domain))
	}
}

// Unregister removes a viewer session.
func (a *Aggregator) Unregister(session Session) {
	a.sessions.Unregister(session)
	slog.Debug("viewer session unregistered",
		slog.String("session_id", session.ID()),
		slog.Int("tab_id", session.TabID()),
	)
}

// Export is a downloadable snapshot of a domain.
type Export struct {
	Domain     string      `json:"domain"`
	ExportTime time.Time   `json:"exportTime"`
	Stats      DomainStats `json:"stats"`
	Logs       DomainLog   `json:"logs"`
}

// Export returns the stats and log of a domain.
func (a *Aggregator) Export(ctx context.Context, domain string) (output Export, err error) {
	output.Domain = domain
	output.ExportTime = a.clock.Now().UTC()
	if output.Stats, err = a.Stats(ctx, domain); err != nil {
		return
	}
	if output.Logs, err = a.Logs(ctx, domain); err != nil {
		return
	}
	if output.Logs == nil {
		output.Logs = DomainLog{}
	}
	return
}

// Grouped returns the domain log aggregated per method and path.
func (a *Aggregator) Grouped(ctx context.Context, domain string) ([]GroupedRow, error) {
	log, err := a.Logs(ctx, domain)
	if err != nil {
		return nil, err
	}
	return GroupByEndpoint(log), nil
}

func (a *Aggregator) storeError(op, domain string, err error) {
	a.metrics.StoreErrors.WithLabelValues(op).Inc()
	slog.Warn("store operation failed",
		slog.String("op", op),
		slog.String("domain", domain),
		slog.Any("err", err),
	)
}
