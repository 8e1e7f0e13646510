package observatory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jonboulle/clockwork"

	"github.com/wcharczuk/observatory/internal/metrics"
)

// Collector ships a batch of events to a remote endpoint.
//
// Any returned error is treated as a failed delivery and the batch is retried.
type Collector interface {
	Send(ctx context.Context, batch Batch) error
}

// Batch is the body delivered to a collector.
type Batch struct {
	Events []RequestEvent `json:"events"`
}

// NewBatcher returns a new batcher delivering to a given collector.
func NewBatcher(collector Collector) *Batcher {
	return &Batcher{
		collector:   collector,
		clock:       clockwork.NewRealClock(),
		metrics:     metrics.New(),
		batchSize:   DefaultBatchSize,
		quietPeriod: DefaultQuietPeriod,
		queue:       NewDeliveryQueue(DefaultMaxQueueLength),
		backoff:     newBackoff(DefaultBackoffInitial, DefaultBackoffMax),
		ctx:         context.Background(),
	}
}

// Batcher owns the delivery queue and the flush state machine.
//
// At most one batch is in flight and at most one flush is scheduled at a time.
// Failed batches go back to the front of the queue and the next flush waits out
// an exponential backoff; a successful send resets the backoff.
type Batcher struct {
	collector   Collector
	clock       clockwork.Clock
	metrics     *metrics.Metrics
	batchSize   int
	quietPeriod time.Duration

	mu        sync.Mutex
	wg        sync.WaitGroup
	ctx       context.Context
	closed    bool
	queue     *DeliveryQueue
	flushing  bool
	scheduled *scheduledFlush
	attempt   int
	backoff   *backoff.ExponentialBackOff
	lastDelay time.Duration
	stats     BatcherStats
}

type scheduledFlush struct {
	timer clockwork.Timer
}

// BatcherStats are running totals for a batcher.
type BatcherStats struct {
	TotalEnqueued     uint64 `json:"totalEnqueued"`
	TotalDelivered    uint64 `json:"totalDelivered"`
	TotalEvicted      uint64 `json:"totalEvicted"`
	TotalSendAttempts uint64 `json:"totalSendAttempts"`
	TotalSendFailures uint64 `json:"totalSendFailures"`
}

// BatcherStatus is a point in time view of the batcher.
type BatcherStatus struct {
	BatcherStats
	QueueLength    int   `json:"queueLength"`
	MaxQueueLength int   `json:"maxQueueLength"`
	Flushing       bool  `json:"flushing"`
	FlushScheduled bool  `json:"flushScheduled"`
	Attempt        int   `json:"attempt"`
	LastDelayMs    int64 `json:"lastDelayMs"`
}

// WithClock sets the batcher clock and returns a reference to the same batcher.
func (b *Batcher) WithClock(clock clockwork.Clock) *Batcher {
	b.clock = clock
	return b
}

// WithMetrics sets the batcher metrics and returns a reference to the same batcher.
func (b *Batcher) WithMetrics(m *metrics.Metrics) *Batcher {
	b.metrics = m
	return b
}

// WithBatchSize sets the flush threshold and returns a reference to the same batcher.
func (b *Batcher) WithBatchSize(batchSize int) *Batcher {
	if batchSize > 0 {
		b.batchSize = batchSize
	}
	return b
}

// WithQuietPeriod sets the partial batch delay and returns a reference to the same batcher.
func (b *Batcher) WithQuietPeriod(quietPeriod time.Duration) *Batcher {
	if quietPeriod > 0 {
		b.quietPeriod = quietPeriod
	}
	return b
}

// WithMaxQueueLength sets the queue cap and returns a reference to the same batcher.
//
// It must be called before any events are enqueued.
func (b *Batcher) WithMaxQueueLength(maxLength int) *Batcher {
	b.queue = NewDeliveryQueue(maxLength)
	return b
}

// WithBackoff sets the retry delay bounds and returns a reference to the same batcher.
func (b *Batcher) WithBackoff(initial, maximum time.Duration) *Batcher {
	if initial > 0 && maximum >= initial {
		b.backoff = newBackoff(initial, maximum)
	}
	return b
}

// Start sets the context used for flushes started by the batcher itself.
func (b *Batcher) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ctx = ctx
}

// Close stops any scheduled flush and waits for in-flight flushes to finish.
//
// Queued events are discarded with the batcher.
func (b *Batcher) Close() {
	b.mu.Lock()
	b.closed = true
	b.cancelScheduledLocked()
	b.mu.Unlock()
	b.wg.Wait()
}

// Enqueue adds events to the delivery queue and schedules a flush.
//
// Reaching the batch size flushes immediately, cancelling any quiet period
// timer, unless a failed delivery is backing off; otherwise a flush is
// scheduled after the quiet period if one is not already pending.
func (b *Batcher) Enqueue(events ...RequestEvent) {
	if len(events) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	evicted := b.queue.Push(events...)
	b.stats.TotalEnqueued += uint64(len(events))
	b.recordEvictionsLocked(evicted)
	b.metrics.QueueDepth.Set(float64(b.queue.Len()))

	if b.queue.Len() >= b.batchSize && b.attempt == 0 {
		// not backing off, so any pending timer is a quiet period timer
		// for events this flush is about to take
		b.cancelScheduledLocked()
		b.flushAsyncLocked()
		return
	}
	b.scheduleLocked(b.quietPeriod, false /*replace*/)
}

// Flush sends up to one batch to the collector.
//
// It is a no-op if the queue is empty or another flush is in flight.
func (b *Batcher) Flush(ctx context.Context) {
	b.mu.Lock()
	if b.flushing || b.queue.Len() == 0 {
		b.mu.Unlock()
		return
	}
	b.flushing = true
	batch := b.queue.PopN(b.batchSize)
	b.stats.TotalSendAttempts++
	b.metrics.QueueDepth.Set(float64(b.queue.Len()))
	b.mu.Unlock()

	err := b.send(ctx, batch)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushing = false
	if err != nil {
		evicted := b.queue.PushFront(batch...)
		b.recordEvictionsLocked(evicted)
		b.metrics.QueueDepth.Set(float64(b.queue.Len()))
		b.metrics.Deliveries.WithLabelValues(metrics.DeliveryResultFailure).Inc()
		b.stats.TotalSendFailures++
		b.attempt++
		b.lastDelay = b.backoff.NextBackOff()
		slog.Warn("collector delivery failed",
			slog.Int("batch_size", len(batch)),
			slog.Int("attempt", b.attempt),
			slog.Duration("retry_in", b.lastDelay),
			slog.Any("err", err),
		)
		b.scheduleLocked(b.lastDelay, true /*replace*/)
		return
	}

	b.metrics.Deliveries.WithLabelValues(metrics.DeliveryResultSuccess).Inc()
	b.metrics.DeliveredEvents.Add(float64(len(batch)))
	b.stats.TotalDelivered += uint64(len(batch))
	b.attempt = 0
	b.backoff.Reset()
	slog.Debug("collector delivery succeeded", slog.Int("batch_size", len(batch)), slog.Int("remaining", b.queue.Len()))
	if b.queue.Len() > 0 {
		b.flushAsyncLocked()
	}
}

// Status returns a snapshot of the batcher state.
func (b *Batcher) Status() BatcherStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BatcherStatus{
		BatcherStats:   b.stats,
		QueueLength:    b.queue.Len(),
		MaxQueueLength: b.queue.MaxLength(),
		Flushing:       b.flushing,
		FlushScheduled: b.scheduled != nil,
		Attempt:        b.attempt,
		LastDelayMs:    b.lastDelay.Milliseconds(),
	}
}

// Pending returns a copy of the queued events, oldest first.
func (b *Batcher) Pending() []RequestEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue.Snapshot()
}

func (b *Batcher) send(ctx context.Context, batch []RequestEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("collector panic: %v", r)
		}
	}()
	return b.collector.Send(ctx, Batch{Events: batch})
}

func (b *Batcher) flushAsyncLocked() {
	if b.closed {
		return
	}
	b.wg.Add(1)
	ctx := b.ctx
	go func() {
		defer b.wg.Done()
		b.Flush(ctx)
	}()
}

// scheduleLocked arms the flush timer. If a flush is already scheduled it is
// kept, unless replace is set in which case it is stopped and re-armed.
func (b *Batcher) scheduleLocked(delay time.Duration, replace bool) {
	if b.closed {
		return
	}
	if b.scheduled != nil {
		if !replace {
			return
		}
		b.cancelScheduledLocked()
	}
	scheduled := new(scheduledFlush)
	scheduled.timer = b.clock.AfterFunc(delay, func() {
		go b.onTimer(scheduled)
	})
	b.scheduled = scheduled
}

func (b *Batcher) cancelScheduledLocked() {
	if b.scheduled == nil {
		return
	}
	b.scheduled.timer.Stop()
	b.scheduled = nil
}

func (b *Batcher) onTimer(scheduled *scheduledFlush) {
	b.mu.Lock()
	if b.closed || b.scheduled != scheduled {
		b.mu.Unlock()
		return
	}
	b.scheduled = nil
	b.wg.Add(1)
	ctx := b.ctx
	b.mu.Unlock()

	defer b.wg.Done()
	b.Flush(ctx)
}

func (b *Batcher) recordEvictionsLocked(evicted int) {
	if evicted == 0 {
		return
	}
	b.stats.TotalEvicted += uint64(evicted)
	b.metrics.QueueEvictions.Add(float64(evicted))
	slog.Warn("delivery queue full, evicted oldest events", slog.Int("evicted", evicted))
}

func newBackoff(initial, maximum time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maximum
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()
	return b
}
