package observatory

import "slices"

// NewDeliveryQueue returns a new delivery queue capped at maxLength events.
//
// A maxLength of zero or less uses [DefaultMaxQueueLength].
func NewDeliveryQueue(maxLength int) *DeliveryQueue {
	if maxLength <= 0 {
		maxLength = DefaultMaxQueueLength
	}
	return &DeliveryQueue{maxLength: maxLength}
}

// DeliveryQueue holds events awaiting shipment to the collector, oldest first.
//
// When the queue would exceed its cap the oldest events are evicted, so
// under sustained backpressure the newest events win.
//
// It is not safe for concurrent use; the [Batcher] guards it.
type DeliveryQueue struct {
	events    ring[RequestEvent]
	maxLength int
}

// Len returns the number of queued events.
func (q *DeliveryQueue) Len() int {
	return q.events.Len()
}

// MaxLength returns the queue cap.
func (q *DeliveryQueue) MaxLength() int {
	return q.maxLength
}

// Push appends events to the tail and returns how many were evicted.
func (q *DeliveryQueue) Push(events ...RequestEvent) (evicted int) {
	for _, ev := range events {
		q.events.PushBack(ev)
	}
	return q.evict()
}

// PushFront re-inserts events at the head, preserving their order, and
// returns how many were evicted.
func (q *DeliveryQueue) PushFront(events ...RequestEvent) (evicted int) {
	for _, ev := range slices.Backward(events) {
		q.events.PushFront(ev)
	}
	return q.evict()
}

// PopN removes and returns up to n events from the head.
func (q *DeliveryQueue) PopN(n int) (output []RequestEvent) {
	output = make([]RequestEvent, 0, min(n, q.events.Len()))
	for len(output) < n {
		ev, ok := q.events.PopFront()
		if !ok {
			break
		}
		output = append(output, ev)
	}
	return
}

// Snapshot returns a copy of the queued events, oldest first.
func (q *DeliveryQueue) Snapshot() []RequestEvent {
	return slices.Collect(q.events.Each())
}

func (q *DeliveryQueue) evict() (evicted int) {
	for q.events.Len() > q.maxLength {
		q.events.PopFront()
		evicted++
	}
	return
}
