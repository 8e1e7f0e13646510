package bridge

import (
	"context"
	"log/slog"
	"sync"

	"github.com/wcharczuk/observatory/internal/observatory"
)

// Receiver is the aggregator side of an in-process relay.
type Receiver interface {
	Receive(ctx context.Context, env observatory.Envelope)
}

var _ Relay = (*Direct)(nil)

// NewDirect returns a relay handing envelopes to a receiver in the same process.
func NewDirect(receiver Receiver) *Direct {
	return &Direct{receiver: receiver}
}

// Direct hands envelopes to a receiver on their own goroutine.
type Direct struct {
	receiver Receiver
	onAck    func(observatory.Ack)
	wg       sync.WaitGroup
}

// WithOnAck sets a hook called after each envelope is received and returns a reference to the same relay.
func (d *Direct) WithOnAck(onAck func(observatory.Ack)) *Direct {
	d.onAck = onAck
	return d
}

// Send implements [Relay].
func (d *Direct) Send(ctx context.Context, env observatory.Envelope) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Debug("direct relay receiver panicked", slog.Any("panic", r))
			}
		}()
		d.receiver.Receive(ctx, env)
		if d.onAck != nil {
			d.onAck(observatory.Ack{OK: true})
		}
	}()
}

// Wait blocks until every envelope sent so far has been received.
func (d *Direct) Wait() {
	d.wg.Wait()
}
