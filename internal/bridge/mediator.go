package bridge

import (
	"context"

	"github.com/wcharczuk/observatory/internal/observatory"
)

// Relay delivers an envelope to the aggregator.
//
// Send never reports failure; implementations swallow and log.
type Relay interface {
	Send(ctx context.Context, env observatory.Envelope)
}

// NewMediator returns a mediator for a given tab.
func NewMediator(tabID int, relay Relay) *Mediator {
	return &Mediator{
		tabID: tabID,
		relay: relay,
	}
}

// Mediator forwards marked page messages to a relay for one tab.
type Mediator struct {
	tabID int
	relay Relay
}

// TabID returns the tab the mediator stamps on envelopes.
func (m *Mediator) TabID() int {
	return m.tabID
}

// Run forwards messages until the channel closes or the context is done.
func (m *Mediator) Run(ctx context.Context, messages <-chan PageMessage) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			m.Forward(ctx, msg)
		}
	}
}

// Forward relays a single message if it carries the marker.
//
// The payload is passed through byte for byte.
func (m *Mediator) Forward(ctx context.Context, msg PageMessage) {
	if !msg.Marker {
		return
	}
	m.relay.Send(ctx, observatory.Envelope{
		Type:    observatory.MessageTypeEvent,
		TabID:   m.tabID,
		Payload: msg.Payload,
	})
}
