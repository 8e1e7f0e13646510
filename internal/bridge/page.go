package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/wcharczuk/observatory/internal/observatory"
)

// DefaultPageBuffer is the page channel capacity when none is given.
const DefaultPageBuffer = 256

// PageMessage is posted by the instrumented side.
//
// Only messages with the marker set are relayed.
type PageMessage struct {
	Marker  bool            `json:"__apiObservatory"`
	Payload json.RawMessage `json:"payload"`
}

// NewPage returns a new page with a given channel capacity.
func NewPage(buffer int) *Page {
	if buffer <= 0 {
		buffer = DefaultPageBuffer
	}
	return &Page{
		messages: make(chan PageMessage, buffer),
	}
}

// Page is the instrumented end of the bridge and serves as the interceptor's emitter.
type Page struct {
	mu       sync.RWMutex
	closed   bool
	messages chan PageMessage
	dropped  atomic.Uint64
}

// Emit posts an event without blocking; it is dropped if the channel is full or closed.
func (p *Page) Emit(_ context.Context, ev observatory.RequestEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.drop("encode")
		return
	}
	p.Post(PageMessage{Marker: true, Payload: payload})
}

// Post posts a raw message without blocking.
func (p *Page) Post(msg PageMessage) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.drop("closed")
		return
	}
	select {
	case p.messages <- msg:
	default:
		p.drop("full")
	}
}

// Messages returns the channel a mediator reads from.
func (p *Page) Messages() <-chan PageMessage {
	return p.messages
}

// Dropped returns the number of messages dropped.
func (p *Page) Dropped() uint64 {
	return p.dropped.Load()
}

// Close closes the message channel; later posts are dropped.
func (p *Page) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.messages)
}

func (p *Page) drop(reason string) {
	p.dropped.Add(1)
	slog.Debug("page message dropped", slog.String("reason", reason))
}
