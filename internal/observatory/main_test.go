package observatory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var errTestStore = errors.New("store unavailable")

// testStore is an in-memory [Store] that can be made to fail.
type testStore struct {
	mu     sync.Mutex
	values     map[string][]byte
	fail       bool
	failWrites bool
}

func newTestStore() *testStore {
	return &testStore{values: make(map[string][]byte)}
}

func (s *testStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, false, errTestStore
	}
	value, ok := s.values[key]
	return slices.Clone(value), ok, nil
}

func (s *testStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail || s.failWrites {
		return errTestStore
	}
	s.values[key] = slices.Clone(value)
	return nil
}

func (s *testStore) Remove(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errTestStore
	}
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func (s *testStore) SetFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

// SetFailWrites makes Set fail while Get and Remove keep working.
func (s *testStore) SetFailWrites(failWrites bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = failWrites
}

func (s *testStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.values))
}

// testSession records the messages sent to it.
type testSession struct {
	id    string
	tabID int
	err   error

	mu       sync.Mutex
	messages []Message
}

func (s *testSession) ID() string { return s.id }
func (s *testSession) TabID() int { return s.tabID }

func (s *testSession) Send(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return s.err
}

func (s *testSession) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

func (s *testSession) MessagesOfType(messageType MessageType) (output []Message) {
	for _, msg := range s.Messages() {
		if msg.Type == messageType {
			output = append(output, msg)
		}
	}
	return
}

// testCollector records batches and fails while its error is set.
type testCollector struct {
	mu      sync.Mutex
	batches []Batch
	err     error
	gate    chan struct{}
}

func (c *testCollector) Send(_ context.Context, batch Batch) error {
	c.mu.Lock()
	c.batches = append(c.batches, Batch{Events: slices.Clone(batch.Events)})
	err := c.err
	gate := c.gate
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (c *testCollector) SetErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *testCollector) Batches() []Batch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.batches)
}

func testEvent(rawURL string, statusCode int, durationMs int64) RequestEvent {
	return RequestEvent{
		Kind:       KindFetch,
		URL:        rawURL,
		Method:     "GET",
		StatusCode: statusCode,
		DurationMs: durationMs,
		Timestamp:  1700000000000,
	}
}

func testEnvelope(t *testing.T, tabID int, ev RequestEvent) Envelope {
	t.Helper()
	env, err := NewEventEnvelope(tabID, ev)
	require.NoError(t, err)
	return env
}

func testEvents(count int) (output []RequestEvent) {
	for index := range count {
		ev := testEvent("https://app.example.com/api/items", 200, int64(index))
		ev.Timestamp += int64(index)
		output = append(output, ev)
	}
	return
}
