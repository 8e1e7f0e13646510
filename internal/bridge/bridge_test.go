package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wcharczuk/observatory/internal/collector"
	"github.com/wcharczuk/observatory/internal/interceptor"
	"github.com/wcharczuk/observatory/internal/observatory"
	"github.com/wcharczuk/observatory/internal/store"
)

type recordingRelay struct {
	mu        sync.Mutex
	envelopes []observatory.Envelope
}

func (r *recordingRelay) Send(_ context.Context, env observatory.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes = append(r.envelopes, env)
}

func (r *recordingRelay) Envelopes() []observatory.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]observatory.Envelope(nil), r.envelopes...)
}

func testEvent(path string) observatory.RequestEvent {
	return observatory.RequestEvent{
		Kind:       observatory.KindFetch,
		URL:        "https://app.example.com" + path,
		Method:     "GET",
		StatusCode: 200,
		DurationMs: 5,
		Timestamp:  1700000000000,
	}
}

func Test_Page_dropsWhenFull(t *testing.T) {
	page := NewPage(2)
	page.Emit(context.Background(), testEvent("/api/a"))
	page.Emit(context.Background(), testEvent("/api/b"))
	page.Emit(context.Background(), testEvent("/api/c"))
	require.EqualValues(t, 1, page.Dropped())
	require.Len(t, page.Messages(), 2)

	msg := <-page.Messages()
	require.True(t, msg.Marker)
	var ev observatory.RequestEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &ev))
	require.Equal(t, "https://app.example.com/api/a", ev.URL)
}

func Test_Page_closed(t *testing.T) {
	page := NewPage(0)
	page.Close()
	page.Close()
	page.Emit(context.Background(), testEvent("/api/a"))
	require.EqualValues(t, 1, page.Dropped())
	_, ok := <-page.Messages()
	require.False(t, ok)
}

func Test_Mediator_Forward(t *testing.T) {
	relay := new(recordingRelay)
	m := NewMediator(42, relay)

	payload := json.RawMessage(`{"url":"https://app.example.com/api/a","extra":{"kept":true}}`)
	m.Forward(context.Background(), PageMessage{Marker: true, Payload: payload})
	m.Forward(context.Background(), PageMessage{Payload: json.RawMessage(`{"url":"https://app.example.com/api/b"}`)})

	envelopes := relay.Envelopes()
	require.Len(t, envelopes, 1)
	require.Equal(t, observatory.MessageTypeEvent, envelopes[0].Type)
	require.Equal(t, 42, envelopes[0].TabID)
	require.Equal(t, string(payload), string(envelopes[0].Payload))
}

func Test_Mediator_Run(t *testing.T) {
	relay := new(recordingRelay)
	page := NewPage(8)
	page.Emit(context.Background(), testEvent("/api/a"))
	page.Post(PageMessage{Payload: json.RawMessage(`{}`)})
	page.Emit(context.Background(), testEvent("/api/b"))
	page.Close()

	require.NoError(t, NewMediator(7, relay).Run(context.Background(), page.Messages()))
	envelopes := relay.Envelopes()
	require.Len(t, envelopes, 2)
	for _, env := range envelopes {
		require.Equal(t, 7, env.TabID)
	}
}

func Test_Mediator_Run_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewMediator(1, new(recordingRelay)).Run(ctx, make(chan PageMessage))
	require.ErrorIs(t, err, context.Canceled)
}

func Test_HTTPRelay_Send(t *testing.T) {
	var received observatory.Envelope
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if req.URL.Path != EventsPath {
			http.NotFound(rw, req)
			return
		}
		_ = json.NewDecoder(req.Body).Decode(&received)
		_, _ = rw.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(server.Close)

	var acks []observatory.Ack
	relay := NewHTTPRelay(server.URL + "/").WithOnAck(func(ack observatory.Ack) {
		acks = append(acks, ack)
	})
	require.Equal(t, server.URL+EventsPath, relay.Endpoint())

	env, err := observatory.NewEventEnvelope(3, testEvent("/api/a"))
	require.NoError(t, err)
	relay.Send(context.Background(), env)

	require.Equal(t, []observatory.Ack{{OK: true}}, acks)
	require.Equal(t, 3, received.TabID)
	require.Equal(t, observatory.MessageTypeEvent, received.Type)
}

func Test_HTTPRelay_Send_unreachableIsSilent(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	daemonURL := server.URL
	server.Close()

	var acked bool
	relay := NewHTTPRelay(daemonURL).WithOnAck(func(observatory.Ack) { acked = true })
	env, err := observatory.NewEventEnvelope(3, testEvent("/api/a"))
	require.NoError(t, err)
	relay.Send(context.Background(), env)
	require.False(t, acked)
}

func Test_HTTPRelay_Send_rejectedIsSilent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	var acked bool
	relay := NewHTTPRelay(server.URL).WithOnAck(func(observatory.Ack) { acked = true })
	relay.Send(context.Background(), observatory.Envelope{Type: observatory.MessageTypeEvent})
	require.False(t, acked)
}

func Test_IsConnectionError(t *testing.T) {
	require.False(t, IsConnectionError(nil))
	require.True(t, IsConnectionError(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}))
	require.True(t, IsConnectionError(fmt.Errorf("wrapped: %w", &net.DNSError{Err: "no such host", Name: "daemon"})))
	require.True(t, IsConnectionError(errors.New("dial tcp 127.0.0.1:1: connect: connection refused")))
	require.False(t, IsConnectionError(errors.New("unexpected EOF")))
}

type recordingReceiver struct {
	recordingRelay
}

func (r *recordingReceiver) Receive(ctx context.Context, env observatory.Envelope) {
	r.Send(ctx, env)
}

func Test_Direct(t *testing.T) {
	receiver := new(recordingReceiver)
	var mu sync.Mutex
	var acks int
	direct := NewDirect(receiver).WithOnAck(func(observatory.Ack) {
		mu.Lock()
		acks++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	env, err := observatory.NewEventEnvelope(9, testEvent("/api/a"))
	require.NoError(t, err)
	direct.Send(ctx, env)
	direct.Send(ctx, env)
	cancel()
	direct.Wait()

	require.Len(t, receiver.Envelopes(), 2)
	require.Equal(t, 2, acks)
}

func Test_pipeline_endToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	aggregator := observatory.NewAggregator(store.NewMemory(), observatory.NewBatcher(collector.Discard{}))
	t.Cleanup(aggregator.Batcher().Close)
	daemon := httptest.NewServer(observatory.NewServer(aggregator))
	t.Cleanup(daemon.Close)

	app := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/api/fail" {
			rw.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = rw.Write([]byte(`{}`))
	}))
	t.Cleanup(app.Close)

	appURL, err := http.NewRequest(http.MethodGet, app.URL, nil)
	require.NoError(t, err)
	domain := appURL.URL.Hostname()
	require.NoError(t, aggregator.SetTracking(ctx, domain, true))

	page := NewPage(16)
	client := &http.Client{}
	interceptor.Install(client, interceptor.OptBaseURL(app.URL), interceptor.OptEmitter(page))

	for _, path := range []string{"/api/users", "/api/fail", "/index.html"} {
		res, err := client.Get(app.URL + path)
		require.NoError(t, err)
		_ = res.Body.Close()
	}
	page.Close()

	require.NoError(t, NewMediator(1, NewHTTPRelay(daemon.URL)).Run(ctx, page.Messages()))

	stats, err := aggregator.Stats(ctx, domain)
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.Requests)
	require.EqualValues(t, 1, stats.Errors)
	logs, err := aggregator.Logs(ctx, domain)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, app.URL+"/api/users", logs[0].URL)
}
