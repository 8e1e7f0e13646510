package interceptor

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/wcharczuk/observatory/internal/observatory"
)

// Emitter receives one event per tracked call.
//
// Implementations must not block the caller.
type Emitter interface {
	Emit(ctx context.Context, ev observatory.RequestEvent)
}

// EmitterFunc adapts a function to an [Emitter].
type EmitterFunc func(ctx context.Context, ev observatory.RequestEvent)

// Emit implements [Emitter].
func (f EmitterFunc) Emit(ctx context.Context, ev observatory.RequestEvent) {
	f(ctx, ev)
}

var _ http.RoundTripper = (*Transport)(nil)

// Wrap returns an instrumented transport around a given transport.
//
// Wrapping a transport that is already instrumented returns it unchanged.
// A nil transport wraps [http.DefaultTransport].
func Wrap(next http.RoundTripper, opts ...Option) http.RoundTripper {
	if existing, ok := next.(*Transport); ok {
		return existing
	}
	if next == nil {
		next = http.DefaultTransport
	}
	t := &Transport{
		next:     next,
		kind:     observatory.KindFetch,
		patterns: DefaultPathPatterns,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Install instruments a client in place; it is a no-op if the client is
// already instrumented.
func Install(client *http.Client, opts ...Option) {
	if client == nil {
		return
	}
	if _, ok := client.Transport.(*Transport); ok {
		return
	}
	client.Transport = Wrap(client.Transport, opts...)
}

// Installed returns if a client is instrumented.
func Installed(client *http.Client) bool {
	if client == nil {
		return false
	}
	_, ok := client.Transport.(*Transport)
	return ok
}

// Transport is an instrumented [http.RoundTripper].
type Transport struct {
	next     http.RoundTripper
	kind     observatory.Kind
	base     *url.URL
	patterns []string
	emitter  Emitter
	clock    clockwork.Clock
}

// Resolve returns the absolute url of a request url against the base url.
func (t *Transport) Resolve(u *url.URL) *url.URL {
	if t.base == nil || u == nil {
		return u
	}
	return t.base.ResolveReference(u)
}

// Tracks returns if a resolved url is same-origin with the base url and its
// path contains one of the configured patterns.
func (t *Transport) Tracks(u *url.URL) bool {
	if t.base == nil || u == nil {
		return false
	}
	if originOf(u) != originOf(t.base) {
		return false
	}
	for _, pattern := range t.patterns {
		if pattern != "" && strings.Contains(u.Path, pattern) {
			return true
		}
	}
	return false
}

// RoundTrip implements [http.RoundTripper].
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	target := t.Resolve(req.URL)
	if !t.Tracks(target) {
		return t.next.RoundTrip(req)
	}

	method := observatory.NormalizeMethod(req.Method)
	start := t.clock.Now()
	res, err := t.next.RoundTrip(req)
	elapsed := t.clock.Since(start)

	ev := observatory.RequestEvent{
		Kind:       t.kind,
		URL:        observatory.SanitizeURL(target),
		Method:     method,
		DurationMs: observatory.ClampDuration(float64(elapsed) / float64(time.Millisecond)),
		Timestamp:  observatory.Milliseconds(t.clock.Now()),
	}
	switch {
	case err != nil:
		ev.Error = err.Error()
	case res != nil:
		ev.StatusCode = res.StatusCode
	}
	if ev.StatusCode == 0 && ev.Error == "" {
		ev.Error = t.fallbackError()
	}
	t.emit(req.Context(), ev)
	return res, err
}

func (t *Transport) fallbackError() string {
	if t.kind == observatory.KindXHR {
		return FallbackErrorXHR
	}
	return FallbackErrorFetch
}

func (t *Transport) emit(ctx context.Context, ev observatory.RequestEvent) {
	if t.emitter == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("event emitter panicked", slog.String("url", ev.URL), slog.Any("panic", r))
		}
	}()
	t.emitter.Emit(ctx, ev)
}

// originOf returns scheme://host:port with the default port made explicit.
func originOf(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	port := u.Port()
	if port == "" {
		switch scheme {
		case "http", "ws":
			port = "80"
		case "https", "wss":
			port = "443"
		}
	}
	return scheme + "://" + net.JoinHostPort(strings.ToLower(u.Hostname()), port)
}
