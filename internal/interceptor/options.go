package interceptor

import (
	"net/url"

	"github.com/jonboulle/clockwork"

	"github.com/wcharczuk/observatory/internal/observatory"
)

// DefaultPathPatterns are the path substrings tracked when none are configured.
var DefaultPathPatterns = []string{"/api", "/v1/", "/v2/", "/graphql"}

// Fallback error strings for failures that carry no message.
const (
	FallbackErrorFetch = "fetch_error"
	FallbackErrorXHR   = "xhr_error"
)

// Option mutates a transport.
type Option func(*Transport)

// OptKind sets the kind reported on events.
func OptKind(kind observatory.Kind) Option {
	return func(t *Transport) {
		t.kind = kind
	}
}

// OptBaseURL sets the origin relative request urls resolve against, and that
// tracked calls must share.
//
// A base url that does not parse, or has no scheme and host, disables tracking.
func OptBaseURL(rawURL string) Option {
	return func(t *Transport) {
		u, err := url.Parse(rawURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			t.base = nil
			return
		}
		t.base = u
	}
}

// OptPathPatterns sets the path substrings that mark a call as tracked.
func OptPathPatterns(patterns ...string) Option {
	return func(t *Transport) {
		t.patterns = append([]string(nil), patterns...)
	}
}

// OptEmitter sets the destination for events.
func OptEmitter(emitter Emitter) Option {
	return func(t *Transport) {
		t.emitter = emitter
	}
}

// OptClock sets the clock used for timing and timestamps.
func OptClock(clock clockwork.Clock) Option {
	return func(t *Transport) {
		t.clock = clock
	}
}
