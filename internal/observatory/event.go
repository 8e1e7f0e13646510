package observatory

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"net/url"
	"strings"
	"time"
)

// Kind is the request primitive an event was observed through.
type Kind string

// Kind values.
const (
	KindFetch Kind = "fetch"
	KindXHR   Kind = "xhr"
)

// RequestEvent is one observed http exchange.
type RequestEvent struct {
	Kind       Kind   `json:"kind"`
	URL        string `json:"url"`
	Method     string `json:"method"`
	StatusCode int    `json:"statusCode"`
	DurationMs int64  `json:"durationMs"`
	Timestamp  int64  `json:"timestamp"`
	Error      string `json:"error,omitempty"`
	Domain     string `json:"domain,omitempty"`
}

// IsError returns if the event counts against a domain's error total.
//
// A status code of zero means no response was received at all.
func (e RequestEvent) IsError() bool {
	return e.StatusCode == 0 || e.StatusCode >= 400
}

// SanitizeURL reduces a url to its origin and path.
//
// Query strings, fragments and userinfo never leave the instrumented client.
func SanitizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	if u.Scheme == "" || u.Host == "" {
		return u.EscapedPath()
	}
	return u.Scheme + "://" + u.Host + u.EscapedPath()
}

// SanitizeRawURL is [SanitizeURL] for an unparsed url, falling back to
// truncating at the first '?' or '#' if the url does not parse.
func SanitizeRawURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		if index := strings.IndexAny(rawURL, "?#"); index >= 0 {
			return rawURL[:index]
		}
		return rawURL
	}
	return SanitizeURL(u)
}

// DomainOf returns the hostname of a raw url, or an empty string if
// the url does not have one.
func DomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// NormalizeMethod upper-cases a method, defaulting to GET.
func NormalizeMethod(method string) string {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return "GET"
	}
	return method
}

// ClampDuration rounds a millisecond duration to the nearest integer
// and clamps it to [0, MaxDurationMs].
func ClampDuration(ms float64) int64 {
	if math.IsNaN(ms) || ms <= 0 {
		return 0
	}
	if ms >= float64(MaxDurationMs) {
		return MaxDurationMs
	}
	return int64(math.Round(ms))
}

// Milliseconds returns the epoch milliseconds for a given time.
func Milliseconds(t time.Time) int64 {
	return t.UnixMilli()
}

// wireEvent is the loosely typed shape events arrive in from the relay.
type wireEvent struct {
	Kind       string   `json:"kind"`
	URL        string   `json:"url"`
	Method     string   `json:"method"`
	StatusCode float64  `json:"statusCode"`
	DurationMs *float64 `json:"durationMs"`
	Duration   *float64 `json:"duration"`
	Timestamp  *float64 `json:"timestamp"`
	Error      string   `json:"error"`
}

// ParseEvent decodes a relayed payload into an un-enriched event.
//
// It returns false if the payload is not a json object or is missing a url.
// A status code that is not an integer in the http range is treated as no response.
func ParseEvent(payload json.RawMessage) (output RequestEvent, ok bool) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return
	}
	var wire wireEvent
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		// wrongly typed fields are left zero, anything else is malformed
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return
		}
	}
	if strings.TrimSpace(wire.URL) == "" {
		return
	}
	output.Kind = KindFetch
	if Kind(wire.Kind) == KindXHR {
		output.Kind = KindXHR
	}
	output.URL = wire.URL
	output.Method = wire.Method
	output.StatusCode = normalizeStatusCode(wire.StatusCode)
	switch {
	case wire.DurationMs != nil:
		output.DurationMs = ClampDuration(*wire.DurationMs)
	case wire.Duration != nil:
		output.DurationMs = ClampDuration(*wire.Duration)
	}
	if wire.Timestamp != nil && *wire.Timestamp > 0 {
		output.Timestamp = int64(*wire.Timestamp)
	}
	output.Error = wire.Error
	ok = true
	return
}

func normalizeStatusCode(value float64) int {
	code := int(value)
	if float64(code) != value || code < 100 || code > 599 {
		return 0
	}
	return code
}
