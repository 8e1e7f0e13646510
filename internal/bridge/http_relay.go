package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/wcharczuk/observatory/internal/httpz"
	"github.com/wcharczuk/observatory/internal/observatory"
)

// EventsPath is the daemon route relayed envelopes are posted to.
const EventsPath = "/v1/events"

// DefaultRelayTimeout bounds a single relay post.
const DefaultRelayTimeout = 2 * time.Second

var _ Relay = (*HTTPRelay)(nil)

// NewHTTPRelay returns a relay posting to the daemon at a given base url.
func NewHTTPRelay(daemonURL string) *HTTPRelay {
	return &HTTPRelay{
		endpoint: strings.TrimRight(daemonURL, "/") + EventsPath,
		client:   &http.Client{Timeout: DefaultRelayTimeout},
	}
}

// HTTPRelay posts envelopes to the daemon, once, without retry.
type HTTPRelay struct {
	endpoint string
	client   *http.Client
	onAck    func(observatory.Ack)
}

// WithClient sets the http client and returns a reference to the same relay.
//
// The client must not be instrumented with the interceptor for the daemon's
// own origin, or relaying would observe itself.
func (h *HTTPRelay) WithClient(client *http.Client) *HTTPRelay {
	h.client = client
	return h
}

// WithOnAck sets a hook called with each acknowledgement and returns a reference to the same relay.
func (h *HTTPRelay) WithOnAck(onAck func(observatory.Ack)) *HTTPRelay {
	h.onAck = onAck
	return h
}

// Endpoint returns the url envelopes are posted to.
func (h *HTTPRelay) Endpoint() string {
	return h.endpoint
}

// Send implements [Relay].
func (h *HTTPRelay) Send(ctx context.Context, env observatory.Envelope) {
	body, err := json.Marshal(env)
	if err != nil {
		slog.Debug("relay encode failed", slog.Any("err", err))
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		slog.Debug("relay request failed", slog.Any("err", err))
		return
	}
	req.Header.Set(httpz.HeaderContentType, httpz.ContentTypeApplicationJSON)
	res, err := h.client.Do(req)
	if err != nil {
		if IsConnectionError(err) {
			slog.Debug("relay daemon unreachable", slog.String("endpoint", h.endpoint))
			return
		}
		slog.Debug("relay send failed", slog.String("endpoint", h.endpoint), slog.Any("err", err))
		return
	}
	defer res.Body.Close()
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, res.Body)
		slog.Debug("relay rejected", slog.String("endpoint", h.endpoint), slog.Int("status_code", res.StatusCode))
		return
	}
	var ack observatory.Ack
	if err := json.NewDecoder(res.Body).Decode(&ack); err != nil {
		slog.Debug("relay acknowledgement unreadable", slog.Any("err", err))
		return
	}
	if h.onAck != nil {
		h.onAck(ack)
	}
}

// IsConnectionError returns true if the error indicates the daemon is unreachable.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host")
}
