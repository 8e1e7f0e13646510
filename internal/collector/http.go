package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wcharczuk/observatory/internal/httpz"
	"github.com/wcharczuk/observatory/internal/observatory"
)

// DefaultTimeout bounds a single delivery to the http collector.
const DefaultTimeout = 10 * time.Second

var _ observatory.Collector = (*HTTP)(nil)

// NewHTTP returns a new http collector posting to a given endpoint.
func NewHTTP(endpoint string) *HTTP {
	return &HTTP{
		endpoint: endpoint,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   DefaultTimeout,
		},
	}
}

// HTTP posts batches as json to a collector endpoint.
//
// Any 2xx response is a successful delivery.
type HTTP struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// WithClient sets the http client and returns a reference to the same collector.
func (h *HTTP) WithClient(client *http.Client) *HTTP {
	h.client = client
	return h
}

// WithAPIKey sets the bearer token and returns a reference to the same collector.
func (h *HTTP) WithAPIKey(apiKey string) *HTTP {
	h.apiKey = apiKey
	return h
}

// Endpoint returns the collector url.
func (h *HTTP) Endpoint() string {
	return h.endpoint
}

// Send implements [observatory.Collector].
func (h *HTTP) Send(ctx context.Context, batch observatory.Batch) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set(httpz.HeaderContentType, httpz.ContentTypeApplicationJSON)
	req.Header.Set(observatory.HeaderVersion, observatory.Version)
	if h.apiKey != "" {
		req.Header.Set(httpz.HeaderAuthorization, "Bearer "+h.apiKey)
	}
	res, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return &StatusError{StatusCode: res.StatusCode, Body: string(bytes.TrimSpace(snippet))}
	}
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}

// StatusError is returned when the collector responds with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements error.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("collector responded %d", e.StatusCode)
	}
	return fmt.Sprintf("collector responded %d: %s", e.StatusCode, e.Body)
}
