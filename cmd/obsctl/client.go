package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wcharczuk/observatory/internal/httpz"
	"github.com/wcharczuk/observatory/internal/observatory"
)

func newDaemonClient(daemonURL string) *daemonClient {
	return &daemonClient{
		baseURL: strings.TrimRight(daemonURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// daemonClient calls the daemon http api.
type daemonClient struct {
	baseURL string
	client  *http.Client
}

func domainPath(domain, resource string) string {
	return "/v1/domains/" + url.PathEscape(domain) + "/" + resource
}

func (d *daemonClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set(httpz.HeaderContentType, httpz.ContentTypeApplicationJSON)
	}
	debugf("%s %s", method, req.URL.String())
	res, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= http.StatusBadRequest {
		defer res.Body.Close()
		var apiErr observatory.Error
		if decodeErr := json.NewDecoder(res.Body).Decode(&apiErr); decodeErr != nil || apiErr.Type == "" {
			return nil, fmt.Errorf("daemon responded %d", res.StatusCode)
		}
		apiErr.StatusCode = res.StatusCode
		return nil, &apiErr
	}
	return res, nil
}

func (d *daemonClient) doJSON(ctx context.Context, method, path string, body, output any) error {
	res, err := d.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if output == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	return json.NewDecoder(res.Body).Decode(output)
}

func (d *daemonClient) Tracking(ctx context.Context, domain string) (output observatory.TrackingState, err error) {
	err = d.doJSON(ctx, http.MethodGet, domainPath(domain, "tracking"), nil, &output)
	return
}

func (d *daemonClient) SetTracking(ctx context.Context, domain string, enabled bool) (output observatory.TrackingState, err error) {
	err = d.doJSON(ctx, http.MethodPut, domainPath(domain, "tracking"), observatory.TrackingState{Enabled: &enabled}, &output)
	return
}

func (d *daemonClient) Stats(ctx context.Context, domain string) (output observatory.DomainStats, err error) {
	err = d.doJSON(ctx, http.MethodGet, domainPath(domain, "stats"), nil, &output)
	return
}

func (d *daemonClient) ClearStats(ctx context.Context, domain string) error {
	return d.doJSON(ctx, http.MethodDelete, domainPath(domain, "stats"), nil, nil)
}

func (d *daemonClient) Status(ctx context.Context) (output observatory.ServerStatus, err error) {
	err = d.doJSON(ctx, http.MethodGet, "/v1/status", nil, &output)
	return
}

// Download copies a raw response body, e.g. an export, to a writer.
func (d *daemonClient) Download(ctx context.Context, path string, w io.Writer) error {
	res, err := d.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, err = io.Copy(w, res.Body)
	return err
}

// ViewerURL returns the websocket url of the viewer endpoint.
func (d *daemonClient) ViewerURL() (string, error) {
	u, err := url.Parse(d.baseURL + "/v1/viewer")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}
