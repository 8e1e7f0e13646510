package httpz

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_AcceptsEncoding(t *testing.T) {
	for _, tc := range []struct {
		value    string
		expected bool
	}{
		{value: "", expected: false},
		{value: "gzip", expected: true},
		{value: "deflate, GZIP;q=0.5", expected: true},
		{value: "br, gzip;q=0", expected: false},
		{value: "br", expected: false},
	} {
		headers := http.Header{}
		if tc.value != "" {
			headers.Set(HeaderAcceptEncoding, tc.value)
		}
		require.Equal(t, tc.expected, AcceptsEncoding(headers, ContentEncodingGZIP), tc.value)
	}
}

func Test_AcceptsMediaType(t *testing.T) {
	headers := http.Header{}
	headers.Set(HeaderAccept, "application/json;q=0.9, text/csv")
	require.True(t, AcceptsMediaType(headers, HeaderAccept, MediaTypeCSV))
	require.False(t, AcceptsMediaType(headers, HeaderAccept, "text/html"))
	require.False(t, AcceptsMediaType(http.Header{}, HeaderAccept, MediaTypeCSV))
}

func Test_GetRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	require.Equal(t, "10.0.0.1", GetRemoteAddr(req))

	req.Header.Set(HeaderXRealIP, "10.0.0.2")
	require.Equal(t, "10.0.0.2", GetRemoteAddr(req))

	req.Header.Set(HeaderXForwardedFor, "10.0.0.3, 10.0.0.4")
	require.Equal(t, "10.0.0.4", GetRemoteAddr(req))

	require.Empty(t, GetRemoteAddr(nil))
}

func Test_Gzipped(t *testing.T) {
	var sawAcceptEncoding string
	handler := Gzipped(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		sawAcceptEncoding = req.Header.Get(HeaderAcceptEncoding)
		rw.Header().Set(HeaderContentType, ContentTypeText)
		rw.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(rw, "hello observatory")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderAcceptEncoding, "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, ContentEncodingGZIP, rec.Header().Get(HeaderContentEncoding))
	require.Empty(t, sawAcceptEncoding)
	reader, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, "hello observatory", string(body))
}

func Test_Gzipped_noBody(t *testing.T) {
	handler := Gzipped(http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	req.Header.Set(HeaderAcceptEncoding, "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, rec.Header().Get(HeaderContentEncoding))
	require.Zero(t, rec.Body.Len())
}

func Test_Gzipped_passthrough(t *testing.T) {
	handler := Gzipped(http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(rw, "plain")
	}))

	for _, headers := range []map[string]string{
		{},
		{HeaderAcceptEncoding: "gzip", HeaderUpgrade: "websocket"},
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for key, value := range headers {
			req.Header.Set(key, value)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Empty(t, rec.Header().Get(HeaderContentEncoding))
		require.Equal(t, "plain", rec.Body.String())
	}
}

func Test_ResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)
	require.Equal(t, http.StatusOK, rw.StatusCode())

	_, err := rw.Write([]byte("abc"))
	require.NoError(t, err)
	require.Equal(t, 3, rw.ContentLength())
	require.False(t, rw.Hijacked())

	_, _, err = rw.Hijack()
	require.Error(t, err)
}

func Test_Logged(t *testing.T) {
	handler := Logged(http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusAccepted)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/events?secret=1", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
}
