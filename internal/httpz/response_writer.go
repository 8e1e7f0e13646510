package httpz

import (
	"bufio"
	"errors"
	"net"
	"net/http"
)

// NewResponseWriter returns a new response writer.
func NewResponseWriter(rw http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{inner: rw}
}

// ResponseWriter wraps a response writer with status and content length information.
//
// It forwards Hijack so websocket upgrades work through it.
type ResponseWriter struct {
	inner         http.ResponseWriter
	statusCode    int
	contentLength int
	hijacked      bool
}

// Write writes the data to the response.
func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	bytesWritten, err := rw.inner.Write(b)
	rw.contentLength += bytesWritten
	return bytesWritten, err
}

// Header accesses the response header collection.
func (rw *ResponseWriter) Header() http.Header {
	return rw.inner.Header()
}

// Hijack wraps response writer's Hijack function.
func (rw *ResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.inner.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("inner responseWriter doesn't support Hijacker interface")
	}
	conn, buf, err := hijacker.Hijack()
	if err == nil {
		rw.hijacked = true
		rw.statusCode = http.StatusSwitchingProtocols
	}
	return conn, buf, err
}

// WriteHeader writes the status code.
func (rw *ResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.inner.WriteHeader(code)
}

// Flush calls flush on the inner response writer if it is supported.
func (rw *ResponseWriter) Flush() {
	if typed, ok := rw.inner.(http.Flusher); ok {
		typed.Flush()
	}
}

// StatusCode returns the status code, defaulting to 200 if nothing set one.
func (rw *ResponseWriter) StatusCode() int {
	if rw.statusCode == 0 {
		return http.StatusOK
	}
	return rw.statusCode
}

// ContentLength returns the content length
func (rw *ResponseWriter) ContentLength() int {
	return rw.contentLength
}

// Hijacked returns if the connection was taken over, e.g. by a websocket upgrade.
func (rw *ResponseWriter) Hijacked() bool {
	return rw.hijacked
}
