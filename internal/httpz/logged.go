package httpz

import (
	"log/slog"
	"net/http"
	"time"
)

// Logged wraps an input handler with logging at [slog.LevelDebug] level.
//
// Only the request path is logged; query strings are never written to logs.
func Logged(h http.Handler) http.Handler {
	return &logged{
		next: h,
	}
}

type logged struct {
	next http.Handler
}

func (l logged) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	start := time.Now()
	srw := NewResponseWriter(rw)
	l.next.ServeHTTP(srw, req)
	attributes := []any{
		slog.String("verb", req.Method),
		slog.String("path", req.URL.Path),
		slog.String("user_agent", req.UserAgent()),
		slog.String("remote_addr", GetRemoteAddr(req)),
		slog.Int("status_code", srw.StatusCode()),
		slog.Int("content_length", srw.ContentLength()),
		slog.Duration("elapsed", time.Since(start)),
	}
	if srw.Hijacked() {
		attributes = append(attributes, slog.Bool("hijacked", true))
	}
	if contentType := rw.Header().Get(HeaderContentType); contentType != "" {
		attributes = append(attributes, slog.String("content_type", contentType))
	}
	slog.Debug("http-request", attributes...)
}
