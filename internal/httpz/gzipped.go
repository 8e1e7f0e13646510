package httpz

import (
	"compress/gzip"
	"net/http"
	"strings"
)

// Gzipped wraps a given handler as a new handler that if requests
// accept the gzip encoding, compresses responses using a [gzip.Writer].
//
// Upgrade requests and requests that do not accept gzip are passed through.
// The Accept-Encoding header is removed from compressed requests so the
// wrapped handler does not compress a second time.
func Gzipped(h http.Handler) http.Handler {
	return &gzipped{
		next: h,
	}
}

type gzipped struct {
	next http.Handler
}

func (g gzipped) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	if req.Header.Get(HeaderUpgrade) != "" || !AcceptsEncoding(req.Header, ContentEncodingGZIP) {
		g.next.ServeHTTP(rw, req)
		return
	}
	gzrw := &gzipResponseWriter{ResponseWriter: rw}
	defer gzrw.Close()

	inner := req.Clone(req.Context())
	inner.Header.Del(HeaderAcceptEncoding)
	g.next.ServeHTTP(gzrw, inner)
}

// gzipResponseWriter holds the status code back until the first body write,
// so responses that never write a body go out uncompressed.
type gzipResponseWriter struct {
	http.ResponseWriter
	statusCode int
	zw         *gzip.Writer
}

func (g *gzipResponseWriter) WriteHeader(code int) {
	if g.statusCode == 0 {
		g.statusCode = code
	}
}

func (g *gzipResponseWriter) Write(b []byte) (int, error) {
	if g.statusCode == 0 {
		g.statusCode = http.StatusOK
	}
	if g.zw == nil {
		headers := g.Header()
		headers.Set(HeaderContentEncoding, ContentEncodingGZIP)
		headers.Add(HeaderVary, HeaderAcceptEncoding)
		// any length the handler set describes the uncompressed body
		headers.Del(HeaderContentLength)
		g.ResponseWriter.WriteHeader(g.statusCode)
		g.zw = gzip.NewWriter(g.ResponseWriter)
	}
	return g.zw.Write(b)
}

func (g *gzipResponseWriter) Flush() {
	if g.zw == nil {
		return
	}
	_ = g.zw.Flush()
	if flusher, ok := g.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (g *gzipResponseWriter) Close() error {
	if g.zw != nil {
		return g.zw.Close()
	}
	if g.statusCode != 0 {
		g.ResponseWriter.WriteHeader(g.statusCode)
	}
	return nil
}

// AcceptsEncoding returns if the Accept-Encoding header lists a given encoding
// without a zero quality value.
func AcceptsEncoding(headers http.Header, encoding string) bool {
	for _, rawHeaderValue := range headers.Values(HeaderAcceptEncoding) {
		for headerValue := range strings.SplitSeq(rawHeaderValue, ",") {
			name, params, _ := strings.Cut(strings.TrimSpace(headerValue), ";")
			if !strings.EqualFold(strings.TrimSpace(name), encoding) {
				continue
			}
			return strings.ReplaceAll(strings.TrimSpace(params), " ", "") != "q=0"
		}
	}
	return false
}
