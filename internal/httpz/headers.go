package httpz

import (
	"mime"
	"net"
	"net/http"
	"strings"
)

// HeaderLastValue returns the last value of a potential csv of headers.
func HeaderLastValue(headers http.Header, key string) (string, bool) {
	if rawHeaderValue := headers.Get(key); rawHeaderValue != "" {
		if !strings.ContainsRune(rawHeaderValue, ',') {
			return strings.TrimSpace(rawHeaderValue), true
		}
		vals := strings.Split(rawHeaderValue, ",")
		return strings.TrimSpace(vals[len(vals)-1]), true
	}
	return "", false
}

// AcceptsMediaType returns if an Accept style header lists a given media type,
// ignoring any parameters like quality values.
func AcceptsMediaType(headers http.Header, key, mediaType string) bool {
	for _, rawHeaderValue := range headers.Values(key) {
		for headerValue := range strings.SplitSeq(rawHeaderValue, ",") {
			parsed, _, err := mime.ParseMediaType(strings.TrimSpace(headerValue))
			if err != nil {
				continue
			}
			if strings.EqualFold(parsed, mediaType) {
				return true
			}
		}
	}
	return false
}

// GetRemoteAddr gets the origin/client ip for a request.
//
// The X-Forwarded-For and X-Real-IP headers are considered before falling back
// to [http.Request.RemoteAddr].
func GetRemoteAddr(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, header := range []string{HeaderXForwardedFor, HeaderXRealIP} {
		if headerVal, ok := HeaderLastValue(r.Header, header); ok {
			return headerVal
		}
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
