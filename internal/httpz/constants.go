package httpz

const (
	// HeaderAccept is a header that lists the media types a client will accept.
	HeaderAccept = "Accept"
	// HeaderAcceptEncoding is a header that indicates a client can accept a non-plaintext encoding.
	HeaderAcceptEncoding = "Accept-Encoding"
	// HeaderAuthorization is a header that carries the collector credentials.
	HeaderAuthorization = "Authorization"
	// HeaderContentType is a header that describes the media type of a body.
	HeaderContentType = "Content-Type"
	// HeaderContentEncoding is a header that names the encoding applied to a body.
	HeaderContentEncoding = "Content-Encoding"
	// HeaderContentLength is the size of a body in bytes.
	HeaderContentLength = "Content-Length"
	// HeaderVary is a header used to negotiate content encodings.
	HeaderVary = "Vary"
	// HeaderUserAgent is a header that identifies the client software.
	HeaderUserAgent = "User-Agent"
	// HeaderXForwardedFor is a header set by proxies to the originating client address.
	HeaderXForwardedFor = "X-Forwarded-For"
	// HeaderXRealIP is another name for [HeaderXForwardedFor].
	HeaderXRealIP = "X-Real-IP"
	// HeaderUpgrade is a header a viewer sends to switch to the websocket protocol.
	HeaderUpgrade = "Upgrade"
)

const (
	// ContentTypeApplicationJSON is a content type for JSON responses.
	// We specify chartset=utf-8 so that clients know to use the UTF-8 string encoding.
	ContentTypeApplicationJSON = "application/json; charset=utf-8"

	// ContentTypeCSV is a content type for csv exports.
	ContentTypeCSV = "text/csv; charset=utf-8"

	// ContentTypeText is a content type for text responses.
	// We specify chartset=utf-8 so that clients know to use the UTF-8 string encoding.
	ContentTypeText = "text/plain; charset=utf-8"

	// ContentEncodingGZIP is the gzip content encoding.
	ContentEncodingGZIP = "gzip"

	// MediaTypeCSV is the bare csv media type as it appears in Accept headers.
	MediaTypeCSV = "text/csv"
)
