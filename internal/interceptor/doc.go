/*
Package interceptor observes outbound http calls made through an instrumented
[net/http.Client] and reports each tracked call as an [observatory.RequestEvent].

Only calls to the client's own origin whose path matches one of the configured
patterns are tracked. Every other call passes straight through.

Instrumentation never changes the outcome of a call: the response and error
the wrapped transport produced are returned unchanged after the event is emitted.

Timing stops when [net/http.RoundTripper.RoundTrip] returns, that is when the
response headers are available, not when the body has been read.
*/
package interceptor
