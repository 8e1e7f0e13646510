/*
Package httpz provides small helpers above net/http used by the observatory daemon, namely
request logging, response compression and header inspection.

The name is chosen to avoid colliding with net/http/httputil.
*/
package httpz
