package httpx

import (
	"net"
	"net/http"
)

// ClientIP returns the host part of RemoteAddr. Forwarding headers are
// trusted only through chi's RealIP middleware, which rewrites RemoteAddr
// and must sit behind a proxy that overwrites them.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	return r.RemoteAddr
}
