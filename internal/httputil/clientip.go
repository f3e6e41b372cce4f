// Package httputil holds small HTTP request helpers shared by the API
// server, currently the client address used in request logs.
package httputil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the address the request came from. With trustProxy
// set, forwarding headers win over RemoteAddr; leave it off unless a
// trusted reverse proxy sits in front of the server, since clients can
// write those headers themselves.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := forwardedClient(r.Header); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// forwardedClient reads the proxy-supplied client address: the leftmost
// X-Forwarded-For entry, then X-Real-IP.
func forwardedClient(h http.Header) string {
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return strings.TrimSpace(h.Get("X-Real-IP"))
}
