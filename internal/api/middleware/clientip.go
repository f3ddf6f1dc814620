package middleware

import (
	"net"
	"net/http"
	"strings"
)

// RealIPHeader is consulted when the request comes through the trusted
// tunnel; it carries the end-client address.
const RealIPHeader = "CF-Connecting-IP"

// ClientIP returns a resolver for the end-client address. When
// trustProxy is set (tunnel deployments) the real-IP header wins,
// otherwise only the socket peer is trusted.
func ClientIP(trustProxy bool) func(*http.Request) string {
	return func(r *http.Request) string {
		if trustProxy {
			if ip := strings.TrimSpace(r.Header.Get(RealIPHeader)); ip != "" {
				return ip
			}
			if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
				if first, _, found := strings.Cut(fwd, ","); found || first != "" {
					return strings.TrimSpace(first)
				}
			}
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr
		}
		return host
	}
}
