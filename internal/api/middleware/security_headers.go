// Package middleware holds the HTTP middleware stack shared by all
// routes: security headers, CORS, client IP resolution, rate limiting
// and Prometheus metrics.
package middleware

import (
	"net/http"
	"strings"
)

// DefaultCSP is conservative: the SPA is self-hosted and only needs
// inline styles plus data/blob images (thumbnails, logo previews).
const DefaultCSP = "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: blob:; connect-src 'self'; frame-ancestors 'none'"

// SecurityHeaders adds the baseline security policy to every response.
// HSTS is emitted only when the request arrived over HTTPS, directly or
// through the tunnel.
func SecurityHeaders(csp string) func(http.Handler) http.Handler {
	if csp == "" {
		csp = DefaultCSP
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
				w.Header().Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
			}

			w.Header().Set("Content-Security-Policy", csp)
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")

			next.ServeHTTP(w, r)
		})
	}
}
