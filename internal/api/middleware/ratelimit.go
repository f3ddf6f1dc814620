package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"golang.org/x/time/rate"
)

// Auth endpoint budget: 20 requests per client IP per 15-minute window.
const (
	AuthRateLimit  = 20
	AuthRateWindow = 15 * time.Minute
)

// RateLimitConfig configures one httprate sliding-window limiter.
type RateLimitConfig struct {
	RequestLimit int
	WindowSize   time.Duration
	// KeyFunc extracts the limiter key; defaults to the socket peer IP.
	KeyFunc func(r *http.Request) (string, error)
}

// RateLimit builds a sliding-window limiter replying 429 with a JSON
// body and Retry-After on excess.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(cfg.WindowSize.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded","hint":"try again later"}`))
		}),
	)
}

// AuthRateLimiter limits the /auth/* surface per client IP, keyed by
// the resolved end-client address so tunnel traffic is not collapsed
// onto one IP.
func AuthRateLimiter(clientIP func(*http.Request) string) func(http.Handler) http.Handler {
	return RateLimit(RateLimitConfig{
		RequestLimit: AuthRateLimit,
		WindowSize:   AuthRateWindow,
		KeyFunc: func(r *http.Request) (string, error) {
			return clientIP(r), nil
		},
	})
}

// GlobalRateLimit is a whole-process token bucket in front of every
// route, shielding the box from request floods regardless of source.
func GlobalRateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"server overloaded","hint":"try again later"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
