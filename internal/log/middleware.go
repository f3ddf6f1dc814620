package log

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// userHolder lets the auth middleware, which runs after the request
// logger in the chain, report the resolved identity back to it.
type userHolder struct {
	mu    sync.Mutex
	email string
}

type userHolderKey struct{}

// SetRequestUser records the authenticated email for the current request
// so the access log entry can include it. No-op when the request logger
// is not installed.
func SetRequestUser(ctx context.Context, email string) {
	if h, ok := ctx.Value(userHolderKey{}).(*userHolder); ok {
		h.mu.Lock()
		h.email = email
		h.mu.Unlock()
	}
}

func requestUser(ctx context.Context) string {
	if h, ok := ctx.Value(userHolderKey{}).(*userHolder); ok {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.email
	}
	return ""
}

// statusWriter captures the response status code and bytes written while
// passing Flush through so SSE streams keep working behind the middleware.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Middleware returns an HTTP middleware that logs one structured entry
// per request: method, path, status, latency, client IP, authenticated
// user (if any) and request ID.
func Middleware(clientIP func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			holder := &userHolder{}
			r = r.WithContext(context.WithValue(r.Context(), userHolderKey{}, holder))
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)

			status := sw.status
			if status == 0 {
				status = http.StatusOK
			}

			ip := ""
			if clientIP != nil {
				ip = clientIP(r)
			}

			logger := WithComponentFromContext(r.Context(), "http")
			event := logger.Info()
			if status >= http.StatusInternalServerError {
				event = logger.Error()
			}
			if email := requestUser(r.Context()); email != "" {
				event = event.Str("user_email", email)
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int64("latency_ms", time.Since(start).Milliseconds()).
				Str("client_ip", ip).
				Int("bytes", sw.bytes).
				Msg("request")
		})
	}
}
