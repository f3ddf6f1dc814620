package log

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

// The base logger is configured once per process, so every test shares
// one capture buffer and resets it on entry.
var logBuf bytes.Buffer

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	Configure(Config{Level: "debug", Output: &logBuf, Service: "test"})
	logBuf.Reset()
	return &logBuf
}

func TestMiddlewareLogsOneEntryPerRequest(t *testing.T) {
	buf := captureLogs(t)

	handler := Middleware(func(*http.Request) string { return "203.0.113.9" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			SetRequestUser(r.Context(), "pat@example.com")
			w.WriteHeader(http.StatusTeapot)
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req = req.WithContext(ContextWithRequestID(req.Context(), "req-1"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	assert.Contains(t, line, `"level":"info"`)
	assert.Contains(t, line, `"component":"http"`)
	assert.Contains(t, line, `"method":"GET"`)
	assert.Contains(t, line, `"path":"/api/status"`)
	assert.Contains(t, line, `"status":418`)
	assert.Contains(t, line, `"client_ip":"203.0.113.9"`)
	assert.Contains(t, line, `"user_email":"pat@example.com"`)
	assert.Contains(t, line, `"request_id":"req-1"`)
}

func TestMiddlewareLogsServerErrorsAtErrorLevel(t *testing.T) {
	buf := captureLogs(t)

	handler := Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	line := buf.String()
	assert.Contains(t, line, `"status":500`)
	assert.Contains(t, line, `"level":"error"`)
}
