package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Keepalive cadence for job progress streams. Viewer streams are pinged
// by the viewer service itself.
const jobStreamKeepalive = 30 * time.Second

// sseWriter frames JSON events for one event-stream response. Each
// write carries its own deadline so a stalled client fails the write
// instead of wedging the sender.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

// newSSEWriter prepares the response for streaming and sends the
// headers. Returns an error when the writer cannot stream.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseWriter{w: w, flusher: flusher, rc: http.NewResponseController(w)}, nil
}

// Send writes one `data: <json>` frame.
func (s *sseWriter) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = s.rc.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Ping writes a comment frame to keep intermediaries from idling the
// connection out.
func (s *sseWriter) Ping() error {
	_ = s.rc.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if _, err := fmt.Fprint(s.w, ": keepalive\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
