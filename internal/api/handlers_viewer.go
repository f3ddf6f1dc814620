package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/log"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/viewer"
)

func (s *Server) handleViewerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Viewer.Snapshot())
}

func (s *Server) handleViewerSlide(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Viewer.CurrentSlide())
}

// handleThumbnail proxies the slide thumbnail from the Presenter,
// passing its content type through.
func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeBadRequest(w, "slide index must be a non-negative integer")
		return
	}

	body, contentType, err := s.deps.Client.ThumbnailStream(r.Context(), uuid, index)
	if err != nil {
		writeError(w, http.StatusBadGateway, "thumbnail unavailable")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := io.Copy(w, body); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Debug().Err(err).Msg("thumbnail copy aborted")
	}
}

// sseSink adapts the stream writer to the viewer's subscriber
// interface.
type sseSink struct {
	stream *sseWriter
}

func (s sseSink) Send(e viewer.Event) error { return s.stream.Send(e) }
func (s sseSink) Ping() error               { return s.stream.Ping() }

// handleViewerEvents subscribes this connection to the viewer fan-out.
// The service delivers the snapshot pair, live events and 15 s pings;
// the handler only holds the connection open.
func (s *Server) handleViewerEvents(w http.ResponseWriter, r *http.Request) {
	stream, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	cancel := s.deps.Viewer.Subscribe(sseSink{stream: stream})
	defer cancel()

	<-r.Context().Done()
}
