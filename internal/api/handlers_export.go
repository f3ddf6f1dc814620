package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/export"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/jobs"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/log"
)

// deckMIME is the slide deck download content type.
const deckMIME = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

func (s *Server) handleExportStart(w http.ResponseWriter, r *http.Request) {
	var req export.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid export payload")
		return
	}
	if req.PlaylistID == "" || req.PlaylistName == "" {
		writeBadRequest(w, "playlistId and playlistName are required")
		return
	}

	jobID := s.deps.Jobs.Start(r.Context(), s.deps.Exporter.Runner(req))
	writeJSON(w, http.StatusAccepted, map[string]any{"jobId": jobID})
}

// handleExportProgress streams the job's event log: full replay first,
// then live events until the terminal event closes the stream.
func (s *Server) handleExportProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	replay, live, cancel, err := s.deps.Jobs.Subscribe(jobID)
	if err != nil {
		writeNotFound(w, "job not found")
		return
	}
	defer cancel()

	stream, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	logger := log.WithComponentFromContext(r.Context(), "api").With().Str(log.FieldJobID, jobID).Logger()

	for _, event := range replay {
		if err := stream.Send(event); err != nil {
			return
		}
	}

	keepalive := time.NewTicker(jobStreamKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug().Msg("progress subscriber disconnected")
			return
		case <-keepalive.C:
			if err := stream.Ping(); err != nil {
				return
			}
		case event, ok := <-live:
			if !ok {
				return // terminal event delivered, stream complete
			}
			if err := stream.Send(event); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleExportDownload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	path, name, err := s.deps.Jobs.DownloadPath(jobID)
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		writeNotFound(w, "job not found")
		return
	case errors.Is(err, jobs.ErrNotComplete):
		writeError(w, http.StatusConflict, "export not complete yet", "wait for the done event on the progress stream")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "download unavailable")
		return
	}

	w.Header().Set("Content-Type", deckMIME)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeFile(w, r, path)
}
