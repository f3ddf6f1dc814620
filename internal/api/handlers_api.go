package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/fonts"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/store"
)

// launchTimeout bounds how long /api/propresenter/launch waits for the
// Presenter API to come up.
const launchTimeout = 30 * time.Second

// handleStatus reports Presenter reachability. Unreachable is a normal
// answer here, not an error status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	settings := s.deps.Settings.Load()
	body := map[string]any{
		"connected": false,
		"host":      settings.PresenterHost,
		"port":      settings.PresenterPort,
	}
	if info, err := s.deps.Client.Version(r.Context()); err == nil {
		body["connected"] = true
		body["version"] = info.Version
		body["platform"] = info.Platform
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handlePlaylists(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.deps.Client.ListPlaylists(r.Context())
	if err != nil {
		writePresenterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlists": nodes})
}

func (s *Server) handleLibraries(w http.ResponseWriter, r *http.Request) {
	libraries := s.deps.Client.ListLibrariesOrEmpty(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"libraries": libraries})
}

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Settings.Load())
}

func (s *Server) handleSettingsPut(w http.ResponseWriter, r *http.Request) {
	var patch store.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeBadRequest(w, "invalid settings payload")
		return
	}
	merged, err := s.deps.Settings.Save(patch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist settings")
		return
	}
	writeJSON(w, http.StatusOK, merged)
}

func (s *Server) handleAliasesGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"aliases": s.deps.Aliases.Load()})
}

func (s *Server) handleAliasPut(w http.ResponseWriter, r *http.Request) {
	title := chi.URLParam(r, "songTitle")

	var alias store.Alias
	if err := json.NewDecoder(r.Body).Decode(&alias); err != nil || alias.PresentationUUID == "" {
		writeBadRequest(w, "alias requires a presentation uuid")
		return
	}

	key, err := s.deps.Aliases.Set(title, alias)
	if err != nil {
		if errors.Is(err, store.ErrEmptyTitle) {
			writeBadRequest(w, "song title normalizes to nothing")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to persist alias")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "alias": alias})
}

func (s *Server) handleAliasDelete(w http.ResponseWriter, r *http.Request) {
	title := chi.URLParam(r, "songTitle")
	if err := s.deps.Aliases.Remove(title); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeNotFound(w, "alias not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to remove alias")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleFonts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"fonts": fonts.List()})
}

func (s *Server) handleFontCheck(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      name,
		"available": fonts.Available(name),
	})
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	result := s.deps.Supervisor.LaunchAndWait(r.Context(), launchTimeout)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRunning(w http.ResponseWriter, r *http.Request) {
	running, err := s.deps.Supervisor.IsRunning(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "process check failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"running": running})
}
