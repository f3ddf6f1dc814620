package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/log"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/store"
)

func (s *Server) handleUsersList(w http.ResponseWriter, r *http.Request) {
	users := s.deps.Users.ListAll()
	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

func (s *Server) handleUsersAdd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
		Admin bool   `json:"admin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
		writeBadRequest(w, "email is required")
		return
	}

	if err := s.deps.Users.Add(body.Email, body.Admin); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	user, _ := s.deps.Users.Get(body.Email)
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleUsersRemove(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	if err := s.deps.Users.Remove(email); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to remove user")
		return
	}

	// Revoke live sessions so removal takes effect immediately.
	revoked := s.deps.Sessions.DeleteByEmail(email)
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str("email", store.CanonicalEmail(email)).
		Int("sessions_revoked", revoked).
		Msg("user removed")

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"sessionsRevoked": revoked,
	})
}

func (s *Server) handleUsersSetAdmin(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	var body struct {
		Admin *bool `json:"admin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Admin == nil {
		writeBadRequest(w, "admin flag is required")
		return
	}

	if err := s.deps.Users.SetAdmin(email, *body.Admin); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	user, _ := s.deps.Users.Get(email)
	writeJSON(w, http.StatusOK, user)
}
