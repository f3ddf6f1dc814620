package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/propresenter"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string, hint ...string) {
	body := errorBody{Error: message}
	if len(hint) > 0 {
		body.Hint = hint[0]
	}
	writeJSON(w, code, body)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, message)
}

// writePresenterError maps Presenter client failures onto the upstream
// status range: unknown resources are the caller's 404, everything else
// is a gateway problem.
func writePresenterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, propresenter.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found in ProPresenter")
	case errors.Is(err, propresenter.ErrTimeout), errors.Is(err, propresenter.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "ProPresenter is not reachable", "check that ProPresenter is running and its API is enabled")
	default:
		writeError(w, http.StatusBadGateway, "ProPresenter request failed")
	}
}
