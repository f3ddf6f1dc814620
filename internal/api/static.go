package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// handleRoot serves the SPA shell to authenticated browsers and the
// login page to everyone else.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	page := "login.html"
	if _, ok := s.authn.Authenticate(r); ok {
		page = "index.html"
	}
	s.serveStatic(page)(w, r)
}

// serveStatic returns a handler for one named file in the static dir.
func (s *Server) serveStatic(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		full := filepath.Join(s.deps.StaticDir, name)
		if _, err := os.Stat(full); err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, full)
	}
}

// handleStaticAsset serves files below the static dir, confined to it.
func (s *Server) handleStaticAsset(w http.ResponseWriter, r *http.Request) {
	// Normalize and reject traversal before touching the filesystem.
	clean := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
	if clean == "." || strings.HasPrefix(clean, "..") {
		http.NotFound(w, r)
		return
	}

	full := filepath.Join(s.deps.StaticDir, filepath.FromSlash(clean))
	rel, err := filepath.Rel(s.deps.StaticDir, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		http.NotFound(w, r)
		return
	}
	if info, err := os.Stat(full); err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, full)
}
