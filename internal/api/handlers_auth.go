package api

import (
	"net/http"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/auth"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/log"
)

// handleAuthStatus is unauthenticated: the login page needs it to know
// whether to offer Google sign-in at all.
func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"googleOAuth":      s.deps.OAuth.Configured(),
		"allowedUserCount": s.deps.Users.Count(),
	})
}

func (s *Server) handleAuthMe(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"method":        principal.Method,
		"email":         principal.Email,
		"name":          principal.Name,
		"picture":       principal.Picture,
		"admin":         principal.Admin,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookieName); err == nil && cookie.Value != "" {
		if err := s.deps.Sessions.Delete(cookie.Value); err != nil {
			logger := log.WithComponentFromContext(r.Context(), "api")
			logger.Warn().Err(err).Msg("logout: session delete failed")
		}
	}
	auth.ClearSessionCookie(w, s.secure)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
