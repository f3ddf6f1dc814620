// Package api owns the HTTP surface: route table, middleware stack,
// request/response shapes and the SSE endpoints.
package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/api/middleware"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/auth"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/config"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/export"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/health"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/jobs"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/log"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/propresenter"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/store"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/supervisor"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/viewer"
)

// Deps carries every collaborator the server needs. Constructed once in
// main and in tests; handlers never reach for globals.
type Deps struct {
	Config     config.Config
	Settings   *store.SettingsStore
	Users      *store.UserStore
	Aliases    *store.AliasStore
	Sessions   *store.SessionStore
	Secrets    store.Secrets
	Client     *propresenter.Client
	Jobs       *jobs.Manager
	Exporter   *export.Orchestrator
	Viewer     *viewer.Service
	Supervisor *supervisor.Supervisor
	Health     *health.Manager
	OAuth      *auth.Flow
	StaticDir  string
	Version    string
}

// Server is the HTTP layer over Deps.
type Server struct {
	deps   Deps
	authn  *auth.Authenticator
	secure bool
}

// NewServer wires the authenticator and returns the server.
func NewServer(deps Deps) *Server {
	secure := strings.HasPrefix(deps.Config.PublicBaseURL(), "https://")
	return &Server{
		deps: deps,
		authn: &auth.Authenticator{
			Sessions:    deps.Sessions,
			Users:       deps.Users,
			BearerToken: deps.Secrets.BearerToken,
			Secure:      secure,
		},
		secure: secure,
	}
}

// Router builds the full route table with the shared middleware stack.
func (s *Server) Router() http.Handler {
	clientIP := middleware.ClientIP(s.deps.Config.TunnelURL != "")

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestID)
	r.Use(middleware.CORS(s.deps.Config.CORSOrigins))
	r.Use(middleware.SecurityHeaders(""))
	r.Use(middleware.Metrics())
	r.Use(log.Middleware(clientIP))
	r.Use(middleware.GlobalRateLimit(100, 200))

	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.AuthRateLimiter(clientIP))
		r.Get("/status", s.handleAuthStatus)
		r.Get("/google", s.deps.OAuth.LoginHandler)
		r.Get("/google/callback", s.deps.OAuth.CallbackHandler)
		r.Group(func(r chi.Router) {
			r.Use(s.authn.RequireAuth)
			r.Get("/me", s.handleAuthMe)
			r.Post("/logout", s.handleLogout)
		})
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(s.authn.RequireAuth)
		r.Get("/", s.handleUsersList)
		r.Group(func(r chi.Router) {
			r.Use(s.authn.RequireAdmin)
			r.Post("/", s.handleUsersAdd)
			r.Delete("/{email}", s.handleUsersRemove)
			r.Patch("/{email}/admin", s.handleUsersSetAdmin)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authn.RequireAuth)
		r.Get("/status", s.handleStatus)
		r.Get("/playlists", s.handlePlaylists)
		r.Get("/libraries", s.handleLibraries)
		r.Get("/settings", s.handleSettingsGet)
		r.Put("/settings", s.handleSettingsPut)
		r.Get("/aliases", s.handleAliasesGet)
		r.Put("/aliases/{songTitle}", s.handleAliasPut)
		r.Delete("/aliases/{songTitle}", s.handleAliasDelete)
		r.Get("/fonts", s.handleFonts)
		r.Get("/fonts/{name}/check", s.handleFontCheck)
		r.Post("/propresenter/launch", s.handleLaunch)
		r.Get("/propresenter/running", s.handleRunning)
		r.Post("/export", s.handleExportStart)
		r.Get("/export/{id}/progress", s.handleExportProgress)
		r.Get("/export/{id}/download", s.handleExportDownload)
	})

	// Public viewer surface: no authentication, the viewer runs on
	// rehearsal-room screens without accounts.
	r.Route("/viewer", func(r chi.Router) {
		r.Get("/api/status", s.handleViewerStatus)
		r.Get("/api/slide", s.handleViewerSlide)
		r.Get("/api/thumbnail/{uuid}/{index}", s.handleThumbnail)
		r.Get("/events", s.handleViewerEvents)
		r.Get("/", s.serveStatic("viewer.html"))
		r.Get("/*", s.handleStaticAsset)
	})

	if s.deps.Health != nil {
		r.Get("/health", s.deps.Health.ServeHealth)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", s.handleRoot)
	r.Get("/assets/*", s.handleStaticAsset)

	return r
}

// requestID tags every request with a correlation id, echoed in the
// X-Request-ID response header.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(log.ContextWithRequestID(r.Context(), id)))
	})
}
