package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/auth"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/config"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/deck"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/export"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/health"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/jobs"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/propresenter"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/store"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/supervisor"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/viewer"
)

// harness stands up a full server over a Presenter mock.
type harness struct {
	t      *testing.T
	server *Server
	ts     *httptest.Server
	mock   *propresenter.MockServer
	deps   Deps
}

func newHarness(t *testing.T, mutate ...func(*Deps)) *harness {
	t.Helper()

	dataDir := t.TempDir()
	paths := store.NewPaths(dataDir)
	require.NoError(t, paths.Ensure())

	staticDir := filepath.Join(dataDir, "static")
	require.NoError(t, os.MkdirAll(filepath.Join(staticDir, "assets"), 0o755))
	for name, content := range map[string]string{
		"index.html":    "<html>app</html>",
		"login.html":    "<html>login</html>",
		"viewer.html":   "<html>viewer</html>",
		"assets/app.js": "console.log('app')",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(staticDir, name), []byte(content), 0o644))
	}

	mock := propresenter.NewMockServer()
	t.Cleanup(mock.Close)
	mockURL, err := url.Parse(mock.URL)
	require.NoError(t, err)
	mockPort, err := strconv.Atoi(mockURL.Port())
	require.NoError(t, err)

	// The client resolves its endpoint from the settings store, the
	// same wiring the daemon uses, so settings changes retarget it.
	settingsDefaults := store.DefaultSettings()
	settingsDefaults.PresenterHost = mockURL.Hostname()
	settingsDefaults.PresenterPort = mockPort
	settings := store.NewSettingsStoreWith(paths.SettingsFile, settingsDefaults)
	client := propresenter.NewDynamic(func() string {
		s := settings.Load()
		return fmt.Sprintf("http://%s:%d", s.PresenterHost, s.PresenterPort)
	})

	users := store.NewUserStore(paths.UsersFile)
	aliases := store.NewAliasStore(paths.AliasesFile)
	sessions, err := store.NewSessionStore(paths.SessionsDir)
	require.NoError(t, err)
	secrets, err := store.LoadOrCreateSecrets(paths.AuthFile)
	require.NoError(t, err)

	manager := jobs.NewManager(30 * time.Minute)
	exporter := export.New(client, settings, nil, deck.Builder{}, filepath.Join(dataDir, "staging"))
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "staging"), 0o700))

	cfg := config.Config{
		PresenterHost: "127.0.0.1",
		PresenterPort: 1025,
		WebHost:       "127.0.0.1",
		WebPort:       5566,
	}

	deps := Deps{
		Config:     cfg,
		Settings:   settings,
		Users:      users,
		Aliases:    aliases,
		Sessions:   sessions,
		Secrets:    secrets,
		Client:     client,
		Jobs:       manager,
		Exporter:   exporter,
		Viewer:     viewer.NewService(client),
		Supervisor: supervisor.New(client),
		Health:     health.NewManager("test", ""),
		OAuth:      auth.NewFlow(auth.GoogleConfig{}, sessions, users, false),
		StaticDir:  staticDir,
		Version:    "test",
	}
	for _, fn := range mutate {
		fn(&deps)
	}

	server := NewServer(deps)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	return &harness{t: t, server: server, ts: ts, mock: mock, deps: deps}
}

// sessionFor creates an allow-listed user plus a live session cookie.
func (h *harness) sessionFor(email string, admin bool) *http.Cookie {
	h.t.Helper()
	require.NoError(h.t, h.deps.Users.Add(email, admin))
	session, err := h.deps.Sessions.Create(email, "", "", store.MethodOAuth)
	require.NoError(h.t, err)
	return &http.Cookie{Name: auth.SessionCookieName, Value: session.ID}
}

// do performs one request, optionally as bearer or with a cookie.
func (h *harness) do(method, path string, body io.Reader, decorate ...func(*http.Request)) *http.Response {
	h.t.Helper()
	req, err := http.NewRequest(method, h.ts.URL+path, body)
	require.NoError(h.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, fn := range decorate {
		fn(req)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	return resp
}

func asBearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(c) }
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestAuthStatusIsPublic(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.deps.Users.Add("alice@example.com", true))

	resp := h.do(http.MethodGet, "/auth/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, false, body["googleOAuth"])
	assert.Equal(t, float64(1), body["allowedUserCount"])
}

func TestProtectedRoutesRejectAnonymous(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{"/api/status", "/api/playlists", "/api/settings", "/users", "/auth/me"} {
		resp := h.do(http.MethodGet, path, nil)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestBearerAndAdminSessionAreEquivalent(t *testing.T) {
	h := newHarness(t)
	cookie := h.sessionFor("admin@example.com", true)

	viaBearer := h.do(http.MethodGet, "/api/status", nil, asBearer(h.deps.Secrets.BearerToken))
	viaSession := h.do(http.MethodGet, "/api/status", nil, withCookie(cookie))

	require.Equal(t, http.StatusOK, viaBearer.StatusCode)
	require.Equal(t, viaBearer.StatusCode, viaSession.StatusCode)
	assert.Equal(t, decodeBody(t, viaBearer), decodeBody(t, viaSession))
}

func TestStatusReportsPresenterVersion(t *testing.T) {
	h := newHarness(t)
	cookie := h.sessionFor("user@example.com", false)

	resp := h.do(http.MethodGet, "/api/status", nil, withCookie(cookie))
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["connected"])
	assert.NotEmpty(t, body["version"])

	h.mock.SetDown(true)
	resp = h.do(http.MethodGet, "/api/status", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decodeBody(t, resp)["connected"])
}

func TestUsersAdminGuard(t *testing.T) {
	h := newHarness(t)
	member := h.sessionFor("member@example.com", false)
	admin := h.sessionFor("admin@example.com", true)

	// Non-admin may list but not mutate.
	resp := h.do(http.MethodGet, "/users", nil, withCookie(member))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(http.MethodPost, "/users", strings.NewReader(`{"email":"new@example.com"}`), withCookie(member))
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Admin full cycle: add, promote, remove.
	resp = h.do(http.MethodPost, "/users", strings.NewReader(`{"email":"New@Example.com"}`), withCookie(admin))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "new@example.com", decodeBody(t, resp)["email"])

	resp = h.do(http.MethodPatch, "/users/new@example.com/admin", strings.NewReader(`{"admin":true}`), withCookie(admin))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decodeBody(t, resp)["admin"])

	resp = h.do(http.MethodDelete, "/users/new@example.com", nil, withCookie(admin))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = h.do(http.MethodDelete, "/users/ghost@example.com", nil, withCookie(admin))
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUserRemovalInvalidatesLiveSession(t *testing.T) {
	h := newHarness(t)
	admin := h.sessionFor("admin@example.com", true)
	bob := h.sessionFor("bob@example.com", false)

	resp := h.do(http.MethodGet, "/api/status", nil, withCookie(bob))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(http.MethodDelete, "/users/bob@example.com", nil, withCookie(admin))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, float64(1), body["sessionsRevoked"])

	resp = h.do(http.MethodGet, "/api/status", nil, withCookie(bob))
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSettingsRoundTrip(t *testing.T) {
	h := newHarness(t)
	cookie := h.sessionFor("user@example.com", false)

	resp := h.do(http.MethodPut, "/api/settings", strings.NewReader(`{"libraryFilter":"Worship","includeTitles":false}`), withCookie(cookie))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Worship", body["libraryFilter"])
	assert.Equal(t, false, body["includeTitles"])
	// Untouched fields keep their defaults.
	assert.Equal(t, "127.0.0.1", body["presenterHost"])

	resp = h.do(http.MethodGet, "/api/settings", nil, withCookie(cookie))
	assert.Equal(t, "Worship", decodeBody(t, resp)["libraryFilter"])
}

func TestSettingsChangeRetargetsPresenterClient(t *testing.T) {
	h := newHarness(t)
	cookie := h.sessionFor("user@example.com", false)

	next := propresenter.NewMockServer()
	t.Cleanup(next.Close)
	nextURL, err := url.Parse(next.URL)
	require.NoError(t, err)
	nextPort, err := strconv.Atoi(nextURL.Port())
	require.NoError(t, err)

	// The original Presenter goes away and the operator points the
	// settings at the replacement endpoint.
	h.mock.SetDown(true)
	payload := fmt.Sprintf(`{"presenterHost":%q,"presenterPort":%d}`, nextURL.Hostname(), nextPort)
	resp := h.do(http.MethodPut, "/api/settings", strings.NewReader(payload), withCookie(cookie))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Status probes the endpoint it reports.
	resp = h.do(http.MethodGet, "/api/status", nil, withCookie(cookie))
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["connected"])
	assert.Equal(t, nextURL.Hostname(), body["host"])
	assert.Equal(t, float64(nextPort), body["port"])

	resp = h.do(http.MethodGet, "/api/playlists", nil, withCookie(cookie))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAliasLifecycle(t *testing.T) {
	h := newHarness(t)
	cookie := h.sessionFor("user@example.com", false)

	// PUT twice with equivalent titles lands on one normalized key.
	payload := `{"presentationUuid":"PRES-1","displayName":"Agnus Dei"}`
	resp := h.do(http.MethodPut, "/api/aliases/Agnus%20Dei", strings.NewReader(payload), withCookie(cookie))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "agnus dei", decodeBody(t, resp)["key"])

	resp = h.do(http.MethodPut, "/api/aliases/AGNUS%20DEI!", strings.NewReader(payload), withCookie(cookie))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = h.do(http.MethodGet, "/api/aliases", nil, withCookie(cookie))
	aliases := decodeBody(t, resp)["aliases"].(map[string]any)
	assert.Len(t, aliases, 1)

	resp = h.do(http.MethodDelete, "/api/aliases/agnus%20dei", nil, withCookie(cookie))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(http.MethodDelete, "/api/aliases/agnus%20dei", nil, withCookie(cookie))
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPlaylistsProxied(t *testing.T) {
	h := newHarness(t)
	cookie := h.sessionFor("user@example.com", false)

	resp := h.do(http.MethodGet, "/api/playlists", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.NotEmpty(t, body["playlists"])

	h.mock.SetDown(true)
	resp = h.do(http.MethodGet, "/api/playlists", nil, withCookie(cookie))
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestRootServesLoginOrApp(t *testing.T) {
	h := newHarness(t)

	resp := h.do(http.MethodGet, "/", nil)
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(page), "login")

	cookie := h.sessionFor("user@example.com", false)
	resp = h.do(http.MethodGet, "/", nil, withCookie(cookie))
	page, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(page), "app")
}

func TestStaticAssetConfinement(t *testing.T) {
	h := newHarness(t)

	resp := h.do(http.MethodGet, "/assets/app.js", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(http.MethodGet, "/assets/../../users.json", nil)
	resp.Body.Close()
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
}

func TestHealthEndpointIsPublic(t *testing.T) {
	h := newHarness(t)

	resp := h.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestSecurityHeadersPresent(t *testing.T) {
	h := newHarness(t)
	resp := h.do(http.MethodGet, "/health", nil)
	resp.Body.Close()
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Empty(t, resp.Header.Get("X-Powered-By"))
}

func TestAuthRateLimitPerClientIP(t *testing.T) {
	h := newHarness(t)
	router := h.server.Router()

	do := func(addr string) int {
		r := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
		r.RemoteAddr = addr
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, r)
		return rec.Code
	}

	for i := 0; i < 20; i++ {
		require.Equal(t, http.StatusOK, do("192.0.2.1:4444"))
	}
	assert.Equal(t, http.StatusTooManyRequests, do("192.0.2.1:4444"))
	assert.Equal(t, http.StatusOK, do("192.0.2.9:4444"))
}
