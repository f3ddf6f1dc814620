package auth

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/store"
)

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	dir := t.TempDir()
	sessions, err := store.NewSessionStore(filepath.Join(dir, "sessions"))
	require.NoError(t, err)
	users := store.NewUserStore(filepath.Join(dir, "users.json"))
	return &Authenticator{
		Sessions:    sessions,
		Users:       users,
		BearerToken: "operator-token",
	}
}

func okHandler() (http.Handler, *bool) {
	called := new(bool)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	}), called
}

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	a := newTestAuthenticator(t)
	next, called := okHandler()

	rec := httptest.NewRecorder()
	a.RequireAuth(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, *called)
	assert.Contains(t, rec.Body.String(), "authentication required")
}

func TestRequireAuthAcceptsBearerAsAdmin(t *testing.T) {
	a := newTestAuthenticator(t)

	var principal Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ = PrincipalFromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/users", nil)
	r.Header.Set("Authorization", "Bearer operator-token")
	rec := httptest.NewRecorder()
	a.RequireAuth(a.RequireAdmin(next)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, principal.Admin)
	assert.Equal(t, store.MethodBearer, principal.Method)
}

func TestRequireAuthRejectsWrongBearer(t *testing.T) {
	a := newTestAuthenticator(t)
	next, called := okHandler()

	r := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	r.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	a.RequireAuth(next).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, *called)
}

func sessionRequest(t *testing.T, a *Authenticator, email string) *http.Request {
	t.Helper()
	session, err := a.Sessions.Create(email, "Pat", "", store.MethodOAuth)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: session.ID})
	return r
}

func TestRequireAuthAcceptsSessionCookie(t *testing.T) {
	a := newTestAuthenticator(t)
	require.NoError(t, a.Users.Add("pat@example.com", false))

	var principal Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ = PrincipalFromContext(r.Context())
	})

	rec := httptest.NewRecorder()
	a.RequireAuth(next).ServeHTTP(rec, sessionRequest(t, a, "pat@example.com"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pat@example.com", principal.Email)
	assert.False(t, principal.Admin)
	assert.Equal(t, store.MethodOAuth, principal.Method)
}

func TestRequireAuthSlidesSessionCookieLifetime(t *testing.T) {
	a := newTestAuthenticator(t)
	require.NoError(t, a.Users.Add("pat@example.com", false))

	next, _ := okHandler()
	rec := httptest.NewRecorder()
	req := sessionRequest(t, a, "pat@example.com")
	a.RequireAuth(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.Equal(t, req.Cookies()[0].Value, cookies[0].Value)
	assert.Equal(t, int(store.SessionTTL.Seconds()), cookies[0].MaxAge)

	// Bearer requests carry no session and get no cookie.
	bearer := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	bearer.Header.Set("Authorization", "Bearer operator-token")
	rec = httptest.NewRecorder()
	a.RequireAuth(next).ServeHTTP(rec, bearer)
	assert.Empty(t, rec.Result().Cookies())
}

func TestRemovedUserSessionIsInvalidatedOnSight(t *testing.T) {
	a := newTestAuthenticator(t)
	require.NoError(t, a.Users.Add("pat@example.com", false))
	r := sessionRequest(t, a, "pat@example.com")
	require.NoError(t, a.Users.Remove("pat@example.com"))

	next, called := okHandler()
	rec := httptest.NewRecorder()
	a.RequireAuth(next).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, *called)

	// The stale session file is gone; a re-added user must log in again.
	cookie := r.Cookies()[0]
	_, err := a.Sessions.Get(cookie.Value)
	assert.Error(t, err)
}

func TestRequireAdminForbidsNonAdmin(t *testing.T) {
	a := newTestAuthenticator(t)
	require.NoError(t, a.Users.Add("pat@example.com", false))

	next, called := okHandler()
	rec := httptest.NewRecorder()
	a.RequireAuth(a.RequireAdmin(next)).ServeHTTP(rec, sessionRequest(t, a, "pat@example.com"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, *called)
	assert.Contains(t, rec.Body.String(), "admin required")
}

func TestRequireAdminAllowsAdminSession(t *testing.T) {
	a := newTestAuthenticator(t)
	require.NoError(t, a.Users.Add("boss@example.com", true))

	next, called := okHandler()
	rec := httptest.NewRecorder()
	a.RequireAuth(a.RequireAdmin(next)).ServeHTTP(rec, sessionRequest(t, a, "boss@example.com"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, *called)
}
