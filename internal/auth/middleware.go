package auth

import (
	"encoding/json"
	"net/http"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/log"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/store"
)

// Authenticator resolves request identities from either the bearer
// token or a session cookie.
type Authenticator struct {
	Sessions    *store.SessionStore
	Users       *store.UserStore
	BearerToken string
	Secure      bool
}

// Authenticate resolves the caller's identity without writing a
// response. The bearer token is checked first; it represents the server
// operator and grants admin. Cookie sessions must still map to an
// allow-listed email, so removing a user invalidates their sessions
// immediately.
func (a *Authenticator) Authenticate(r *http.Request) (Principal, bool) {
	if token := BearerFromRequest(r); token != "" && TokenEqual(token, a.BearerToken) {
		return Principal{Name: "Operator", Admin: true, Method: store.MethodBearer}, true
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return Principal{}, false
	}
	session, err := a.Sessions.Get(cookie.Value)
	if err != nil {
		return Principal{}, false
	}
	if !a.Users.IsAllowed(session.Email) {
		_ = a.Sessions.Delete(session.ID)
		return Principal{}, false
	}
	return Principal{
		Email:   session.Email,
		Name:    session.Name,
		Picture: session.Picture,
		Admin:   a.Users.IsAdmin(session.Email),
		Method:  store.MethodOAuth,
	}, true
}

// RequireAuth guards a route with cookie-or-bearer authentication.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := a.Authenticate(r)
		if !ok {
			unauthorized(w)
			return
		}
		if principal.Method == store.MethodOAuth {
			// The server-side TTL slides on use; re-issue the cookie so
			// the browser copy does not expire a fixed 6h after login.
			if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
				SetSessionCookie(w, cookie.Value, a.Secure)
			}
		}
		ctx := ContextWithPrincipal(r.Context(), principal)
		if principal.Email != "" {
			ctx = log.ContextWithUser(ctx, principal.Email)
			log.SetRequestUser(ctx, principal.Email)
		} else {
			log.SetRequestUser(ctx, string(principal.Method))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects authenticated non-admin callers with 403. Mount
// inside RequireAuth.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			unauthorized(w)
			return
		}
		if !principal.Admin {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "admin required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
}
