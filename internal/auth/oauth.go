package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/log"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/store"
)

const (
	defaultUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	exchangeTimeout    = 10 * time.Second
)

// Identity is what the provider reports about the logged-in user.
type Identity struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// GoogleConfig configures the OAuth flow. Endpoint and UserinfoURL are
// overridable so tests can stand in for the provider.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoint     oauth2.Endpoint
	UserinfoURL  string
}

// Flow implements the provider login round trip: consent redirect with
// a CSRF state cookie, code exchange, allow-list check, session issue.
type Flow struct {
	cfg         *oauth2.Config
	userinfoURL string
	sessions    *store.SessionStore
	users       *store.UserStore
	secure      bool
}

// NewFlow wires the Google OAuth flow. A flow with empty credentials is
// valid but reports Configured() == false and refuses logins.
func NewFlow(cfg GoogleConfig, sessions *store.SessionStore, users *store.UserStore, secure bool) *Flow {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = google.Endpoint
	}
	userinfoURL := cfg.UserinfoURL
	if userinfoURL == "" {
		userinfoURL = defaultUserinfoURL
	}
	return &Flow{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		},
		userinfoURL: userinfoURL,
		sessions:    sessions,
		users:       users,
		secure:      secure,
	}
}

// Configured reports whether provider credentials are present.
func (f *Flow) Configured() bool {
	return f.cfg.ClientID != "" && f.cfg.ClientSecret != ""
}

// LoginHandler redirects to the provider consent page.
func (f *Flow) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if !f.Configured() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": "oauth not configured",
			"hint":  "set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET",
		})
		return
	}
	state := uuid.NewString()
	setStateCookie(w, state, f.secure)
	http.Redirect(w, r, f.cfg.AuthCodeURL(state), http.StatusFound)
}

// CallbackHandler completes the login. Denied consent, a bad state or a
// non-allow-listed email all land back on the login page with
// ?error=access_denied and no session.
func (f *Flow) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "auth")
	clearStateCookie(w, f.secure)

	if errCode := r.URL.Query().Get("error"); errCode != "" {
		logger.Info().Str("provider_error", errCode).Msg("oauth consent denied")
		http.Redirect(w, r, "/?error=access_denied", http.StatusFound)
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		logger.Warn().Msg("oauth state mismatch")
		http.Redirect(w, r, "/?error=access_denied", http.StatusFound)
		return
	}

	identity, err := f.exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		logger.Error().Err(err).Msg("oauth code exchange failed")
		http.Redirect(w, r, "/?error=access_denied", http.StatusFound)
		return
	}

	if !f.users.IsAllowed(identity.Email) {
		logger.Warn().Str("email", identity.Email).Msg("login rejected: not allow-listed")
		http.Redirect(w, r, "/?error=access_denied", http.StatusFound)
		return
	}

	session, err := f.sessions.Create(identity.Email, identity.Name, identity.Picture, store.MethodOAuth)
	if err != nil {
		logger.Error().Err(err).Msg("session create failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := f.users.RecordLogin(identity.Email, identity.Name, identity.Picture); err != nil {
		logger.Warn().Err(err).Msg("failed to record login")
	}

	SetSessionCookie(w, session.ID, f.secure)
	logger.Info().Str("email", identity.Email).Msg("login ok")
	http.Redirect(w, r, "/", http.StatusFound)
}

// exchange swaps the authorization code for a token and fetches the
// provider's userinfo document.
func (f *Flow) exchange(ctx context.Context, code string) (Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	token, err := f.cfg.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("exchange code: %w", err)
	}

	resp, err := f.cfg.Client(ctx, token).Get(f.userinfoURL)
	if err != nil {
		return Identity{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var identity Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return Identity{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if identity.Email == "" {
		return Identity{}, fmt.Errorf("userinfo missing email")
	}
	return identity, nil
}
