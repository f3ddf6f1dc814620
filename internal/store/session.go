package store

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/log"
)

// SessionTTL is the sliding inactivity window after which a session is
// destroyed.
const SessionTTL = 6 * time.Hour

// AuthMethod distinguishes how a session or request was authenticated.
type AuthMethod string

const (
	MethodOAuth  AuthMethod = "oauth"
	MethodBearer AuthMethod = "bearer"
)

// Session is one authenticated browser session, persisted as a single
// file so logins survive process restarts.
type Session struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name,omitempty"`
	Picture    string     `json:"picture,omitempty"`
	Method     AuthMethod `json:"method"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastSeenAt time.Time  `json:"lastSeenAt"`
}

// Expired reports whether the session's sliding TTL has elapsed at now.
func (s Session) Expired(now time.Time) bool {
	return now.Sub(s.LastSeenAt) > SessionTTL
}

// SessionStore keeps one JSON file per session under the sessions
// directory. Expired sessions are removed on startup and by the reaper.
type SessionStore struct {
	dir string

	mu  sync.Mutex
	now func() time.Time
}

// NewSessionStore opens the directory-backed session store and reaps
// whatever expired while the process was down.
func NewSessionStore(dir string) (*SessionStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	s := &SessionStore{dir: dir, now: time.Now}
	s.Reap()
	return s, nil
}

// Create starts a new session for the given identity and persists it.
func (s *SessionStore) Create(email, name, picture string, method AuthMethod) (Session, error) {
	now := s.now().UTC()
	sess := Session{
		ID:         uuid.New().String(),
		Email:      CanonicalEmail(email),
		Name:       name,
		Picture:    picture,
		Method:     method,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if err := writeJSONAtomic(s.sessionPath(sess.ID), sess, 0o600); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Get loads a live session and slides its TTL forward. Expired or
// unknown ids report ErrNotFound; expired files are deleted on sight.
func (s *SessionStore) Get(id string) (Session, error) {
	if !validSessionID(id) {
		return Session{}, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var sess Session
	path := s.sessionPath(id)
	if err := readJSON(path, &sess); err != nil {
		return Session{}, ErrNotFound
	}
	now := s.now().UTC()
	if sess.Expired(now) {
		_ = os.Remove(path)
		return Session{}, ErrNotFound
	}

	// Sliding TTL: only rewrite the file when the stamp is stale enough
	// to matter, so hot requests don't hammer the disk.
	if now.Sub(sess.LastSeenAt) > time.Minute {
		sess.LastSeenAt = now
		if err := writeJSONAtomic(path, sess, 0o600); err != nil {
			logger := log.WithComponent("sessions")
			logger.Warn().Err(err).Str("session_id", id).Msg("failed to slide session TTL")
		}
	}
	return sess, nil
}

// Delete destroys a session. Deleting an unknown id is not an error.
func (s *SessionStore) Delete(id string) error {
	if !validSessionID(id) {
		return nil
	}
	err := os.Remove(s.sessionPath(id))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// DeleteByEmail destroys every session belonging to email. Used when an
// operator removes a user from the allow-list so their cookie dies with
// the entry.
func (s *SessionStore) DeleteByEmail(email string) int {
	canonical := CanonicalEmail(email)
	removed := 0
	s.forEach(func(path string, sess Session) {
		if sess.Email == canonical {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
	})
	return removed
}

// Reap deletes every expired session file. Errors are logged, never fatal.
func (s *SessionStore) Reap() int {
	now := s.now().UTC()
	removed := 0
	s.forEach(func(path string, sess Session) {
		if sess.Expired(now) {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
	})
	if removed > 0 {
		logger := log.WithComponent("sessions")
		logger.Info().Int("removed", removed).Msg("reaped expired sessions")
	}
	return removed
}

func (s *SessionStore) forEach(fn func(path string, sess Session)) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		logger := log.WithComponent("sessions")
		logger.Warn().Err(err).Msg("failed to list session directory")
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		var sess Session
		if err := readJSON(path, &sess); err != nil {
			// Unreadable session files are dead weight.
			_ = os.Remove(path)
			continue
		}
		fn(path, sess)
	}
}

func (s *SessionStore) sessionPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// validSessionID confines session file lookups to UUID-shaped ids so a
// crafted cookie can never traverse outside the sessions directory.
func validSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
