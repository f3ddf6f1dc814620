package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// User is one allow-listed identity. Name and Picture are cached from
// the last OAuth login for display purposes.
type User struct {
	Email     string     `json:"email"`
	Name      string     `json:"name,omitempty"`
	Picture   string     `json:"picture,omitempty"`
	Admin     bool       `json:"admin,omitempty"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

// CanonicalEmail lowercases and trims an email for comparisons. All
// store lookups use this form.
func CanonicalEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type usersFile struct {
	Users []User `json:"users"`
}

// UserStore is the allow-list plus admin flags, backed by users.json.
// Admins are always a subset of the allow-list: removing an email
// removes its admin flag with it.
type UserStore struct {
	path string

	mu    sync.RWMutex
	users map[string]User
}

// NewUserStore loads users.json, tolerating a missing or malformed file.
func NewUserStore(path string) *UserStore {
	s := &UserStore{path: path, users: make(map[string]User)}
	var f usersFile
	if err := readJSON(path, &f); err == nil {
		for _, u := range f.Users {
			u.Email = CanonicalEmail(u.Email)
			if u.Email != "" {
				s.users[u.Email] = u
			}
		}
	}
	return s
}

// ListAll returns every user sorted by email.
func (s *UserStore) ListAll() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

// Count returns the number of allow-listed users.
func (s *UserStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// IsAllowed reports whether email is on the allow-list.
func (s *UserStore) IsAllowed(email string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[CanonicalEmail(email)]
	return ok
}

// IsAdmin reports whether email is an allow-listed admin.
func (s *UserStore) IsAdmin(email string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[CanonicalEmail(email)]
	return ok && u.Admin
}

// Get returns the stored record for email.
func (s *UserStore) Get(email string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[CanonicalEmail(email)]
	return u, ok
}

// Add puts email on the allow-list. Adding an existing email is a no-op
// that preserves its admin flag and cached identity.
func (s *UserStore) Add(email string, admin bool) error {
	canonical := CanonicalEmail(email)
	if canonical == "" || !strings.Contains(canonical, "@") {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[canonical]; ok {
		if admin && !existing.Admin {
			existing.Admin = true
			s.users[canonical] = existing
			return s.persistLocked()
		}
		return nil
	}
	s.users[canonical] = User{Email: canonical, Admin: admin}
	return s.persistLocked()
}

// Remove deletes email from the allow-list (and with it any admin flag).
func (s *UserStore) Remove(email string) error {
	canonical := CanonicalEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[canonical]; !ok {
		return fmt.Errorf("user %s: %w", canonical, ErrNotFound)
	}
	delete(s.users, canonical)
	return s.persistLocked()
}

// SetAdmin toggles the admin flag for an allow-listed email.
func (s *UserStore) SetAdmin(email string, admin bool) error {
	canonical := CanonicalEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[canonical]
	if !ok {
		return fmt.Errorf("user %s: %w", canonical, ErrNotFound)
	}
	if u.Admin == admin {
		return nil
	}
	u.Admin = admin
	s.users[canonical] = u
	return s.persistLocked()
}

// RecordLogin stamps lastLogin and caches the identity details returned
// by the OAuth provider.
func (s *UserStore) RecordLogin(email, name, picture string) error {
	canonical := CanonicalEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[canonical]
	if !ok {
		return fmt.Errorf("user %s: %w", canonical, ErrNotFound)
	}
	now := time.Now().UTC()
	u.LastLogin = &now
	if name != "" {
		u.Name = name
	}
	if picture != "" {
		u.Picture = picture
	}
	s.users[canonical] = u
	return s.persistLocked()
}

func (s *UserStore) persistLocked() error {
	f := usersFile{Users: make([]User, 0, len(s.users))}
	for _, u := range s.users {
		f.Users = append(f.Users, u)
	}
	sort.Slice(f.Users, func(i, j int) bool { return f.Users[i].Email < f.Users[j].Email })
	return writeJSONAtomic(s.path, f, 0o644)
}
