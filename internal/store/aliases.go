package store

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Alias maps a song title, under its normalized key, to the Presenter
// presentation that should be used for it.
type Alias struct {
	PresentationUUID string `json:"presentationUuid"`
	DisplayName      string `json:"displayName"`
}

// titleFolder strips diacritics so "Agnus Déi" and "Agnus Dei" share a key.
var titleFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeTitle derives the primary key for an alias: diacritics
// folded, lowercased, punctuation stripped, whitespace collapsed.
func NormalizeTitle(title string) string {
	folded, _, err := transform.String(titleFolder, title)
	if err != nil {
		folded = title
	}
	var b strings.Builder
	lastWasSpace := true
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastWasSpace = false
		case unicode.IsSpace(r):
			if !lastWasSpace {
				b.WriteRune(' ')
				lastWasSpace = true
			}
		default:
			// punctuation dropped entirely
		}
	}
	return strings.TrimSpace(b.String())
}

// AliasStore persists the normalized-title → alias mapping. The mapping
// is 1-to-1 per normalized key; re-adding a title overwrites.
type AliasStore struct {
	path string

	mu      sync.RWMutex
	aliases map[string]Alias
}

// NewAliasStore loads aliases.json, tolerating a missing or malformed file.
func NewAliasStore(path string) *AliasStore {
	s := &AliasStore{path: path, aliases: make(map[string]Alias)}
	var loaded map[string]Alias
	if err := readJSON(path, &loaded); err == nil && loaded != nil {
		s.aliases = loaded
	}
	return s
}

// Load returns a snapshot of all aliases keyed by normalized title.
func (s *AliasStore) Load() map[string]Alias {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Alias, len(s.aliases))
	for k, v := range s.aliases {
		out[k] = v
	}
	return out
}

// Set stores the alias for title under its normalized key, overwriting
// any previous entry for the same key.
func (s *AliasStore) Set(title string, alias Alias) (string, error) {
	key := NormalizeTitle(title)
	if key == "" {
		return "", ErrEmptyTitle
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliases[key] = alias
	return key, s.persistLocked()
}

// Remove deletes the alias stored under title's normalized key.
func (s *AliasStore) Remove(title string) error {
	key := NormalizeTitle(title)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.aliases[key]; !ok {
		return ErrNotFound
	}
	delete(s.aliases, key)
	return s.persistLocked()
}

func (s *AliasStore) persistLocked() error {
	return writeJSONAtomic(s.path, s.aliases, 0o644)
}
