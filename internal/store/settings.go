package store

import (
	"sync"
)

// DeckStyle is the slide deck text styling applied by the exporter.
type DeckStyle struct {
	TextColor     string `json:"textColor"`
	FontFace      string `json:"fontFace"`
	FontSize      int    `json:"fontSize"`
	TitleFontSize int    `json:"titleFontSize"`
	Bold          bool   `json:"bold"`
	Italic        bool   `json:"italic"`
}

// Settings is the persisted application configuration mutated through
// the settings API.
type Settings struct {
	PresenterHost  string          `json:"presenterHost"`
	PresenterPort  int             `json:"presenterPort"`
	LibraryFilter  string          `json:"libraryFilter,omitempty"`
	IncludeTitles  bool            `json:"includeTitles"`
	DeckStyle      DeckStyle       `json:"deckStyle"`
	LogoPath       string          `json:"logoPath,omitempty"`
	LastPlaylistID string          `json:"lastPlaylistId,omitempty"`
	FeatureFlags   map[string]bool `json:"featureFlags,omitempty"`
}

// SettingsPatch is a partial settings update: nil fields are left as-is.
type SettingsPatch struct {
	PresenterHost  *string          `json:"presenterHost,omitempty"`
	PresenterPort  *int             `json:"presenterPort,omitempty"`
	LibraryFilter  *string          `json:"libraryFilter,omitempty"`
	IncludeTitles  *bool            `json:"includeTitles,omitempty"`
	DeckStyle      *DeckStyle       `json:"deckStyle,omitempty"`
	LogoPath       *string          `json:"logoPath,omitempty"`
	LastPlaylistID *string          `json:"lastPlaylistId,omitempty"`
	FeatureFlags   *map[string]bool `json:"featureFlags,omitempty"`
}

// DefaultSettings returns the settings used before any PUT /settings.
func DefaultSettings() Settings {
	return Settings{
		PresenterHost: "127.0.0.1",
		PresenterPort: 1025,
		IncludeTitles: true,
		DeckStyle: DeckStyle{
			TextColor:     "#FFFFFF",
			FontFace:      "Arial",
			FontSize:      40,
			TitleFontSize: 48,
			Bold:          false,
			Italic:        false,
		},
	}
}

// SettingsStore persists Settings to one JSON file. Reads return
// snapshots; writers are serialized.
type SettingsStore struct {
	path string

	mu      sync.RWMutex
	current Settings
}

// NewSettingsStore loads the settings file, falling back to defaults
// when it is missing or unreadable.
func NewSettingsStore(path string) *SettingsStore {
	return NewSettingsStoreWith(path, DefaultSettings())
}

// NewSettingsStoreWith is NewSettingsStore with caller-supplied
// defaults, used to seed the Presenter endpoint from the environment
// on first start.
func NewSettingsStoreWith(path string, defaults Settings) *SettingsStore {
	s := &SettingsStore{path: path, current: defaults}
	var loaded Settings
	if err := readJSON(path, &loaded); err == nil {
		s.current = loaded
	}
	return s
}

// Load returns a snapshot of the current settings.
func (s *SettingsStore) Load() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Save applies the patch over the current settings and persists the
// merged result atomically.
func (s *SettingsStore) Save(patch SettingsPatch) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	if patch.PresenterHost != nil {
		next.PresenterHost = *patch.PresenterHost
	}
	if patch.PresenterPort != nil {
		next.PresenterPort = *patch.PresenterPort
	}
	if patch.LibraryFilter != nil {
		next.LibraryFilter = *patch.LibraryFilter
	}
	if patch.IncludeTitles != nil {
		next.IncludeTitles = *patch.IncludeTitles
	}
	if patch.DeckStyle != nil {
		next.DeckStyle = *patch.DeckStyle
	}
	if patch.LogoPath != nil {
		next.LogoPath = *patch.LogoPath
	}
	if patch.LastPlaylistID != nil {
		next.LastPlaylistID = *patch.LastPlaylistID
	}
	if patch.FeatureFlags != nil {
		next.FeatureFlags = *patch.FeatureFlags
	}

	if err := writeJSONAtomic(s.path, next, 0o644); err != nil {
		return s.current, err
	}
	s.current = next
	return next, nil
}
