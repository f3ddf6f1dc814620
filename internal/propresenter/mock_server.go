package propresenter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// MockServer provides a configurable Presenter mock for testing.
type MockServer struct {
	*httptest.Server
	mu            sync.RWMutex
	playlists     []map[string]any
	libraries     []idRef
	libraryItems  map[string][]idRef
	playlistItems map[string][]map[string]any
	presentations map[string]map[string]any
	status        SlideStatus
	thumbnail     []byte
	down          bool
}

// NewMockServer creates a Presenter mock pre-loaded with realistic data.
func NewMockServer() *MockServer {
	mock := &MockServer{
		libraryItems:  make(map[string][]idRef),
		playlistItems: make(map[string][]map[string]any),
		presentations: make(map[string]map[string]any),
	}
	mock.SetDefaultData()

	mux := http.NewServeMux()
	mux.HandleFunc("/version", mock.handleVersion)
	mux.HandleFunc("/v1/playlists", mock.handlePlaylists)
	mux.HandleFunc("/v1/libraries", mock.handleLibraries)
	mux.HandleFunc("/v1/library/", mock.handleLibrary)
	mux.HandleFunc("/v1/playlist/", mock.handlePlaylist)
	mux.HandleFunc("/v1/presentation/slide_index", mock.handleSlideIndex)
	mux.HandleFunc("/v1/status/slide", mock.handleSlideStatus)
	mux.HandleFunc("/v1/presentation/", mock.handlePresentation)

	mock.Server = httptest.NewServer(mux)
	return mock
}

// SetDefaultData loads a small worship set: one library, one playlist
// with a header and two songs.
func (m *MockServer) SetDefaultData() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.libraries = []idRef{{UUID: "LIB-WORSHIP", Name: "Worship"}}
	m.libraryItems["LIB-WORSHIP"] = []idRef{
		{UUID: "PRES-AMAZING", Name: "Amazing Grace"},
	}
	m.playlists = []map[string]any{
		{
			"id":         map[string]any{"uuid": "P1", "name": "Sunday"},
			"field_type": "playlist",
			"children":   []any{},
		},
	}
	m.playlistItems["P1"] = []map[string]any{
		{"id": map[string]any{"uuid": "I0", "name": "Opening"}, "type": "header"},
		{"id": map[string]any{"uuid": "I1", "name": "Amazing Grace"}, "type": "presentation", "presentation_uuid": "PRES-AMAZING"},
		{"id": map[string]any{"uuid": "I2", "name": "Announcements"}, "type": "presentation", "presentation_uuid": "PRES-ANNOUNCE"},
	}
	m.presentations["PRES-AMAZING"] = map[string]any{
		"presentation": map[string]any{
			"id": map[string]any{"uuid": "PRES-AMAZING", "name": "Amazing Grace"},
			"groups": []any{
				map[string]any{"name": "Verse 1", "slides": []any{
					map[string]any{"text": "Amazing grace how sweet the sound"},
					map[string]any{"text": "That saved a wretch like me"},
				}},
				map[string]any{"name": "Chorus", "slides": []any{
					map[string]any{"text": "I once was lost but now am found"},
				}},
			},
		},
	}
	m.presentations["PRES-ANNOUNCE"] = map[string]any{
		"presentation": map[string]any{
			"id":     map[string]any{"uuid": "PRES-ANNOUNCE", "name": "Announcements"},
			"groups": []any{},
		},
	}
	m.status = SlideStatus{
		PresentationUUID: "PRES-AMAZING",
		SlideIndex:       0,
		CurrentText:      "Amazing grace how sweet the sound",
		NextText:         "That saved a wretch like me",
	}
	m.thumbnail = []byte("\xff\xd8\xff\xe0fake-jpeg")
}

// SetStatus replaces the live slide status served by the mock.
func (m *MockServer) SetStatus(status SlideStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// SetDown makes every endpoint answer 500 until re-enabled, simulating
// a Presenter that has gone away.
func (m *MockServer) SetDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

// SetPlaylistItems replaces the items of one playlist.
func (m *MockServer) SetPlaylistItems(playlistUUID string, items []map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playlistItems[playlistUUID] = items
}

func (m *MockServer) unavailable(w http.ResponseWriter) bool {
	m.mu.RLock()
	down := m.down
	m.mu.RUnlock()
	if down {
		http.Error(w, "presenter gone", http.StatusInternalServerError)
	}
	return down
}

func (m *MockServer) handleVersion(w http.ResponseWriter, _ *http.Request) {
	if m.unavailable(w) {
		return
	}
	writeMockJSON(w, map[string]any{
		"name":        "ProPresenter",
		"platform":    "mac",
		"api_version": "7.9.2",
	})
}

func (m *MockServer) handlePlaylists(w http.ResponseWriter, _ *http.Request) {
	if m.unavailable(w) {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	writeMockJSON(w, m.playlists)
}

func (m *MockServer) handleLibraries(w http.ResponseWriter, _ *http.Request) {
	if m.unavailable(w) {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	writeMockJSON(w, m.libraries)
}

func (m *MockServer) handleLibrary(w http.ResponseWriter, r *http.Request) {
	if m.unavailable(w) {
		return
	}
	uuid := strings.TrimPrefix(r.URL.Path, "/v1/library/")
	m.mu.RLock()
	items, ok := m.libraryItems[uuid]
	m.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeMockJSON(w, map[string]any{"items": items})
}

func (m *MockServer) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	if m.unavailable(w) {
		return
	}
	uuid := strings.TrimPrefix(r.URL.Path, "/v1/playlist/")
	m.mu.RLock()
	items, ok := m.playlistItems[uuid]
	m.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeMockJSON(w, map[string]any{"items": items})
}

func (m *MockServer) handleSlideIndex(w http.ResponseWriter, _ *http.Request) {
	if m.unavailable(w) {
		return
	}
	m.mu.RLock()
	status := m.status
	m.mu.RUnlock()
	if status.SlideIndex < 0 {
		writeMockJSON(w, map[string]any{"presentation_index": nil})
		return
	}
	writeMockJSON(w, map[string]any{
		"presentation_index": map[string]any{
			"index":           status.SlideIndex,
			"presentation_id": map[string]any{"uuid": status.PresentationUUID},
		},
	})
}

func (m *MockServer) handleSlideStatus(w http.ResponseWriter, _ *http.Request) {
	if m.unavailable(w) {
		return
	}
	m.mu.RLock()
	status := m.status
	m.mu.RUnlock()
	writeMockJSON(w, map[string]any{
		"current": map[string]any{"text": status.CurrentText},
		"next":    map[string]any{"text": status.NextText},
	})
}

func (m *MockServer) handlePresentation(w http.ResponseWriter, r *http.Request) {
	if m.unavailable(w) {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/presentation/")
	parts := strings.Split(rest, "/")

	// Thumbnail: /v1/presentation/{uuid}/thumbnail/{index}
	if len(parts) == 3 && parts[1] == "thumbnail" {
		m.mu.RLock()
		thumb := m.thumbnail
		m.mu.RUnlock()
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(thumb)
		return
	}

	m.mu.RLock()
	pres, ok := m.presentations[parts[0]]
	m.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeMockJSON(w, pres)
}

func writeMockJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Println("mock encode error:", err)
	}
}
