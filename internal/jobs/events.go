package jobs

// EventType tags one progress event of an export job.
type EventType string

const (
	EventLibrarySearch   EventType = "library:search"
	EventLibraryNotFound EventType = "library:not-found"
	EventPlaylistStart   EventType = "playlist:start"
	EventItemStart       EventType = "playlist:item:start"
	EventItemSuccess     EventType = "playlist:item:success"
	EventItemError       EventType = "playlist:item:error"
	EventItemSkip        EventType = "playlist:item:skip"
	EventComplete        EventType = "complete"
	EventInfo            EventType = "info"
	EventWarning         EventType = "warning"
	EventPptxStart       EventType = "pptx:start"
	EventPptxComplete    EventType = "pptx:complete"
	EventDone            EventType = "done"
	EventError           EventType = "error"
)

// Terminal reports whether t ends the stream. Exactly one terminal
// event is delivered per subscriber.
func (t EventType) Terminal() bool {
	return t == EventDone || t == EventError
}

// Event is one tagged progress record. Only the fields relevant to the
// event type are set; the JSON shape is what subscribers see on the wire.
type Event struct {
	Type        EventType `json:"type"`
	Message     string    `json:"message,omitempty"`
	Library     string    `json:"library,omitempty"`
	Item        string    `json:"item,omitempty"`
	TotalItems  int       `json:"totalItems,omitempty"`
	TotalSongs  int       `json:"totalSongs,omitempty"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
}
