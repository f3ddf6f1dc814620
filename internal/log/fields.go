package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldSessionID = "session_id"
	FieldJobID     = "job_id"
	FieldUserEmail = "user_email"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// HTTP fields
	FieldMethod   = "method"
	FieldPath     = "path"
	FieldStatus   = "status"
	FieldLatency  = "latency_ms"
	FieldClientIP = "client_ip"

	// Presenter fields
	FieldPlaylistID     = "playlist_id"
	FieldPresentationID = "presentation_uuid"
	FieldSlideIndex     = "slide_index"
)
