package store

import (
	"fmt"

	"github.com/google/uuid"
)

// Secrets holds the process-wide auth material: the bearer token the
// operator uses for API access and the key signing session cookies.
// Generated once on first start and never rotated automatically;
// rotating requires deleting auth.json and restarting.
type Secrets struct {
	BearerToken string `json:"bearerToken"`
	SessionKey  string `json:"sessionKey"`
}

// LoadOrCreateSecrets reads auth.json, generating and persisting fresh
// secrets with 0600 permissions when the file is missing or unreadable.
func LoadOrCreateSecrets(path string) (Secrets, error) {
	var s Secrets
	err := readJSON(path, &s)
	if err == nil && s.BearerToken != "" && s.SessionKey != "" {
		return s, nil
	}
	if err != nil && !isMissingOrCorrupt(err) {
		return Secrets{}, fmt.Errorf("read auth secrets: %w", err)
	}

	s = Secrets{
		BearerToken: uuid.New().String(),
		SessionKey:  uuid.New().String(),
	}
	if err := writeJSONAtomic(path, s, 0o600); err != nil {
		return Secrets{}, fmt.Errorf("write auth secrets: %w", err)
	}
	return s, nil
}
