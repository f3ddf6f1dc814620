// Package store holds the file-backed registries: settings, allow-listed
// users, song aliases, auth secrets and sessions. Every write goes
// through an atomic temp+rename; secret files are created 0600.
package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths resolves the persisted layout under the data directory.
type Paths struct {
	DataDir      string
	SettingsFile string
	UsersFile    string
	AliasesFile  string
	AuthFile     string
	SessionsDir  string
	LogsDir      string
	UploadsDir   string
}

// NewPaths derives the standard layout from dataDir.
func NewPaths(dataDir string) Paths {
	return Paths{
		DataDir:      dataDir,
		SettingsFile: filepath.Join(dataDir, "settings.json"),
		UsersFile:    filepath.Join(dataDir, "users.json"),
		AliasesFile:  filepath.Join(dataDir, "aliases.json"),
		AuthFile:     filepath.Join(dataDir, "auth.json"),
		SessionsDir:  filepath.Join(dataDir, "sessions"),
		LogsDir:      filepath.Join(dataDir, "logs"),
		UploadsDir:   filepath.Join(dataDir, "uploads"),
	}
}

// Ensure creates the data directory tree. The root is 0700: it contains
// secrets and session files.
func (p Paths) Ensure() error {
	for _, dir := range []string{p.DataDir, p.SessionsDir, p.LogsDir, p.UploadsDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
