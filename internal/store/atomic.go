package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/renameio/v2"
)

// writeJSONAtomic marshals v and replaces path atomically. renameio
// handles temp file creation, fsync and rename, so a crash mid-save
// never leaves a partially written file behind.
func writeJSONAtomic(path string, v any, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	data = append(data, '\n')
	if err := renameio.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("atomically write %s: %w", path, err)
	}
	return nil
}

// readJSON loads path into v. A missing file reports os.ErrNotExist so
// callers can fall back to defaults; malformed content is an error the
// caller may also choose to treat as "empty".
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// isMissingOrCorrupt reports whether err means the store file should be
// treated as absent and replaced with defaults.
func isMissingOrCorrupt(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrNotExist) {
		return true
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
