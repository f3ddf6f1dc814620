package fonts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	sub := filepath.Join(dir, "truetype")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	for _, name := range []string{"Arial.ttf", "Georgia Bold.otf", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(sub, name), []byte("font"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Arial.ttf"), []byte("dup"), 0o644))
	return dir
}

func TestListInSkipsNonFontsAndDeduplicates(t *testing.T) {
	got := listIn([]string{fixtureDir(t), "/nonexistent/fonts"})
	assert.Equal(t, []string{"Arial", "Georgia Bold"}, got)
}

func TestAvailableInCaseInsensitive(t *testing.T) {
	dirs := []string{fixtureDir(t)}
	assert.True(t, availableIn(dirs, "arial"))
	assert.True(t, availableIn(dirs, "GEORGIA BOLD"))
	assert.False(t, availableIn(dirs, "Comic Sans MS"))
	assert.False(t, availableIn(dirs, "  "))
}
