// Package fonts enumerates fonts installed on the host so the UI can
// offer real choices for the deck style.
package fonts

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

var fontExtensions = map[string]bool{
	".ttf": true,
	".otf": true,
	".ttc": true,
}

// searchDirs returns the platform font directories, most specific last
// so user-installed fonts win on name collisions.
func searchDirs() []string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/System/Library/Fonts",
			"/Library/Fonts",
			filepath.Join(home, "Library", "Fonts"),
		}
	case "windows":
		windir := os.Getenv("WINDIR")
		if windir == "" {
			windir = `C:\Windows`
		}
		return []string{
			filepath.Join(windir, "Fonts"),
			filepath.Join(os.Getenv("LOCALAPPDATA"), "Microsoft", "Windows", "Fonts"),
		}
	default:
		return []string{
			"/usr/share/fonts",
			"/usr/local/share/fonts",
			filepath.Join(home, ".fonts"),
			filepath.Join(home, ".local", "share", "fonts"),
		}
	}
}

// List returns the sorted, de-duplicated font names found on this host.
// Names are file basenames without extension; style suffixes are left
// intact ("Arial Bold" stays distinct from "Arial").
func List() []string {
	return listIn(searchDirs())
}

func listIn(dirs []string) []string {
	seen := make(map[string]struct{})
	for _, dir := range dirs {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil // unreadable entries are skipped, not fatal
			}
			ext := strings.ToLower(filepath.Ext(d.Name()))
			if !fontExtensions[ext] {
				return nil
			}
			name := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
			seen[name] = struct{}{}
			return nil
		})
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Available reports whether a font with the given name is installed.
// Matching is case-insensitive on the name without extension.
func Available(name string) bool {
	return availableIn(searchDirs(), name)
}

func availableIn(dirs []string, name string) bool {
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return false
	}
	for _, installed := range listIn(dirs) {
		if strings.ToLower(installed) == want {
			return true
		}
	}
	return false
}
