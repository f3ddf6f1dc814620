package export

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxSlugLen = 60

// Slugify converts a playlist name into a filename-safe slug.
// Example: "Sunday Service 10:30" → "sunday-service-10-30".
// Runs of non-alphanumerics collapse to a single dash, the result is
// clamped to 60 chars, and an empty result falls back to "playlist".
func Slugify(name string) string {
	s := strings.ToLower(name)

	var b strings.Builder
	lastWasDash := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastWasDash = false
		} else if !lastWasDash {
			b.WriteRune('-')
			lastWasDash = true
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLen {
		// Back the cut up to a rune boundary so a multibyte letter is
		// never split.
		cut := maxSlugLen
		for cut > 0 && !utf8.RuneStart(slug[cut]) {
			cut--
		}
		slug = strings.TrimRight(slug[:cut], "-")
	}
	if slug == "" {
		return "playlist"
	}
	return slug
}
