package export

import (
	"errors"
	"strings"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/propresenter"
)

// ErrNoLyrics marks presentations whose slides carry no usable text.
var ErrNoLyrics = errors.New("export: presentation has no lyric text")

// SlideExtractor is the default Extractor: it takes slide text verbatim,
// grouped by the Presenter's arrangement groups, skipping empty slides.
type SlideExtractor struct{}

func (SlideExtractor) Extract(pres propresenter.Presentation) (Lyrics, error) {
	out := Lyrics{Title: pres.Title}
	var current *Section
	for _, slide := range pres.Slides {
		text := strings.TrimSpace(slide.Text)
		if text == "" {
			continue
		}
		if current == nil || current.Name != slide.Group {
			out.Sections = append(out.Sections, Section{Name: slide.Group})
			current = &out.Sections[len(out.Sections)-1]
		}
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				current.Lines = append(current.Lines, line)
			}
		}
	}
	if len(out.Sections) == 0 {
		return Lyrics{}, ErrNoLyrics
	}
	return out, nil
}
