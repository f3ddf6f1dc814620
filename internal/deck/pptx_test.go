package deck

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/export"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/store"
)

func sampleLyrics() []export.Lyrics {
	return []export.Lyrics{
		{
			Title: "Amazing Grace",
			Sections: []export.Section{
				{Name: "Verse 1", Lines: []string{"Amazing grace", "how sweet the sound"}},
				{Name: "Chorus", Lines: []string{"My chains are gone"}},
			},
		},
		{
			Title:    "10,000 Reasons <live>",
			Sections: []export.Section{{Name: "Verse", Lines: []string{"Bless the Lord"}}},
		},
	}
}

func readPart(t *testing.T, zr *zip.Reader, name string) string {
	t.Helper()
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			return string(data)
		}
	}
	t.Fatalf("part %s not found in archive", name)
	return ""
}

func buildDeck(t *testing.T, lyrics []export.Lyrics, style store.DeckStyle, includeTitles bool, logoPath string) *zip.Reader {
	t.Helper()
	outPath := filepath.Join(t.TempDir(), "deck.pptx")
	err := Builder{}.Build(context.Background(), lyrics, style, includeTitles, logoPath, outPath)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	zr, err := zip.NewReader(strings.NewReader(string(data)), int64(len(data)))
	require.NoError(t, err)
	return zr
}

func TestBuildProducesOneSlidePerTitleAndSection(t *testing.T) {
	zr := buildDeck(t, sampleLyrics(), store.DeckStyle{}, true, "")

	// 2 titles + 3 sections = 5 slides.
	for i := 1; i <= 5; i++ {
		readPart(t, zr, fmt.Sprintf("ppt/slides/slide%d.xml", i))
	}
	pres := readPart(t, zr, "ppt/presentation.xml")
	assert.Equal(t, 5, strings.Count(pres, "<p:sldId "))

	ct := readPart(t, zr, "[Content_Types].xml")
	assert.Equal(t, 5, strings.Count(ct, "presentationml.slide+xml"))
}

func TestBuildWithoutTitles(t *testing.T) {
	zr := buildDeck(t, sampleLyrics(), store.DeckStyle{}, false, "")
	pres := readPart(t, zr, "ppt/presentation.xml")
	assert.Equal(t, 3, strings.Count(pres, "<p:sldId "))

	slide1 := readPart(t, zr, "ppt/slides/slide1.xml")
	assert.Contains(t, slide1, "Amazing grace")
	assert.NotContains(t, slide1, ">Amazing Grace<")
}

func TestBuildAppliesStyle(t *testing.T) {
	style := store.DeckStyle{
		TextColor:     "#ffcc00",
		FontFace:      "Georgia",
		FontSize:      36,
		TitleFontSize: 54,
		Bold:          true,
	}
	zr := buildDeck(t, sampleLyrics(), style, true, "")

	title := readPart(t, zr, "ppt/slides/slide1.xml")
	assert.Contains(t, title, `sz="5400"`)
	assert.Contains(t, title, `val="FFCC00"`)
	assert.Contains(t, title, `typeface="Georgia"`)
	assert.Contains(t, title, `b="1"`)

	body := readPart(t, zr, "ppt/slides/slide2.xml")
	assert.Contains(t, body, `sz="3600"`)
}

func TestBuildEscapesMarkup(t *testing.T) {
	zr := buildDeck(t, sampleLyrics(), store.DeckStyle{}, true, "")
	slide4 := readPart(t, zr, "ppt/slides/slide4.xml")
	assert.Contains(t, slide4, "10,000 Reasons &lt;live&gt;")
}

func TestBuildEmbedsLogoOnTitleSlides(t *testing.T) {
	logo := filepath.Join(t.TempDir(), "logo.png")
	require.NoError(t, os.WriteFile(logo, []byte("\x89PNG fake"), 0o644))

	zr := buildDeck(t, sampleLyrics(), store.DeckStyle{}, true, logo)
	readPart(t, zr, "ppt/media/logo.png")

	title := readPart(t, zr, "ppt/slides/slide1.xml")
	assert.Contains(t, title, `r:embed="rId2"`)
	rels := readPart(t, zr, "ppt/slides/_rels/slide1.xml.rels")
	assert.Contains(t, rels, "../media/logo.png")

	// Lyric slides carry no image relationship.
	bodyRels := readPart(t, zr, "ppt/slides/_rels/slide2.xml.rels")
	assert.NotContains(t, bodyRels, "media/logo")
}

func TestBuildRejectsMissingLogo(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "deck.pptx")
	err := Builder{}.Build(context.Background(), sampleLyrics(), store.DeckStyle{}, true, "/nope/logo.png", outPath)
	require.Error(t, err)
	assert.NoFileExists(t, outPath)
}

func TestBuildEmptyLyricsFails(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "deck.pptx")
	err := Builder{}.Build(context.Background(), nil, store.DeckStyle{}, true, "", outPath)
	assert.Error(t, err)
}
