package export

import (
	"context"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/propresenter"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/store"
)

// Request is the payload of one export job.
type Request struct {
	PlaylistID     string           `json:"playlistId"`
	PlaylistName   string           `json:"playlistName"`
	LibraryFilter  *string          `json:"libraryFilter,omitempty"`
	IncludeTitles  *bool            `json:"includeTitles,omitempty"`
	StyleOverrides *store.DeckStyle `json:"styleOverrides,omitempty"`
	LogoPath       string           `json:"logoPath,omitempty"`
}

// PresenterAPI is the slice of the Presenter client the orchestrator
// needs. Satisfied by *propresenter.Client.
type PresenterAPI interface {
	ListLibraries(ctx context.Context) ([]propresenter.Library, error)
	ListLibraryPresentations(ctx context.Context, libraryUUID string) ([]propresenter.LibraryItem, error)
	PlaylistItems(ctx context.Context, playlistUUID string) ([]propresenter.PlaylistItem, error)
	GetPresentation(ctx context.Context, uuid string) (propresenter.Presentation, error)
}

// Section is one block of lyric lines under a group label.
type Section struct {
	Name  string
	Lines []string
}

// Lyrics is the structured text extracted from one presentation.
type Lyrics struct {
	Title    string
	Sections []Section
}

// Extractor turns a raw presentation into structured lyrics. The
// default implementation groups slide text by arrangement group; song
// databases or fuzzy matchers can plug in richer behavior.
type Extractor interface {
	Extract(pres propresenter.Presentation) (Lyrics, error)
}

// DeckBuilder generates the slide deck file. The core does not own the
// generator: any implementation writing outPath satisfies it.
type DeckBuilder interface {
	Build(ctx context.Context, lyrics []Lyrics, style store.DeckStyle, includeTitles bool, logoPath, outPath string) error
}
