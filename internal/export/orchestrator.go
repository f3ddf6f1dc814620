// Package export runs one presentation-to-slide-deck export end to end:
// collect playlist items, extract lyrics, generate the deck and stage
// the file for download, emitting ordered progress events throughout.
package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/jobs"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/log"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/store"
)

// DeckFileExt is the staged file extension.
const DeckFileExt = ".pptx"

// ErrNoSongs is the user-visible failure when a playlist walk collected
// nothing exportable.
var ErrNoSongs = errors.New("no lyrics found in playlist; nothing to export")

// Orchestrator holds the collaborators of the export pipeline.
type Orchestrator struct {
	Client    PresenterAPI
	Settings  *store.SettingsStore
	Extractor Extractor
	Builder   DeckBuilder
	StageDir  string
	now       func() time.Time
}

// New wires an orchestrator staging files into stageDir.
func New(client PresenterAPI, settings *store.SettingsStore, extractor Extractor, builder DeckBuilder, stageDir string) *Orchestrator {
	if extractor == nil {
		extractor = SlideExtractor{}
	}
	return &Orchestrator{
		Client:    client,
		Settings:  settings,
		Extractor: extractor,
		Builder:   builder,
		StageDir:  stageDir,
		now:       time.Now,
	}
}

// Runner adapts one request into a jobs.Runner. The job id is taken
// from the worker context to build the download URL.
func (o *Orchestrator) Runner(req Request) jobs.Runner {
	return func(ctx context.Context, publish func(jobs.Event)) (*jobs.Result, error) {
		return o.run(ctx, req, publish)
	}
}

func (o *Orchestrator) run(ctx context.Context, req Request, publish func(jobs.Event)) (*jobs.Result, error) {
	logger := log.WithComponentFromContext(ctx, "export")
	settings := o.Settings.Load()

	// Resolve the effective options: payload wins, stored values fill in.
	filter := settings.LibraryFilter
	if req.LibraryFilter != nil {
		filter = *req.LibraryFilter
	}
	includeTitles := settings.IncludeTitles
	if req.IncludeTitles != nil {
		includeTitles = *req.IncludeTitles
	}
	style := settings.DeckStyle
	if req.StyleOverrides != nil {
		style = *req.StyleOverrides
	}
	logoPath := settings.LogoPath
	if req.LogoPath != "" {
		logoPath = req.LogoPath
	}

	eligible := o.resolveLibraryFilter(ctx, filter, publish)

	items, err := o.Client.PlaylistItems(ctx, req.PlaylistID)
	if err != nil {
		return nil, fmt.Errorf("fetch playlist: %w", err)
	}
	publish(jobs.Event{Type: jobs.EventPlaylistStart, TotalItems: len(items)})

	var collected []Lyrics
	for _, item := range items {
		if item.IsHeader || item.PresentationUUID == "" {
			publish(jobs.Event{Type: jobs.EventItemSkip, Item: item.Name})
			continue
		}
		if eligible != nil {
			if _, ok := eligible[item.PresentationUUID]; !ok {
				publish(jobs.Event{Type: jobs.EventItemSkip, Item: item.Name})
				continue
			}
		}
		publish(jobs.Event{Type: jobs.EventItemStart, Item: item.Name})

		pres, err := o.Client.GetPresentation(ctx, item.PresentationUUID)
		if err != nil {
			publish(jobs.Event{Type: jobs.EventItemError, Item: item.Name, Message: err.Error()})
			continue
		}
		lyrics, err := o.Extractor.Extract(pres)
		if err != nil {
			publish(jobs.Event{Type: jobs.EventItemError, Item: item.Name, Message: err.Error()})
			continue
		}
		collected = append(collected, lyrics)
		publish(jobs.Event{Type: jobs.EventItemSuccess, Item: item.Name})
	}

	if len(collected) == 0 {
		return nil, ErrNoSongs
	}
	publish(jobs.Event{Type: jobs.EventComplete, TotalSongs: len(collected)})

	fileName := fmt.Sprintf("%s-%d%s", Slugify(req.PlaylistName), o.now().UnixMilli(), DeckFileExt)
	outPath := filepath.Join(o.StageDir, fileName)

	publish(jobs.Event{Type: jobs.EventPptxStart})
	if err := o.Builder.Build(ctx, collected, style, includeTitles, logoPath, outPath); err != nil {
		return nil, fmt.Errorf("generate deck: %w", err)
	}

	jobID := log.JobIDFromContext(ctx)
	downloadURL := fmt.Sprintf("/api/export/%s/download", jobID)
	publish(jobs.Event{Type: jobs.EventPptxComplete, DownloadURL: downloadURL})

	// Remember the chosen options so the next export starts from them.
	if _, err := o.Settings.Save(store.SettingsPatch{
		LibraryFilter:  &filter,
		IncludeTitles:  &includeTitles,
		DeckStyle:      &style,
		LogoPath:       &logoPath,
		LastPlaylistID: &req.PlaylistID,
	}); err != nil {
		logger.Warn().Err(err).Msg("failed to persist export settings")
	}

	return &jobs.Result{FilePath: outPath, FileName: fileName, DownloadURL: downloadURL}, nil
}

// resolveLibraryFilter turns a library name into the set of eligible
// presentation UUIDs. A missing or unlistable library downgrades to "no
// filter" with a library:not-found event rather than failing the job.
func (o *Orchestrator) resolveLibraryFilter(ctx context.Context, filter string, publish func(jobs.Event)) map[string]struct{} {
	if strings.TrimSpace(filter) == "" {
		return nil
	}
	publish(jobs.Event{Type: jobs.EventLibrarySearch, Library: filter})

	libs, err := o.Client.ListLibraries(ctx)
	if err != nil {
		publish(jobs.Event{Type: jobs.EventLibraryNotFound, Library: filter, Message: "library list unavailable"})
		return nil
	}
	for _, lib := range libs {
		if !strings.EqualFold(lib.Name, filter) {
			continue
		}
		items, err := o.Client.ListLibraryPresentations(ctx, lib.UUID)
		if err != nil {
			publish(jobs.Event{Type: jobs.EventLibraryNotFound, Library: filter, Message: "library unreadable"})
			return nil
		}
		set := make(map[string]struct{}, len(items))
		for _, item := range items {
			set[item.UUID] = struct{}{}
		}
		return set
	}
	publish(jobs.Event{Type: jobs.EventLibraryNotFound, Library: filter})
	return nil
}
