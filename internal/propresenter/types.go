package propresenter

// VersionInfo describes the running Presenter instance.
type VersionInfo struct {
	Version  string `json:"version"`
	Name     string `json:"name"`
	Platform string `json:"platform"`
}

// PlaylistNode is one entry of the flattened playlist tree. Header nodes
// group the playlists below them; Depth preserves the hierarchy.
type PlaylistNode struct {
	UUID     string `json:"uuid"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsHeader bool   `json:"isHeader"`
	Depth    int    `json:"depth"`
}

// Library is a named presentation library.
type Library struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// LibraryItem is one presentation inside a library.
type LibraryItem struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// PlaylistItem is one ordered entry of a playlist. Header items carry no
// presentation; regular items reference the presentation they present.
type PlaylistItem struct {
	UUID             string `json:"uuid"`
	Name             string `json:"name"`
	IsHeader         bool   `json:"isHeader"`
	PresentationUUID string `json:"presentationUuid,omitempty"`
}

// Slide is one slide of a presentation with its group label and text.
type Slide struct {
	Group string `json:"group"`
	Text  string `json:"text"`
}

// Presentation is the slide content of one presentation document.
type Presentation struct {
	UUID   string  `json:"uuid"`
	Title  string  `json:"title"`
	Slides []Slide `json:"slides"`
}

// SlideStatus is the live slide position reported by the Presenter.
// SlideIndex is -1 when no slide is active.
type SlideStatus struct {
	PresentationUUID string `json:"presentationUuid,omitempty"`
	SlideIndex       int    `json:"slideIndex"`
	CurrentText      string `json:"currentText"`
	NextText         string `json:"nextText"`
}
