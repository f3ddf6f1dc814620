// Package propresenter is a thin HTTP client for the Presenter's local
// REST API. The upstream is on the same host: calls either succeed fast
// or fail fast, so there is no retry logic, only kind-tagged errors.
package propresenter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 8 * time.Second

type Client struct {
	base   string
	baseFn func() string
	http   *http.Client
}

// New creates a client for the Presenter API at base, e.g. "http://127.0.0.1:1025".
func New(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: defaultTimeout},
	}
}

// NewDynamic creates a client that re-resolves the Presenter base URL
// on every request, so a settings change to the endpoint takes effect
// without a restart.
func NewDynamic(baseURL func() string) *Client {
	return &Client{
		baseFn: baseURL,
		http:   &http.Client{Timeout: defaultTimeout},
	}
}

func (c *Client) baseURL() string {
	if c.baseFn != nil {
		return strings.TrimRight(c.baseFn(), "/")
	}
	return c.base
}

// Version returns the identity of the running Presenter instance.
func (c *Client) Version(ctx context.Context) (VersionInfo, error) {
	var p struct {
		Name       string `json:"name"`
		Platform   string `json:"platform"`
		APIVersion string `json:"api_version"`
	}
	if err := c.getJSON(ctx, "version", "/version", &p); err != nil {
		return VersionInfo{}, err
	}
	return VersionInfo{Version: p.APIVersion, Name: p.Name, Platform: p.Platform}, nil
}

// wire shapes shared by the list endpoints
type idRef struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

type playlistTreeNode struct {
	ID       idRef              `json:"id"`
	Type     string             `json:"field_type"`
	Children []playlistTreeNode `json:"children"`
}

// ListPlaylists returns the playlist tree flattened depth-first, with
// Depth preserving the hierarchy and group nodes marked as headers.
func (c *Client) ListPlaylists(ctx context.Context) ([]PlaylistNode, error) {
	var tree []playlistTreeNode
	if err := c.getJSON(ctx, "list playlists", "/v1/playlists", &tree); err != nil {
		return nil, err
	}
	var out []PlaylistNode
	var walk func(nodes []playlistTreeNode, depth int)
	walk = func(nodes []playlistTreeNode, depth int) {
		for _, n := range nodes {
			isHeader := strings.EqualFold(n.Type, "group") || len(n.Children) > 0
			out = append(out, PlaylistNode{
				UUID:     n.ID.UUID,
				Name:     n.ID.Name,
				Type:     n.Type,
				IsHeader: isHeader,
				Depth:    depth,
			})
			walk(n.Children, depth+1)
		}
	}
	walk(tree, 0)
	return out, nil
}

// ListLibraries enumerates the presentation libraries.
func (c *Client) ListLibraries(ctx context.Context) ([]Library, error) {
	var refs []idRef
	if err := c.getJSON(ctx, "list libraries", "/v1/libraries", &refs); err != nil {
		return nil, err
	}
	out := make([]Library, 0, len(refs))
	for _, r := range refs {
		out = append(out, Library{UUID: r.UUID, Name: r.Name})
	}
	return out, nil
}

// ListLibrariesOrEmpty is the graceful form used by callers that treat a
// missing library list as "no filter available" rather than an error.
func (c *Client) ListLibrariesOrEmpty(ctx context.Context) []Library {
	libs, err := c.ListLibraries(ctx)
	if err != nil {
		return nil
	}
	return libs
}

// ListLibraryPresentations lists the presentations inside one library.
func (c *Client) ListLibraryPresentations(ctx context.Context, libraryUUID string) ([]LibraryItem, error) {
	var p struct {
		Items []idRef `json:"items"`
	}
	path := "/v1/library/" + url.PathEscape(libraryUUID)
	if err := c.getJSON(ctx, "list library presentations", path, &p); err != nil {
		return nil, err
	}
	out := make([]LibraryItem, 0, len(p.Items))
	for _, r := range p.Items {
		out = append(out, LibraryItem{UUID: r.UUID, Name: r.Name})
	}
	return out, nil
}

// PlaylistItems returns the ordered items of one playlist.
func (c *Client) PlaylistItems(ctx context.Context, playlistUUID string) ([]PlaylistItem, error) {
	var p struct {
		Items []struct {
			ID               idRef  `json:"id"`
			Type             string `json:"type"`
			PresentationUUID string `json:"presentation_uuid"`
		} `json:"items"`
	}
	path := "/v1/playlist/" + url.PathEscape(playlistUUID)
	if err := c.getJSON(ctx, "playlist items", path, &p); err != nil {
		return nil, err
	}
	out := make([]PlaylistItem, 0, len(p.Items))
	for _, item := range p.Items {
		out = append(out, PlaylistItem{
			UUID:             item.ID.UUID,
			Name:             item.ID.Name,
			IsHeader:         strings.EqualFold(item.Type, "header"),
			PresentationUUID: item.PresentationUUID,
		})
	}
	return out, nil
}

// GetPresentation fetches one presentation with its slide text grouped
// by the Presenter's arrangement groups (Verse, Chorus, ...).
func (c *Client) GetPresentation(ctx context.Context, uuid string) (Presentation, error) {
	var p struct {
		Presentation struct {
			ID     idRef `json:"id"`
			Groups []struct {
				Name   string `json:"name"`
				Slides []struct {
					Text string `json:"text"`
				} `json:"slides"`
			} `json:"groups"`
		} `json:"presentation"`
	}
	path := "/v1/presentation/" + url.PathEscape(uuid)
	if err := c.getJSON(ctx, "get presentation", path, &p); err != nil {
		return Presentation{}, err
	}
	out := Presentation{UUID: p.Presentation.ID.UUID, Title: p.Presentation.ID.Name}
	for _, g := range p.Presentation.Groups {
		for _, s := range g.Slides {
			out.Slides = append(out.Slides, Slide{Group: g.Name, Text: s.Text})
		}
	}
	return out, nil
}

// CurrentSlideStatus reports the live slide position. SlideIndex is -1
// when no presentation is active.
func (c *Client) CurrentSlideStatus(ctx context.Context) (SlideStatus, error) {
	var pos struct {
		PresentationIndex *struct {
			Index          int   `json:"index"`
			PresentationID idRef `json:"presentation_id"`
		} `json:"presentation_index"`
	}
	if err := c.getJSON(ctx, "slide index", "/v1/presentation/slide_index", &pos); err != nil {
		return SlideStatus{}, err
	}

	var txt struct {
		Current struct {
			Text string `json:"text"`
		} `json:"current"`
		Next struct {
			Text string `json:"text"`
		} `json:"next"`
	}
	if err := c.getJSON(ctx, "slide status", "/v1/status/slide", &txt); err != nil {
		return SlideStatus{}, err
	}

	status := SlideStatus{
		SlideIndex:  -1,
		CurrentText: txt.Current.Text,
		NextText:    txt.Next.Text,
	}
	if pos.PresentationIndex != nil {
		status.PresentationUUID = pos.PresentationIndex.PresentationID.UUID
		status.SlideIndex = pos.PresentationIndex.Index
	}
	return status, nil
}

// ThumbnailStream opens the slide thumbnail as a byte stream. The caller
// must close the returned reader.
func (c *Client) ThumbnailStream(ctx context.Context, presentationUUID string, slideIndex int) (io.ReadCloser, string, error) {
	path := fmt.Sprintf("/v1/presentation/%s/thumbnail/%d", url.PathEscape(presentationUUID), slideIndex)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+path, nil)
	if err != nil {
		return nil, "", &APIError{Sentinel: ErrUnavailable, Operation: "thumbnail", Err: err}
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, "", c.transportError("thumbnail", err)
	}
	if res.StatusCode != http.StatusOK {
		_ = res.Body.Close()
		return nil, "", c.statusError("thumbnail", res.StatusCode)
	}
	contentType := res.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return res.Body, contentType, nil
}

func (c *Client) getJSON(ctx context.Context, operation, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+path, nil)
	if err != nil {
		return &APIError{Sentinel: ErrUnavailable, Operation: operation, Err: err}
	}
	res, err := c.http.Do(req)
	if err != nil {
		return c.transportError(operation, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return c.statusError(operation, res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &APIError{Sentinel: ErrUpstream, Operation: operation, Err: err}
	}
	return nil
}

func (c *Client) transportError(operation string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &APIError{Sentinel: ErrTimeout, Operation: operation, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Sentinel: ErrTimeout, Operation: operation, Err: err}
	}
	return &APIError{Sentinel: ErrUnavailable, Operation: operation, Err: err}
}

func (c *Client) statusError(operation string, status int) error {
	sentinel := ErrUpstream
	if status == http.StatusNotFound {
		sentinel = ErrNotFound
	}
	return &APIError{Sentinel: sentinel, Operation: operation, Status: status}
}
