// Package workspace holds the editable state of one composition: source
// documents, the ordered page list, overlays placed on pages and the
// signature images they reference.
//
// All state lives behind Workspace's operations. Every operation is one
// atomic transition and hands out copies only, so overlay positions can
// never drift out of the frame of their page's current canvas.
//
// Expected outputs:
//   - page ids are stable across reordering;
//   - rotating a page co-transforms all of its overlays in the same step;
//   - removing a page or a document removes everything that hangs off it.
package workspace

import (
	"errors"

	"go-pdfcompose/internal/geometry"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrOutOfRange  = errors.New("index out of range")
	ErrNoCanvas    = errors.New("page has not been rendered yet")
	ErrWrongType   = errors.New("operation does not apply to this overlay type")
	ErrStaleRender = errors.New("render is stale for the current page rotation")
	// ErrInvariant marks a broken frame contract. It signals a programming
	// error, not a user mistake.
	ErrInvariant = errors.New("state invariant violation")
)

// Document describes one uploaded source PDF. Its bytes are kept by the
// caller; the workspace only refers to it by id.
type Document struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	PageCount int    `json:"pageCount"`
}

type Page struct {
	ID         string `json:"id"`
	DocumentID string `json:"documentId"`
	PageIndex  int    `json:"pageIndex"`
	// Rotation is the user applied rotation, one of 0, 90, 180, 270.
	Rotation int `json:"rotation"`
	// Canvas is the pixel frame of the last published render.
	Canvas geometry.Size `json:"canvas"`
	Frame  uint64        `json:"frame"`
}

type OverlayType string

const (
	ImageOverlay OverlayType = "image"
	TextOverlay  OverlayType = "text"
)

func (t OverlayType) Valid() bool {
	return t == ImageOverlay || t == TextOverlay
}

// Overlay is one annotation placed on a page. X, Y and Width are pixels in
// the page's current canvas frame.
type Overlay struct {
	ID       string      `json:"id"`
	PageID   string      `json:"pageId"`
	Type     OverlayType `json:"type"`
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
	Width    float64     `json:"width"`
	Rotation int         `json:"rotation"`

	// image overlays
	ImageID string  `json:"imageId,omitempty"`
	Scale   float64 `json:"scale,omitempty"`

	// text overlays
	Text     string `json:"text,omitempty"`
	FontSize int    `json:"fontSize,omitempty"`

	Frame uint64 `json:"frame"`
}

// Image is a signature image that image overlays refer to by id.
type Image struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
}

// OverlaySpec is the input to AddOverlay.
type OverlaySpec struct {
	Type    OverlayType
	X, Y    float64
	ImageID string
	Text    string
}

// Defaults are the sizes given to freshly placed overlays.
type Defaults struct {
	// ImageScale is the width of a new image overlay as a fraction of the
	// canvas width.
	ImageScale float64
	TextWidth  float64
	TextSize   int
}

func DefaultDefaults() Defaults {
	return Defaults{ImageScale: 0.18, TextWidth: 140, TextSize: 14}
}

const (
	// MinOverlayWidth is the smallest width a resize can produce.
	MinOverlayWidth = 20
	// MinFontSize is the smallest font size a text resize can produce.
	MinFontSize = 6
)

// PageState is a page together with its overlays, as handed out by
// Snapshot.
type PageState struct {
	Page     Page      `json:"page"`
	Overlays []Overlay `json:"overlays"`
}

// Snapshot is a consistent copy of the whole workspace.
type Snapshot struct {
	Documents []Document  `json:"documents"`
	Pages     []PageState `json:"pages"`
	Images    []Image     `json:"images"`
}

// Document returns the snapshot's document with the given id.
func (s Snapshot) Document(id string) (Document, bool) {
	for _, d := range s.Documents {
		if d.ID == id {
			return d, true
		}
	}
	return Document{}, false
}
