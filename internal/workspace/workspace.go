package workspace

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"go-pdfcompose/internal/geometry"
	"go-pdfcompose/internal/utils"
)

type Workspace struct {
	mu       sync.Mutex
	defaults Defaults
	newID    func() string

	docs     map[string]*Document
	docOrder []string
	pages    []*Page
	overlays map[string][]*Overlay // by page id
	images   map[string]*Image
	imgOrder []string
}

type Option func(*Workspace)

// WithIDs replaces the id generator, mostly for tests.
func WithIDs(f func() string) Option {
	return func(w *Workspace) { w.newID = f }
}

func WithDefaults(d Defaults) Option {
	return func(w *Workspace) { w.defaults = d }
}

func New(opts ...Option) *Workspace {
	w := &Workspace{
		defaults: DefaultDefaults(),
		newID:    utils.GenerateUUID,
		docs:     make(map[string]*Document),
		overlays: make(map[string][]*Overlay),
		images:   make(map[string]*Image),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// ---- documents ----

// AddDocument registers a source document and appends one page per source
// page to the end of the page list.
func (w *Workspace) AddDocument(doc Document) ([]Page, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("document id: %w", ErrNotFound)
	}
	if doc.PageCount < 0 {
		return nil, fmt.Errorf("document %s page count %d: %w", doc.ID, doc.PageCount, ErrOutOfRange)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.docs[doc.ID]; !ok {
		w.docOrder = append(w.docOrder, doc.ID)
	}
	d := doc
	w.docs[doc.ID] = &d

	pages := make([]Page, 0, doc.PageCount)
	for i := range doc.PageCount {
		p := w.appendPage(doc.ID, i)
		pages = append(pages, *p)
	}
	return pages, nil
}

// RemoveDocument drops a source document together with every page drawn
// from it and their overlays.
func (w *Workspace) RemoveDocument(docID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.docs[docID]; !ok {
		return fmt.Errorf("document %s: %w", docID, ErrNotFound)
	}
	w.pages = slices.DeleteFunc(w.pages, func(p *Page) bool {
		if p.DocumentID == docID {
			delete(w.overlays, p.ID)
			return true
		}
		return false
	})
	delete(w.docs, docID)
	w.docOrder = slices.DeleteFunc(w.docOrder, func(id string) bool { return id == docID })
	return nil
}

func (w *Workspace) Documents() []Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.documents()
}

func (w *Workspace) documents() []Document {
	out := make([]Document, 0, len(w.docOrder))
	for _, id := range w.docOrder {
		out = append(out, *w.docs[id])
	}
	return out
}

// ---- pages ----

// CreatePage appends a page drawn from page pageIndex of docID.
func (w *Workspace) CreatePage(docID string, pageIndex int) (Page, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	doc, ok := w.docs[docID]
	if !ok {
		return Page{}, fmt.Errorf("document %s: %w", docID, ErrNotFound)
	}
	if pageIndex < 0 || pageIndex >= doc.PageCount {
		return Page{}, fmt.Errorf("page %d of %s: %w", pageIndex, docID, ErrOutOfRange)
	}
	return *w.appendPage(docID, pageIndex), nil
}

func (w *Workspace) appendPage(docID string, pageIndex int) *Page {
	p := &Page{ID: w.newID(), DocumentID: docID, PageIndex: pageIndex}
	w.pages = append(w.pages, p)
	return p
}

// RotatePage turns a page by delta degrees. Every overlay on the page is
// moved to the spot it occupies on the rotated canvas and gains delta in
// its own rotation, and the page's canvas takes the rotated dimensions,
// all in one step.
func (w *Workspace) RotatePage(pageID string, delta int) (Page, error) {
	delta, err := geometry.NormalizeDelta(delta)
	if err != nil {
		return Page{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	p, _ := w.page(pageID)
	if p == nil {
		return Page{}, fmt.Errorf("page %s: %w", pageID, ErrNotFound)
	}
	ovs := w.overlays[pageID]
	if len(ovs) > 0 && p.Canvas.Empty() {
		return Page{}, fmt.Errorf("page %s has overlays but no canvas: %w", pageID, ErrInvariant)
	}

	frame := p.Frame + 1
	if !p.Canvas.Empty() {
		for _, ov := range ovs {
			if ov.Frame != p.Frame {
				return Page{}, fmt.Errorf("overlay %s frame %d, page frame %d: %w", ov.ID, ov.Frame, p.Frame, ErrInvariant)
			}
		}
		for _, ov := range ovs {
			pt := geometry.RotatePoint(geometry.Point{X: ov.X, Y: ov.Y}, p.Canvas, delta)
			ov.X, ov.Y = pt.X, pt.Y
			ov.Rotation = geometry.AddDegrees(ov.Rotation, delta)
			ov.Frame = frame
		}
		p.Canvas = geometry.RotatedCanvas(p.Canvas, delta)
	}
	p.Rotation = geometry.AddDegrees(p.Rotation, delta)
	p.Frame = frame
	return *p, nil
}

// RemovePage deletes a page and its overlays.
func (w *Workspace) RemovePage(pageID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, i := w.page(pageID)
	if i < 0 {
		return fmt.Errorf("page %s: %w", pageID, ErrNotFound)
	}
	w.pages = slices.Delete(w.pages, i, i+1)
	delete(w.overlays, pageID)
	return nil
}

// MovePage moves the page at position from to position to. Only the order
// changes.
func (w *Workspace) MovePage(from, to int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := len(w.pages)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("move %d -> %d with %d pages: %w", from, to, n, ErrOutOfRange)
	}
	p := w.pages[from]
	w.pages = slices.Delete(w.pages, from, from+1)
	w.pages = slices.Insert(w.pages, to, p)
	return nil
}

// SetCanvas publishes the pixel frame of a fresh render. A render made for
// a rotation that is no longer current is refused. When the frame size
// changes, overlays are rescaled to the new frame.
func (w *Workspace) SetCanvas(pageID string, rotation int, size geometry.Size) (Page, error) {
	if size.Empty() {
		return Page{}, fmt.Errorf("canvas %vx%v: %w", size.W, size.H, ErrOutOfRange)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	p, _ := w.page(pageID)
	if p == nil {
		return Page{}, fmt.Errorf("page %s: %w", pageID, ErrNotFound)
	}
	if geometry.AddDegrees(rotation, 0) != p.Rotation {
		return Page{}, fmt.Errorf("render at %d, page at %d: %w", rotation, p.Rotation, ErrStaleRender)
	}
	if p.Canvas == size {
		return *p, nil
	}

	frame := p.Frame + 1
	ovs := w.overlays[pageID]
	if !p.Canvas.Empty() {
		sx := size.W / p.Canvas.W
		sy := size.H / p.Canvas.H
		for _, ov := range ovs {
			ov.X *= sx
			ov.Y *= sy
			ov.Width *= sx
			ov.Frame = frame
		}
	} else if len(ovs) > 0 {
		return Page{}, fmt.Errorf("page %s has overlays but no canvas: %w", pageID, ErrInvariant)
	}
	p.Canvas = size
	p.Frame = frame
	return *p, nil
}

func (w *Workspace) Page(pageID string) (Page, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, _ := w.page(pageID)
	if p == nil {
		return Page{}, fmt.Errorf("page %s: %w", pageID, ErrNotFound)
	}
	return *p, nil
}

func (w *Workspace) Pages() []Page {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Page, len(w.pages))
	for i, p := range w.pages {
		out[i] = *p
	}
	return out
}

func (w *Workspace) page(id string) (*Page, int) {
	for i, p := range w.pages {
		if p.ID == id {
			return p, i
		}
	}
	return nil, -1
}

// ---- overlays ----

// AddOverlay places a new overlay on a rendered page at a pixel position.
func (w *Workspace) AddOverlay(pageID string, spec OverlaySpec) (Overlay, error) {
	if !spec.Type.Valid() {
		return Overlay{}, fmt.Errorf("overlay type %q: %w", spec.Type, ErrWrongType)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	p, _ := w.page(pageID)
	if p == nil {
		return Overlay{}, fmt.Errorf("page %s: %w", pageID, ErrNotFound)
	}
	if p.Canvas.Empty() {
		return Overlay{}, fmt.Errorf("page %s: %w", pageID, ErrNoCanvas)
	}

	ov := &Overlay{
		ID:     w.newID(),
		PageID: pageID,
		Type:   spec.Type,
		X:      geometry.Clamp(spec.X, 0, p.Canvas.W),
		Y:      geometry.Clamp(spec.Y, 0, p.Canvas.H),
		Frame:  p.Frame,
	}
	switch spec.Type {
	case ImageOverlay:
		if _, ok := w.images[spec.ImageID]; !ok {
			return Overlay{}, fmt.Errorf("image %s: %w", spec.ImageID, ErrNotFound)
		}
		ov.ImageID = spec.ImageID
		ov.Scale = w.defaults.ImageScale
		ov.Width = math.Round(p.Canvas.W * w.defaults.ImageScale)
	case TextOverlay:
		ov.Text = spec.Text
		ov.FontSize = w.defaults.TextSize
		ov.Width = w.defaults.TextWidth
	}
	w.overlays[pageID] = append(w.overlays[pageID], ov)
	return *ov, nil
}

// MoveOverlay repositions an overlay, clamped to its page's canvas.
func (w *Workspace) MoveOverlay(id string, x, y float64) (Overlay, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ov, p, err := w.overlay(id)
	if err != nil {
		return Overlay{}, err
	}
	ov.X = geometry.Clamp(x, 0, p.Canvas.W)
	ov.Y = geometry.Clamp(y, 0, p.Canvas.H)
	return *ov, nil
}

// ResizeOverlay changes an overlay's width. Text follows with a
// proportional font size, images record their new share of the canvas
// width.
func (w *Workspace) ResizeOverlay(id string, width float64) (Overlay, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ov, p, err := w.overlay(id)
	if err != nil {
		return Overlay{}, err
	}
	width = math.Max(MinOverlayWidth, width)
	switch ov.Type {
	case TextOverlay:
		if ov.Width > 0 {
			size := int(math.Round(float64(ov.FontSize) * width / ov.Width))
			ov.FontSize = max(MinFontSize, size)
		}
	case ImageOverlay:
		ov.Scale = width / p.Canvas.W
	}
	ov.Width = width
	return *ov, nil
}

func (w *Workspace) SetText(id, text string) (Overlay, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ov, _, err := w.overlay(id)
	if err != nil {
		return Overlay{}, err
	}
	if ov.Type != TextOverlay {
		return Overlay{}, fmt.Errorf("set text on %s overlay %s: %w", ov.Type, id, ErrWrongType)
	}
	ov.Text = text
	return *ov, nil
}

func (w *Workspace) RemoveOverlay(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ov, _, err := w.overlay(id)
	if err != nil {
		return err
	}
	w.overlays[ov.PageID] = slices.DeleteFunc(w.overlays[ov.PageID], func(o *Overlay) bool { return o.ID == id })
	return nil
}

func (w *Workspace) Overlays(pageID string) ([]Overlay, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p, _ := w.page(pageID); p == nil {
		return nil, fmt.Errorf("page %s: %w", pageID, ErrNotFound)
	}
	return copyOverlays(w.overlays[pageID]), nil
}

// overlay finds an overlay and its page and checks that the overlay is in
// the page's current frame.
func (w *Workspace) overlay(id string) (*Overlay, *Page, error) {
	for pageID, ovs := range w.overlays {
		for _, ov := range ovs {
			if ov.ID != id {
				continue
			}
			p, _ := w.page(pageID)
			if p == nil {
				return nil, nil, fmt.Errorf("overlay %s on removed page %s: %w", id, pageID, ErrInvariant)
			}
			if ov.Frame != p.Frame {
				return nil, nil, fmt.Errorf("overlay %s frame %d, page frame %d: %w", id, ov.Frame, p.Frame, ErrInvariant)
			}
			return ov, p, nil
		}
	}
	return nil, nil, fmt.Errorf("overlay %s: %w", id, ErrNotFound)
}

func copyOverlays(ovs []*Overlay) []Overlay {
	out := make([]Overlay, len(ovs))
	for i, ov := range ovs {
		out[i] = *ov
	}
	return out
}

// ---- images ----

func (w *Workspace) AddImage(img Image) Image {
	w.mu.Lock()
	defer w.mu.Unlock()

	if img.ID == "" {
		img.ID = w.newID()
	}
	if _, ok := w.images[img.ID]; !ok {
		w.imgOrder = append(w.imgOrder, img.ID)
	}
	c := img
	w.images[img.ID] = &c
	return img
}

// RemoveImage drops an image and every overlay that places it.
func (w *Workspace) RemoveImage(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.images[id]; !ok {
		return fmt.Errorf("image %s: %w", id, ErrNotFound)
	}
	for pageID, ovs := range w.overlays {
		w.overlays[pageID] = slices.DeleteFunc(ovs, func(o *Overlay) bool { return o.ImageID == id })
	}
	delete(w.images, id)
	w.imgOrder = slices.DeleteFunc(w.imgOrder, func(s string) bool { return s == id })
	return nil
}

func (w *Workspace) Images() []Image {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.imageList()
}

func (w *Workspace) imageList() []Image {
	out := make([]Image, 0, len(w.imgOrder))
	for _, id := range w.imgOrder {
		out = append(out, *w.images[id])
	}
	return out
}

// ---- snapshot ----

// Snapshot copies the whole workspace. It fails with ErrInvariant when an
// overlay is not tagged with its page's current frame or a page refers to
// a document that no longer exists.
func (w *Workspace) Snapshot() (Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Snapshot{
		Documents: w.documents(),
		Pages:     make([]PageState, 0, len(w.pages)),
		Images:    w.imageList(),
	}
	for _, p := range w.pages {
		if _, ok := w.docs[p.DocumentID]; !ok {
			return Snapshot{}, fmt.Errorf("page %s refers to removed document %s: %w", p.ID, p.DocumentID, ErrInvariant)
		}
		ovs := w.overlays[p.ID]
		for _, ov := range ovs {
			if ov.Frame != p.Frame {
				return Snapshot{}, fmt.Errorf("overlay %s frame %d, page %s frame %d: %w", ov.ID, ov.Frame, p.ID, p.Frame, ErrInvariant)
			}
		}
		s.Pages = append(s.Pages, PageState{Page: *p, Overlays: copyOverlays(ovs)})
	}
	return s, nil
}
