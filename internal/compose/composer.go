// Package compose builds the output PDF from a workspace snapshot.
//
// Pages are copied one by one from their source documents in page list
// order, turned by their user rotation and stamped with their overlays.
//
// Expected outputs:
//   - the overlay font and every referenced image are embedded once per
//     export
//   - an image that decodes neither as PNG nor as JPEG is left out, along
//     with every overlay that uses it; the rest of the export goes on
//   - a source that cannot be read or copied aborts the export with a
//     *DocumentLoadError naming the file
//   - the same snapshot always produces the same sequence of library calls.
//     The pdf backend still stamps the creation and modification dates, so
//     its bytes differ between exports by those dates only
package compose

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go-pdfcompose/internal/doclib"
	"go-pdfcompose/internal/geometry"
	"go-pdfcompose/internal/workspace"
)

const (
	DefaultFont = "Helvetica"
	// ImageOpacity is the alpha image overlays are drawn with.
	ImageOpacity = 0.9
	// capHeight is the Helvetica cap height per unit of font size.
	capHeight = 0.718
)

// Job is one export: the pages in output order, the images overlays may
// refer to and access to source bytes and current viewports.
type Job struct {
	Pages     []workspace.PageState
	Documents []workspace.Document
	Images    []workspace.Image
	// Read returns the raw bytes of a source document. It is called once
	// per output page.
	Read func(documentID string) ([]byte, error)
	// Viewport returns the viewport of the page's current render, if there
	// is one that still matches the page's canvas.
	Viewport func(pageID string) (geometry.Viewport, bool)
}

// NewJob builds a job from a workspace snapshot.
func NewJob(s workspace.Snapshot, read func(string) ([]byte, error), viewport func(string) (geometry.Viewport, bool)) Job {
	return Job{
		Pages:     s.Pages,
		Documents: s.Documents,
		Images:    s.Images,
		Read:      read,
		Viewport:  viewport,
	}
}

func (j Job) documentName(id string) string {
	for _, d := range j.Documents {
		if d.ID == id {
			return d.Name
		}
	}
	return ""
}

type Composer struct {
	Library doclib.Library
	// Font is the standard font text overlays are set in.
	Font   string
	Logger *log.Logger
}

func New(lib doclib.Library) *Composer {
	return &Composer{Library: lib, Font: DefaultFont, Logger: log.Default()}
}

func (c *Composer) logf(format string, args ...any) {
	l := c.Logger
	if l == nil {
		l = log.Default()
	}
	l.Printf(format, args...)
}

// Export composes the job and returns the serialized PDF.
func (c *Composer) Export(ctx context.Context, job Job) ([]byte, error) {
	if len(job.Pages) == 0 {
		return nil, errors.New("nothing to export: no pages")
	}
	if job.Read == nil {
		return nil, errors.New("job has no source reader")
	}

	out := c.Library.Create()

	fontName := c.Font
	if fontName == "" {
		fontName = DefaultFont
	}
	font, err := out.EmbedFont(fontName)
	if err != nil {
		c.logf("compose: embed font %s: %v; text overlays are skipped", fontName, err)
		font = nil
	}

	images := c.embedImages(out, job)

	for _, ps := range job.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := c.copyPage(out, job, ps.Page)
		if err != nil {
			return nil, err
		}
		c.drawOverlays(page, ps, job, font, images)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := out.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serialize output: %w", err)
	}
	return data, nil
}

// embedImages embeds every image referenced by an overlay, in registration
// order. Images that fail to decode map to nil.
func (c *Composer) embedImages(out doclib.Document, job Job) map[string]doclib.Image {
	used := make(map[string]bool)
	for _, ps := range job.Pages {
		for _, ov := range ps.Overlays {
			if ov.Type == workspace.ImageOverlay {
				used[ov.ImageID] = true
			}
		}
	}

	images := make(map[string]doclib.Image, len(used))
	for _, img := range job.Images {
		if !used[img.ID] {
			continue
		}
		if _, seen := images[img.ID]; seen {
			continue
		}
		embedded, err := out.EmbedPNG(img.Data)
		if err != nil {
			embedded, err = out.EmbedJPEG(img.Data)
		}
		if err != nil {
			c.logf("compose: image %s (%s) is neither PNG nor JPEG; its overlays are skipped: %v", img.ID, img.Name, err)
			embedded = nil
		}
		images[img.ID] = embedded
	}
	return images
}

func (c *Composer) copyPage(out doclib.Document, job Job, p workspace.Page) (doclib.Page, error) {
	loadErr := func(err error) error {
		return &DocumentLoadError{DocumentID: p.DocumentID, Name: job.documentName(p.DocumentID), Err: err}
	}

	data, err := job.Read(p.DocumentID)
	if err != nil {
		return nil, loadErr(err)
	}
	src, err := c.Library.Load(data)
	if err != nil {
		return nil, loadErr(err)
	}
	copied, err := out.CopyPages(src, []int{p.PageIndex})
	if err != nil {
		return nil, loadErr(fmt.Errorf("copy page %d: %w", p.PageIndex+1, err))
	}
	if len(copied) != 1 {
		return nil, loadErr(fmt.Errorf("copy page %d: got %d pages", p.PageIndex+1, len(copied)))
	}
	page := copied[0]
	if err := out.AddPage(page); err != nil {
		return nil, loadErr(fmt.Errorf("add page %d: %w", p.PageIndex+1, err))
	}
	page.SetRotation(geometry.AddDegrees(page.Rotation(), p.Rotation))
	return page, nil
}

func (c *Composer) drawOverlays(page doclib.Page, ps workspace.PageState, job Job, font doclib.Font, images map[string]doclib.Image) {
	if len(ps.Overlays) == 0 {
		return
	}

	var vp geometry.Viewport
	hasViewport := false
	if job.Viewport != nil {
		vp, hasViewport = job.Viewport(ps.Page.ID)
		// Overlays are in the snapshot's frame; a render published since
		// then has a different one.
		hasViewport = hasViewport && vp.Valid() && vp.Size().Matches(ps.Page.Canvas)
	}
	if !hasViewport && ps.Page.Canvas.Empty() {
		c.logf("compose: page %s has overlays but was never rendered; overlays skipped", ps.Page.ID)
		return
	}

	size := page.Size()
	net := page.Rotation()
	for _, ov := range ps.Overlays {
		var at geometry.Point
		if hasViewport {
			at.X, at.Y = vp.ToDocumentPoint(ov.X, ov.Y)
		} else {
			at = geometry.ProportionalToPoints(geometry.Point{X: ov.X, Y: ov.Y}, ps.Page.Canvas, size)
		}
		angle := geometry.DrawAngle(ov.Rotation, net)

		var err error
		switch ov.Type {
		case workspace.ImageOverlay:
			err = drawImage(page, images[ov.ImageID], ov, at, angle, size)
		case workspace.TextOverlay:
			err = drawText(page, font, ov, at, angle)
		default:
			err = fmt.Errorf("unknown overlay type %q", ov.Type)
		}
		if err != nil {
			c.logf("compose: overlay %s on page %s skipped: %v", ov.ID, ps.Page.ID, err)
		}
	}
}

var (
	errMissingImage = errors.New("image not embedded")
	errNoFont       = errors.New("no font embedded")
)

func drawImage(page doclib.Page, img doclib.Image, ov workspace.Overlay, at geometry.Point, angle int, size geometry.Size) error {
	if img == nil {
		return errMissingImage
	}
	pw, ph := img.Size()
	if pw <= 0 || ph <= 0 {
		return fmt.Errorf("image has size %dx%d", pw, ph)
	}
	w := size.W * ov.Scale
	h := w * float64(ph) / float64(pw)
	return page.DrawImage(img, doclib.ImageOptions{
		X:        at.X - w/2,
		Y:        at.Y - h/2,
		Width:    w,
		Height:   h,
		Rotation: angle,
		Opacity:  ImageOpacity,
	})
}

func drawText(page doclib.Page, font doclib.Font, ov workspace.Overlay, at geometry.Point, angle int) error {
	if ov.Text == "" {
		return nil
	}
	if font == nil {
		return errNoFont
	}
	size := float64(ov.FontSize)
	return page.DrawText(ov.Text, doclib.TextOptions{
		X:        at.X,
		Y:        at.Y,
		Size:     size,
		Font:     font,
		Rotation: angle,
		Baseline: -capHeight * size / 2,
	})
}
