// Package pdf implements the document library on top of pdfcpu.
//
// Types:
//   - Library: loads source PDFs and creates output documents.
//   - Source: a parsed, read-only PDF with page boxes and rotations.
//   - Document: an output document; pages copied from sources, rotated,
//     drawn on and serialized in one go.
//
// Expected outputs:
//   - Load fails with doclib.ErrParse on unreadable bytes
//   - Serialize yields one PDF with the added pages in order, each page
//     carrying its /Rotate and the overlays drawn on it
//   - the overlay font, every image and every opacity state are written
//     once per output file, however many pages use them
//
// Used by the handlers for uploads and previews and by the composer for
// exports.
package pdf

import (
	"bytes"
	"fmt"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"go-pdfcompose/internal/doclib"
	"go-pdfcompose/internal/geometry"
)

type Library struct{}

// compile-time contract checks
var (
	_ doclib.Library  = (*Library)(nil)
	_ doclib.Source   = (*Source)(nil)
	_ doclib.Document = (*Document)(nil)
	_ doclib.Page     = (*Page)(nil)
)

func NewLibrary() *Library {
	return &Library{}
}

func configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return conf
}

func (l *Library) Load(data []byte) (doclib.Source, error) {
	return Open(data)
}

func (l *Library) Create() doclib.Document {
	return NewDocument()
}

type pageInfo struct {
	box      geometry.Rect
	media    geometry.Rect
	rotation int
}

type Source struct {
	ctx   *model.Context
	pages []pageInfo
}

// Open parses PDF bytes.
func Open(data []byte) (*Source, error) {
	ctx, err := pdfapi.ReadValidateAndOptimize(bytes.NewReader(data), configuration())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", doclib.ErrParse, err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("%w: %v", doclib.ErrParse, err)
	}

	s := &Source{ctx: ctx, pages: make([]pageInfo, 0, ctx.PageCount)}
	for nr := 1; nr <= ctx.PageCount; nr++ {
		_, _, inh, err := ctx.PageDict(nr, false)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", doclib.ErrParse, nr, err)
		}
		if inh == nil || inh.MediaBox == nil {
			return nil, fmt.Errorf("%w: page %d has no media box", doclib.ErrParse, nr)
		}
		box := inh.CropBox
		if box == nil {
			box = inh.MediaBox
		}
		s.pages = append(s.pages, pageInfo{
			box:      rect(box),
			media:    rect(inh.MediaBox),
			rotation: geometry.AddDegrees(inh.Rotate, 0),
		})
	}
	return s, nil
}

func rect(r *types.Rectangle) geometry.Rect {
	return geometry.Rect{LLX: r.LL.X, LLY: r.LL.Y, URX: r.UR.X, URY: r.UR.Y}
}

func (s *Source) PageCount() int {
	return len(s.pages)
}

func (s *Source) info(i int) (pageInfo, error) {
	if i < 0 || i >= len(s.pages) {
		return pageInfo{}, fmt.Errorf("page index %d of %d pages", i, len(s.pages))
	}
	return s.pages[i], nil
}

func (s *Source) PageBox(i int) (geometry.Rect, error) {
	p, err := s.info(i)
	return p.box, err
}

func (s *Source) PageRotation(i int) (int, error) {
	p, err := s.info(i)
	return p.rotation, err
}

// PageCount parses data and returns its number of pages.
func PageCount(data []byte) (int, error) {
	s, err := Open(data)
	if err != nil {
		return 0, err
	}
	return s.PageCount(), nil
}
