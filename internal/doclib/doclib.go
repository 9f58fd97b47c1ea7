// Package doclib defines the document library the composer and the render
// cache work against: load a PDF, copy pages between documents, rotate
// pages, embed fonts and raster images, draw on pages and serialize.
//
// Angles in draw options are degrees clockwise, the same sense as a page's
// /Rotate entry.
package doclib

import (
	"errors"

	"go-pdfcompose/internal/geometry"
)

var (
	// ErrParse is returned when source bytes are not a readable PDF.
	ErrParse = errors.New("cannot parse PDF")
	// ErrImageDecode is returned when image bytes are not in the requested
	// raster format.
	ErrImageDecode = errors.New("cannot decode image")
	// ErrForeign is returned when a value from one document is handed to
	// another document or library.
	ErrForeign = errors.New("object belongs to another document")
)

type Library interface {
	Load(data []byte) (Source, error)
	Create() Document
}

// Source is a parsed, read-only PDF.
type Source interface {
	PageCount() int
	// PageBox returns the visible box of page i (0-based).
	PageBox(i int) (geometry.Rect, error)
	// PageRotation returns the intrinsic /Rotate of page i (0-based).
	PageRotation(i int) (int, error)
}

// Document is an output document under construction.
type Document interface {
	// CopyPages copies pages of src into the document without adding them.
	CopyPages(src Source, indices []int) ([]Page, error)
	// AddPage appends a copied page.
	AddPage(p Page) error
	EmbedFont(name string) (Font, error)
	EmbedPNG(data []byte) (Image, error)
	EmbedJPEG(data []byte) (Image, error)
	Serialize() ([]byte, error)
}

type Page interface {
	Rotation() int
	SetRotation(degrees int)
	// Size is the page's unrotated width and height in points.
	Size() geometry.Size
	DrawImage(img Image, opts ImageOptions) error
	DrawText(text string, opts TextOptions) error
}

type Font interface {
	Name() string
}

type Image interface {
	// Size is the pixel width and height of the image.
	Size() (int, int)
}

// ImageOptions places an image. X, Y is the lower-left corner before
// rotation; the image turns about its centre.
type ImageOptions struct {
	X, Y, Width, Height float64
	Rotation            int
	Opacity             float64
}

// TextOptions places a line of text starting at the anchor X, Y. The text
// turns about the anchor; Baseline shifts the baseline along the text's own
// vertical axis (negative is below the anchor).
type TextOptions struct {
	X, Y     float64
	Size     float64
	Font     Font
	Rotation int
	Baseline float64
}
