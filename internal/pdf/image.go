package pdf

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"go-pdfcompose/internal/doclib"
)

type decodeFunc func(data []byte) (image.Image, error)

func decodePNG(data []byte) (image.Image, error) {
	return png.Decode(bytes.NewReader(data))
}

func decodeJPEG(data []byte) (image.Image, error) {
	return jpeg.Decode(bytes.NewReader(data))
}

// Image is a raster image embedded in a Document. The encoded bytes are
// kept as uploaded and turned into an image XObject when the document is
// serialised: JPEG is passed through as DCT, PNG transparency becomes a
// soft mask.
type Image struct {
	doc  *Document
	res  string
	data []byte
	w, h int
}

func newImage(data []byte, decode decodeFunc) (*Image, error) {
	src, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", doclib.ErrImageDecode, err)
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty image", doclib.ErrImageDecode)
	}
	return &Image{data: data, w: b.Dx(), h: b.Dy()}, nil
}

func (im *Image) Size() (int, int) {
	return im.w, im.h
}

func (im *Image) xobject(ctx *model.Context) (types.IndirectRef, error) {
	ref, _, _, err := model.CreateImageResource(ctx.XRefTable, bytes.NewReader(im.data), false, false)
	if err != nil {
		return types.IndirectRef{}, fmt.Errorf("image %s: %w", im.res, err)
	}
	return *ref, nil
}
