package render

import (
	"context"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"go-pdfcompose/internal/doclib"
	"go-pdfcompose/internal/geometry"
)

var (
	sheetColor  = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	borderColor = color.NRGBA{R: 0xc8, G: 0xc8, B: 0xc8, A: 0xff}
)

// SheetRenderer paints a white sheet with a thin border at the page's
// rendered size. Page content is not drawn.
type SheetRenderer struct{}

func (SheetRenderer) Render(ctx context.Context, src doclib.Source, pageIndex int, scale float64, rotation int) (image.Image, geometry.Viewport, error) {
	if err := ctx.Err(); err != nil {
		return nil, geometry.Viewport{}, err
	}
	box, err := src.PageBox(pageIndex)
	if err != nil {
		return nil, geometry.Viewport{}, err
	}
	vp := geometry.NewViewport(box, scale, rotation)

	w := max(1, int(math.Ceil(vp.Width)))
	h := max(1, int(math.Ceil(vp.Height)))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(borderColor), image.Point{}, draw.Src)
	if w > 2 && h > 2 {
		draw.Draw(img, image.Rect(1, 1, w-1, h-1), image.NewUniform(sheetColor), image.Point{}, draw.Src)
	}
	return img, vp, nil
}

// Thumbnail scales img down to width pixels, keeping its aspect ratio.
// Images already narrower than width are returned as they are.
func Thumbnail(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || b.Dx() <= width {
		return img
	}
	height := max(1, int(math.Round(float64(b.Dy())*float64(width)/float64(b.Dx()))))
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
