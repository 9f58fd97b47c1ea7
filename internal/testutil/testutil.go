// Package testutil builds small PDF and image fixtures for tests.
package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
)

// Page describes one page of a fixture PDF.
type Page struct {
	Width, Height float64
	Rotate        int
}

// Letter is an upright US letter page.
var Letter = Page{Width: 612, Height: 792}

// PDF returns a valid PDF with the given pages. Each page has a small
// filled square in its lower-left corner.
func PDF(pages ...Page) []byte {
	if len(pages) == 0 {
		pages = []Page{Letter}
	}

	var buf bytes.Buffer
	var offsets []int
	obj := func(format string, args ...any) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n", len(offsets))
		fmt.Fprintf(&buf, format, args...)
		buf.WriteString("\nendobj\n")
	}

	buf.WriteString("%PDF-1.4\n")

	// Objects 1 and 2 are the catalog and page tree; each page takes two
	// more objects starting at 3.
	var kids bytes.Buffer
	for i := range pages {
		fmt.Fprintf(&kids, "%d 0 R ", 3+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj("<< /Type /Pages /Kids [%s] /Count %d >>", bytes.TrimSpace(kids.Bytes()), len(pages))

	content := "0 0 1 rg 10 10 50 50 re f"
	for i, p := range pages {
		rotate := ""
		if p.Rotate != 0 {
			rotate = fmt.Sprintf(" /Rotate %d", p.Rotate)
		}
		obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g]%s /Resources << >> /Contents %d 0 R >>",
			p.Width, p.Height, rotate, 4+2*i)
		obj("<< /Length %d >>\nstream\n%s\nendstream", len(content), content)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func fill(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// PNG returns a w by h PNG filled with c.
func PNG(w, h int, c color.Color) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, fill(w, h, c)); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// JPEG returns a w by h JPEG filled with c.
func JPEG(w, h int, c color.Color) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, fill(w, h, c), nil); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
