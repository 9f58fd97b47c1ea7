package pdf

import (
	"bytes"
	"math"
	"strconv"

	"golang.org/x/text/encoding/charmap"

	"go-pdfcompose/internal/doclib"
	"go-pdfcompose/internal/geometry"
)

var standardFonts = []string{
	"Helvetica", "Helvetica-Bold", "Helvetica-Oblique", "Helvetica-BoldOblique",
	"Times-Roman", "Times-Bold", "Times-Italic", "Times-BoldItalic",
	"Courier", "Courier-Bold", "Courier-Oblique", "Courier-BoldOblique",
	"Symbol", "ZapfDingbats",
}

// num formats a number for a content stream.
func num(v float64) string {
	v = math.Round(v*1e4) / 1e4
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeNums(buf *bytes.Buffer, vs ...float64) {
	for _, v := range vs {
		buf.WriteString(num(v))
		buf.WriteByte(' ')
	}
}

// clockwise returns the cm operands for a clockwise turn by a multiple of
// 90 degrees.
func clockwise(degrees int) (a, b, c, d float64) {
	switch geometry.AddDegrees(degrees, 0) {
	case 90:
		return 0, -1, 1, 0
	case 180:
		return -1, 0, 0, -1
	case 270:
		return 0, 1, -1, 0
	default:
		return 1, 0, 0, 1
	}
}

func writeImage(buf *bytes.Buffer, name string, state int, o doclib.ImageOptions) {
	a, b, c, d := clockwise(o.Rotation)
	buf.WriteString("q\n")
	if state >= 0 {
		buf.WriteString("/" + stateName(state) + " gs\n")
	}
	writeNums(buf, 1, 0, 0, 1, o.X+o.Width/2, o.Y+o.Height/2)
	buf.WriteString("cm\n")
	writeNums(buf, a, b, c, d, 0, 0)
	buf.WriteString("cm\n")
	writeNums(buf, o.Width, 0, 0, o.Height, -o.Width/2, -o.Height/2)
	buf.WriteString("cm\n")
	buf.WriteString("/" + name + " Do\nQ\n")
}

func writeText(buf *bytes.Buffer, font string, text []byte, o doclib.TextOptions) {
	a, b, c, d := clockwise(o.Rotation)
	buf.WriteString("q\n")
	writeNums(buf, 1, 0, 0, 1, o.X, o.Y)
	buf.WriteString("cm\n")
	writeNums(buf, a, b, c, d, 0, 0)
	buf.WriteString("cm\nBT\n/" + font + " ")
	writeNums(buf, o.Size)
	buf.WriteString("Tf\n0 0 0 rg\n")
	writeNums(buf, 0, o.Baseline)
	buf.WriteString("Td\n(")
	buf.Write(escape(text))
	buf.WriteString(") Tj\nET\nQ\n")
}

// encodeWinAnsi maps text to the WinAnsi code page. Runes without a code
// become '?'.
func encodeWinAnsi(text string) []byte {
	out := make([]byte, 0, len(text))
	for _, r := range text {
		if b, ok := charmap.Windows1252.EncodeRune(r); ok {
			out = append(out, b)
			continue
		}
		out = append(out, '?')
	}
	return out
}

// escape quotes a byte string for a PDF literal string.
func escape(s []byte) []byte {
	out := make([]byte, 0, len(s)+8)
	for _, c := range s {
		switch c {
		case '\\', '(', ')':
			out = append(out, '\\', c)
		case '\n':
			out = append(out, '\\', 'n')
		case '\r':
			out = append(out, '\\', 'r')
		default:
			out = append(out, c)
		}
	}
	return out
}
