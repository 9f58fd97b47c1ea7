package geometry

import "math"

// Viewport records the scale and rotation of one render of a page and
// converts between that render's pixels and document points.
//
// The transform matches the one used by PDF.js page viewports, so a
// viewport built here agrees with one produced by a browser preview for the
// same page box, scale and rotation.
type Viewport struct {
	ViewBox  Rect       `json:"-"`
	Scale    float64    `json:"scale"`
	Rotation int        `json:"rotation"`
	Width    float64    `json:"width"`
	Height   float64    `json:"height"`
	M        [6]float64 `json:"transform"`
}

// NewViewport builds the viewport for viewBox rendered at scale and
// rotation degrees clockwise.
func NewViewport(viewBox Rect, scale float64, rotation int) Viewport {
	rotation = AddDegrees(rotation, 0)
	cx := (viewBox.URX + viewBox.LLX) / 2
	cy := (viewBox.URY + viewBox.LLY) / 2

	var a, b, c, d float64
	switch rotation {
	case 90:
		a, b, c, d = 0, 1, 1, 0
	case 180:
		a, b, c, d = -1, 0, 0, 1
	case 270:
		a, b, c, d = 0, -1, -1, 0
	default:
		a, b, c, d = 1, 0, 0, -1
	}

	var offX, offY, w, h float64
	if a == 0 {
		offX = math.Abs(cy-viewBox.LLY) * scale
		offY = math.Abs(cx-viewBox.LLX) * scale
		w = (viewBox.URY - viewBox.LLY) * scale
		h = (viewBox.URX - viewBox.LLX) * scale
	} else {
		offX = math.Abs(cx-viewBox.LLX) * scale
		offY = math.Abs(cy-viewBox.LLY) * scale
		w = (viewBox.URX - viewBox.LLX) * scale
		h = (viewBox.URY - viewBox.LLY) * scale
	}

	return Viewport{
		ViewBox:  viewBox,
		Scale:    scale,
		Rotation: rotation,
		Width:    w,
		Height:   h,
		M: [6]float64{
			a * scale, b * scale, c * scale, d * scale,
			offX - a*scale*cx - c*scale*cy,
			offY - b*scale*cx - d*scale*cy,
		},
	}
}

// Size returns the render dimensions in pixels.
func (v Viewport) Size() Size {
	return Size{W: v.Width, H: v.Height}
}

// Valid reports whether the viewport came from a render.
func (v Viewport) Valid() bool {
	return v.Scale > 0 && v.M[0]*v.M[3]-v.M[1]*v.M[2] != 0
}

// ToPixel converts a document point to render pixels.
func (v Viewport) ToPixel(x, y float64) (float64, float64) {
	m := v.M
	return x*m[0] + y*m[2] + m[4], x*m[1] + y*m[3] + m[5]
}

// ToDocumentPoint converts render pixels to a document point.
func (v Viewport) ToDocumentPoint(px, py float64) (float64, float64) {
	m := v.M
	det := m[0]*m[3] - m[1]*m[2]
	x := (px*m[3] - py*m[2] + m[2]*m[5] - m[4]*m[3]) / det
	y := (-px*m[1] + py*m[0] + m[4]*m[1] - m[5]*m[0]) / det
	return x, y
}
