// Package geometry maps overlay positions between coordinate frames.
//
// Two frames are involved:
//   - canvas pixels: top-left origin, y grows downwards, sized by the last
//     render of a page;
//   - document points: bottom-left origin, y grows upwards, sized by the
//     page box.
//
// Functions in this package are pure; they never look at state outside of
// their arguments.
package geometry

import (
	"errors"
	"math"
)

// ErrInvalidDelta is returned for rotation steps other than quarter turns.
var ErrInvalidDelta = errors.New("rotation delta must be ±90 or 180")

type Size struct {
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Empty reports whether the size has no area.
func (s Size) Empty() bool {
	return s.W <= 0 || s.H <= 0
}

// Matches reports whether s and o are the same size up to rounding.
func (s Size) Matches(o Size) bool {
	const eps = 1e-6
	return math.Abs(s.W-o.W) < eps && math.Abs(s.H-o.H) < eps
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is a page box in document points.
type Rect struct {
	LLX, LLY, URX, URY float64
}

func (r Rect) Width() float64  { return math.Abs(r.URX - r.LLX) }
func (r Rect) Height() float64 { return math.Abs(r.URY - r.LLY) }

// NormalizeDelta folds a rotation step into one of 90, -90 or 180.
func NormalizeDelta(delta int) (int, error) {
	switch delta {
	case 90, -270:
		return 90, nil
	case -90, 270:
		return -90, nil
	case 180, -180:
		return 180, nil
	}
	return 0, ErrInvalidDelta
}

// AddDegrees adds delta to rotation and folds the result into [0, 360).
func AddDegrees(rotation, delta int) int {
	r := (rotation + delta) % 360
	if r < 0 {
		r += 360
	}
	return r
}

// RotatedCanvas returns the canvas size after the page is rotated by delta.
// The renderer always refits to the available width, so a quarter turn
// keeps W and swaps the aspect ratio.
func RotatedCanvas(s Size, delta int) Size {
	if delta == 180 {
		return s
	}
	return Size{W: s.W, H: s.W * s.W / s.H}
}

// RotatePoint moves p, given on a canvas of size s, to the spot it occupies
// after the page has been rotated by delta. delta must already be
// normalised.
func RotatePoint(p Point, s Size, delta int) Point {
	xn := p.X / s.W
	yn := p.Y / s.H
	n := RotatedCanvas(s, delta)
	switch delta {
	case 90:
		return Point{X: (1 - yn) * n.W, Y: xn * n.H}
	case -90:
		return Point{X: yn * n.W, Y: (1 - xn) * n.H}
	default:
		return Point{X: (1 - xn) * n.W, Y: (1 - yn) * n.H}
	}
}

// ProportionalToPoints converts canvas pixels to document points by plain
// proportion. It is the fallback when no current viewport exists and
// ignores any page rotation.
func ProportionalToPoints(p Point, canvas, page Size) Point {
	return Point{
		X: p.X / canvas.W * page.W,
		Y: page.H - p.Y/canvas.H*page.H,
	}
}

// DrawAngle is the angle an overlay must be drawn at inside a page whose
// /Rotate is already pageRotation, so that the page rotation is not
// applied twice.
func DrawAngle(overlayRotation, pageRotation int) int {
	return AddDegrees(overlayRotation, -pageRotation)
}

// MinAvailableWidth is the smallest container width a page is fitted to.
const MinAvailableWidth = 100

// FitScale returns the render scale that fits natural (page size at scale
// 1, already rotated) into the available width, bounded by maxW and maxH.
func FitScale(natural Size, available, maxW, maxH float64) float64 {
	if available < MinAvailableWidth {
		available = MinAvailableWidth
	}
	scale := math.Min(available, maxW) / natural.W
	if natural.H*scale > maxH {
		scale = maxH / natural.H
	}
	return scale
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
