package geometry

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestViewportUpright(t *testing.T) {
	vp := NewViewport(Rect{0, 0, 500, 700}, 1, 0)
	if diff := cmp.Diff(Size{W: 500, H: 700}, vp.Size(), approx); diff != "" {
		t.Fatalf("size (-want +got):\n%s", diff)
	}
	x, y := vp.ToDocumentPoint(100, 50)
	if diff := cmp.Diff(Point{X: 100, Y: 650}, Point{X: x, Y: y}, approx); diff != "" {
		t.Errorf("ToDocumentPoint (-want +got):\n%s", diff)
	}
}

func TestViewportRotated(t *testing.T) {
	box := Rect{0, 0, 600, 800}

	vp := NewViewport(box, 1, 90)
	if diff := cmp.Diff(Size{W: 800, H: 600}, vp.Size(), approx); diff != "" {
		t.Fatalf("size (-want +got):\n%s", diff)
	}
	// document origin sits in the top-left pixel corner after a clockwise turn
	px, py := vp.ToPixel(0, 0)
	if diff := cmp.Diff(Point{}, Point{X: px, Y: py}, approx); diff != "" {
		t.Errorf("origin (-want +got):\n%s", diff)
	}

	vp = NewViewport(box, 0.5, 180)
	px, py = vp.ToPixel(0, 0)
	if diff := cmp.Diff(Point{X: 300, Y: 0}, Point{X: px, Y: py}, approx); diff != "" {
		t.Errorf("180 origin (-want +got):\n%s", diff)
	}

	vp = NewViewport(box, 1, -90)
	if vp.Rotation != 270 {
		t.Errorf("rotation = %d, want 270", vp.Rotation)
	}
}

func TestViewportRoundTrip(t *testing.T) {
	box := Rect{10, 20, 622, 812}
	for _, rot := range []int{0, 90, 180, 270} {
		vp := NewViewport(box, 1.7, rot)
		for _, p := range []Point{{10, 20}, {300, 400}, {622, 812}} {
			px, py := vp.ToPixel(p.X, p.Y)
			if px < -1e-9 || py < -1e-9 || px > vp.Width+1e-9 || py > vp.Height+1e-9 {
				t.Errorf("rot %d: %v maps outside the raster to (%v, %v)", rot, p, px, py)
			}
			x, y := vp.ToDocumentPoint(px, py)
			if diff := cmp.Diff(p, Point{X: x, Y: y}, approx); diff != "" {
				t.Errorf("rot %d round trip (-want +got):\n%s", rot, diff)
			}
		}
	}
}

func TestViewportValid(t *testing.T) {
	if (Viewport{}).Valid() {
		t.Error("zero viewport reported valid")
	}
	if !NewViewport(Rect{0, 0, 10, 10}, 1, 0).Valid() {
		t.Error("built viewport reported invalid")
	}
}
