package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestNormalizeDelta(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{90, 90}, {-270, 90},
		{-90, -90}, {270, -90},
		{180, 180}, {-180, 180},
	}
	for _, tt := range tests {
		got, err := NormalizeDelta(tt.in)
		if err != nil {
			t.Fatalf("NormalizeDelta(%d): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("NormalizeDelta(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
	for _, bad := range []int{0, 45, 360, 91} {
		if _, err := NormalizeDelta(bad); !errors.Is(err, ErrInvalidDelta) {
			t.Errorf("NormalizeDelta(%d) error = %v, want ErrInvalidDelta", bad, err)
		}
	}
}

func TestAddDegrees(t *testing.T) {
	tests := []struct{ rot, delta, want int }{
		{0, 90, 90},
		{0, -90, 270},
		{270, 90, 0},
		{90, 180, 270},
		{180, -270, 270},
	}
	for _, tt := range tests {
		if got := AddDegrees(tt.rot, tt.delta); got != tt.want {
			t.Errorf("AddDegrees(%d, %d) = %d, want %d", tt.rot, tt.delta, got, tt.want)
		}
	}
}

func TestRotatePointCentre(t *testing.T) {
	s := Size{W: 600, H: 800}
	got := RotatePoint(Point{X: 300, Y: 400}, s, 90)
	if diff := cmp.Diff(Point{X: 300, Y: 225}, got, approx); diff != "" {
		t.Errorf("centre after +90 (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Size{W: 600, H: 450}, RotatedCanvas(s, 90), approx); diff != "" {
		t.Errorf("canvas after +90 (-want +got):\n%s", diff)
	}
}

func TestRotatePointCorners(t *testing.T) {
	s := Size{W: 600, H: 800}
	n := RotatedCanvas(s, 90)

	// top-left of an upright page ends up top-right after a clockwise turn
	got := RotatePoint(Point{X: 0, Y: 0}, s, 90)
	if diff := cmp.Diff(Point{X: n.W, Y: 0}, got, approx); diff != "" {
		t.Errorf("+90 top-left (-want +got):\n%s", diff)
	}
	// and bottom-left after a counter-clockwise turn
	got = RotatePoint(Point{X: 0, Y: 0}, s, -90)
	if diff := cmp.Diff(Point{X: 0, Y: n.H}, got, approx); diff != "" {
		t.Errorf("-90 top-left (-want +got):\n%s", diff)
	}
	got = RotatePoint(Point{X: 100, Y: 50}, s, 180)
	if diff := cmp.Diff(Point{X: 500, Y: 750}, got, approx); diff != "" {
		t.Errorf("180 (-want +got):\n%s", diff)
	}
}

func TestRotateRoundTrip(t *testing.T) {
	points := []Point{{0, 0}, {123.4, 567.8}, {600, 800}, {17, 799}}
	sizes := []Size{{600, 800}, {800, 600}, {500, 500}, {612, 1008}}

	for _, s := range sizes {
		for _, p := range points {
			if p.X > s.W || p.Y > s.H {
				continue
			}
			// +90 then -90
			s1 := RotatedCanvas(s, 90)
			p1 := RotatePoint(p, s, 90)
			p2 := RotatePoint(p1, s1, -90)
			s2 := RotatedCanvas(s1, -90)
			if diff := cmp.Diff(p, p2, approx); diff != "" {
				t.Errorf("±90 round trip of %v on %v (-want +got):\n%s", p, s, diff)
			}
			if diff := cmp.Diff(s, s2, approx); diff != "" {
				t.Errorf("±90 canvas round trip on %v (-want +got):\n%s", s, diff)
			}

			// four quarter turns
			q, qs, rot := p, s, 0
			for range 4 {
				q = RotatePoint(q, qs, 90)
				qs = RotatedCanvas(qs, 90)
				rot = AddDegrees(rot, 90)
			}
			if diff := cmp.Diff(p, q, approx); diff != "" {
				t.Errorf("4×90 round trip of %v on %v (-want +got):\n%s", p, s, diff)
			}
			if rot != 0 {
				t.Errorf("rotation after four turns = %d", rot)
			}
		}
	}
}

func TestProportionalToPoints(t *testing.T) {
	got := ProportionalToPoints(Point{X: 100, Y: 50}, Size{W: 500, H: 700}, Size{W: 500, H: 700})
	if diff := cmp.Diff(Point{X: 100, Y: 650}, got, approx); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	got = ProportionalToPoints(Point{X: 250, Y: 350}, Size{W: 250, H: 350}, Size{W: 500, H: 700})
	if diff := cmp.Diff(Point{X: 500, Y: 0}, got, approx); diff != "" {
		t.Errorf("scaled corner (-want +got):\n%s", diff)
	}
}

func TestDrawAngle(t *testing.T) {
	tests := []struct{ ov, page, want int }{
		{0, 0, 0},
		{90, 90, 0},
		{0, 90, 270},
		{180, 90, 90},
		{270, 0, 270},
	}
	for _, tt := range tests {
		if got := DrawAngle(tt.ov, tt.page); got != tt.want {
			t.Errorf("DrawAngle(%d, %d) = %d, want %d", tt.ov, tt.page, got, tt.want)
		}
	}
}

func TestFitScale(t *testing.T) {
	tests := []struct {
		name      string
		natural   Size
		available float64
		want      float64
	}{
		{"fit width", Size{W: 612, H: 792}, 900, 900.0 / 612},
		{"bounded by max width", Size{W: 792, H: 612}, 5000, 1600.0 / 792},
		{"width bound then height bound", Size{W: 612, H: 792}, 5000, 2000.0 / 792},
		{"bounded by max height", Size{W: 100, H: 5000}, 800, 2000.0 / 5000},
		{"tiny container", Size{W: 500, H: 700}, 10, 100.0 / 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FitScale(tt.natural, tt.available, 1600, 2000)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("FitScale = %v, want %v", got, tt.want)
			}
		})
	}
}
