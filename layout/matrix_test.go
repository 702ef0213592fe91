package layout

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func almost(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestTransformPoint(t *testing.T) {
	tests := []struct {
		name string
		m    Matrix
		p    Point
		want Point
	}{
		{"identity", Identity(), Point{3, 4}, Point{3, 4}},
		{"translate", Translate(10, -5), Point{1, 2}, Point{11, -3}},
		{"scale", Scale(2, 3), Point{4, 5}, Point{8, 15}},
		{"rotate 90deg", Rotate(math.Pi / 2), Point{1, 0}, Point{0, 1}},
		{"shear x", Shear(0.5, 0), Point{2, 4}, Point{4, 4}},
		{"shear y", Shear(0, 0.5), Point{2, 4}, Point{2, 5}},
		{"perspective divide", Perspective(0.001, 0), Point{100, 50}, Point{100 / 1.1, 50 / 1.1}},
		{"translate after scale", Translate(10, 0).Multiply(Scale(2, 2)), Point{1, 1}, Point{12, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.m.TransformPoint(tt.p)
			if !almost(got.X, tt.want.X) || !almost(got.Y, tt.want.Y) {
				t.Errorf("TransformPoint(%+v) = %+v, want %+v", tt.p, got, tt.want)
			}
		})
	}
}

func TestTransformPointOnHorizon(t *testing.T) {
	m := Perspective(-0.01, 0)
	p := Point{100, 7} // denominator -0.01*100 + 1 = 0
	got := m.TransformPoint(p)
	if got != p {
		t.Errorf("TransformPoint(%+v) on horizon = %+v, want unchanged", p, got)
	}
}

func TestInvertRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		m    Matrix
	}{
		{"identity", Identity()},
		{"translate", Translate(12, -7)},
		{"scale", Scale(2, 0.5)},
		{"rotate", Rotate(math.Pi / 3)},
		{"shear", Shear(0.3, -0.2)},
		{"perspective", Perspective(0.0005, -0.0003)},
		{"composite", Translate(5, 5).Multiply(Rotate(0.4)).Multiply(Scale(1.5, 2))},
	}
	points := []Point{{0, 0}, {1, 0}, {0, 1}, {13, -4}, {-2.5, 7.75}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := tt.m.Invert()
			for _, p := range points {
				got := inv.TransformPoint(tt.m.TransformPoint(p))
				if !almost(got.X, p.X) || !almost(got.Y, p.Y) {
					t.Errorf("Invert round trip of %+v = %+v, want %+v", p, got, p)
				}
			}
		})
	}
}

func TestInvertSingular(t *testing.T) {
	got := Matrix{}.Invert()
	if !got.IsIdentity() {
		t.Errorf("Invert() of singular matrix = %+v, want identity", got)
	}
}

func TestIsIdentity(t *testing.T) {
	tests := []struct {
		name string
		m    Matrix
		want bool
	}{
		{"identity", Identity(), true},
		{"scale 1,1", Scale(1, 1), true},
		{"translate", Translate(1, 0), false},
		{"perspective", Perspective(0.01, 0), false},
		{"zero matrix", Matrix{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.IsIdentity(); got != tt.want {
				t.Errorf("Matrix%+v.IsIdentity() = %v, want %v", tt.m, got, tt.want)
			}
		})
	}
}

func TestIsAffine(t *testing.T) {
	tests := []struct {
		name string
		m    Matrix
		want bool
	}{
		{"identity", Identity(), true},
		{"translate", Translate(3, 4), true},
		{"rotate", Rotate(1), true},
		{"perspective x", Perspective(0.001, 0), false},
		{"perspective y", Perspective(0, 0.001), false},
		{"composite affine", Translate(1, 2).Multiply(Scale(3, 4)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.IsAffine(); got != tt.want {
				t.Errorf("Matrix%+v.IsAffine() = %v, want %v", tt.m, got, tt.want)
			}
		})
	}
}

func TestMultiplyAssociative(t *testing.T) {
	a := Translate(3, -2)
	b := Rotate(0.7)
	c := Perspective(0.0004, 0.0002)
	p := Point{10, 20}

	left := a.Multiply(b).Multiply(c).TransformPoint(p)
	right := a.Multiply(b.Multiply(c)).TransformPoint(p)
	if !almost(left.X, right.X) || !almost(left.Y, right.Y) {
		t.Errorf("(a*b)*c point = %+v, a*(b*c) point = %+v", left, right)
	}
}
