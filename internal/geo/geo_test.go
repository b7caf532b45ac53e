package geo

import (
	"errors"
	"math"
	"testing"
)

func TestPointFromString_Valid(t *testing.T) {
	point, err := PointFromString("100.5, -200.25")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	coords, ok := point.Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if coords.X != 100.5 {
		t.Errorf("expected X=100.5, got %f", coords.X)
	}
	if coords.Y != -200.25 {
		t.Errorf("expected Y=-200.25, got %f", coords.Y)
	}
}

func TestPointFromString_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"single value", "100"},
		{"three values", "1,2,3"},
		{"bad x", "abc,2"},
		{"bad y", "1,abc"},
		{"not a number", "NaN,2"},
		{"infinite", "1,+Inf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			point, err := PointFromString(tt.input)
			if !errors.Is(err, ErrInvalidCoordinates) {
				t.Errorf("expected ErrInvalidCoordinates, got %v", err)
			}
			if !point.IsEmpty() {
				t.Error("expected empty point on error")
			}
		})
	}
}

func TestNewPoint_RejectsNonFinite(t *testing.T) {
	if _, err := NewPoint(3, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, xy := range [][2]float64{{math.NaN(), 0}, {0, math.Inf(-1)}} {
		if _, err := NewPoint(xy[0], xy[1]); !errors.Is(err, ErrInvalidCoordinates) {
			t.Errorf("NewPoint(%v, %v): expected ErrInvalidCoordinates, got %v", xy[0], xy[1], err)
		}
	}
}

func TestParsePolygon_ClosesRing(t *testing.T) {
	poly, err := ParsePolygon("[[0,0],[10,0],[10,10],[0,10]]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ring := poly.ExteriorRing()
	if n := ring.Coordinates().Length(); n != 5 {
		t.Errorf("expected 5 ring points, got %d", n)
	}
	if area := poly.Area(); area != 100 {
		t.Errorf("expected area 100, got %f", area)
	}
}

func TestParsePolygon_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", "nope"},
		{"too few points", "[[0,0],[1,1]]"},
		{"short coordinate", "[[0,0],[1],[1,1]]"},
		{"self intersecting", "[[0,0],[10,10],[10,0],[0,10]]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePolygon(tt.input); err == nil {
				t.Error("expected error")
			}
		})
	}
}
