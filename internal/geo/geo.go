// Package geo holds region shapes and turns participant positions into
// region dwell events.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
)

// Tile positions are planar world coordinates. No projection is applied.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// PointFromString parses a string in the format "x,y" into a point.
func PointFromString(coords string) (geom.Point, error) {
	parts := strings.Split(coords, ",")
	if len(parts) != 2 {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidCoordinates
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidCoordinates
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidCoordinates
	}
	return NewPoint(x, y)
}

// NewPoint returns the point at x,y. Non-finite coordinates are rejected.
func NewPoint(x, y float64) (geom.Point, error) {
	pt, err := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: x, Y: y},
		Type: geom.DimXY,
	})
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}
	return pt, nil
}

// ParsePolygon parses a JSON array of coordinates into a polygon with a
// single outer ring. Input format: "[[x1,y1],[x2,y2],...]". The ring is
// closed if the last point differs from the first.
func ParsePolygon(input string) (geom.Polygon, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return geom.Polygon{}, fmt.Errorf("failed to parse polygon JSON: %w", err)
	}
	return NewPolygon(coords)
}

// NewPolygon builds a polygon from ring coordinates.
func NewPolygon(coords [][]float64) (geom.Polygon, error) {
	if len(coords) < 3 {
		return geom.Polygon{}, fmt.Errorf("polygon must have at least 3 points, got %d", len(coords))
	}

	flat := make([]float64, 0, (len(coords)+1)*2)
	for i, c := range coords {
		if len(c) < 2 {
			return geom.Polygon{}, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		flat = append(flat, c[0], c[1])
	}
	first, last := coords[0], coords[len(coords)-1]
	if first[0] != last[0] || first[1] != last[1] {
		flat = append(flat, first[0], first[1])
	}

	ring, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	if err != nil {
		return geom.Polygon{}, fmt.Errorf("invalid polygon ring: %w", err)
	}
	poly, err := geom.NewPolygon([]geom.LineString{ring})
	if err != nil {
		return geom.Polygon{}, fmt.Errorf("invalid polygon: %w", err)
	}
	return poly, nil
}
