package geo

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"gopkg.in/yaml.v3"
)

// Region is an area of the world classified by kind ("desert", "cave").
type Region struct {
	Name  string
	Kind  string
	Shape geom.Polygon
}

// Contains reports whether x,y lies inside or on the boundary of the
// region. Non-finite positions are never inside.
func (r Region) Contains(x, y float64) bool {
	pt, err := NewPoint(x, y)
	if err != nil {
		return false
	}
	return geom.Intersects(r.Shape.AsGeometry(), pt.AsGeometry())
}

type regionFile struct {
	Regions []struct {
		Name    string      `yaml:"name"`
		Kind    string      `yaml:"kind"`
		Polygon [][]float64 `yaml:"polygon"`
	} `yaml:"regions"`
}

// LoadRegions reads a YAML document with a top-level "regions" list.
func LoadRegions(r io.Reader) ([]Region, error) {
	var f regionFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding regions: %w", err)
	}

	out := make([]Region, 0, len(f.Regions))
	var errs []error
	for i, raw := range f.Regions {
		kind := strings.ToLower(strings.TrimSpace(raw.Kind))
		if kind == "" {
			errs = append(errs, fmt.Errorf("region %d (%s): kind is empty", i, raw.Name))
			continue
		}
		shape, err := NewPolygon(raw.Polygon)
		if err != nil {
			errs = append(errs, fmt.Errorf("region %d (%s): %w", i, raw.Name, err))
			continue
		}
		out = append(out, Region{Name: raw.Name, Kind: kind, Shape: shape})
	}
	return out, errors.Join(errs...)
}

// LoadRegionsFile reads regions from a YAML file.
func LoadRegionsFile(path string) ([]Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening regions: %w", err)
	}
	defer f.Close()
	return LoadRegions(f)
}
