package logging

import (
	"fmt"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGELFWriter dials a Graylog GELF UDP input. Each Write becomes one
// GELF message, so pair it with a JSON handler (Options.Graylog).
func NewGELFWriter(addr string) (*gelf.Writer, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to graylog at %s: %w", addr, err)
	}
	w.Facility = "missionengine"
	return w, nil
}
