package registry

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tilequest/missionengine/internal/mission"
)

// ErrNotFound is returned when no definition is registered for an id.
var ErrNotFound = errors.New("mission definition not found")

// Constructor builds a fresh copy of a mission definition.
type Constructor func() mission.Definition

// Definitions is the static table of mission templates, keyed by id.
type Definitions struct {
	mu    sync.RWMutex
	ctors map[int]Constructor
	meta  map[int]bool // id -> mainline
}

// NewDefinitions creates an empty definition table.
func NewDefinitions() *Definitions {
	return &Definitions{
		ctors: make(map[int]Constructor),
		meta:  make(map[int]bool),
	}
}

// Register adds a constructor for id. The constructor is called once here to
// validate the template.
func (d *Definitions) Register(id int, ctor Constructor) error {
	def := ctor()
	if def.ID != id {
		return fmt.Errorf("constructor for mission %d returned id %d", id, def.ID)
	}
	if err := def.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.ctors[id]; ok {
		return fmt.Errorf("mission %d already registered", id)
	}
	d.ctors[id] = ctor
	d.meta[id] = def.Mainline
	return nil
}

// Add registers a fixed template.
func (d *Definitions) Add(def mission.Definition) error {
	return d.Register(def.ID, func() mission.Definition { return def })
}

// SetHooks attaches lifecycle hooks to a registered mission type.
func (d *Definitions) SetHooks(id int, hooks mission.Hooks) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ctor, ok := d.ctors[id]
	if !ok {
		return fmt.Errorf("set hooks on mission %d: %w", id, ErrNotFound)
	}
	d.ctors[id] = func() mission.Definition {
		def := ctor()
		def.Hooks = hooks
		return def
	}
	return nil
}

// Lookup returns the template for id.
func (d *Definitions) Lookup(id int) (mission.Definition, bool) {
	d.mu.RLock()
	ctor, ok := d.ctors[id]
	d.mu.RUnlock()
	if !ok {
		return mission.Definition{}, false
	}
	return ctor(), true
}

// Require is Lookup returning ErrNotFound for unknown ids.
func (d *Definitions) Require(id int) (mission.Definition, error) {
	def, ok := d.Lookup(id)
	if !ok {
		return def, fmt.Errorf("mission %d: %w", id, ErrNotFound)
	}
	return def, nil
}

// IsMainline reports whether id is a registered mainline mission.
func (d *Definitions) IsMainline(id int) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.meta[id]
}

// IDs returns every registered id in ascending order.
func (d *Definitions) IDs() []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]int, 0, len(d.ctors))
	for id := range d.ctors {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Mainline returns the ids of mainline missions in ascending order.
func (d *Definitions) Mainline() []int {
	return d.filter(true)
}

// Sideline returns the ids of sideline missions in ascending order.
func (d *Definitions) Sideline() []int {
	return d.filter(false)
}

func (d *Definitions) filter(mainline bool) []int {
	var out []int
	for _, id := range d.IDs() {
		if d.IsMainline(id) == mainline {
			out = append(out, id)
		}
	}
	return out
}

// Len returns the number of registered definitions.
func (d *Definitions) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.ctors)
}

// Validate checks references between definitions.
func (d *Definitions) Validate() error {
	var errs []error
	for _, id := range d.IDs() {
		def, _ := d.Lookup(id)
		if def.Successor == 0 {
			continue
		}
		if _, ok := d.Lookup(def.Successor); !ok {
			errs = append(errs, fmt.Errorf("mission %d: successor %d is not defined", id, def.Successor))
		}
	}
	return errors.Join(errs...)
}

type definitionFile struct {
	Missions []mission.Definition `yaml:"missions"`
}

// Load reads a YAML document with a top-level "missions" list and
// registers every entry.
func (d *Definitions) Load(r io.Reader) error {
	var f definitionFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decoding definitions: %w", err)
	}
	var errs []error
	for _, def := range f.Missions {
		if err := d.Add(def); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoadFile registers the definitions in a YAML file.
func (d *Definitions) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening definitions: %w", err)
	}
	defer f.Close()
	if err := d.Load(f); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

// LoadPath registers definitions from a file, or from every .yaml/.yml file
// in a directory, in name order.
func (d *Definitions) LoadPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("reading definitions: %w", err)
	}
	if !info.IsDir() {
		return d.LoadFile(path)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("reading definitions dir: %w", err)
	}
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !slices.Contains([]string{".yaml", ".yml"}, filepath.Ext(e.Name())) {
			continue
		}
		if err := d.LoadFile(filepath.Join(path, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
