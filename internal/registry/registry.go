package registry

import (
	"sort"
	"sync"

	"github.com/tilequest/missionengine/internal/mission"
)

// Registry caches the live mission instances of one ownership scope.
// Instances carry per-world state and must be dropped with ClearCache when
// the world unloads.
type Registry struct {
	defs *Definitions

	mu   sync.Mutex
	live map[int]*mission.Mission

	// onCreate binds a fresh instance to its scope before it is cached.
	onCreate func(*mission.Mission)
}

// New creates a Registry over defs. onCreate may be nil.
func New(defs *Definitions, onCreate func(*mission.Mission)) *Registry {
	return &Registry{
		defs:     defs,
		live:     make(map[int]*mission.Mission),
		onCreate: onCreate,
	}
}

// Definitions returns the shared definition table.
func (r *Registry) Definitions() *Definitions {
	return r.defs
}

// GetOrCreate returns the cached instance for id, instantiating it from its
// definition on first use. Unknown ids return false.
func (r *Registry) GetOrCreate(id int) (*mission.Mission, bool) {
	r.mu.Lock()
	if m, ok := r.live[id]; ok {
		r.mu.Unlock()
		return m, true
	}
	r.mu.Unlock()

	def, ok := r.defs.Lookup(id)
	if !ok {
		return nil, false
	}
	m := mission.New(def)
	if r.onCreate != nil {
		r.onCreate(m)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.live[id]; ok {
		return existing, true
	}
	r.live[id] = m
	return m, true
}

// Get returns the cached instance for id without creating one.
func (r *Registry) Get(id int) (*mission.Mission, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.live[id]
	return m, ok
}

// All returns the cached instances ordered by id.
func (r *Registry) All() []*mission.Mission {
	r.mu.Lock()
	out := make([]*mission.Mission, 0, len(r.live))
	for _, m := range r.live {
		out = append(out, m)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of cached instances.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// ClearCache drops every cached instance.
func (r *Registry) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live = make(map[int]*mission.Mission)
}
