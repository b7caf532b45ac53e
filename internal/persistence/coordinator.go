package persistence

import (
	"sync"

	"github.com/tilequest/missionengine/internal/cache"
	"github.com/tilequest/missionengine/pkg/core"
)

// Coordinator tracks the persistence state of one scope: the raw tree
// captured at load time, whether it has been applied and which missions
// changed since the last save.
type Coordinator struct {
	mu       sync.Mutex
	pending  core.Tree
	captured bool
	applied  bool
	touched  bool
	dirty    *cache.IDSet
}

// NewCoordinator creates a Coordinator with nothing captured.
func NewCoordinator() *Coordinator {
	return &Coordinator{dirty: cache.NewIDSet()}
}

// Capture stores raw persisted data for a later Take. It does not touch
// live missions.
func (c *Coordinator) Capture(tree core.Tree) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = tree
	c.captured = true
	c.applied = false
}

// Pending reports whether captured data is waiting to be applied.
func (c *Coordinator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.captured && !c.applied
}

// PendingTree returns the captured tree while it is still unapplied.
func (c *Coordinator) PendingTree() (core.Tree, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.captured || c.applied {
		return nil, false
	}
	return c.pending, true
}

// Take hands out the captured tree exactly once.
func (c *Coordinator) Take() (core.Tree, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.captured || c.applied {
		return nil, false
	}
	c.applied = true
	tree := c.pending
	c.pending = nil
	return tree, true
}

// MarkDirty records that mission id changed since the last save.
func (c *Coordinator) MarkDirty(id int) {
	c.dirty.Add(id)
}

// Touch records a scope-level change (completed, notified or ledger sets).
func (c *Coordinator) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touched = true
}

// Dirty reports whether anything changed since the last save.
func (c *Coordinator) Dirty() bool {
	c.mu.Lock()
	touched := c.touched
	c.mu.Unlock()
	return touched || c.dirty.Len() > 0
}

// DirtyIDs returns the changed mission ids in ascending order.
func (c *Coordinator) DirtyIDs() []int {
	return c.dirty.Slice()
}

// ClearDirty is called after a successful save.
func (c *Coordinator) ClearDirty() {
	c.mu.Lock()
	c.touched = false
	c.mu.Unlock()
	c.dirty.Reset()
}

// Reset forgets captured data and dirty state.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.pending = nil
	c.captured = false
	c.applied = false
	c.touched = false
	c.mu.Unlock()
	c.dirty.Reset()
}
