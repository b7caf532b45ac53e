package mission

import (
	"log/slog"
	"sync"
)

// Context holds the identity and clock of the currently loaded world.
type Context struct {
	mu      sync.RWMutex
	worldID string
	tick    uint64
	ready   bool
}

// NewContext creates a Context with no world loaded.
func NewContext() *Context {
	return &Context{}
}

// WorldID returns the loaded world, or "" if none.
func (c *Context) WorldID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.worldID
}

// Tick returns the number of simulation ticks since the world loaded.
func (c *Context) Tick() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tick
}

// Ready reports whether world generation has finished.
func (c *Context) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// SetWorld records a newly loaded world and resets the clock.
func (c *Context) SetWorld(worldID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.worldID = worldID
	c.tick = 0
	c.ready = false
}

// MarkReady flags the world as fully initialized.
func (c *Context) MarkReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = true
}

// Advance increments the tick counter and returns the new value.
func (c *Context) Advance() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick++
	return c.tick
}

// Clear forgets the loaded world.
func (c *Context) Clear() {
	c.SetWorld("")
}

// Attrs returns log attributes describing the world, for logging.ContextHandler.
func (c *Context) Attrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.worldID == "" {
		return nil
	}
	return []slog.Attr{
		slog.String("world", c.worldID),
		slog.Uint64("tick", c.tick),
	}
}
