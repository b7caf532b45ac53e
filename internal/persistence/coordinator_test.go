package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tilequest/missionengine/pkg/core"
)

func TestCoordinator_TakeIsOneShot(t *testing.T) {
	c := NewCoordinator()
	_, ok := c.Take()
	assert.False(t, ok, "nothing captured")

	tree := core.Tree{core.KeyCompletedMissions: []any{1}}
	c.Capture(tree)
	assert.True(t, c.Pending())

	pending, ok := c.PendingTree()
	assert.True(t, ok)
	assert.Equal(t, tree, pending)

	got, ok := c.Take()
	assert.True(t, ok)
	assert.Equal(t, tree, got)

	_, ok = c.Take()
	assert.False(t, ok)
	assert.False(t, c.Pending())
}

func TestCoordinator_DirtyTracking(t *testing.T) {
	c := NewCoordinator()
	assert.False(t, c.Dirty())

	c.MarkDirty(4)
	c.MarkDirty(2)
	assert.True(t, c.Dirty())
	assert.Equal(t, []int{2, 4}, c.DirtyIDs())

	c.ClearDirty()
	assert.False(t, c.Dirty())

	c.Touch()
	assert.True(t, c.Dirty())

	c.Capture(core.Tree{})
	c.Reset()
	assert.False(t, c.Dirty())
	assert.False(t, c.Pending())
}
