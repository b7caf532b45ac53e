package registry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilequest/missionengine/internal/mission"
)

func loaded(t *testing.T) *Definitions {
	t.Helper()
	defs := NewDefinitions()
	require.NoError(t, defs.Load(strings.NewReader(sampleYAML)))
	return defs
}

func TestRegistry_GetOrCreateCaches(t *testing.T) {
	created := 0
	r := New(loaded(t), func(*mission.Mission) { created++ })

	a, ok := r.GetOrCreate(1)
	require.True(t, ok)
	b, ok := r.GetOrCreate(1)
	require.True(t, ok)

	assert.Same(t, a, b)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_UnknownIDIsNotAnError(t *testing.T) {
	r := New(loaded(t), nil)

	m, ok := r.GetOrCreate(404)
	assert.False(t, ok)
	assert.Nil(t, m)

	_, ok = r.Get(1)
	assert.False(t, ok, "Get never instantiates")
}

func TestRegistry_ScopesDoNotShareState(t *testing.T) {
	defs := loaded(t)
	world1 := New(defs, nil)
	world2 := New(defs, nil)

	a, _ := world1.GetOrCreate(1)
	b, _ := world2.GetOrCreate(1)
	a.Sets[0].Objectives[0].CurrentCount = 2

	assert.NotSame(t, a, b)
	assert.Equal(t, 0, b.Sets[0].Objectives[0].CurrentCount)
}

func TestRegistry_AllAndClear(t *testing.T) {
	r := New(loaded(t), nil)
	r.GetOrCreate(2)
	r.GetOrCreate(1)

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].ID)
	assert.Equal(t, 2, all[1].ID)

	r.ClearCache()
	assert.Equal(t, 0, r.Len())
	fresh, _ := r.GetOrCreate(1)
	assert.NotSame(t, all[0], fresh)
}
