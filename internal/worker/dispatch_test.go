package worker

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilequest/missionengine/internal/config"
	"github.com/tilequest/missionengine/internal/dispatcher"
	"github.com/tilequest/missionengine/internal/engine"
	"github.com/tilequest/missionengine/internal/geo"
	"github.com/tilequest/missionengine/internal/registry"
	"github.com/tilequest/missionengine/internal/storage/memory"
)

const definitionsYAML = `
missions:
  - id: 1
    name: Slime Trouble
    mainline: true
    provider: guide
    successor: 2
    autoUnlockSuccessor: true
    startUnlocked: true
    sets:
      - objectives:
          - description: Defeat slimes
            required: 2
            on: entity_defeated
            target: slime
  - id: 2
    name: Gel Stockpile
    mainline: true
    provider: guide
    sets:
      - objectives:
          - description: Collect gel
            required: 3
            on: item_acquired
            target: gel
  - id: 10
    name: Lumber
    provider: carpenter
    startUnlocked: true
    sets:
      - objectives:
          - description: Gather wood
            required: 5
            on: item_acquired
            target: wood
  - id: 11
    name: Desert Trek
    provider: nomad
    startUnlocked: true
    sets:
      - objectives:
          - description: Survive the desert
            on: region_entered
            target: desert
            minDwell: 60s
`

// mockLogger implements dispatcher.Logger for testing
type mockLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *mockLogger) add(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

func (l *mockLogger) Debug(msg string, _ ...any) { l.add(msg) }
func (l *mockLogger) Info(msg string, _ ...any)  { l.add(msg) }
func (l *mockLogger) Error(msg string, _ ...any) { l.add(msg) }

type harness struct {
	d       *dispatcher.Dispatcher
	engine  *engine.Engine
	backend *memory.Backend
}

func newHarness(t *testing.T, positionBuffer int) *harness {
	t.Helper()

	defs := registry.NewDefinitions()
	require.NoError(t, defs.Load(strings.NewReader(definitionsYAML)))

	backend := memory.New(config.MemoryConfig{})
	require.NoError(t, backend.Init())

	tracker := geo.NewTracker(nil, config.RegionConfig{
		Thresholds: map[string][]time.Duration{"desert": {time.Minute}},
	})

	e, err := engine.New(engine.Dependencies{
		Definitions: defs,
		Backend:     backend,
		Regions:     tracker,
	})
	require.NoError(t, err)

	d, err := dispatcher.New(&mockLogger{})
	require.NoError(t, err)

	m := NewManager(Dependencies{Engine: e, PositionBuffer: positionBuffer})
	m.RegisterHandlers(d)
	t.Cleanup(d.Close)

	return &harness{d: d, engine: e, backend: backend}
}

func (h *harness) run(t *testing.T, command string, args ...string) any {
	t.Helper()
	result, err := h.d.Dispatch(dispatcher.Event{Command: command, Args: args})
	require.NoError(t, err, command)
	return result
}

func (h *harness) views(t *testing.T, command string, args ...string) []engine.MissionView {
	t.Helper()
	raw, ok := h.run(t, command, args...).(string)
	require.True(t, ok, "%s returns JSON", command)
	var out []engine.MissionView
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func ids(views []engine.MissionView) []int {
	out := make([]int, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}

func TestRegisterHandlers_CommandSurface(t *testing.T) {
	h := newHarness(t, 0)

	for _, cmd := range []string{
		":WORLD:LOAD:", ":WORLD:READY:", ":WORLD:UNLOAD:",
		":PARTICIPANT:JOIN:", ":PARTICIPANT:LEAVE:",
		":SAVE:", ":TICK:", ":POSITION:", ":REGION:",
		":EVENT:TILE_BROKEN:", ":EVENT:ENTITY_DEFEATED:", ":EVENT:ITEM_ACQUIRED:", ":EVENT:REGION_ENTERED:",
		":MISSION:UNLOCK:", ":MISSION:START:", ":MISSION:COMPLETE:", ":MISSION:RESET:", ":MISSION:PROVIDER:",
		":QUERY:AVAILABLE:", ":QUERY:ACTIVE:", ":QUERY:COMPLETED:", ":QUERY:HAS_PROVIDER:",
		":QUERY:MISSION:", ":QUERY:SNAPSHOT:",
	} {
		assert.True(t, h.d.HasHandler(cmd), cmd)
	}
}

func TestDispatch_MainlineFlow(t *testing.T) {
	h := newHarness(t, 0)

	h.run(t, ":WORLD:LOAD:", `"meadow"`)
	h.run(t, ":WORLD:READY:")
	h.run(t, ":PARTICIPANT:JOIN:", "alice")

	assert.ElementsMatch(t, []int{1, 10, 11}, ids(h.views(t, ":QUERY:AVAILABLE:", "alice")))

	assert.Equal(t, "ok", h.run(t, ":MISSION:START:", "alice", "1"))
	assert.Equal(t, []int{1}, ids(h.views(t, ":QUERY:ACTIVE:", "alice")))

	assert.Equal(t, 1, h.run(t, ":EVENT:ENTITY_DEFEATED:", "alice", "slime"))
	assert.Equal(t, 0, h.run(t, ":EVENT:ENTITY_DEFEATED:", "alice", "bat"))
	assert.Equal(t, 1, h.run(t, ":EVENT:ENTITY_DEFEATED:", "alice", "slime"))

	assert.Equal(t, []int{1}, ids(h.views(t, ":QUERY:COMPLETED:", "alice")))

	report, ok := h.run(t, ":TICK:").(engine.TickReport)
	require.True(t, ok)
	assert.Equal(t, []int{2}, report.Unlocked)
	assert.Contains(t, ids(h.views(t, ":QUERY:AVAILABLE:", "alice")), 2)
	assert.Equal(t, "true", h.run(t, ":QUERY:HAS_PROVIDER:", "alice", "guide"))
}

func TestDispatch_InventoryAndProvider(t *testing.T) {
	h := newHarness(t, 0)

	h.run(t, ":WORLD:LOAD:", "meadow")
	h.run(t, ":WORLD:READY:")
	h.run(t, ":PARTICIPANT:JOIN:", "alice")

	assert.Equal(t, "true", h.run(t, ":QUERY:HAS_PROVIDER:", "alice", "carpenter"))
	h.run(t, ":MISSION:PROVIDER:", "alice", "10", "merchant")
	assert.Equal(t, "false", h.run(t, ":QUERY:HAS_PROVIDER:", "alice", "carpenter"))
	assert.Equal(t, "true", h.run(t, ":QUERY:HAS_PROVIDER:", "alice", "merchant"))

	h.run(t, ":MISSION:START:", "alice", "10")
	h.run(t, ":EVENT:ITEM_ACQUIRED:", "alice", "wood", "3", "tok-1", "true")
	assert.Equal(t, 0, h.run(t, ":EVENT:ITEM_ACQUIRED:", "alice", "wood", "3", "tok-1", "true"), "passive token counts once")

	raw := h.run(t, ":QUERY:MISSION:", "alice", "10").(string)
	var lumber engine.MissionView
	require.NoError(t, json.Unmarshal([]byte(raw), &lumber))
	require.Len(t, lumber.Objectives, 1)
	assert.Equal(t, 3, lumber.Objectives[0].CurrentCount)
}

func TestDispatch_MissionCommandErrors(t *testing.T) {
	h := newHarness(t, 0)

	_, err := h.d.Dispatch(dispatcher.Event{Command: ":MISSION:START:", Args: []string{"alice", "1"}})
	assert.ErrorIs(t, err, engine.ErrNoWorld)

	h.run(t, ":WORLD:LOAD:", "meadow")
	h.run(t, ":WORLD:READY:")

	_, err = h.d.Dispatch(dispatcher.Event{Command: ":MISSION:START:", Args: []string{"alice", "10"}})
	assert.ErrorIs(t, err, engine.ErrUnknownParticipant)

	_, err = h.d.Dispatch(dispatcher.Event{Command: ":MISSION:START:", Args: []string{"alice", "99"}})
	assert.ErrorIs(t, err, registry.ErrNotFound)

	_, err = h.d.Dispatch(dispatcher.Event{Command: ":MISSION:START:", Args: []string{"alice"}})
	assert.Error(t, err, "missing mission id")

	_, err = h.d.Dispatch(dispatcher.Event{Command: ":EVENT:TILE_BROKEN:", Args: []string{"alice", "dirt"}})
	assert.Error(t, err, "missing coordinates")

	_, err = h.d.Dispatch(dispatcher.Event{Command: ":TICK:", Args: []string{"zero"}})
	assert.Error(t, err)
}

func TestDispatch_SaveAndReload(t *testing.T) {
	h := newHarness(t, 0)

	h.run(t, ":WORLD:LOAD:", "meadow")
	h.run(t, ":WORLD:READY:")
	h.run(t, ":PARTICIPANT:JOIN:", "alice")
	h.run(t, ":MISSION:COMPLETE:", "alice", "1")
	h.run(t, ":MISSION:START:", "alice", "10")
	h.run(t, ":SAVE:")
	h.run(t, ":WORLD:UNLOAD:")

	_, err := h.backend.LoadWorld("meadow")
	require.NoError(t, err)

	h.run(t, ":WORLD:LOAD:", "meadow")
	h.run(t, ":PARTICIPANT:JOIN:", "alice")
	h.run(t, ":WORLD:READY:")

	assert.Contains(t, ids(h.views(t, ":QUERY:COMPLETED:", "alice")), 1)
	assert.Contains(t, ids(h.views(t, ":QUERY:ACTIVE:", "alice")), 10)

	var snap map[string]any
	require.NoError(t, json.Unmarshal([]byte(h.run(t, ":QUERY:SNAPSHOT:").(string)), &snap))
	assert.Contains(t, snap, "world")
	assert.Contains(t, snap, "alice")
}

func TestDispatch_RegionStay(t *testing.T) {
	h := newHarness(t, 0)

	h.run(t, ":WORLD:LOAD:", "meadow")
	h.run(t, ":WORLD:READY:")
	h.run(t, ":PARTICIPANT:JOIN:", "alice")
	h.run(t, ":MISSION:START:", "alice", "11")

	assert.Equal(t, 0, h.run(t, ":REGION:", "alice", "desert", "30"))
	assert.Equal(t, 1, h.run(t, ":REGION:", "alice", "desert", "30"))
	assert.Contains(t, ids(h.views(t, ":QUERY:COMPLETED:", "alice")), 11)
}

func TestDispatch_BufferedPositions(t *testing.T) {
	h := newHarness(t, 16)

	h.run(t, ":WORLD:LOAD:", "meadow")
	h.run(t, ":WORLD:READY:")
	h.run(t, ":PARTICIPANT:JOIN:", "alice")

	assert.Equal(t, "queued", h.run(t, ":POSITION:", "alice", "1", "2", "1"))
	assert.Equal(t, "queued", h.run(t, ":REGION:", "alice", "desert", "1"))

	h.d.Close()

	_, err := h.d.Dispatch(dispatcher.Event{Command: ":POSITION:", Args: []string{"alice", "1", "2"}})
	assert.True(t, errors.Is(err, dispatcher.ErrClosed))
}
