package mission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilequest/missionengine/pkg/core"
)

type recordingHost struct {
	subscribed map[int]bool
	unlocked   []bool
	started    int
	objectives []string
	advanced   int
	completed  int
	changed    int
}

func newRecordingHost() *recordingHost {
	return &recordingHost{subscribed: make(map[int]bool)}
}

func (h *recordingHost) Subscribe(m *Mission)   { h.subscribed[m.ID] = true }
func (h *recordingHost) Unsubscribe(m *Mission) { delete(h.subscribed, m.ID) }
func (h *recordingHost) Unlocked(_ *Mission, announce bool) {
	h.unlocked = append(h.unlocked, announce)
}
func (h *recordingHost) Started(*Mission) { h.started++ }
func (h *recordingHost) ObjectiveCompleted(_ *Mission, o *Objective) {
	h.objectives = append(h.objectives, o.Description)
}
func (h *recordingHost) SetAdvanced(*Mission) { h.advanced++ }
func (h *recordingHost) Completed(*Mission)   { h.completed++ }
func (h *recordingHost) Changed(*Mission)     { h.changed++ }

func oneSetDef() Definition {
	return Definition{
		ID:   1,
		Name: "Getting Started",
		Sets: []SetDef{{Objectives: []ObjectiveDef{
			{Description: "Chop a tree", Required: 1, Trigger: Trigger{On: core.KindTileBroken, Target: "tree"}},
			{Description: "Craft a bench", Required: 1, Trigger: Trigger{On: core.KindItemCrafted, Target: "bench"}},
		}}},
		Reward: core.Reward{Points: 10},
	}
}

func twoSetDef() Definition {
	return Definition{
		ID:   2,
		Name: "Into the Caves",
		Sets: []SetDef{
			{Objectives: []ObjectiveDef{{Description: "Find the cave", Required: 1, Trigger: Trigger{On: core.KindRegionEntered, Target: "cave"}}}},
			{Objectives: []ObjectiveDef{{Description: "Defeat bats", Required: 3, Trigger: Trigger{On: core.KindEntityDefeated, Target: "bat"}}}},
		},
	}
}

func startedMission(t *testing.T, d Definition) (*Mission, *recordingHost) {
	t.Helper()
	m := New(d)
	h := newRecordingHost()
	m.Attach(h, "alice")
	require.NoError(t, m.Unlock())
	require.NoError(t, m.Start())
	return m, h
}

func TestMission_InitialState(t *testing.T) {
	m := New(oneSetDef())

	assert.Equal(t, core.ProgressInactive, m.Progress)
	assert.Equal(t, core.AvailabilityLocked, m.Availability)
	assert.False(t, m.Unlocked)
	assert.Equal(t, 0, m.CurrentIndex)
	assert.False(t, m.UpdateProgress(0, 1), "inactive missions ignore progress")
}

func TestMission_NewCopiesObjectives(t *testing.T) {
	d := oneSetDef()
	a := New(d)
	b := New(d)

	a.Sets[0].Objectives[0].CurrentCount = 1
	assert.Equal(t, 0, b.Sets[0].Objectives[0].CurrentCount)
	assert.NotSame(t, a.Sets[0], b.Sets[0])
}

func TestMission_ScenarioOneSetCompletes(t *testing.T) {
	m, h := startedMission(t, oneSetDef())
	assert.Equal(t, core.ProgressActive, m.Progress)
	assert.True(t, h.subscribed[m.ID])

	assert.True(t, m.UpdateProgress(0, 1))
	assert.Equal(t, core.ProgressActive, m.Progress)

	assert.True(t, m.UpdateProgress(1, 1))
	assert.Equal(t, core.ProgressCompleted, m.Progress)
	assert.Equal(t, core.AvailabilityCompleted, m.Availability)
	assert.Equal(t, 1, h.completed)
	assert.False(t, h.subscribed[m.ID])
	assert.Equal(t, []string{"Chop a tree", "Craft a bench"}, h.objectives)
}

func TestMission_ScenarioTwoSetsAdvance(t *testing.T) {
	m, h := startedMission(t, twoSetDef())

	assert.True(t, m.UpdateProgress(0, 1))
	assert.Equal(t, 1, m.CurrentIndex)
	assert.Equal(t, core.ProgressActive, m.Progress)
	assert.Equal(t, 1, h.advanced)

	m.UpdateProgress(0, 2)
	assert.Equal(t, core.ProgressActive, m.Progress)
	m.UpdateProgress(0, 1)
	assert.Equal(t, core.ProgressCompleted, m.Progress)
	assert.Equal(t, 1, m.CurrentIndex)
	assert.Equal(t, 1, h.completed)
}

func TestMission_OnlyCurrentSetIsMutable(t *testing.T) {
	m, _ := startedMission(t, twoSetDef())

	assert.False(t, m.UpdateProgress(5, 1))
	assert.False(t, m.UpdateProgress(-1, 1))
	assert.Equal(t, 0, m.Sets[1].Objectives[0].CurrentCount)
}

func TestMission_MonotonicAdvance(t *testing.T) {
	d := Definition{ID: 3, Name: "Three Steps", Sets: []SetDef{
		{Objectives: []ObjectiveDef{{Description: "a", Required: 1}}},
		{Objectives: []ObjectiveDef{{Description: "b", Required: 1}}},
		{Objectives: []ObjectiveDef{{Description: "c", Required: 1}}},
	}}
	m, _ := startedMission(t, d)

	for want := 1; want < 3; want++ {
		m.UpdateProgress(0, 1)
		assert.Equal(t, want, m.CurrentIndex)
		assert.Equal(t, core.ProgressActive, m.Progress)
	}
	m.UpdateProgress(0, 1)
	assert.Equal(t, 2, m.CurrentIndex)
	assert.Equal(t, core.ProgressCompleted, m.Progress)
}

func TestMission_NegativeProgress(t *testing.T) {
	d := Definition{ID: 4, Name: "Hoard", Sets: []SetDef{
		{Objectives: []ObjectiveDef{
			{Description: "Hold gems", Required: 3},
			{Description: "Hold gold", Required: 1},
		}},
	}}
	m, _ := startedMission(t, d)

	m.UpdateProgress(0, 3)
	o := m.Sets[0].Objectives[0]
	require.True(t, o.IsCompleted)

	assert.True(t, m.UpdateProgress(0, -1))
	assert.Equal(t, 2, o.CurrentCount)
	assert.False(t, o.IsCompleted)
}

func TestMission_IdempotentOnCompletedObjective(t *testing.T) {
	d := Definition{ID: 9, Name: "Pair", Sets: []SetDef{{Objectives: []ObjectiveDef{
		{Description: "x", Required: 1},
		{Description: "y", Required: 1},
	}}}}
	m, h := startedMission(t, d)

	require.True(t, m.UpdateProgress(0, 1))
	changed := h.changed
	assert.False(t, m.UpdateProgress(0, 1))
	assert.Equal(t, changed, h.changed)
	assert.Equal(t, 1, m.Sets[0].Objectives[0].CurrentCount)
}

func TestMission_InvalidTransitions(t *testing.T) {
	m := New(oneSetDef())

	assert.ErrorIs(t, m.Start(), ErrInvalidTransition, "locked missions cannot start")
	require.NoError(t, m.Unlock())
	assert.ErrorIs(t, m.Unlock(), ErrInvalidTransition)
	assert.ErrorIs(t, m.Complete(), ErrInvalidTransition, "inactive missions cannot complete")

	require.NoError(t, m.Start())
	assert.ErrorIs(t, m.Start(), ErrInvalidTransition)
	assert.ErrorIs(t, m.Complete(), ErrInvalidTransition, "objectives unfinished")
}

func TestMission_UnlockAnnouncement(t *testing.T) {
	h := newRecordingHost()

	a := New(oneSetDef())
	a.Attach(h, "")
	require.NoError(t, a.Unlock())

	b := New(twoSetDef())
	b.Attach(h, "")
	require.NoError(t, b.UnlockQuietly())

	assert.Equal(t, []bool{true, false}, h.unlocked)
	assert.True(t, b.Unlocked)
	assert.True(t, b.IsAvailable())
}

func TestMission_ResetAndRelock(t *testing.T) {
	m, h := startedMission(t, twoSetDef())
	m.UpdateProgress(0, 1)
	m.UpdateProgress(0, 2)

	m.Reset()
	assert.Equal(t, core.ProgressInactive, m.Progress)
	assert.Equal(t, core.AvailabilityUnlocked, m.Availability)
	assert.Equal(t, 0, m.CurrentIndex)
	assert.Equal(t, 0, m.Sets[1].Objectives[0].CurrentCount)
	assert.False(t, h.subscribed[m.ID])

	require.NoError(t, m.Start())
	m.Relock()
	assert.Equal(t, core.AvailabilityLocked, m.Availability)
	assert.False(t, m.Unlocked)
}

func TestMission_HandleEvent(t *testing.T) {
	m, _ := startedMission(t, twoSetDef())

	assert.False(t, m.HandleEvent(core.EntityDefeated{Entity: "bat"}), "bats belong to the next set")
	assert.True(t, m.HandleEvent(core.RegionEntered{Region: "cave"}))
	assert.Equal(t, 1, m.CurrentIndex)

	assert.True(t, m.HandleEvent(core.EntityDefeated{Base: core.Base{Amount: 2}, Entity: "bat"}))
	assert.Equal(t, 2, m.Sets[1].Objectives[0].CurrentCount)
	assert.False(t, m.HandleEvent(core.EntityDefeated{Entity: "slime"}))
	assert.True(t, m.HandleEvent(core.EntityDefeated{Entity: "BAT"}))
	assert.True(t, m.IsCompleted())
}

func TestMission_Hooks(t *testing.T) {
	var calls []string
	d := oneSetDef()
	d.Hooks = Hooks{
		OnStart:             func(*Mission) { calls = append(calls, "start") },
		OnObjectiveComplete: func(_ *Mission, o *Objective) { calls = append(calls, o.Description) },
		OnComplete:          func(*Mission) { calls = append(calls, "complete") },
	}
	m, _ := startedMission(t, d)
	m.UpdateProgress(0, 1)
	m.UpdateProgress(1, 1)

	assert.Equal(t, []string{"start", "Chop a tree", "Craft a bench", "complete"}, calls)
}

func TestMission_HookResetStopsAdvance(t *testing.T) {
	d := twoSetDef()
	d.Hooks.OnObjectiveComplete = func(m *Mission, _ *Objective) { m.Reset() }
	m, _ := startedMission(t, d)

	assert.True(t, m.UpdateProgress(0, 1))
	assert.Equal(t, 0, m.CurrentIndex)
	assert.Equal(t, core.ProgressInactive, m.Progress)
}

func TestMission_SuccessorReady(t *testing.T) {
	d := oneSetDef()
	d.Successor = 2
	m, _ := startedMission(t, d)
	assert.False(t, m.SuccessorReady(), "not completed yet")

	m.UpdateProgress(0, 1)
	m.UpdateProgress(1, 1)
	assert.False(t, m.SuccessorReady(), "no hook and no auto unlock")

	m.AutoUnlockSuccessor = true
	assert.True(t, m.SuccessorReady())

	m.hooks.SuccessorReady = func(*Mission) bool { return false }
	assert.False(t, m.SuccessorReady())
}

func TestMission_MarkCompleted(t *testing.T) {
	m := New(twoSetDef())
	m.MarkCompleted()

	assert.True(t, m.IsCompleted())
	assert.Equal(t, core.AvailabilityCompleted, m.Availability)
	assert.True(t, m.AllSetsCompleted())
	assert.Equal(t, 1, m.CurrentIndex)
}

func TestMission_Finish(t *testing.T) {
	m, h := startedMission(t, twoSetDef())

	require.NoError(t, m.Finish())
	assert.True(t, m.IsCompleted())
	assert.True(t, m.AllSetsCompleted())
	assert.Equal(t, 1, h.completed)
	assert.Empty(t, h.objectives, "objective callbacks do not fire")

	err := m.Finish()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	idle := New(oneSetDef())
	assert.ErrorIs(t, idle.Finish(), ErrInvalidTransition)
}

func TestMission_InventoryCheck(t *testing.T) {
	d := Definition{ID: 5, Name: "Collector", Sets: []SetDef{
		{Objectives: []ObjectiveDef{{Description: "Hold wood", Required: 10, Trigger: Trigger{On: core.KindItemAcquired, Target: "wood"}}}},
	}}
	m, _ := startedMission(t, d)

	assert.True(t, m.NeedsInventoryCheck())
	m.MarkInventoryChecked()
	assert.False(t, m.NeedsInventoryCheck())
	assert.True(t, m.Sets[0].HasCheckedInitialInventory)
}

func TestMission_VisibleObjectives(t *testing.T) {
	d := Definition{ID: 6, Name: "Secrets", Sets: []SetDef{{Objectives: []ObjectiveDef{
		{Description: "Open the door", Required: 1},
		{Description: "Find the key", Required: 1, Hidden: true},
		{Description: "Read the note", Required: 1, Hidden: true, Visible: func(m *Mission) bool { return m.IsActive() }},
	}}}}
	m, _ := startedMission(t, d)

	visible := m.VisibleObjectives()
	require.Len(t, visible, 2)
	assert.Equal(t, "Open the door", visible[0].Description)
	assert.Equal(t, "Read the note", visible[1].Description)
}
