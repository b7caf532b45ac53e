package mission

import (
	"errors"
	"fmt"

	"github.com/tilequest/missionengine/pkg/core"
)

// ErrInvalidTransition is returned when a lifecycle call does not match the
// mission's current state.
var ErrInvalidTransition = errors.New("invalid mission transition")

// Host receives a mission's side effects. The owning scope implements it.
type Host interface {
	Subscribe(m *Mission)
	Unsubscribe(m *Mission)
	Unlocked(m *Mission, announce bool)
	Started(m *Mission)
	ObjectiveCompleted(m *Mission, o *Objective)
	SetAdvanced(m *Mission)
	Completed(m *Mission)
	// Changed marks the mission dirty for the next save.
	Changed(m *Mission)
}

type nopHost struct{}

func (nopHost) Subscribe(*Mission)                      {}
func (nopHost) Unsubscribe(*Mission)                    {}
func (nopHost) Unlocked(*Mission, bool)                 {}
func (nopHost) Started(*Mission)                        {}
func (nopHost) ObjectiveCompleted(*Mission, *Objective) {}
func (nopHost) SetAdvanced(*Mission)                    {}
func (nopHost) Completed(*Mission)                      {}
func (nopHost) Changed(*Mission)                        {}

// Mission is a live quest instance with ordered objective sets.
type Mission struct {
	ID                  int
	Name                string
	Description         string
	Mainline            bool
	Provider            core.ProviderID
	Successor           int
	AutoUnlockSuccessor bool
	Reward              core.Reward

	Sets         []*ObjectiveSet
	CurrentIndex int
	Progress     core.Progress
	Availability core.Availability
	Unlocked     bool

	// Owner is the participant holding a sideline mission; empty for mainline.
	Owner core.ParticipantID

	hooks Hooks
	host  Host
}

func (m *Mission) String() string {
	return fmt.Sprintf("mission %d (%s)", m.ID, m.Name)
}

// Attach binds the mission to the scope that owns it.
func (m *Mission) Attach(h Host, owner core.ParticipantID) {
	if h == nil {
		h = nopHost{}
	}
	m.host = h
	m.Owner = owner
}

// Hooks returns the lifecycle hooks the mission was created with.
func (m *Mission) Hooks() Hooks {
	return m.hooks
}

// HasSuccessor reports whether completing the mission makes another eligible.
func (m *Mission) HasSuccessor() bool {
	return m.Successor > 0
}

// CurrentSet returns the active objective set, or nil if the index is out of range.
func (m *Mission) CurrentSet() *ObjectiveSet {
	if m.CurrentIndex < 0 || m.CurrentIndex >= len(m.Sets) {
		return nil
	}
	return m.Sets[m.CurrentIndex]
}

// CurrentObjectives returns the objectives of the current set.
func (m *Mission) CurrentObjectives() []*Objective {
	if s := m.CurrentSet(); s != nil {
		return s.Objectives
	}
	return nil
}

// VisibleObjectives returns the current objectives a presenter should show.
func (m *Mission) VisibleObjectives() []*Objective {
	var out []*Objective
	for _, o := range m.CurrentObjectives() {
		if o.ShouldBeVisible(m) {
			out = append(out, o)
		}
	}
	return out
}

// AllSetsCompleted reports whether every objective set is completed.
func (m *Mission) AllSetsCompleted() bool {
	for _, s := range m.Sets {
		if !s.IsCompleted() {
			return false
		}
	}
	return true
}

// IsActive is shorthand for Progress == Active.
func (m *Mission) IsActive() bool {
	return m.Progress == core.ProgressActive
}

// IsAvailable reports whether the mission is unlocked but not yet started.
func (m *Mission) IsAvailable() bool {
	return m.Availability == core.AvailabilityUnlocked && m.Progress == core.ProgressInactive
}

// IsCompleted is shorthand for Progress == Completed.
func (m *Mission) IsCompleted() bool {
	return m.Progress == core.ProgressCompleted
}

// Unlock makes a locked mission available and announces it.
func (m *Mission) Unlock() error {
	return m.unlock(true)
}

// UnlockQuietly makes a locked mission available without an announcement.
func (m *Mission) UnlockQuietly() error {
	return m.unlock(false)
}

func (m *Mission) unlock(announce bool) error {
	if m.Availability != core.AvailabilityLocked {
		return fmt.Errorf("%w: unlock %s while %s", ErrInvalidTransition, m, m.Availability)
	}
	m.Availability = core.AvailabilityUnlocked
	m.Unlocked = true
	m.host.Unlocked(m, announce)
	m.host.Changed(m)
	return nil
}

// Start activates an unlocked, inactive mission and subscribes it to events.
func (m *Mission) Start() error {
	if m.Availability != core.AvailabilityUnlocked || m.Progress != core.ProgressInactive {
		return fmt.Errorf("%w: start %s while %s/%s", ErrInvalidTransition, m, m.Availability, m.Progress)
	}
	if len(m.Sets) == 0 {
		return fmt.Errorf("%w: start %s without objective sets", ErrInvalidTransition, m)
	}
	m.Progress = core.ProgressActive
	m.host.Subscribe(m)
	if m.hooks.OnStart != nil {
		m.hooks.OnStart(m)
	}
	m.host.Changed(m)
	m.host.Started(m)
	return nil
}

// UpdateProgress adds amount to the objective at index within the current
// set. It completes the set and the mission as they fill up and returns
// whether any state changed.
func (m *Mission) UpdateProgress(index, amount int) bool {
	if m.Progress != core.ProgressActive {
		return false
	}
	set := m.CurrentSet()
	if set == nil || index < 0 || index >= len(set.Objectives) {
		return false
	}
	o := set.Objectives[index]
	before := o.CurrentCount
	done := o.UpdateProgress(amount)
	if !done && o.CurrentCount == before {
		return false
	}
	m.host.Changed(m)

	if done {
		m.host.ObjectiveCompleted(m, o)
		if m.hooks.OnObjectiveComplete != nil {
			m.hooks.OnObjectiveComplete(m, o)
		}
	}
	// a hook may have reset or completed the mission
	if m.Progress != core.ProgressActive || m.CurrentSet() != set || !set.IsCompleted() {
		return true
	}

	if m.CurrentIndex < len(m.Sets)-1 {
		m.CurrentIndex++
		m.host.Changed(m)
		m.host.SetAdvanced(m)
		return true
	}
	if m.AllSetsCompleted() {
		_ = m.Complete()
	}
	return true
}

// HandleEvent advances every objective of the current set whose trigger
// matches ev. Delivery stops once the set advances. It returns whether any
// state changed.
func (m *Mission) HandleEvent(ev core.Event) bool {
	if m.Progress != core.ProgressActive {
		return false
	}
	set := m.CurrentSet()
	if set == nil {
		return false
	}
	var matched []int
	for i, o := range set.Objectives {
		if o.Trigger.Matches(ev) {
			matched = append(matched, i)
		}
	}
	changed := false
	for _, i := range matched {
		if m.CurrentSet() != set {
			break
		}
		if m.UpdateProgress(i, ev.Count()) {
			changed = true
		}
	}
	return changed
}

// Complete finishes an active mission whose sets are all completed.
func (m *Mission) Complete() error {
	if m.Progress != core.ProgressActive {
		return fmt.Errorf("%w: complete %s while %s", ErrInvalidTransition, m, m.Progress)
	}
	if !m.AllSetsCompleted() {
		return fmt.Errorf("%w: complete %s with unfinished objectives", ErrInvalidTransition, m)
	}
	m.Progress = core.ProgressCompleted
	m.Availability = core.AvailabilityCompleted
	m.host.Unsubscribe(m)
	if m.hooks.OnComplete != nil {
		m.hooks.OnComplete(m)
	}
	m.host.Changed(m)
	m.host.Completed(m)
	return nil
}

// Reset returns the mission to Inactive with zeroed objectives. Availability
// is left to the caller.
func (m *Mission) Reset() {
	m.host.Unsubscribe(m)
	m.Progress = core.ProgressInactive
	m.CurrentIndex = 0
	for _, s := range m.Sets {
		s.Reset()
	}
	m.host.Changed(m)
}

// Relock resets the mission and locks it again.
func (m *Mission) Relock() {
	m.Reset()
	m.Availability = core.AvailabilityLocked
	m.Unlocked = false
}

// MarkCompleted puts the mission straight into its terminal state without
// side effects. Used when restoring completed ids from save data.
func (m *Mission) MarkCompleted() {
	m.fill()
	m.Progress = core.ProgressCompleted
	m.Availability = core.AvailabilityCompleted
	m.Unlocked = true
}

// Finish fills every objective of an active mission and completes it. No
// objective hooks fire. Hosts use it for administrative completion.
func (m *Mission) Finish() error {
	if m.Progress != core.ProgressActive {
		return fmt.Errorf("%w: finish %s while %s", ErrInvalidTransition, m, m.Progress)
	}
	m.fill()
	m.host.Changed(m)
	return m.Complete()
}

func (m *Mission) fill() {
	for _, s := range m.Sets {
		for _, o := range s.Objectives {
			o.CurrentCount = o.RequiredCount
			o.IsCompleted = true
		}
	}
	if len(m.Sets) > 0 {
		m.CurrentIndex = len(m.Sets) - 1
	}
}

// Resume re-subscribes a mission restored in the Active state.
func (m *Mission) Resume() {
	if m.Progress == core.ProgressActive {
		m.host.Subscribe(m)
	}
}

// Settle advances an active mission whose current set is already complete,
// which happens when a definition lowers a requirement between saves. It
// returns whether the mission moved.
func (m *Mission) Settle() bool {
	moved := false
	for m.Progress == core.ProgressActive {
		set := m.CurrentSet()
		if set == nil || !set.IsCompleted() {
			break
		}
		if m.CurrentIndex < len(m.Sets)-1 {
			m.CurrentIndex++
			m.host.Changed(m)
			m.host.SetAdvanced(m)
		} else if m.Complete() != nil {
			break
		}
		moved = true
	}
	return moved
}

// SuccessorReady asks the mission type whether its successor may unlock now.
// Without a hook, AutoUnlockSuccessor decides.
func (m *Mission) SuccessorReady() bool {
	if !m.HasSuccessor() || m.Progress != core.ProgressCompleted {
		return false
	}
	if m.hooks.SuccessorReady != nil {
		return m.hooks.SuccessorReady(m)
	}
	return m.AutoUnlockSuccessor
}

// NeedsInventoryCheck reports whether the current set counts held items and
// has not scanned the inventory yet.
func (m *Mission) NeedsInventoryCheck() bool {
	s := m.CurrentSet()
	return m.Progress == core.ProgressActive && s != nil && !s.HasCheckedInitialInventory && s.TracksInventory()
}

// MarkInventoryChecked records that the current set scanned the inventory.
func (m *Mission) MarkInventoryChecked() {
	if s := m.CurrentSet(); s != nil && !s.HasCheckedInitialInventory {
		s.HasCheckedInitialInventory = true
		m.host.Changed(m)
	}
}
