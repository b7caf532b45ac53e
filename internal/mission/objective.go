package mission

import (
	"strings"
	"time"

	"github.com/tilequest/missionengine/pkg/core"
)

// Trigger selects the events that advance an objective.
type Trigger struct {
	On core.EventKind `yaml:"on"`
	// Target is the tile/entity/item/region kind; empty matches any.
	Target string `yaml:"target,omitempty"`
	// MinDwell only applies to region objectives.
	MinDwell time.Duration `yaml:"minDwell,omitempty"`
}

// Matches reports whether ev should advance an objective with this trigger.
func (t Trigger) Matches(ev core.Event) bool {
	if t.On == "" || ev.Kind() != t.On {
		return false
	}
	if t.Target != "" && !strings.EqualFold(t.Target, ev.Target()) {
		return false
	}
	if t.MinDwell > 0 {
		re, ok := ev.(core.RegionEntered)
		if !ok || re.Dwell < t.MinDwell {
			return false
		}
	}
	return true
}

// Objective is a single countable task.
type Objective struct {
	Description   string
	RequiredCount int
	CurrentCount  int
	IsCompleted   bool
	IsVisible     bool
	Trigger       Trigger

	visible func(*Mission) bool
}

// UpdateProgress adds amount to the current count, clamped to
// [0, RequiredCount]. It returns true only when the objective becomes
// completed by this call. Positive amounts on a completed objective are
// ignored; negative amounts may un-complete it.
func (o *Objective) UpdateProgress(amount int) bool {
	if amount == 0 || (amount > 0 && o.IsCompleted) {
		return false
	}
	was := o.IsCompleted
	o.CurrentCount = clamp(o.CurrentCount+amount, 0, o.RequiredCount)
	o.IsCompleted = o.CurrentCount == o.RequiredCount
	return !was && o.IsCompleted
}

// ShouldBeVisible evaluates the attached visibility predicate, falling back
// to the static flag.
func (o *Objective) ShouldBeVisible(m *Mission) bool {
	if o.visible != nil {
		return o.visible(m)
	}
	return o.IsVisible
}

// Reset zeroes the objective.
func (o *Objective) Reset() {
	o.CurrentCount = 0
	o.IsCompleted = false
}

// Remaining returns how many more counts are needed.
func (o *Objective) Remaining() int {
	return o.RequiredCount - o.CurrentCount
}

// ObjectiveSet is an all-or-nothing group of objectives.
type ObjectiveSet struct {
	Objectives                 []*Objective
	HasCheckedInitialInventory bool
}

// IsCompleted is true when every objective is completed.
func (s *ObjectiveSet) IsCompleted() bool {
	for _, o := range s.Objectives {
		if !o.IsCompleted {
			return false
		}
	}
	return true
}

// Reset zeroes every objective and clears the inventory-checked flag.
func (s *ObjectiveSet) Reset() {
	for _, o := range s.Objectives {
		o.Reset()
	}
	s.HasCheckedInitialInventory = false
}

// TracksInventory reports whether any objective counts acquired items.
func (s *ObjectiveSet) TracksInventory() bool {
	for _, o := range s.Objectives {
		if o.Trigger.On == core.KindItemAcquired {
			return true
		}
	}
	return false
}

// Find returns the index of the objective whose description equals desc,
// ignoring case, or -1.
func (s *ObjectiveSet) Find(desc string) int {
	for i, o := range s.Objectives {
		if strings.EqualFold(o.Description, desc) {
			return i
		}
	}
	return -1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
