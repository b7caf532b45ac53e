package mission

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/tilequest/missionengine/pkg/core"
)

// Hooks let a mission type attach behavior to its lifecycle.
type Hooks struct {
	OnStart             func(m *Mission)
	OnObjectiveComplete func(m *Mission, o *Objective)
	OnComplete          func(m *Mission)
	// SuccessorReady decides whether the successor may be unlocked now.
	// It is asked again on every tick until it returns true.
	SuccessorReady func(m *Mission) bool
}

// ObjectiveDef is the template of one objective.
type ObjectiveDef struct {
	Trigger `yaml:",inline"`

	Description string `yaml:"description"`
	Required    int    `yaml:"required"`
	Hidden      bool   `yaml:"hidden,omitempty"`

	Visible func(*Mission) bool `yaml:"-"`
}

// SetDef is the template of one objective set.
type SetDef struct {
	Objectives []ObjectiveDef `yaml:"objectives"`
}

// Definition is an immutable mission template.
type Definition struct {
	ID                  int             `yaml:"id"`
	Name                string          `yaml:"name"`
	Description         string          `yaml:"description"`
	Mainline            bool            `yaml:"mainline"`
	Provider            core.ProviderID `yaml:"provider"`
	Successor           int             `yaml:"successor,omitempty"`
	AutoUnlockSuccessor bool            `yaml:"autoUnlockSuccessor,omitempty"`
	StartUnlocked       bool            `yaml:"startUnlocked,omitempty"`
	Reward              core.Reward     `yaml:"reward"`
	Sets                []SetDef        `yaml:"sets"`

	Hooks Hooks `yaml:"-"`
}

// Validate checks the template for problems that would break play or
// save-data reconciliation.
func (d Definition) Validate() error {
	var errs []error
	if d.ID <= 0 {
		errs = append(errs, fmt.Errorf("mission id must be positive, got %d", d.ID))
	}
	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, fmt.Errorf("mission %d: name is empty", d.ID))
	}
	if d.Successor == d.ID && d.ID != 0 {
		errs = append(errs, fmt.Errorf("mission %d: successor is itself", d.ID))
	}
	if len(d.Sets) == 0 {
		errs = append(errs, fmt.Errorf("mission %d: no objective sets", d.ID))
	}
	for si, s := range d.Sets {
		if len(s.Objectives) == 0 {
			errs = append(errs, fmt.Errorf("mission %d set %d: no objectives", d.ID, si))
		}
		seen := make(map[string]bool, len(s.Objectives))
		for oi, o := range s.Objectives {
			key := strings.ToLower(strings.TrimSpace(o.Description))
			switch {
			case key == "":
				errs = append(errs, fmt.Errorf("mission %d set %d objective %d: description is empty", d.ID, si, oi))
			case seen[key]:
				errs = append(errs, fmt.Errorf("mission %d set %d: duplicate objective %q", d.ID, si, o.Description))
			}
			seen[key] = true
			if o.Required < 0 {
				errs = append(errs, fmt.Errorf("mission %d set %d objective %q: required must not be negative", d.ID, si, o.Description))
			}
			if o.On != "" && !slices.Contains(core.EventKinds, o.On) {
				errs = append(errs, fmt.Errorf("mission %d set %d objective %q: unknown trigger %q", d.ID, si, o.Description, o.On))
			}
		}
	}
	return errors.Join(errs...)
}

// New instantiates a live mission from d. Objective state is copied so that
// two instances never share mutable state.
func New(d Definition) *Mission {
	m := &Mission{
		ID:                  d.ID,
		Name:                d.Name,
		Description:         d.Description,
		Mainline:            d.Mainline,
		Provider:            d.Provider,
		Successor:           d.Successor,
		AutoUnlockSuccessor: d.AutoUnlockSuccessor,
		Reward: core.Reward{
			Items:  slices.Clone(d.Reward.Items),
			Points: d.Reward.Points,
		},
		Sets:         make([]*ObjectiveSet, 0, len(d.Sets)),
		Progress:     core.ProgressInactive,
		Availability: core.AvailabilityLocked,
		hooks:        d.Hooks,
		host:         nopHost{},
	}
	for _, sd := range d.Sets {
		set := &ObjectiveSet{Objectives: make([]*Objective, 0, len(sd.Objectives))}
		for _, od := range sd.Objectives {
			req := od.Required
			if req <= 0 {
				req = 1
			}
			set.Objectives = append(set.Objectives, &Objective{
				Description:   od.Description,
				RequiredCount: req,
				IsVisible:     !od.Hidden,
				Trigger:       od.Trigger,
				visible:       od.Visible,
			})
		}
		m.Sets = append(m.Sets, set)
	}
	return m
}
