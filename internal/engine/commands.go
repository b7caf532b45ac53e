package engine

import (
	"sort"

	"github.com/tilequest/missionengine/internal/mission"
	"github.com/tilequest/missionengine/pkg/core"
)

// ObjectiveView is a read-only copy of an objective.
type ObjectiveView struct {
	Description   string `json:"description"`
	RequiredCount int    `json:"requiredCount"`
	CurrentCount  int    `json:"currentCount"`
	IsCompleted   bool   `json:"isCompleted"`
}

// MissionView is a read-only copy of a live mission, safe to hold outside
// the engine.
type MissionView struct {
	ID           int               `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Mainline     bool              `json:"mainline"`
	Provider     core.ProviderID   `json:"provider,omitempty"`
	Progress     core.Progress     `json:"progress"`
	Availability core.Availability `json:"availability"`
	SetIndex     int               `json:"setIndex"`
	SetCount     int               `json:"setCount"`
	Successor    int               `json:"successor,omitempty"`
	Reward       core.Reward       `json:"reward"`
	Objectives   []ObjectiveView   `json:"objectives"`
}

func viewOf(m *mission.Mission) MissionView {
	v := MissionView{
		ID:           m.ID,
		Name:         m.Name,
		Description:  m.Description,
		Mainline:     m.Mainline,
		Provider:     m.Provider,
		Progress:     m.Progress,
		Availability: m.Availability,
		SetIndex:     m.CurrentIndex,
		SetCount:     len(m.Sets),
		Successor:    m.Successor,
		Reward:       m.Reward,
	}
	for _, o := range m.VisibleObjectives() {
		v.Objectives = append(v.Objectives, ObjectiveView{
			Description:   o.Description,
			RequiredCount: o.RequiredCount,
			CurrentCount:  o.CurrentCount,
			IsCompleted:   o.IsCompleted,
		})
	}
	return v
}

// listScope is the part of a scope the queries need.
type listScope interface {
	Active() []*mission.Mission
	Available() []*mission.Mission
	CompletedMissions() []*mission.Mission
	HasAvailableFor(provider core.ProviderID) bool
}

// scopesOf returns the world and, if joined, the participant's scope.
func (e *Engine) scopesOf(p core.ParticipantID) []listScope {
	if e.world == nil {
		return nil
	}
	out := []listScope{e.world}
	if ps, ok := e.participants[p]; ok {
		out = append(out, ps)
	}
	return out
}

func (e *Engine) collect(p core.ParticipantID, pick func(listScope) []*mission.Mission) []MissionView {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []MissionView
	for _, s := range e.scopesOf(p) {
		for _, m := range pick(s) {
			out = append(out, viewOf(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AvailableMissions lists the unlocked, not yet started missions visible to p.
func (e *Engine) AvailableMissions(p core.ParticipantID) []MissionView {
	return e.collect(p, listScope.Available)
}

// ActiveMissions lists the missions in progress visible to p.
func (e *Engine) ActiveMissions(p core.ParticipantID) []MissionView {
	return e.collect(p, listScope.Active)
}

// CompletedMissions lists the finished missions visible to p.
func (e *Engine) CompletedMissions(p core.ParticipantID) []MissionView {
	return e.collect(p, listScope.CompletedMissions)
}

// HasAvailableMissionFor reports whether provider offers p a mission that
// can be started.
func (e *Engine) HasAvailableMissionFor(p core.ParticipantID, provider core.ProviderID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, s := range e.scopesOf(p) {
		if s.HasAvailableFor(provider) {
			return true
		}
	}
	return false
}

// GetMission returns mission id as seen by p: the world's instance for
// mainline missions, otherwise p's own instance, created on first use.
// Mainline missions are never created outside the world scope.
func (e *Engine) GetMission(p core.ParticipantID, id int) (MissionView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.world == nil {
		return MissionView{}, false
	}
	if m, ok := e.world.Get(id); ok {
		return viewOf(m), true
	}
	if ps, ok := e.participants[p]; ok {
		if m, ok := ps.Get(id); ok {
			return viewOf(m), true
		}
	}
	return MissionView{}, false
}

// UnlockMission makes mission id available. announce controls whether
// presenters hear about it.
func (e *Engine) UnlockMission(p core.ParticipantID, id int, announce bool) error {
	return e.command(p, id, func(s commandScope) error { return s.Unlock(id, announce) })
}

// StartMission activates mission id.
func (e *Engine) StartMission(p core.ParticipantID, id int) error {
	return e.command(p, id, func(s commandScope) error { return s.Start(id) })
}

// CompleteMission finishes mission id immediately, filling its objectives.
// An unlocked mission is started first.
func (e *Engine) CompleteMission(p core.ParticipantID, id int) error {
	return e.command(p, id, func(s commandScope) error { return s.Complete(id) })
}

// ResetMission returns mission id to Inactive. Completed missions stay
// unlocked.
func (e *Engine) ResetMission(p core.ParticipantID, id int) error {
	return e.command(p, id, func(s commandScope) error { return s.Reset(id) })
}

// AssignProvider changes who offers mission id.
func (e *Engine) AssignProvider(p core.ParticipantID, id int, provider core.ProviderID) error {
	return e.command(p, id, func(s commandScope) error { return s.AssignProvider(id, provider) })
}

func (e *Engine) command(p core.ParticipantID, id int, run func(commandScope) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.scopeFor(p, id)
	if err != nil {
		return err
	}
	if err := run(s); err != nil {
		e.logger.Warn("mission command failed", "mission", id, "participant", p, "error", err)
		return err
	}
	return nil
}

// Snapshot returns the trees that the next save would write, keyed by
// "world" and participant id. Used for inspection and export.
func (e *Engine) Snapshot() map[string]core.Tree {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.world == nil {
		return nil
	}
	out := map[string]core.Tree{e.world.Name(): e.world.Snapshot()}
	for _, id := range e.order {
		out[string(id)] = e.participants[id].Snapshot()
	}
	return out
}

// Participants returns the connected participants in join order.
func (e *Engine) Participants() []core.ParticipantID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return audience{e}.Participants()
}
