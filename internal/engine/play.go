package engine

import (
	"time"

	"github.com/tilequest/missionengine/internal/mission"
	"github.com/tilequest/missionengine/internal/scope"
	"github.com/tilequest/missionengine/pkg/core"
)

// Broadcast delivers a gameplay event to the active missions of the world
// and of the participant that caused it. The world goes first; both use the
// participant's contribution ledger so a held item counts once overall. It
// returns how many missions changed.
func (e *Engine) Broadcast(ev core.Event) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.broadcast(ev)
}

func (e *Engine) broadcast(ev core.Event) int {
	if e.world == nil || ev == nil {
		return 0
	}
	changed := e.world.Broadcast(ev)
	if p, ok := e.participants[ev.Source()]; ok {
		changed += p.Broadcast(ev)
	}
	return changed
}

// ReportPosition records a participant's position for region dwell
// tracking and broadcasts any RegionEntered events it produces.
func (e *Engine) ReportPosition(p core.ParticipantID, x, y float64, dt time.Duration) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deps.Regions == nil || e.world == nil {
		return 0
	}
	changed := 0
	for _, ev := range e.deps.Regions.ReportPosition(p, x, y, dt) {
		changed += e.broadcast(ev)
	}
	return changed
}

// ObserveRegion records a host-classified region stay (biome) for p.
func (e *Engine) ObserveRegion(p core.ParticipantID, kind string, dt time.Duration) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deps.Regions == nil || e.world == nil {
		return 0
	}
	changed := 0
	for _, ev := range e.deps.Regions.ObserveRegion(p, kind, dt) {
		changed += e.broadcast(ev)
	}
	return changed
}

// TickReport summarizes one Tick.
type TickReport struct {
	Tick     uint64
	Unlocked []int
	Waiting  []int
}

// successorScope is the part of a scope that tracks pending successors.
type successorScope interface {
	Name() string
	Get(id int) (*mission.Mission, bool)
	TakeSuccessors() []int
	DeferSuccessor(id int)
}

// Tick advances the engine by one simulation step: deferred loads that are
// now possible run, then completed missions get their successor check.
func (e *Engine) Tick() TickReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := TickReport{Tick: e.deps.Context.Advance()}
	if e.world == nil {
		return report
	}
	e.applyPending()

	e.processSuccessors(e.world, "", &report)
	for _, id := range e.order {
		e.processSuccessors(e.participants[id], id, &report)
	}
	return report
}

// processSuccessors unlocks the successors of completed missions in s. A
// mission type with a SuccessorReady hook is asked again next tick until
// it agrees; without a hook AutoUnlockSuccessor decides once and a refused
// successor waits for an explicit unlock.
func (e *Engine) processSuccessors(s successorScope, owner core.ParticipantID, report *TickReport) {
	for _, id := range s.TakeSuccessors() {
		m, ok := s.Get(id)
		if !ok || !m.HasSuccessor() {
			continue
		}
		if !e.successorReady(m) {
			if m.Hooks().SuccessorReady != nil {
				s.DeferSuccessor(id)
				report.Waiting = append(report.Waiting, id)
			}
			continue
		}
		if e.unlockSuccessor(m, owner) {
			report.Unlocked = append(report.Unlocked, m.Successor)
		}
	}
}

func (e *Engine) successorReady(m *mission.Mission) (ready bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("successor hook panicked", "mission", m.ID, "panic", r)
			ready = false
		}
	}()
	return m.SuccessorReady()
}

// unlockSuccessor unlocks m's successor in the scope that owns it. A
// sideline successor of a mainline mission is unlocked for every connected
// participant.
func (e *Engine) unlockSuccessor(m *mission.Mission, owner core.ParticipantID) bool {
	next := m.Successor
	if _, ok := e.deps.Definitions.Lookup(next); !ok {
		e.logger.Warn("successor has no definition", "mission", m.ID, "successor", next)
		return false
	}

	var targets []successorScope
	switch {
	case e.deps.Definitions.IsMainline(next):
		targets = append(targets, e.world)
	case owner != "":
		targets = append(targets, e.participants[owner])
	default:
		for _, id := range e.order {
			targets = append(targets, e.participants[id])
		}
	}

	unlocked := false
	for _, s := range targets {
		sm, ok := s.Get(next)
		if !ok || sm.Availability != core.AvailabilityLocked {
			continue
		}
		if err := sm.Unlock(); err != nil {
			e.logger.Warn("failed to unlock successor", "mission", m.ID, "successor", next, "scope", s.Name(), "error", err)
			continue
		}
		e.logger.Info("successor unlocked", "mission", m.ID, "successor", next, "scope", s.Name())
		unlocked = true
	}
	return unlocked
}

// catchUpSuccessors unlocks in p the sideline successors of mainline
// missions the world completed before p joined. The world's successor
// queue only reaches participants connected when it drains.
func (e *Engine) catchUpSuccessors(p *scope.Participant) []int {
	if p.Pending() {
		return nil
	}
	var unlocked []int
	for _, m := range e.world.CompletedMissions() {
		if !m.HasSuccessor() || e.deps.Definitions.IsMainline(m.Successor) || !e.successorReady(m) {
			continue
		}
		sm, ok := p.Get(m.Successor)
		if !ok || sm.Availability != core.AvailabilityLocked {
			continue
		}
		if err := sm.Unlock(); err != nil {
			e.logger.Warn("failed to unlock successor", "mission", m.ID, "successor", m.Successor, "participant", p.ID(), "error", err)
			continue
		}
		e.logger.Info("successor unlocked for late participant", "mission", m.ID, "successor", m.Successor, "participant", p.ID())
		unlocked = append(unlocked, m.Successor)
	}
	return unlocked
}
