package engine

import (
	"errors"
	"fmt"
	"slices"

	"github.com/tilequest/missionengine/internal/scope"
	"github.com/tilequest/missionengine/internal/storage"
	"github.com/tilequest/missionengine/pkg/core"
)

// saveScope is the part of a scope that takes part in saving.
type saveScope interface {
	Name() string
	Dirty() bool
	Snapshot() core.Tree
	MarkSaved()
}

// OnWorldLoad creates the world scope and captures its saved state. The
// state is applied later by MarkWorldReady, once world generation is done.
func (e *Engine) OnWorldLoad(worldID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if worldID == "" {
		return fmt.Errorf("world id is empty")
	}
	if e.world != nil {
		return fmt.Errorf("world %q already loaded", e.world.ID())
	}

	w, err := scope.NewWorld(worldID, e.deps.Definitions, e.env(), audience{e})
	if err != nil {
		return err
	}
	w.Init()

	tree, err := e.deps.Backend.LoadWorld(worldID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		e.logger.Info("no saved missions for world, starting fresh", "world", worldID)
	case err != nil:
		return fmt.Errorf("failed to load world %q: %w", worldID, err)
	default:
		w.Capture(tree)
	}

	e.world = w
	e.deps.Context.SetWorld(worldID)
	e.logger.Info("world loaded", "world", worldID, "missions", len(w.Missions()))
	return nil
}

// MarkWorldReady applies captured save data of the world and of every
// participant that joined during loading.
func (e *Engine) MarkWorldReady() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.world == nil {
		return ErrNoWorld
	}
	e.deps.Context.MarkReady()
	e.applyPending()
	for _, id := range e.order {
		e.catchUpSuccessors(e.participants[id])
	}
	return nil
}

// applyPending runs deferred loads. A failed load resets that scope and
// does not stop the others.
func (e *Engine) applyPending() {
	if !e.deps.Context.Ready() {
		return
	}
	if e.world.Pending() {
		if _, err := e.world.Apply(); err != nil {
			e.logger.Error("world missions reset after failed load", "world", e.world.ID(), "error", err)
		}
	}
	for _, id := range e.order {
		p := e.participants[id]
		if !p.Pending() {
			continue
		}
		if _, err := p.Apply(); err != nil {
			e.logger.Error("participant missions reset after failed load", "participant", id, "error", err)
		}
	}
}

// OnWorldUnload saves everything and drops all live missions.
func (e *Engine) OnWorldUnload() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.world == nil {
		return ErrNoWorld
	}
	err := e.saveAll()

	for _, id := range e.order {
		e.participants[id].Clear()
		if e.deps.Regions != nil {
			e.deps.Regions.Forget(id)
		}
	}
	e.world.Clear()
	e.logger.Info("world unloaded", "world", e.world.ID())

	e.world = nil
	e.participants = make(map[core.ParticipantID]*scope.Participant)
	e.order = nil
	e.deps.Context.Clear()
	return err
}

// OnParticipantJoin creates the participant's scope and loads their saved
// missions. If the world is not ready yet the load is deferred.
func (e *Engine) OnParticipantJoin(id core.ParticipantID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.world == nil {
		return ErrNoWorld
	}
	if id == "" {
		return fmt.Errorf("participant id is empty")
	}
	if _, ok := e.participants[id]; ok {
		return nil
	}

	p, err := scope.NewParticipant(id, e.deps.Definitions, e.env())
	if err != nil {
		return err
	}
	p.Init()

	tree, err := e.deps.Backend.LoadParticipant(id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return fmt.Errorf("failed to load participant %q: %w", id, err)
	default:
		p.Capture(tree)
	}

	e.participants[id] = p
	e.order = append(e.order, id)
	e.applyPending()
	if e.deps.Context.Ready() {
		e.catchUpSuccessors(p)
	}
	e.world.Welcome(id)

	e.logger.Info("participant joined", "participant", id, "world", e.world.ID())
	return nil
}

// OnParticipantLeave saves the participant's missions and drops them.
func (e *Engine) OnParticipantLeave(id core.ParticipantID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.participant(id)
	if err != nil {
		return err
	}
	err = e.save(p, func(tree core.Tree) error { return e.deps.Backend.SaveParticipant(id, tree) })

	p.Clear()
	delete(e.participants, id)
	if i := slices.Index(e.order, id); i >= 0 {
		e.order = slices.Delete(e.order, i, i+1)
	}
	if e.deps.Regions != nil {
		e.deps.Regions.Forget(id)
	}
	e.logger.Info("participant left", "participant", id)
	return err
}

// OnSaveRequested writes every scope that changed since the last save.
func (e *Engine) OnSaveRequested() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.world == nil {
		return ErrNoWorld
	}
	return e.saveAll()
}

func (e *Engine) saveAll() error {
	worldID := e.world.ID()
	errs := []error{
		e.save(e.world, func(tree core.Tree) error { return e.deps.Backend.SaveWorld(worldID, tree) }),
	}
	for _, id := range e.order {
		errs = append(errs, e.save(e.participants[id], func(tree core.Tree) error {
			return e.deps.Backend.SaveParticipant(id, tree)
		}))
	}
	if f, ok := e.deps.Backend.(storage.Flusher); ok {
		if err := f.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush storage: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) save(s saveScope, write func(core.Tree) error) error {
	if !s.Dirty() {
		return nil
	}
	if err := write(s.Snapshot()); err != nil {
		e.logger.Error("failed to save missions", "scope", s.Name(), "error", err)
		return fmt.Errorf("failed to save %s: %w", s.Name(), err)
	}
	s.MarkSaved()
	e.logger.Debug("missions saved", "scope", s.Name())
	return nil
}
