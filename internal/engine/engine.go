// Package engine ties the ownership scopes, persistence and region tracking
// together behind the lifecycle, query and command surface used by hosts.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/tilequest/missionengine/internal/broadcast"
	"github.com/tilequest/missionengine/internal/geo"
	"github.com/tilequest/missionengine/internal/mission"
	"github.com/tilequest/missionengine/internal/registry"
	"github.com/tilequest/missionengine/internal/scope"
	"github.com/tilequest/missionengine/internal/storage"
	"github.com/tilequest/missionengine/pkg/core"
)

var (
	// ErrNoWorld is returned by operations that need a loaded world.
	ErrNoWorld = errors.New("no world loaded")
	// ErrUnknownParticipant is returned for participants that have not joined.
	ErrUnknownParticipant = errors.New("participant not joined")
)

// Observer receives every lifecycle notification once, in registration order.
type Observer interface {
	Notify(n core.Notification)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(core.Notification)

// Notify calls f(n).
func (f ObserverFunc) Notify(n core.Notification) { f(n) }

// Dependencies holds all dependencies needed by the engine. Everything but
// Definitions and Backend is optional.
type Dependencies struct {
	Definitions *registry.Definitions
	Backend     storage.Backend
	Logger      *slog.Logger
	Rewarder    scope.Rewarder
	Presenter   scope.Presenter
	Inventory   scope.Inventory
	Regions     *geo.Tracker
	Context     *mission.Context
}

// Engine is the single entry point of the mission system. All public
// methods are serialized by one mutex; collaborators called back from the
// engine (presenters, observers, rewarders) must not call into it.
type Engine struct {
	deps   Dependencies
	logger *slog.Logger

	mu           sync.Mutex
	world        *scope.World
	participants map[core.ParticipantID]*scope.Participant
	order        []core.ParticipantID
	observers    []Observer
}

// New creates an engine. No world is loaded yet.
func New(deps Dependencies) (*Engine, error) {
	if deps.Definitions == nil {
		return nil, fmt.Errorf("engine: definitions are required")
	}
	if deps.Backend == nil {
		return nil, fmt.Errorf("engine: storage backend is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Context == nil {
		deps.Context = mission.NewContext()
	}
	return &Engine{
		deps:         deps,
		logger:       deps.Logger,
		participants: make(map[core.ParticipantID]*scope.Participant),
	}, nil
}

// Context returns the world context shared with the log handler.
func (e *Engine) Context() *mission.Context {
	return e.deps.Context
}

// Definitions returns the mission definition table.
func (e *Engine) Definitions() *registry.Definitions {
	return e.deps.Definitions
}

// Observe appends o to the observer list.
func (e *Engine) Observe(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

// audience exposes the connected participants to the world scope.
type audience struct{ e *Engine }

func (a audience) Participants() []core.ParticipantID {
	return slices.Clone(a.e.order)
}

func (a audience) Ledger(id core.ParticipantID) broadcast.Ledger {
	if p, ok := a.e.participants[id]; ok {
		return p.Ledger()
	}
	return nil
}

func (e *Engine) env() scope.Env {
	return scope.Env{
		Logger:    e.logger,
		Rewarder:  e.deps.Rewarder,
		Presenter: e.deps.Presenter,
		Inventory: e.deps.Inventory,
		Observe:   e.observe,
	}
}

func (e *Engine) observe(n core.Notification) {
	for _, o := range e.observers {
		e.safeNotify(o, n)
	}
	if j, ok := e.deps.Backend.(storage.Journal); ok && e.world != nil {
		if err := j.RecordNotification(e.world.ID(), n); err != nil {
			e.logger.Warn("failed to journal notification", "mission", n.MissionID, "error", err)
		}
	}
}

func (e *Engine) safeNotify(o Observer, n core.Notification) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("observer panicked", "mission", n.MissionID, "kind", n.Kind, "panic", r)
		}
	}()
	o.Notify(n)
}

func (e *Engine) participant(id core.ParticipantID) (*scope.Participant, error) {
	if e.world == nil {
		return nil, ErrNoWorld
	}
	p, ok := e.participants[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
	}
	return p, nil
}

// commandScope is the part of a scope the command surface needs.
type commandScope interface {
	Unlock(id int, announce bool) error
	Start(id int) error
	Complete(id int) error
	Reset(id int) error
	AssignProvider(id int, provider core.ProviderID) error
	Get(id int) (*mission.Mission, bool)
}

// scopeFor returns the scope that owns mission id on behalf of participant p.
// Mainline missions always live in the world.
func (e *Engine) scopeFor(p core.ParticipantID, id int) (commandScope, error) {
	if e.world == nil {
		return nil, ErrNoWorld
	}
	if _, ok := e.deps.Definitions.Lookup(id); !ok {
		return nil, fmt.Errorf("mission %d: %w", id, registry.ErrNotFound)
	}
	if e.deps.Definitions.IsMainline(id) {
		return e.world, nil
	}
	ps, err := e.participant(p)
	if err != nil {
		return nil, err
	}
	return ps, nil
}
