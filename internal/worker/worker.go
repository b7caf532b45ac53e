// Package worker connects host commands to the mission engine.
package worker

import (
	"log/slog"

	"github.com/tilequest/missionengine/internal/engine"
	"github.com/tilequest/missionengine/internal/parser"
)

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Engine *engine.Engine
	Parser *parser.Parser
	Logger *slog.Logger

	// PositionBuffer queues :POSITION: and :REGION: reports on a background
	// goroutine when greater than zero. Zero handles them inline.
	PositionBuffer int
}

// Manager owns the command handlers
type Manager struct {
	deps   Dependencies
	engine *engine.Engine
	parser *parser.Parser
	logger *slog.Logger
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Parser == nil {
		deps.Parser = parser.NewParser(deps.Logger)
	}
	return &Manager{
		deps:   deps,
		engine: deps.Engine,
		parser: deps.Parser,
		logger: deps.Logger,
	}
}
