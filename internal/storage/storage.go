// internal/storage/storage.go
package storage

import (
	"errors"

	"github.com/tilequest/missionengine/pkg/core"
)

// ErrNotFound is returned by Load* when nothing was saved for the key.
var ErrNotFound = errors.New("save not found")

// Backend is the interface all save stores must satisfy. Trees are passed
// by value: implementations never retain the caller's map.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// World-owned mission state
	SaveWorld(worldID string, tree core.Tree) error
	LoadWorld(worldID string) (core.Tree, error)

	// Participant-owned mission state
	SaveParticipant(id core.ParticipantID, tree core.Tree) error
	LoadParticipant(id core.ParticipantID) (core.Tree, error)
}

// Journal is an optional interface for backends that keep a history of
// mission lifecycle notifications.
type Journal interface {
	RecordNotification(worldID string, n core.Notification) error
}

// Flusher is an optional interface for backends that buffer writes.
type Flusher interface {
	Flush() error
}
