// internal/storage/memory/memory.go
package memory

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tilequest/missionengine/internal/config"
	"github.com/tilequest/missionengine/internal/storage"
	"github.com/tilequest/missionengine/pkg/core"
)

// Backend keeps save trees in memory and exports them to a JSON file.
// Trees are held as encoded JSON so callers never share maps with the store.
type Backend struct {
	cfg config.MemoryConfig

	worlds       map[string][]byte
	participants map[core.ParticipantID][]byte
	journal      map[string][]core.Notification

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:          cfg,
		worlds:       make(map[string][]byte),
		participants: make(map[core.ParticipantID][]byte),
		journal:      make(map[string][]core.Notification),
	}
}

// Init imports a previous export from OutputDir when one exists.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.importJSON()
}

// Close exports everything to OutputDir.
func (b *Backend) Close() error {
	return b.Flush()
}

// Flush exports everything to OutputDir without closing.
func (b *Backend) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exportJSON()
}

// SaveWorld stores a copy of the world's tree.
func (b *Backend) SaveWorld(worldID string, tree core.Tree) error {
	data, err := encodeTree(tree)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.worlds[worldID] = data
	return nil
}

// LoadWorld returns a copy of the world's tree or storage.ErrNotFound.
func (b *Backend) LoadWorld(worldID string) (core.Tree, error) {
	b.mu.RLock()
	data, ok := b.worlds[worldID]
	b.mu.RUnlock()

	if !ok {
		return nil, storage.ErrNotFound
	}
	return decodeTree(data)
}

// SaveParticipant stores a copy of a participant's tree.
func (b *Backend) SaveParticipant(id core.ParticipantID, tree core.Tree) error {
	data, err := encodeTree(tree)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.participants[id] = data
	return nil
}

// LoadParticipant returns a copy of a participant's tree or storage.ErrNotFound.
func (b *Backend) LoadParticipant(id core.ParticipantID) (core.Tree, error) {
	b.mu.RLock()
	data, ok := b.participants[id]
	b.mu.RUnlock()

	if !ok {
		return nil, storage.ErrNotFound
	}
	return decodeTree(data)
}

// RecordNotification appends to the world's journal.
func (b *Backend) RecordNotification(worldID string, n core.Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.journal[worldID] = append(b.journal[worldID], n)
	return nil
}

// History returns a copy of the world's journal, oldest first.
func (b *Backend) History(worldID string) ([]core.Notification, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.Notification(nil), b.journal[worldID]...), nil
}

// Worlds returns the ids of every stored world.
func (b *Backend) Worlds() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.worlds))
	for id := range b.worlds {
		out = append(out, id)
	}
	return out
}

func encodeTree(tree core.Tree) ([]byte, error) {
	if tree == nil {
		tree = core.Tree{}
	}
	data, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encoding save tree: %w", err)
	}
	return data, nil
}

func decodeTree(data []byte) (core.Tree, error) {
	var tree core.Tree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decoding save tree: %w", err)
	}
	if tree == nil {
		tree = core.Tree{}
	}
	return tree, nil
}
