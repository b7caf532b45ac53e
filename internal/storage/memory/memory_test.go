// internal/storage/memory/memory_test.go
package memory

import (
	"errors"
	"sync"
	"testing"

	"github.com/tilequest/missionengine/internal/config"
	"github.com/tilequest/missionengine/internal/storage"
	"github.com/tilequest/missionengine/pkg/core"
)

// Verify Backend implements the storage interfaces
var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Journal = (*Backend)(nil)
	_ storage.Flusher = (*Backend)(nil)
)

func TestNew(t *testing.T) {
	cfg := config.MemoryConfig{
		OutputDir:      "/tmp/test",
		CompressOutput: true,
	}
	b := New(cfg)

	if b == nil {
		t.Fatal("New returned nil")
	}
	if b.cfg.OutputDir != "/tmp/test" {
		t.Errorf("expected OutputDir=/tmp/test, got %s", b.cfg.OutputDir)
	}
	if b.worlds == nil || b.participants == nil || b.journal == nil {
		t.Error("maps not initialized")
	}
}

func TestInitAndCloseWithoutOutputDir(t *testing.T) {
	b := New(config.MemoryConfig{})

	if err := b.Init(); err != nil {
		t.Errorf("Init failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if p := b.GetExportedFilePath(); p != "" {
		t.Errorf("expected no export, got %s", p)
	}
}

func TestLoadMissing(t *testing.T) {
	b := New(config.MemoryConfig{})

	if _, err := b.LoadWorld("w1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := b.LoadParticipant("alice"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveLoadIsolation(t *testing.T) {
	b := New(config.MemoryConfig{})

	tree := core.Tree{core.KeyCompletedMissions: []any{1, 2}}
	if err := b.SaveWorld("w1", tree); err != nil {
		t.Fatalf("SaveWorld failed: %v", err)
	}

	// mutating the caller's tree after save must not leak into the store
	tree[core.KeyCompletedMissions] = []any{99}

	got, err := b.LoadWorld("w1")
	if err != nil {
		t.Fatalf("LoadWorld failed: %v", err)
	}
	ids, ok := got[core.KeyCompletedMissions].([]any)
	if !ok || len(ids) != 2 || ids[0] != float64(1) {
		t.Errorf("unexpected completed list: %#v", got[core.KeyCompletedMissions])
	}

	// and mutating a loaded tree must not either
	got[core.KeyCompletedMissions] = nil
	again, _ := b.LoadWorld("w1")
	if again[core.KeyCompletedMissions] == nil {
		t.Error("loaded tree aliases the store")
	}
}

func TestSaveNilTree(t *testing.T) {
	b := New(config.MemoryConfig{})

	if err := b.SaveParticipant("alice", nil); err != nil {
		t.Fatalf("SaveParticipant failed: %v", err)
	}
	got, err := b.LoadParticipant("alice")
	if err != nil {
		t.Fatalf("LoadParticipant failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty tree, got %#v", got)
	}
}

func TestScopesAreSeparate(t *testing.T) {
	b := New(config.MemoryConfig{})

	_ = b.SaveWorld("same", core.Tree{"scope": "world"})
	_ = b.SaveParticipant("same", core.Tree{"scope": "participant"})

	w, _ := b.LoadWorld("same")
	p, _ := b.LoadParticipant("same")
	if w["scope"] != "world" || p["scope"] != "participant" {
		t.Errorf("scopes collided: world=%v participant=%v", w, p)
	}
}

func TestJournal(t *testing.T) {
	b := New(config.MemoryConfig{})

	_ = b.RecordNotification("w1", core.Notification{Kind: core.NotifyStarted, MissionID: 1})
	_ = b.RecordNotification("w1", core.Notification{Kind: core.NotifyCompleted, MissionID: 1})
	_ = b.RecordNotification("w2", core.Notification{Kind: core.NotifyUnlocked, MissionID: 3})

	h, err := b.History("w1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(h) != 2 || h[0].Kind != core.NotifyStarted || h[1].Kind != core.NotifyCompleted {
		t.Errorf("unexpected history: %+v", h)
	}

	h[0].MissionID = 42
	again, _ := b.History("w1")
	if again[0].MissionID != 1 {
		t.Error("history aliases the store")
	}
}

func TestConcurrentSaves(t *testing.T) {
	b := New(config.MemoryConfig{})
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = b.SaveParticipant(core.ParticipantID(string(rune('a'+n%26))), core.Tree{"n": n})
			_, _ = b.LoadWorld("w")
		}(i)
	}
	wg.Wait()

	if _, err := b.LoadParticipant("a"); err != nil {
		t.Errorf("expected participant a, got %v", err)
	}
}
