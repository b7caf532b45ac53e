package sqlitestorage

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilequest/missionengine/internal/config"
	"github.com/tilequest/missionengine/internal/database"
	"github.com/tilequest/missionengine/internal/model"
	"github.com/tilequest/missionengine/internal/storage"
	"github.com/tilequest/missionengine/pkg/core"
)

// Compile-time interface checks
var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Journal = (*Backend)(nil)
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFileBackedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saves", "missions.db")

	b, err := New(config.SQLiteConfig{Path: path}, quietLogger())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	assert.False(t, b.InMemory())

	tree := core.Tree{core.KeyCompletedMissions: []any{1, 2}}
	require.NoError(t, b.SaveParticipant("alice", tree))
	require.NoError(t, b.Close())

	reopened, err := New(config.SQLiteConfig{Path: path}, quietLogger())
	require.NoError(t, err)
	require.NoError(t, reopened.Init())
	defer reopened.Close()

	got, err := reopened.LoadParticipant("alice")
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), float64(2)}, got[core.KeyCompletedMissions])
}

func TestInMemoryDumpOnClose(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "dump.db")
	world := uuid.NewString()

	b, err := New(config.SQLiteConfig{DumpPath: dump, DumpInterval: time.Hour}, quietLogger())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	assert.True(t, b.InMemory())

	require.NoError(t, b.SaveWorld(world, core.Tree{core.KeyNotifiedMissions: []any{5}}))
	require.NoError(t, b.Close())

	_, err = os.Stat(dump)
	require.NoError(t, err)

	db, err := database.OpenSqlite(dump)
	require.NoError(t, err)
	var rec model.SaveRecord
	require.NoError(t, db.Where("scope = ? AND owner_key = ?", model.ScopeWorld, world).First(&rec).Error)
	assert.JSONEq(t, `{"notifiedMissions":[5]}`, string(rec.Tree))
}

func TestPeriodicDump(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "periodic.db")

	b, err := New(config.SQLiteConfig{DumpPath: dump, DumpInterval: 20 * time.Millisecond}, quietLogger())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer b.Close()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(dump)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDumpDisabledForFileDatabase(t *testing.T) {
	dir := t.TempDir()
	dump := filepath.Join(dir, "never.db")

	b, err := New(config.SQLiteConfig{Path: filepath.Join(dir, "live.db"), DumpPath: dump}, quietLogger())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	require.NoError(t, b.Dump())
	require.NoError(t, b.Close())

	_, err = os.Stat(dump)
	assert.True(t, os.IsNotExist(err))
}

func TestCloseTwice(t *testing.T) {
	b, err := New(config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "m.db")}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())

	assert.NoError(t, b.Close())
	assert.NoError(t, b.Close())
}
