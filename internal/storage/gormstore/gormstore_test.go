package gormstore

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tilequest/missionengine/internal/model"
	"github.com/tilequest/missionengine/internal/storage"
	"github.com/tilequest/missionengine/pkg/core"
)

// Compile-time interface checks
var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Journal = (*Backend)(nil)
	_ storage.Flusher = (*Backend)(nil)
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	b := New(Dependencies{
		DB:            db,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		FlushInterval: time.Hour,
	})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func sampleTree() core.Tree {
	return core.Tree{
		core.KeyMissions: []any{
			map[string]any{
				core.KeyID:           1,
				core.KeyProgress:     1,
				core.KeyAvailability: 1,
			},
		},
		core.KeyCompletedMissions: []any{2, 3},
	}
}

func TestInitMigrates(t *testing.T) {
	b := newTestBackend(t)

	assert.True(t, b.DB().Migrator().HasTable(&model.SaveRecord{}))
	assert.True(t, b.DB().Migrator().HasTable(&model.MissionEvent{}))
}

func TestCloseWithoutInit(t *testing.T) {
	b := New(Dependencies{})
	assert.NoError(t, b.Close())
}

func TestSaveLoadWorld(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.LoadWorld("w1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, b.SaveWorld("w1", sampleTree()))

	tree, err := b.LoadWorld("w1")
	require.NoError(t, err)
	assert.Equal(t, []any{float64(2), float64(3)}, tree[core.KeyCompletedMissions])
	missions, ok := tree[core.KeyMissions].([]any)
	require.True(t, ok)
	require.Len(t, missions, 1)
	assert.Equal(t, float64(1), missions[0].(map[string]any)[core.KeyID])
}

func TestSaveOverwrites(t *testing.T) {
	b := newTestBackend(t)

	require.NoError(t, b.SaveWorld("w1", sampleTree()))
	require.NoError(t, b.SaveWorld("w1", core.Tree{core.KeyCompletedMissions: []any{9}}))

	tree, err := b.LoadWorld("w1")
	require.NoError(t, err)
	assert.Equal(t, []any{float64(9)}, tree[core.KeyCompletedMissions])
	assert.NotContains(t, tree, core.KeyMissions)

	var count int64
	require.NoError(t, b.DB().Model(&model.SaveRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestScopesAreSeparate(t *testing.T) {
	b := newTestBackend(t)

	require.NoError(t, b.SaveWorld("same", core.Tree{core.KeyNotifiedMissions: []any{1}}))
	require.NoError(t, b.SaveParticipant("same", core.Tree{core.KeyNotifiedMissions: []any{2}}))

	world, err := b.LoadWorld("same")
	require.NoError(t, err)
	participant, err := b.LoadParticipant("same")
	require.NoError(t, err)

	assert.Equal(t, []any{float64(1)}, world[core.KeyNotifiedMissions])
	assert.Equal(t, []any{float64(2)}, participant[core.KeyNotifiedMissions])

	_, err = b.LoadParticipant("nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestContributedItemsRoundTrip(t *testing.T) {
	b := newTestBackend(t)
	token := uuid.NewString()

	require.NoError(t, b.SaveParticipant("alice", core.Tree{core.KeyContributedItems: []any{token}}))

	tree, err := b.LoadParticipant("alice")
	require.NoError(t, err)
	assert.Equal(t, []any{token}, tree[core.KeyContributedItems])
}

func TestJournalQueuedUntilFlush(t *testing.T) {
	b := newTestBackend(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, b.RecordNotification("w1", core.Notification{
		Kind:      core.NotifyStarted,
		MissionID: 4,
		Owner:     "alice",
		Progress:  core.ProgressActive,
		Time:      at,
	}))
	require.NoError(t, b.RecordNotification("w1", core.Notification{
		Kind:         core.NotifyCompleted,
		MissionID:    4,
		Owner:        "alice",
		Progress:     core.ProgressCompleted,
		Availability: core.AvailabilityCompleted,
		Time:         at.Add(time.Minute),
	}))
	require.NoError(t, b.RecordNotification("w2", core.Notification{Kind: core.NotifyUnlocked, MissionID: 1, Time: at}))
	assert.Equal(t, 3, b.events.Len())

	history, err := b.History("w1")
	require.NoError(t, err)
	assert.Empty(t, history)

	require.NoError(t, b.Flush())
	assert.Equal(t, 0, b.events.Len())

	history, err = b.History("w1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, core.NotifyStarted, history[0].Kind)
	assert.Equal(t, core.NotifyCompleted, history[1].Kind)
	assert.Equal(t, core.ParticipantID("alice"), history[1].Owner)
	assert.Equal(t, core.AvailabilityCompleted, history[1].Availability)
}

func TestFlushEmptyQueue(t *testing.T) {
	b := newTestBackend(t)
	assert.NoError(t, b.Flush())
}

func TestCloseFlushes(t *testing.T) {
	b := newTestBackend(t)

	require.NoError(t, b.RecordNotification("w1", core.Notification{Kind: core.NotifyReset, MissionID: 2, Time: time.Now()}))
	require.NoError(t, b.Close())

	var count int64
	require.NoError(t, b.DB().Model(&model.MissionEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// second close is harmless
	assert.NoError(t, b.Close())
}

func TestNoDBErrors(t *testing.T) {
	b := New(Dependencies{})

	assert.Error(t, b.SaveWorld("w", core.Tree{}))
	_, err := b.LoadParticipant("p")
	assert.Error(t, err)
	_, err = b.History("w")
	assert.Error(t, err)
	assert.NoError(t, b.Flush())
}
