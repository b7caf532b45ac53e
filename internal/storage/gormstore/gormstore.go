// Package gormstore implements the storage.Backend interface on GORM. It
// serves both SQLite and PostgreSQL: save trees are upserted synchronously,
// journal rows go through a queue drained by a background writer.
package gormstore

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tilequest/missionengine/internal/config"
	"github.com/tilequest/missionengine/internal/database"
	"github.com/tilequest/missionengine/internal/model"
	"github.com/tilequest/missionengine/internal/model/convert"
	"github.com/tilequest/missionengine/internal/queue"
	"github.com/tilequest/missionengine/internal/storage"
	"github.com/tilequest/missionengine/pkg/core"
)

const defaultFlushInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB        // nil: Init connects using Postgres
	Postgres      config.DBConfig // used only when DB is nil
	Logger        *slog.Logger
	FlushInterval time.Duration // journal write period
}

// Backend implements storage.Backend using GORM.
type Backend struct {
	deps     Dependencies
	events   *queue.Queue[model.MissionEvent]
	stopChan chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	return &Backend{
		deps:   deps,
		events: queue.New[model.MissionEvent](),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init connects if needed, runs schema migration, and starts the journal writer.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.OpenPostgres(b.deps.Postgres)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection to %s: %w", b.deps.Postgres.Host, err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.deps.DB = db
	}

	b.deps.Logger.Info("Migrating schema", "dialect", b.deps.DB.Name())
	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.stopped = make(chan struct{})
	go b.writeLoop()
	return nil
}

// Close stops the journal writer and writes whatever is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	b.stopOnce.Do(func() {
		close(b.stopChan)
		<-b.stopped
	})
	return b.Flush()
}

// Flush writes queued journal rows now.
func (b *Backend) Flush() error {
	if b.deps.DB == nil {
		return nil
	}
	return writeQueue(b.deps.DB, b.events, "mission events", b.deps.Logger)
}

// SaveWorld upserts the world's mission tree.
func (b *Backend) SaveWorld(worldID string, tree core.Tree) error {
	return b.save(model.ScopeWorld, worldID, tree)
}

// LoadWorld returns the world's mission tree or storage.ErrNotFound.
func (b *Backend) LoadWorld(worldID string) (core.Tree, error) {
	return b.load(model.ScopeWorld, worldID)
}

// SaveParticipant upserts a participant's mission tree.
func (b *Backend) SaveParticipant(id core.ParticipantID, tree core.Tree) error {
	return b.save(model.ScopeParticipant, string(id), tree)
}

// LoadParticipant returns a participant's mission tree or storage.ErrNotFound.
func (b *Backend) LoadParticipant(id core.ParticipantID) (core.Tree, error) {
	return b.load(model.ScopeParticipant, string(id))
}

// RecordNotification queues a lifecycle notification for the journal.
func (b *Backend) RecordNotification(worldID string, n core.Notification) error {
	b.events.Push(convert.NotificationToEvent(worldID, n))
	return nil
}

// History returns the journal of a world, oldest first. Rows still queued
// are not included until the next flush.
func (b *Backend) History(worldID string) ([]core.Notification, error) {
	if b.deps.DB == nil {
		return nil, fmt.Errorf("db not connected")
	}

	var rows []model.MissionEvent
	err := b.deps.DB.
		Where("world_id = ?", worldID).
		Order("time asc, id asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	out := make([]core.Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, convert.EventToNotification(row))
	}
	return out, nil
}

func (b *Backend) save(scope, owner string, tree core.Tree) error {
	if b.deps.DB == nil {
		return fmt.Errorf("db not connected")
	}

	data, err := convert.TreeToJSON(tree)
	if err != nil {
		return err
	}

	rec := model.SaveRecord{Scope: scope, OwnerKey: owner, Tree: data}
	err = b.deps.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}, {Name: "owner_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"tree", "updated_at", "deleted_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save %s %q: %w", scope, owner, err)
	}
	return nil
}

func (b *Backend) load(scope, owner string) (core.Tree, error) {
	if b.deps.DB == nil {
		return nil, fmt.Errorf("db not connected")
	}

	var rec model.SaveRecord
	err := b.deps.DB.
		Where("scope = ? AND owner_key = ?", scope, owner).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %q: %w", scope, owner, err)
	}
	return convert.JSONToTree(rec.Tree)
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the items go back on the queue for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger) error {
	if q.Empty() {
		return nil
	}

	tx := db.Begin()
	items := q.Drain()
	if err := tx.Create(&items).Error; err != nil {
		log.Error("DB writer failed", "table", name, "count", len(items), "error", err)
		tx.Rollback()
		q.Push(items...)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	return tx.Commit().Error
}

func (b *Backend) writeLoop() {
	defer close(b.stopped)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			_ = writeQueue(b.deps.DB, b.events, "mission events", b.deps.Logger)
		}
	}
}
