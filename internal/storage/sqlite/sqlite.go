// Package sqlitestorage implements the storage.Backend interface on SQLite.
// It wraps the GORM backend; the SQLite-specific concerns are opening the
// database (file or in-memory) and, for in-memory databases, dumping to disk
// periodically via VACUUM INTO.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tilequest/missionengine/internal/config"
	"github.com/tilequest/missionengine/internal/database"
	"github.com/tilequest/missionengine/internal/storage/gormstore"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstore.Backend
	db       *gorm.DB
	cfg      config.SQLiteConfig
	log      *slog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	dumpMu   sync.Mutex
}

// New opens the database described by cfg. An empty cfg.Path keeps the
// database in memory.
func New(cfg config.SQLiteConfig, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := database.OpenSqlite(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
	}

	return &Backend{
		Backend:  gormstore.New(gormstore.Dependencies{DB: db, Logger: logger}),
		db:       db,
		cfg:      cfg,
		log:      logger,
		stopChan: make(chan struct{}),
	}, nil
}

// InMemory reports whether the database lives only in memory.
func (b *Backend) InMemory() bool {
	return b.cfg.Path == ""
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.dumps() && b.cfg.DumpInterval > 0 {
		go b.dumpLoop()
	}

	return nil
}

// Close stops the dump goroutine, takes a final dump and closes the
// embedded GORM backend.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })

	err := b.Backend.Close()
	if b.dumps() {
		if derr := b.Dump(); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}

// Dump writes a point-in-time copy of an in-memory database to cfg.DumpPath.
func (b *Backend) Dump() error {
	if !b.dumps() {
		return nil
	}
	b.dumpMu.Lock()
	defer b.dumpMu.Unlock()

	start := time.Now()
	if err := database.DumpSqlite(b.db, b.cfg.DumpPath); err != nil {
		return err
	}
	b.log.Debug("Dumped save database to disk", "path", b.cfg.DumpPath, "duration", time.Since(start))
	return nil
}

func (b *Backend) dumps() bool {
	return b.InMemory() && b.cfg.DumpPath != ""
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
func (b *Backend) dumpLoop() {
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping save database to disk", "error", err)
			}
		}
	}
}
