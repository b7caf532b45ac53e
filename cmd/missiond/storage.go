package main

import (
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"

	"github.com/tilequest/missionengine/internal/config"
	"github.com/tilequest/missionengine/internal/database"
	"github.com/tilequest/missionengine/internal/storage"
	"github.com/tilequest/missionengine/internal/storage/gormstore"
	"github.com/tilequest/missionengine/internal/storage/memory"
	sqlitestorage "github.com/tilequest/missionengine/internal/storage/sqlite"
)

// createStorageBackend builds the configured backend. The caller runs Init.
func createStorageBackend(cfg config.StorageConfig, logger *slog.Logger, zl zerolog.Logger) (storage.Backend, error) {
	switch cfg.Type {
	case "postgres":
		// Postgres first; an unreachable server falls back to a local
		// SQLite file so saves are never lost.
		m := database.NewManager(config.GetDBConfig(), zl)
		m.SqliteFilePath = cfg.SQLite.Path
		if m.SqliteFilePath == "" {
			m.SqliteFilePath = cfg.SQLite.DumpPath
		}
		if err := m.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		logger.Info("GORM storage backend initialized", "dialect", m.DB.Name(), "fallback", m.ShouldSaveLocal)
		return gormstore.New(gormstore.Dependencies{DB: m.DB, Logger: logger}), nil

	case "sqlite":
		backend, err := sqlitestorage.New(cfg.SQLite, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend initialized", "path", cfg.SQLite.Path, "inMemory", backend.InMemory())
		return backend, nil

	case "memory", "":
		logger.Info("Memory storage backend initialized", "outputDir", cfg.Memory.OutputDir)
		return memory.New(cfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
