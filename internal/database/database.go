// Package database opens the GORM connections behind the SQL storage
// backends.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tilequest/missionengine/internal/config"
	"github.com/tilequest/missionengine/internal/model"
)

const memoryDSN = "file::memory:?cache=shared"

var sqlitePragmas = []string{
	"PRAGMA user_version = 1;",
	"PRAGMA journal_mode = MEMORY;",
	"PRAGMA synchronous = NORMAL;",
	"PRAGMA cache_size = -8000;",
	"PRAGMA temp_store = MEMORY;",
}

// Manager connects to Postgres and falls back to a local SQLite database
// when the server cannot be reached.
type Manager struct {
	Config config.DBConfig
	// SqliteFilePath is the fallback database file. Empty keeps the
	// fallback in memory.
	SqliteFilePath string
	Logger         zerolog.Logger

	DB              *gorm.DB
	SqlDB           *sql.DB
	IsValid         bool
	ShouldSaveLocal bool
}

// NewManager creates a manager for the given connection settings.
func NewManager(cfg config.DBConfig, log zerolog.Logger) *Manager {
	return &Manager{Config: cfg, Logger: log}
}

// Connect opens the database. A failed Postgres connection is logged and
// replaced by SQLite; only a failed fallback is returned.
func (m *Manager) Connect() error {
	db, sqlDB, err := pingPostgres(m.Config)
	if err == nil {
		sqlDB.SetMaxOpenConns(10)
		m.DB, m.SqlDB, m.IsValid = db, sqlDB, true
		m.Logger.Info().Str("host", m.Config.Host).Str("database", m.Config.Database).Msg("Connected to Postgres")
		return nil
	}

	m.Logger.Error().Err(err).Msg("Postgres unavailable, falling back to SQLite")
	m.ShouldSaveLocal = true
	if err := m.useSqlite(); err != nil {
		m.IsValid = false
		return err
	}
	m.IsValid = true
	return nil
}

func pingPostgres(cfg config.DBConfig) (*gorm.DB, *sql.DB, error) {
	db, err := OpenPostgres(cfg)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("accessing sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return db, sqlDB, nil
}

func (m *Manager) useSqlite() error {
	db, err := OpenSqlite(m.SqliteFilePath)
	if err != nil {
		return fmt.Errorf("opening fallback sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("accessing sql interface: %w", err)
	}
	m.DB, m.SqlDB = db, sqlDB

	where := m.SqliteFilePath
	if where == "" {
		where = "memory"
	}
	m.Logger.Info().Str("path", where).Msg("Using local SQLite DB")
	return nil
}

// Setup migrates the save tables.
func (m *Manager) Setup() error {
	if m.DB == nil {
		return errors.New("db not connected")
	}
	if err := m.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		m.IsValid = false
		return fmt.Errorf("migrating schema: %w", err)
	}
	m.Logger.Info().Int("tables", len(model.DatabaseModels)).Msg("Database schema ready")
	return nil
}

// PostgresDSN builds the libpq connection string for cfg.
func PostgresDSN(cfg config.DBConfig) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)
}

// OpenPostgres opens a Postgres connection without pinging it.
func OpenPostgres(cfg config.DBConfig) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  PostgresDSN(cfg),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        1000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// OpenSqlite opens the SQLite database at path, creating its directory.
// An empty path opens a shared in-memory database.
func OpenSqlite(path string) (*gorm.DB, error) {
	dsn := memoryDSN
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		dsn = path
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        500,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("setting %q: %w", pragma, err)
		}
	}
	return db, nil
}

// DumpSqlite writes a snapshot of db to path with VACUUM INTO, replacing
// any earlier dump.
func DumpSqlite(db *gorm.DB, path string) error {
	switch {
	case db == nil:
		return errors.New("db not connected")
	case path == "":
		return errors.New("dump path not set")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating dump directory: %w", err)
	}
	// VACUUM INTO refuses to overwrite
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing previous dump: %w", err)
	}
	if err := db.Exec("VACUUM INTO ?", path).Error; err != nil {
		return fmt.Errorf("dumping sqlite to %s: %w", path, err)
	}
	return nil
}
