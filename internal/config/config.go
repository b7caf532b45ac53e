package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "missionengine.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds settings for the SQLite save store. An empty Path keeps
// the database in memory and dumps it to DumpPath every DumpInterval.
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// StorageConfig selects and configures the save-tree backend.
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// RegionConfig holds dwell thresholds per region kind.
type RegionConfig struct {
	DefaultDwell time.Duration
	Thresholds   map[string][]time.Duration
	// ShapesFile is a YAML file of polygon regions; empty disables
	// position tracking.
	ShapesFile string
}

// ThresholdsFor returns the thresholds registered for kind, or the default
// dwell when none are configured.
func (c RegionConfig) ThresholdsFor(kind string) []time.Duration {
	if ts, ok := c.Thresholds[strings.ToLower(kind)]; ok && len(ts) > 0 {
		return ts
	}
	return []time.Duration{c.DefaultDwell}
}

// OTelConfig holds OpenTelemetry log export settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds the analytics sink settings. BackupPath receives
// gzipped line protocol while the server is unreachable.
type InfluxConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	URL        string `json:"url" mapstructure:"url"`
	Token      string `json:"token" mapstructure:"token"`
	Org        string `json:"org" mapstructure:"org"`
	Bucket     string `json:"bucket" mapstructure:"bucket"`
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// NotifyConfig holds presenter settings.
type NotifyConfig struct {
	WebsocketEnabled bool
	WebsocketAddr    string
}

// DBConfig is the Postgres connection used by the postgres storage type.
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// MonitorConfig drives the background loop of the host. A zero interval
// disables that duty.
type MonitorConfig struct {
	TickInterval time.Duration `json:"tickInterval" mapstructure:"tickInterval"`
	SaveInterval time.Duration `json:"saveInterval" mapstructure:"saveInterval"`
	StatusFile   string        `json:"statusFile" mapstructure:"statusFile"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// SetDefaults registers every default value. Load calls it; hosts running
// without a config file may call it directly.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./missionlogs")

	viper.SetDefault("definitions.path", "./missions")
	viper.SetDefault("dispatcher.positionBuffer", 0)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./saves")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpPath", "./saves/missions.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "missions")

	viper.SetDefault("region.defaultDwell", "300s")
	viper.SetDefault("region.thresholds", map[string]any{})
	viper.SetDefault("region.shapesFile", "")

	viper.SetDefault("notify.websocket.enabled", false)
	viper.SetDefault("notify.websocket.addr", "localhost:8765")

	viper.SetDefault("monitor.tickInterval", "0s")
	viper.SetDefault("monitor.saveInterval", "5m")
	viper.SetDefault("monitor.statusFile", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "missionengine")
	viper.SetDefault("influx.bucket", "missions")
	viper.SetDefault("influx.backupPath", "./missionlogs/influx_backup.lp.gz")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "missionengine")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetStorageConfig returns the storage section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: strings.ToLower(viper.GetString("storage.type")),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
	}
}

// GetRegionConfig returns the region section. Threshold entries that do not
// parse as durations are skipped.
func GetRegionConfig() RegionConfig {
	cfg := RegionConfig{
		DefaultDwell: viper.GetDuration("region.defaultDwell"),
		Thresholds:   map[string][]time.Duration{},
		ShapesFile:   viper.GetString("region.shapesFile"),
	}
	if cfg.DefaultDwell <= 0 {
		cfg.DefaultDwell = 300 * time.Second
	}

	for kind, raw := range viper.GetStringMap("region.thresholds") {
		items, err := cast.ToSliceE(raw)
		if err != nil {
			items = []any{raw}
		}
		var ds []time.Duration
		for _, item := range items {
			d, err := cast.ToDurationE(item)
			if err != nil || d <= 0 {
				continue
			}
			ds = append(ds, d)
		}
		if len(ds) > 0 {
			cfg.Thresholds[strings.ToLower(kind)] = ds
		}
	}

	return cfg
}

// GetOTelConfig returns the otel section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the influx section.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled: viper.GetBool("influx.enabled"),
		URL: fmt.Sprintf("%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetNotifyConfig returns the notify section.
func GetNotifyConfig() NotifyConfig {
	return NotifyConfig{
		WebsocketEnabled: viper.GetBool("notify.websocket.enabled"),
		WebsocketAddr:    viper.GetString("notify.websocket.addr"),
	}
}

// GetMonitorConfig returns the monitor section.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		TickInterval: viper.GetDuration("monitor.tickInterval"),
		SaveInterval: viper.GetDuration("monitor.saveInterval"),
		StatusFile:   viper.GetString("monitor.statusFile"),
	}
}

// GetDBConfig returns the db section.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}
