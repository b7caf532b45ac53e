// Package influx records mission lifecycle notifications in InfluxDB for
// analytics. When the server is unreachable points go to a gzipped
// line-protocol backup file instead.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/tilequest/missionengine/internal/config"
	"github.com/tilequest/missionengine/pkg/core"
)

// Measurement is the measurement name of lifecycle points.
const Measurement = "mission_lifecycle"

// retention of the bucket created on first connect
const retentionSeconds = 60 * 60 * 24 * 90

// Observer writes one point per notification.
type Observer struct {
	cfg    config.InfluxConfig
	logger zerolog.Logger

	client influxdb2.Client
	writer influxdb2_api.WriteAPI

	mu         sync.Mutex
	backupFile *os.File
	backup     *gzip.Writer
	valid      bool
}

// New creates an observer. Call Connect before use.
func New(cfg config.InfluxConfig, logger zerolog.Logger) *Observer {
	return &Observer{cfg: cfg, logger: logger}
}

// Connect pings the server and sets up the bucket and writer. If the server
// cannot be reached the observer falls back to the backup file; only a
// failure to open that file is returned.
func (o *Observer) Connect(ctx context.Context) error {
	if !o.cfg.Enabled {
		return errors.New("influx is disabled")
	}

	o.client = influxdb2.NewClientWithOptions(
		o.cfg.URL,
		o.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := o.client.Ping(ctx)
	if err == nil && running {
		if err := o.ensureBucket(ctx); err != nil {
			o.logger.Warn().Err(err).Msg("InfluxDB bucket setup failed, using backup file")
		} else {
			o.startWriter()
			o.valid = true
			o.logger.Info().Str("url", o.cfg.URL).Str("bucket", o.cfg.Bucket).Msg("InfluxDB observer connected")
			return nil
		}
	}

	o.logger.Info().Str("backupPath", o.cfg.BackupPath).Msg("InfluxDB unreachable, writing to backup file")
	return o.openBackup()
}

func (o *Observer) ensureBucket(ctx context.Context) error {
	orgs := o.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, o.cfg.Org)
	if err != nil {
		o.logger.Info().Str("org", o.cfg.Org).Msg("Organization not found, creating")
		if org, err = orgs.CreateOrganizationWithName(ctx, o.cfg.Org); err != nil {
			return fmt.Errorf("creating organization %q: %w", o.cfg.Org, err)
		}
	}

	buckets := o.client.BucketsAPI()
	if _, err := buckets.FindBucketByName(ctx, o.cfg.Bucket); err == nil {
		return nil
	}
	o.logger.Info().Str("bucket", o.cfg.Bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = buckets.CreateBucketWithName(ctx, org, o.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: retentionSeconds,
	})
	if err != nil {
		return fmt.Errorf("creating bucket %q: %w", o.cfg.Bucket, err)
	}
	return nil
}

func (o *Observer) startWriter() {
	o.writer = o.client.WriteAPI(o.cfg.Org, o.cfg.Bucket)
	go func(errs <-chan error) {
		for err := range errs {
			o.logger.Error().Err(err).Str("bucket", o.cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(o.writer.Errors())
}

func (o *Observer) openBackup() error {
	if o.backup != nil {
		return nil
	}
	if dir := filepath.Dir(o.cfg.BackupPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating backup directory: %w", err)
		}
	}
	f, err := os.OpenFile(o.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening influx backup file: %w", err)
	}
	o.backupFile = f
	o.backup = gzip.NewWriter(f)
	return nil
}

// Connected reports whether points go to the server.
func (o *Observer) Connected() bool {
	return o.valid
}

// Point builds the lifecycle point for n.
func Point(n core.Notification) *influxdb2_write.Point {
	ts := n.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	owner := string(n.Owner)
	if owner == "" {
		owner = "world"
	}
	p := influxdb2_write.NewPointWithMeasurement(Measurement).
		AddTag("kind", string(n.Kind)).
		AddTag("mission", strconv.Itoa(n.MissionID)).
		AddTag("mainline", strconv.FormatBool(n.Mainline)).
		AddTag("owner", owner).
		AddField("setIndex", n.SetIndex).
		AddField("progress", int(n.Progress)).
		AddField("availability", int(n.Availability)).
		SetTime(ts)
	if n.Provider != "" {
		p.AddTag("provider", string(n.Provider))
	}
	if n.Objective != "" {
		p.AddField("objective", n.Objective)
	}
	return p
}

// Notify writes n. Errors are logged; analytics never fail the engine.
func (o *Observer) Notify(n core.Notification) {
	if err := o.WritePoint(Point(n)); err != nil {
		o.logger.Error().Err(err).Int("mission", n.MissionID).Msg("Failed to record lifecycle point")
	}
}

// WritePoint writes a point to InfluxDB or the backup file.
func (o *Observer) WritePoint(point *influxdb2_write.Point) error {
	if o.valid {
		o.writer.WritePoint(point)
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.backup == nil {
		return errors.New("influx observer not connected")
	}
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := o.backup.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("writing influx backup: %w", err)
	}
	return nil
}

// Close flushes pending points and releases the client and backup file.
func (o *Observer) Close() error {
	if o.writer != nil {
		o.writer.Flush()
	}
	if o.client != nil {
		o.client.Close()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.backup == nil {
		return nil
	}
	err := errors.Join(o.backup.Close(), o.backupFile.Close())
	o.backup, o.backupFile = nil, nil
	return err
}
