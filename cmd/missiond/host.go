package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tilequest/missionengine/internal/config"
	"github.com/tilequest/missionengine/internal/dispatcher"
	"github.com/tilequest/missionengine/internal/engine"
	"github.com/tilequest/missionengine/internal/geo"
	"github.com/tilequest/missionengine/internal/influx"
	"github.com/tilequest/missionengine/internal/logging"
	"github.com/tilequest/missionengine/internal/mission"
	"github.com/tilequest/missionengine/internal/monitor"
	"github.com/tilequest/missionengine/internal/notify"
	intotel "github.com/tilequest/missionengine/internal/otel"
	"github.com/tilequest/missionengine/internal/parser"
	"github.com/tilequest/missionengine/internal/registry"
	"github.com/tilequest/missionengine/internal/storage"
	"github.com/tilequest/missionengine/internal/worker"
	"github.com/tilequest/missionengine/pkg/core"
)

type hostOptions struct {
	Start time.Time
	// LogOutput overrides the log file; used by tests.
	LogOutput io.Writer
}

// host owns every long-lived component of a running engine.
type host struct {
	session string
	logger  *slog.Logger
	slog    *logging.SlogManager
	zlog    zerolog.Logger
	otel    *intotel.Provider

	backend    storage.Backend
	engine     *engine.Engine
	dispatcher *dispatcher.Dispatcher
	hub        *notify.Hub
	influx     *influx.Observer
	monitor    *monitor.Service

	cancel  context.CancelFunc
	hubDone chan error
	files   []io.Closer
}

func newHost(ctx context.Context, opts hostOptions) (*host, error) {
	if opts.Start.IsZero() {
		opts.Start = time.Now()
	}
	h := &host{session: uuid.NewString()}
	ctx, h.cancel = context.WithCancel(ctx)

	worldCtx := mission.NewContext()
	if err := h.setupLogging(opts, worldCtx); err != nil {
		h.closeFiles()
		return nil, err
	}

	if err := h.setupEngine(ctx, worldCtx); err != nil {
		_ = h.Close()
		return nil, err
	}

	h.logger.Info("mission engine started",
		"version", Version, "definitions", h.engine.Definitions().Len(), "storage", config.GetStorageConfig().Type)
	return h, nil
}

func (h *host) setupLogging(opts hostOptions, worldCtx *mission.Context) error {
	level := config.GetString("logLevel")
	logsDir := config.GetString("logsDir")

	out := opts.LogOutput
	if out == nil && logsDir != "" && logsDir != "-" {
		f, err := h.openLog(logging.LogFilePath(logsDir, binaryName, opts.Start))
		if err != nil {
			return err
		}
		out = f
	}

	var otelWriter io.Writer
	otelCfg := config.GetOTelConfig()
	switch {
	case !otelCfg.Enabled || otelCfg.Endpoint != "":
	case opts.LogOutput != nil:
		otelWriter = io.Discard
	case logsDir != "" && logsDir != "-":
		f, err := h.openLog(logging.LogFilePath(logsDir, binaryName+".otel", opts.Start))
		if err != nil {
			return err
		}
		otelWriter = f
	}
	provider, err := intotel.New(otelCfg, otelWriter)
	if err != nil {
		return fmt.Errorf("setting up otel: %w", err)
	}
	h.otel = provider

	var graylog io.Writer
	if config.GetBool("graylog.enabled") {
		w, err := logging.NewGELFWriter(config.GetString("graylog.address"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "graylog disabled:", err)
		} else {
			graylog = w
			if c, ok := any(w).(io.Closer); ok {
				h.files = append(h.files, c)
			}
		}
	}

	sessionAttr := slog.String("session", h.session)
	h.slog = logging.NewSlogManager()
	h.slog.Setup(logging.Options{
		File:     out,
		Level:    level,
		Provider: provider.LoggerProvider(),
		Graylog:  graylog,
		Name:     binaryName,
		Context: func() []slog.Attr {
			return append(worldCtx.Attrs(), sessionAttr)
		},
	})
	h.logger = h.slog.Logger()

	zout := out
	if zout == nil {
		zout = os.Stderr
	}
	h.zlog = logging.NewZerolog(zout, level).With().Str("session", h.session).Logger()
	return nil
}

func (h *host) openLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	h.files = append(h.files, f)
	return f, nil
}

func (h *host) setupEngine(ctx context.Context, worldCtx *mission.Context) error {
	defs, err := loadDefinitions(config.GetString("definitions.path"))
	if err != nil {
		return err
	}
	tracker, err := loadTracker()
	if err != nil {
		return err
	}

	backend, err := createStorageBackend(config.GetStorageConfig(), h.logger, h.zlog)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	h.backend = backend

	presenters := notify.Multi{notify.NewLogPresenter(h.logger)}
	if nc := config.GetNotifyConfig(); nc.WebsocketEnabled {
		h.hub = notify.NewHub(h.logger)
		h.hubDone = make(chan error, 1)
		go func() { h.hubDone <- h.hub.Serve(ctx, nc.WebsocketAddr) }()
		presenters = append(presenters, h.hub)
	}

	h.engine, err = engine.New(engine.Dependencies{
		Definitions: defs,
		Backend:     backend,
		Logger:      h.logger,
		Rewarder:    logRewarder{logger: h.logger},
		Presenter:   presenters,
		Regions:     tracker,
		Context:     worldCtx,
	})
	if err != nil {
		return err
	}

	if ic := config.GetInfluxConfig(); ic.Enabled {
		obs := influx.New(ic, h.zlog)
		if err := obs.Connect(ctx); err != nil {
			h.logger.Warn("influx observer disabled", "error", err)
		} else {
			h.influx = obs
			h.engine.Observe(obs)
		}
	}

	h.dispatcher, err = dispatcher.New(logging.NewDispatcherLogger(h.zlog))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	worker.NewManager(worker.Dependencies{
		Engine:         h.engine,
		Parser:         parser.NewParser(h.logger),
		Logger:         h.logger,
		PositionBuffer: config.GetInt("dispatcher.positionBuffer"),
	}).RegisterHandlers(h.dispatcher)

	h.monitor = monitor.NewService(monitor.Dependencies{
		Engine: h.engine,
		Logger: h.logger,
		Config: config.GetMonitorConfig(),
	})
	return h.monitor.Start(ctx)
}

// loadWorld loads and readies a world through the dispatcher, as a host
// would on startup.
func (h *host) loadWorld(world string) error {
	for _, cmd := range []dispatcher.Event{
		{Command: ":WORLD:LOAD:", Args: []string{world}},
		{Command: ":WORLD:READY:"},
	} {
		if _, err := h.dispatcher.Dispatch(cmd); err != nil {
			return fmt.Errorf("%s %s: %w", cmd.Command, world, err)
		}
	}
	return nil
}

func (h *host) shell(out io.Writer) *shell {
	return newShell(h.dispatcher, out, h.logger)
}

// Close saves and unloads the world, then stops every component in
// reverse start order.
func (h *host) Close() error {
	var errs []error

	if h.monitor != nil {
		h.monitor.Stop()
	}
	if h.dispatcher != nil {
		h.dispatcher.Close()
	}
	if h.engine != nil {
		if err := h.engine.OnWorldUnload(); err != nil && !errors.Is(err, engine.ErrNoWorld) {
			errs = append(errs, fmt.Errorf("saving on exit: %w", err))
		}
	}

	h.cancel()
	if h.hubDone != nil {
		if err := <-h.hubDone; err != nil {
			errs = append(errs, err)
		}
	}
	if h.influx != nil {
		errs = append(errs, h.influx.Close())
	}
	if h.backend != nil {
		if err := h.backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing storage: %w", err))
		}
	}
	if h.otel != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, h.otel.Shutdown(shutdownCtx))
		cancel()
	}
	if h.logger != nil {
		h.logger.Info("mission engine stopped")
	}
	h.closeFiles()
	return errors.Join(errs...)
}

func (h *host) closeFiles() {
	for i := len(h.files) - 1; i >= 0; i-- {
		_ = h.files[i].Close()
	}
	h.files = nil
}

func loadDefinitions(path string) (*registry.Definitions, error) {
	defs := registry.NewDefinitions()
	if err := defs.LoadPath(path); err != nil {
		return nil, fmt.Errorf("loading definitions: %w", err)
	}
	if err := defs.Validate(); err != nil {
		return nil, fmt.Errorf("validating definitions: %w", err)
	}
	return defs, nil
}

func loadTracker() (*geo.Tracker, error) {
	cfg := config.GetRegionConfig()
	var regions []geo.Region
	if cfg.ShapesFile != "" {
		var err error
		if regions, err = geo.LoadRegionsFile(cfg.ShapesFile); err != nil {
			return nil, fmt.Errorf("loading region shapes: %w", err)
		}
	}
	return geo.NewTracker(regions, cfg), nil
}

// logRewarder records granted rewards; the host owns no inventory.
type logRewarder struct {
	logger *slog.Logger
}

func (r logRewarder) ApplyReward(p core.ParticipantID, missionID int, reward core.Reward) {
	r.logger.Info("reward granted",
		"participant", p, "mission", missionID, "points", reward.Points, "items", len(reward.Items))
}
