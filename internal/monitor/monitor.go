// Package monitor runs the background duties of a host: ticking the engine
// on a fixed interval, autosaving, and keeping a status file current.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tilequest/missionengine/internal/config"
	"github.com/tilequest/missionengine/internal/engine"
)

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Engine *engine.Engine
	Logger *slog.Logger
	Config config.MonitorConfig
}

// Status is what the status file holds.
type Status struct {
	Time         time.Time           `json:"time"`
	World        string              `json:"world,omitempty"`
	Ready        bool                `json:"ready"`
	Tick         uint64              `json:"tick"`
	Participants []ParticipantStatus `json:"participants"`
	LastTick     *engine.TickReport  `json:"lastTick,omitempty"`
	LastSave     time.Time           `json:"lastSave,omitzero"`
	LastSaveErr  string              `json:"lastSaveError,omitempty"`
}

// ParticipantStatus counts one participant's missions.
type ParticipantStatus struct {
	ID        string `json:"id"`
	Available int    `json:"available"`
	Active    int    `json:"active"`
	Completed int    `json:"completed"`
}

// Service manages the background loop.
type Service struct {
	deps Dependencies

	mu        sync.RWMutex
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}
	lastTick  *engine.TickReport
	lastSave  time.Time
	saveErr   error
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the loop is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status builds the current status.
func (s *Service) Status() Status {
	e := s.deps.Engine
	ctx := e.Context()

	st := Status{
		Time:  time.Now().UTC(),
		World: ctx.WorldID(),
		Ready: ctx.Ready(),
		Tick:  ctx.Tick(),
	}
	for _, p := range e.Participants() {
		st.Participants = append(st.Participants, ParticipantStatus{
			ID:        string(p),
			Available: len(e.AvailableMissions(p)),
			Active:    len(e.ActiveMissions(p)),
			Completed: len(e.CompletedMissions(p)),
		})
	}

	s.mu.RLock()
	st.LastTick = s.lastTick
	st.LastSave = s.lastSave
	if s.saveErr != nil {
		st.LastSaveErr = s.saveErr.Error()
	}
	s.mu.RUnlock()
	return st
}

// WriteStatus writes the status as JSON to the configured file. No-op
// without a file.
func (s *Service) WriteStatus() error {
	path := s.deps.Config.StatusFile
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.Status(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating status directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	return os.Rename(tmp, path)
}

// TickOnce advances the engine and remembers the report.
func (s *Service) TickOnce() engine.TickReport {
	report := s.deps.Engine.Tick()
	s.mu.Lock()
	s.lastTick = &report
	s.mu.Unlock()
	if len(report.Unlocked) > 0 {
		s.deps.Logger.Debug("successors unlocked", "tick", report.Tick, "missions", report.Unlocked)
	}
	return report
}

// SaveOnce asks the engine to save. Having no world loaded is not an error.
func (s *Service) SaveOnce() error {
	err := s.deps.Engine.OnSaveRequested()
	if errors.Is(err, engine.ErrNoWorld) {
		return nil
	}
	s.mu.Lock()
	s.lastSave = time.Now().UTC()
	s.saveErr = err
	s.mu.Unlock()
	if err != nil {
		s.deps.Logger.Error("autosave failed", "error", err)
	}
	return err
}

// Start launches the loop. It stops on Stop or when ctx is done.
func (s *Service) Start(ctx context.Context) error {
	cfg := s.deps.Config
	if cfg.TickInterval <= 0 && cfg.SaveInterval <= 0 && cfg.StatusFile == "" {
		return nil
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go s.run(ctx, stop, done)
	return nil
}

func (s *Service) run(ctx context.Context, stop, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		if s.done == done {
			s.isRunning = false
		}
		s.mu.Unlock()
		close(done)
	}()

	cfg := s.deps.Config
	tick := ticker(cfg.TickInterval)
	save := ticker(cfg.SaveInterval)
	status := ticker(time.Second)
	defer tick.Stop()
	defer save.Stop()
	defer status.Stop()

	s.deps.Logger.Debug("monitor started",
		"tickInterval", cfg.TickInterval, "saveInterval", cfg.SaveInterval, "statusFile", cfg.StatusFile)

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-tick.C:
			s.TickOnce()
		case <-save.C:
			_ = s.SaveOnce()
		case <-status.C:
			if err := s.WriteStatus(); err != nil {
				s.deps.Logger.Warn("failed to write status file", "error", err)
			}
		}
	}
}

// Stop ends the loop and waits for it to return.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}

// ticker returns a ticker that never fires for d <= 0.
func ticker(d time.Duration) *time.Ticker {
	if d <= 0 {
		t := time.NewTicker(time.Hour)
		t.Stop()
		return t
	}
	return time.NewTicker(d)
}
