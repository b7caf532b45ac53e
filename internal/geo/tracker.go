package geo

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tilequest/missionengine/internal/config"
	"github.com/tilequest/missionengine/pkg/core"
)

type source int

const (
	fromShape source = iota
	fromHost
)

type stay struct {
	src   source
	dwell time.Duration
	fired int // thresholds already fired, in ascending order
}

// Tracker accumulates how long each participant has stayed in each region
// kind and produces a RegionEntered event when a stay crosses a threshold.
// Every threshold fires once per continuous stay; leaving a kind starts over.
type Tracker struct {
	regions []Region
	cfg     config.RegionConfig

	mu    sync.Mutex
	stays map[core.ParticipantID]map[string]*stay
}

// NewTracker creates a tracker over the given polygon regions.
func NewTracker(regions []Region, cfg config.RegionConfig) *Tracker {
	if cfg.DefaultDwell <= 0 {
		cfg.DefaultDwell = 300 * time.Second
	}
	return &Tracker{
		regions: regions,
		cfg:     cfg,
		stays:   make(map[core.ParticipantID]map[string]*stay),
	}
}

// KindsAt returns the region kinds containing x,y, sorted and unique.
func (t *Tracker) KindsAt(x, y float64) []string {
	var kinds []string
	for _, r := range t.regions {
		if !slices.Contains(kinds, r.Kind) && r.Contains(x, y) {
			kinds = append(kinds, r.Kind)
		}
	}
	slices.Sort(kinds)
	return kinds
}

// ReportPosition records that participant p spent dt at x,y and returns the
// events for thresholds crossed.
func (t *Tracker) ReportPosition(p core.ParticipantID, x, y float64, dt time.Duration) []core.RegionEntered {
	kinds := t.KindsAt(x, y)

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.advance(p, fromShape, kinds, dt)
}

// ObserveRegion records that the host classified participant p as being in
// kind for dt. An empty kind means the participant is in none.
func (t *Tracker) ObserveRegion(p core.ParticipantID, kind string, dt time.Duration) []core.RegionEntered {
	var kinds []string
	if k := strings.ToLower(strings.TrimSpace(kind)); k != "" {
		kinds = []string{k}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.advance(p, fromHost, kinds, dt)
}

// Dwell returns the current continuous stay of p in kind.
func (t *Tracker) Dwell(p core.ParticipantID, kind string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.stays[p][strings.ToLower(kind)]; ok {
		return s.dwell
	}
	return 0
}

// Forget drops all stays of p.
func (t *Tracker) Forget(p core.ParticipantID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.stays, p)
}

// Reset drops every stay.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stays = make(map[core.ParticipantID]map[string]*stay)
}

func (t *Tracker) advance(p core.ParticipantID, src source, kinds []string, dt time.Duration) []core.RegionEntered {
	stays := t.stays[p]
	if stays == nil {
		stays = make(map[string]*stay)
		t.stays[p] = stays
	}

	for kind, s := range stays {
		if s.src == src && !slices.Contains(kinds, kind) {
			delete(stays, kind)
		}
	}
	if dt < 0 {
		dt = 0
	}

	var out []core.RegionEntered
	for _, kind := range kinds {
		s, ok := stays[kind]
		if !ok {
			s = &stay{src: src}
			stays[kind] = s
		}
		s.dwell += dt

		thresholds := slices.Clone(t.cfg.ThresholdsFor(kind))
		slices.Sort(thresholds)
		for s.fired < len(thresholds) && s.dwell >= thresholds[s.fired] {
			out = append(out, core.RegionEntered{
				Base:   core.Base{Participant: p, Amount: 1},
				Region: kind,
				Dwell:  thresholds[s.fired],
			})
			s.fired++
		}
	}
	return out
}
