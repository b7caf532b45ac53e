package persistence

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tilequest/missionengine/internal/mission"
	"github.com/tilequest/missionengine/pkg/core"
)

// Reconcile copies a persisted record onto a freshly instantiated mission.
// Objectives are matched by description, ignoring case, first within the
// same set and then in another set whose own record does not list that
// description. Counts are clamped to the current definition. Persisted objectives with no match are dropped.
// It returns the descriptions that were dropped.
func Reconcile(m *mission.Mission, rec MissionRecord, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}
	m.Progress = rec.Progress
	m.Availability = rec.Availability
	m.Unlocked = rec.Unlocked
	m.CurrentIndex = rec.CurrentIndex

	var dropped []string
	for si, sr := range rec.Sets {
		if si < len(m.Sets) {
			m.Sets[si].HasCheckedInitialInventory = sr.HasCheckedInitialInventory
		}
		for _, or := range sr.Objectives {
			o := findObjective(m, rec, si, or.Description)
			if o == nil {
				dropped = append(dropped, or.Description)
				logger.Warn("dropping persisted objective with no current match",
					"mission", m.ID,
					"participant", m.Owner,
					"set", si,
					"objective", or.Description)
				continue
			}
			o.CurrentCount = clampCount(or.CurrentCount, o.RequiredCount)
			o.IsCompleted = or.IsCompleted
		}
	}
	return dropped
}

func findObjective(m *mission.Mission, rec MissionRecord, preferred int, desc string) *mission.Objective {
	if preferred < len(m.Sets) {
		if i := m.Sets[preferred].Find(desc); i >= 0 {
			return m.Sets[preferred].Objectives[i]
		}
	}
	for si, s := range m.Sets {
		if si == preferred || recordLists(rec, si, desc) {
			continue
		}
		if i := s.Find(desc); i >= 0 {
			return s.Objectives[i]
		}
	}
	return nil
}

// recordLists reports whether the persisted set at index si carries an
// objective named desc.
func recordLists(rec MissionRecord, si int, desc string) bool {
	if si >= len(rec.Sets) {
		return false
	}
	for _, or := range rec.Sets[si].Objectives {
		if strings.EqualFold(or.Description, desc) {
			return true
		}
	}
	return false
}

func clampCount(n, required int) int {
	return max(0, min(n, required))
}

// Repair fixes invariant violations that have an unambiguous correction and
// logs the rest. It returns a description of each fix applied.
func Repair(m *mission.Mission, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}
	var fixes []string
	fix := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		fixes = append(fixes, msg)
		logger.Info("repaired mission state", "mission", m.ID, "participant", m.Owner, "fix", msg)
	}

	if m.CurrentIndex < 0 || m.CurrentIndex >= len(m.Sets) {
		fix("currentIndex %d out of range [0,%d), reset to 0", m.CurrentIndex, len(m.Sets))
		m.CurrentIndex = 0
	}

	for si, s := range m.Sets {
		for _, o := range s.Objectives {
			switch {
			case o.CurrentCount > o.RequiredCount:
				fix("set %d %q: currentCount %d clamped to %d", si, o.Description, o.CurrentCount, o.RequiredCount)
				o.CurrentCount = o.RequiredCount
			case o.CurrentCount < 0:
				fix("set %d %q: negative currentCount %d clamped to 0", si, o.Description, o.CurrentCount)
				o.CurrentCount = 0
			}
			if o.IsCompleted && o.CurrentCount < o.RequiredCount {
				fix("set %d %q: completed with %d/%d, count raised", si, o.Description, o.CurrentCount, o.RequiredCount)
				o.CurrentCount = o.RequiredCount
			}
			if !o.IsCompleted && o.CurrentCount == o.RequiredCount {
				fix("set %d %q: count reached %d, marked completed", si, o.Description, o.RequiredCount)
				o.IsCompleted = true
			}
		}
	}

	switch m.Progress {
	case core.ProgressInactive:
		if m.Availability == core.AvailabilityCompleted {
			logger.Warn("mission availability completed but never finished",
				"mission", m.ID,
				"participant", m.Owner)
		}
	case core.ProgressActive:
		if m.Availability != core.AvailabilityUnlocked {
			fix("active with availability %s, set to unlocked", m.Availability)
			m.Availability = core.AvailabilityUnlocked
		}
	case core.ProgressCompleted:
		if m.Availability != core.AvailabilityCompleted {
			fix("completed with availability %s, set to completed", m.Availability)
			m.Availability = core.AvailabilityCompleted
		}
		if !m.AllSetsCompleted() {
			logger.Warn("mission marked completed but objectives are incomplete",
				"mission", m.ID,
				"participant", m.Owner)
		}
	}
	if m.Availability != core.AvailabilityLocked && !m.Unlocked {
		fix("availability %s but unlocked flag unset", m.Availability)
		m.Unlocked = true
	}
	return fixes
}
