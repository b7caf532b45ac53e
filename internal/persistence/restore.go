package persistence

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/tilequest/missionengine/internal/mission"
	"github.com/tilequest/missionengine/pkg/core"
)

// Target instantiates live missions of the scope being restored.
type Target interface {
	Instantiate(id int) (*mission.Mission, bool)
}

// Result summarizes a restore.
type Result struct {
	Restored    []*mission.Mission
	Completed   []int
	Notified    []int
	Contributed []string
	Skipped     int
	Dropped     int
	Repairs     int
}

// Snapshot builds the tree for a scope. Completed missions are stored only
// as ids.
func Snapshot(missions []*mission.Mission, completed, notified []int, contributed []string) core.Tree {
	rec := ScopeRecord{
		Completed:   completed,
		Notified:    notified,
		Contributed: contributed,
	}
	for _, m := range missions {
		if m.IsCompleted() {
			if !slices.Contains(rec.Completed, m.ID) {
				rec.Completed = append(rec.Completed, m.ID)
			}
			continue
		}
		rec.Missions = append(rec.Missions, Capture(m))
	}
	slices.Sort(rec.Completed)
	return rec.Encode()
}

// Restore decodes tree and rebuilds the missions it describes through
// target. Malformed records and unknown ids are skipped. A panic during
// restore is returned as an error so the caller can reset the scope.
func Restore(tree core.Tree, target Target, logger *slog.Logger) (res Result, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("restoring missions: %v", r)
		}
	}()

	rec, errs := DecodeScope(tree)
	for _, e := range errs {
		res.Skipped++
		logger.Warn("skipping malformed persisted data", "error", e)
	}

	for _, mr := range rec.Missions {
		if slices.Contains(rec.Completed, mr.ID) {
			continue
		}
		m, ok := target.Instantiate(mr.ID)
		if !ok {
			res.Skipped++
			logger.Warn("skipping persisted mission with no definition", "mission", mr.ID)
			continue
		}
		res.Dropped += len(Reconcile(m, mr, logger))
		res.Repairs += len(Repair(m, logger))
		res.Restored = append(res.Restored, m)
	}

	for _, id := range rec.Completed {
		if m, ok := target.Instantiate(id); ok {
			m.MarkCompleted()
		} else {
			logger.Debug("completed mission has no definition", "mission", id)
		}
	}

	res.Completed = rec.Completed
	res.Notified = rec.Notified
	res.Contributed = rec.Contributed
	return res, nil
}
