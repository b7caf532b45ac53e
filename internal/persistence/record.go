package persistence

import (
	"errors"
	"fmt"

	"github.com/spf13/cast"

	"github.com/tilequest/missionengine/internal/mission"
	"github.com/tilequest/missionengine/pkg/core"
)

// ErrMalformed marks a persisted record that is missing fields or has the
// wrong types.
var ErrMalformed = errors.New("malformed mission record")

// ObjectiveRecord is the persisted state of one objective.
type ObjectiveRecord struct {
	Description   string
	IsCompleted   bool
	RequiredCount int
	CurrentCount  int
}

// SetRecord is the persisted state of one objective set.
type SetRecord struct {
	HasCheckedInitialInventory bool
	Objectives                 []ObjectiveRecord
}

// MissionRecord is the persisted state of one mission.
type MissionRecord struct {
	ID           int
	Progress     core.Progress
	Availability core.Availability
	Unlocked     bool
	CurrentIndex int
	Sets         []SetRecord
}

// ScopeRecord is the persisted state of a world or participant scope.
type ScopeRecord struct {
	Missions    []MissionRecord
	Completed   []int
	Notified    []int
	Contributed []string
}

// Capture copies the live state of m into a record.
func Capture(m *mission.Mission) MissionRecord {
	rec := MissionRecord{
		ID:           m.ID,
		Progress:     m.Progress,
		Availability: m.Availability,
		Unlocked:     m.Unlocked,
		CurrentIndex: m.CurrentIndex,
		Sets:         make([]SetRecord, 0, len(m.Sets)),
	}
	for _, s := range m.Sets {
		sr := SetRecord{
			HasCheckedInitialInventory: s.HasCheckedInitialInventory,
			Objectives:                 make([]ObjectiveRecord, 0, len(s.Objectives)),
		}
		for _, o := range s.Objectives {
			sr.Objectives = append(sr.Objectives, ObjectiveRecord{
				Description:   o.Description,
				IsCompleted:   o.IsCompleted,
				RequiredCount: o.RequiredCount,
				CurrentCount:  o.CurrentCount,
			})
		}
		rec.Sets = append(rec.Sets, sr)
	}
	return rec
}

// Encode converts the record into its tree form.
func (r MissionRecord) Encode() map[string]any {
	sets := make([]any, 0, len(r.Sets))
	for _, s := range r.Sets {
		objectives := make([]any, 0, len(s.Objectives))
		for _, o := range s.Objectives {
			objectives = append(objectives, map[string]any{
				core.KeyDescription:   o.Description,
				core.KeyIsCompleted:   o.IsCompleted,
				core.KeyRequiredCount: o.RequiredCount,
				core.KeyCurrentCount:  o.CurrentCount,
			})
		}
		sets = append(sets, map[string]any{
			core.KeyCheckedInventory: s.HasCheckedInitialInventory,
			core.KeyObjectives:       objectives,
		})
	}
	return map[string]any{
		core.KeyID:            r.ID,
		core.KeyProgress:      int(r.Progress),
		core.KeyAvailability:  int(r.Availability),
		core.KeyUnlocked:      r.Unlocked,
		core.KeyCurrentIndex:  r.CurrentIndex,
		core.KeyObjectiveSets: sets,
	}
}

// Encode converts the scope record into a tree.
func (r ScopeRecord) Encode() core.Tree {
	missions := make([]any, 0, len(r.Missions))
	for _, m := range r.Missions {
		missions = append(missions, m.Encode())
	}
	tree := core.Tree{
		core.KeyMissions:          missions,
		core.KeyCompletedMissions: intsToAny(r.Completed),
		core.KeyNotifiedMissions:  intsToAny(r.Notified),
	}
	if r.Contributed != nil {
		contributed := make([]any, 0, len(r.Contributed))
		for _, t := range r.Contributed {
			contributed = append(contributed, t)
		}
		tree[core.KeyContributedItems] = contributed
	}
	return tree
}

// DecodeMission reads one mission record. Any missing or mistyped field
// yields an error wrapping ErrMalformed.
func DecodeMission(raw any) (MissionRecord, error) {
	var rec MissionRecord
	m, err := asMap(raw)
	if err != nil {
		return rec, malformed("record", err)
	}

	if rec.ID, err = requireInt(m, core.KeyID); err != nil {
		return rec, err
	}
	progress, err := requireInt(m, core.KeyProgress)
	if err != nil {
		return rec, err
	}
	rec.Progress = core.Progress(progress)
	if !rec.Progress.Valid() {
		return rec, malformed(core.KeyProgress, fmt.Errorf("unknown value %d", progress))
	}
	availability, err := requireInt(m, core.KeyAvailability)
	if err != nil {
		return rec, err
	}
	rec.Availability = core.Availability(availability)
	if !rec.Availability.Valid() {
		return rec, malformed(core.KeyAvailability, fmt.Errorf("unknown value %d", availability))
	}

	rec.Unlocked = rec.Availability != core.AvailabilityLocked
	if v, ok := m[core.KeyUnlocked]; ok {
		if rec.Unlocked, err = cast.ToBoolE(v); err != nil {
			return rec, malformed(core.KeyUnlocked, err)
		}
	}
	if v, ok := m[core.KeyCurrentIndex]; ok {
		if rec.CurrentIndex, err = cast.ToIntE(v); err != nil {
			return rec, malformed(core.KeyCurrentIndex, err)
		}
	}

	rawSets, ok := m[core.KeyObjectiveSets]
	if !ok {
		return rec, malformed(core.KeyObjectiveSets, errors.New("missing"))
	}
	sets, err := cast.ToSliceE(rawSets)
	if err != nil {
		return rec, malformed(core.KeyObjectiveSets, err)
	}
	for i, rs := range sets {
		sr, err := decodeSet(rs)
		if err != nil {
			return rec, fmt.Errorf("set %d: %w", i, err)
		}
		rec.Sets = append(rec.Sets, sr)
	}
	return rec, nil
}

func decodeSet(raw any) (SetRecord, error) {
	var sr SetRecord
	m, err := asMap(raw)
	if err != nil {
		return sr, malformed("objective set", err)
	}
	if v, ok := m[core.KeyCheckedInventory]; ok {
		if sr.HasCheckedInitialInventory, err = cast.ToBoolE(v); err != nil {
			return sr, malformed(core.KeyCheckedInventory, err)
		}
	}
	objectives, err := cast.ToSliceE(m[core.KeyObjectives])
	if err != nil {
		return sr, malformed(core.KeyObjectives, err)
	}
	for _, ro := range objectives {
		om, err := asMap(ro)
		if err != nil {
			return sr, malformed("objective", err)
		}
		var or ObjectiveRecord
		desc, ok := om[core.KeyDescription]
		if !ok {
			return sr, malformed(core.KeyDescription, errors.New("missing"))
		}
		if or.Description, err = cast.ToStringE(desc); err != nil {
			return sr, malformed(core.KeyDescription, err)
		}
		if or.CurrentCount, err = requireInt(om, core.KeyCurrentCount); err != nil {
			return sr, err
		}
		if v, ok := om[core.KeyRequiredCount]; ok {
			if or.RequiredCount, err = cast.ToIntE(v); err != nil {
				return sr, malformed(core.KeyRequiredCount, err)
			}
		}
		if v, ok := om[core.KeyIsCompleted]; ok {
			if or.IsCompleted, err = cast.ToBoolE(v); err != nil {
				return sr, malformed(core.KeyIsCompleted, err)
			}
		}
		sr.Objectives = append(sr.Objectives, or)
	}
	return sr, nil
}

// DecodeScope reads a scope tree. Malformed mission records are skipped and
// returned as errors alongside the records that decoded cleanly.
func DecodeScope(tree core.Tree) (ScopeRecord, []error) {
	var (
		rec  ScopeRecord
		errs []error
		err  error
	)
	if raw, ok := tree[core.KeyMissions]; ok {
		list, err := cast.ToSliceE(raw)
		if err != nil {
			errs = append(errs, malformed(core.KeyMissions, err))
		}
		for i, r := range list {
			mr, err := DecodeMission(r)
			if err != nil {
				errs = append(errs, fmt.Errorf("mission record %d: %w", i, err))
				continue
			}
			rec.Missions = append(rec.Missions, mr)
		}
	}
	if rec.Completed, err = optionalInts(tree, core.KeyCompletedMissions); err != nil {
		errs = append(errs, err)
	}
	if rec.Notified, err = optionalInts(tree, core.KeyNotifiedMissions); err != nil {
		errs = append(errs, err)
	}
	if raw, ok := tree[core.KeyContributedItems]; ok {
		if rec.Contributed, err = cast.ToStringSliceE(raw); err != nil {
			errs = append(errs, malformed(core.KeyContributedItems, err))
		}
	}
	return rec, errs
}

func asMap(v any) (map[string]any, error) {
	switch t := v.(type) {
	case core.Tree:
		return t, nil
	case map[string]any:
		return t, nil
	default:
		return cast.ToStringMapE(v)
	}
}

func requireInt(m map[string]any, key string) (int, error) {
	v, ok := m[key]
	if !ok {
		return 0, malformed(key, errors.New("missing"))
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, malformed(key, err)
	}
	return n, nil
}

func optionalInts(tree core.Tree, key string) ([]int, error) {
	raw, ok := tree[key]
	if !ok || raw == nil {
		return nil, nil
	}
	ids, err := cast.ToIntSliceE(raw)
	if err != nil {
		return nil, malformed(key, err)
	}
	return ids, nil
}

func intsToAny(ids []int) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, id)
	}
	return out
}

func malformed(field string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrMalformed, field, err)
}
