package scope

import (
	"github.com/tilequest/missionengine/internal/broadcast"
	"github.com/tilequest/missionengine/internal/cache"
	"github.com/tilequest/missionengine/internal/mission"
	"github.com/tilequest/missionengine/internal/registry"
	"github.com/tilequest/missionengine/pkg/core"
)

// WorldName is the scope name used for the world in logs and metrics.
const WorldName = "world"

// Audience is the set of participants connected to a world.
type Audience interface {
	// Participants returns the connected participants in join order.
	Participants() []core.ParticipantID
	// Ledger returns a participant's contribution ledger, or nil if the
	// participant is unknown.
	Ledger(id core.ParticipantID) broadcast.Ledger
}

// World holds the mainline missions of one world. Every mutation happens
// once here and is fanned out to all connected participants as read-only
// notifications.
type World struct {
	*base
	id       string
	audience Audience
	// stray collects passive contributions of participants that are not
	// connected, so their items still count once.
	stray *cache.ContributionLedger
	// unclaimed rewards of missions completed while nobody was connected
	unclaimed []pendingReward
}

type pendingReward struct {
	mission int
	reward  core.Reward
}

// NewWorld creates the world scope. audience may be nil until participants
// can connect.
func NewWorld(id string, defs *registry.Definitions, env Env, audience Audience) (*World, error) {
	b, err := newBase(WorldName, true, "", defs, env)
	if err != nil {
		return nil, err
	}
	w := &World{
		base:     b,
		id:       id,
		audience: audience,
		stray:    cache.NewContributionLedger(),
	}
	b.recipients = w.participants
	b.ledgerFor = w.ledger
	b.resetMore = func() {
		w.stray.Reset()
		w.unclaimed = nil
	}
	b.unclaimed = func(m *mission.Mission) {
		w.logger.Info("reward held until a participant joins", "mission", m.ID)
		w.unclaimed = append(w.unclaimed, pendingReward{mission: m.ID, reward: m.Reward})
	}
	return w, nil
}

// ID returns the world id.
func (w *World) ID() string {
	return w.id
}

func (w *World) participants() []core.ParticipantID {
	if w.audience == nil {
		return nil
	}
	return w.audience.Participants()
}

func (w *World) ledger(id core.ParticipantID) broadcast.Ledger {
	if w.audience != nil {
		if l := w.audience.Ledger(id); l != nil {
			return l
		}
	}
	return w.stray
}

// Welcome brings a newly connected participant up to date. Rewards held
// since nobody was connected go to them, their inventory is checked
// against active missions, and they get a notification per visible mission.
func (w *World) Welcome(id core.ParticipantID) {
	w.grantUnclaimed(id)

	for _, m := range w.Missions() {
		switch {
		case m.IsActive():
			w.presentTo(id, m, core.NotifyStarted)
			if w.env.Inventory != nil && !w.Pending() {
				w.feedHoldings(m, id)
			}
		case m.IsAvailable():
			w.presentTo(id, m, core.NotifyUnlocked)
		}
	}
}

// UnclaimedRewards returns the ids of missions whose reward waits for a
// participant.
func (w *World) UnclaimedRewards() []int {
	out := make([]int, 0, len(w.unclaimed))
	for _, r := range w.unclaimed {
		out = append(out, r.mission)
	}
	return out
}

func (w *World) grantUnclaimed(id core.ParticipantID) {
	if len(w.unclaimed) == 0 || w.env.Rewarder == nil {
		return
	}
	for _, r := range w.unclaimed {
		w.env.Rewarder.ApplyReward(id, r.mission, r.reward)
		w.logger.Info("held reward granted", "mission", r.mission, "participant", id)
	}
	w.unclaimed = nil
}
