package scope

import (
	"github.com/tilequest/missionengine/internal/broadcast"
	"github.com/tilequest/missionengine/internal/cache"
	"github.com/tilequest/missionengine/internal/persistence"
	"github.com/tilequest/missionengine/internal/registry"
	"github.com/tilequest/missionengine/pkg/core"
)

// Participant holds the sideline missions of one participant. Nothing here
// is visible to other participants.
type Participant struct {
	*base
	id     core.ParticipantID
	ledger *cache.ContributionLedger
}

// NewParticipant creates the scope of participant id.
func NewParticipant(id core.ParticipantID, defs *registry.Definitions, env Env) (*Participant, error) {
	b, err := newBase(string(id), false, id, defs, env)
	if err != nil {
		return nil, err
	}
	p := &Participant{
		base:   b,
		id:     id,
		ledger: cache.NewContributionLedger(),
	}
	b.recipients = func() []core.ParticipantID { return []core.ParticipantID{id} }
	b.ledgerFor = func(core.ParticipantID) broadcast.Ledger { return p.ledger }
	b.contributed = p.ledger.Tokens
	b.restoreMore = func(res persistence.Result) { p.ledger.Restore(res.Contributed) }
	b.resetMore = p.ledger.Reset
	return p, nil
}

// ID returns the participant id.
func (p *Participant) ID() core.ParticipantID {
	return p.id
}

// Ledger returns the participant's item contribution ledger. The world
// scope shares it so an item counts once across mainline and sideline
// missions.
func (p *Participant) Ledger() *cache.ContributionLedger {
	return p.ledger
}
