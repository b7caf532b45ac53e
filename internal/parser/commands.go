package parser

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tilequest/missionengine/pkg/core"
)

// MissionRef is the argument list of a :MISSION:*: command.
type MissionRef struct {
	Participant core.ParticipantID
	ID          int
	Announce    bool
	Provider    core.ProviderID
}

// Position is a :POSITION: report.
type Position struct {
	Participant core.ParticipantID
	X, Y        float64
	Elapsed     time.Duration
}

// RegionStay is a :REGION: report: the host classified the participant's
// surroundings as Kind for Elapsed.
type RegionStay struct {
	Participant core.ParticipantID
	Kind        string
	Elapsed     time.Duration
}

// ParseName parses a single non-empty name (world id, participant id).
func (p *Parser) ParseName(what string, raw []string) (string, error) {
	data, err := p.args(what, raw, 1, 1)
	if err != nil {
		return "", err
	}
	if data[0] == "" {
		return "", fmt.Errorf("%s: name is empty", what)
	}
	return data[0], nil
}

// ParseParticipant parses a participant id argument.
func (p *Parser) ParseParticipant(raw []string) (core.ParticipantID, error) {
	name, err := p.ParseName("participant", raw)
	return core.ParticipantID(name), err
}

// ParseMissionRef parses: participant, missionID [, announce].
// For :MISSION:PROVIDER: the third argument is the provider instead.
func (p *Parser) ParseMissionRef(raw []string, withProvider bool) (MissionRef, error) {
	data, err := p.args("mission", raw, 2, 3)
	if err != nil {
		return MissionRef{}, err
	}
	id, err := participantOf("mission", data[0])
	if err != nil {
		return MissionRef{}, err
	}
	mid, err := parseIntFromFloat(data[1])
	if err != nil {
		return MissionRef{}, fmt.Errorf("mission: invalid id %q: %w", data[1], err)
	}
	if mid < 0 {
		return MissionRef{}, fmt.Errorf("mission: id %d is negative", mid)
	}

	ref := MissionRef{Participant: id, ID: int(mid), Announce: true}
	if withProvider {
		ref.Provider = core.ProviderID(data[2])
		return ref, nil
	}
	if data[2] != "" {
		if ref.Announce, err = parseFlag(data[2]); err != nil {
			return MissionRef{}, fmt.Errorf("mission: invalid announce flag: %w", err)
		}
	}
	return ref, nil
}

// ParseProviderQuery parses: participant, provider.
func (p *Parser) ParseProviderQuery(raw []string) (core.ParticipantID, core.ProviderID, error) {
	data, err := p.args("provider query", raw, 2, 2)
	if err != nil {
		return "", "", err
	}
	id, err := participantOf("provider query", data[0])
	if err != nil {
		return "", "", err
	}
	if data[1] == "" {
		return "", "", fmt.Errorf("provider query: provider is empty")
	}
	return id, core.ProviderID(data[1]), nil
}

// ParsePosition parses: participant, x, y [, elapsed].
func (p *Parser) ParsePosition(raw []string) (Position, error) {
	data, err := p.args("position", raw, 3, 4)
	if err != nil {
		return Position{}, err
	}
	id, err := participantOf("position", data[0])
	if err != nil {
		return Position{}, err
	}
	pos := Position{Participant: id}
	if pos.X, err = strconv.ParseFloat(data[1], 64); err != nil {
		return Position{}, fmt.Errorf("position: invalid x: %w", err)
	}
	if pos.Y, err = strconv.ParseFloat(data[2], 64); err != nil {
		return Position{}, fmt.Errorf("position: invalid y: %w", err)
	}
	if pos.Elapsed, err = parseDuration(data[3]); err != nil {
		return Position{}, fmt.Errorf("position: %w", err)
	}
	return pos, nil
}

// ParseRegionStay parses: participant, kind [, elapsed]. An empty kind
// means the participant is in no classified region.
func (p *Parser) ParseRegionStay(raw []string) (RegionStay, error) {
	data, err := p.args("region", raw, 1, 3)
	if err != nil {
		return RegionStay{}, err
	}
	id, err := participantOf("region", data[0])
	if err != nil {
		return RegionStay{}, err
	}
	elapsed, err := parseDuration(data[2])
	if err != nil {
		return RegionStay{}, fmt.Errorf("region: %w", err)
	}
	return RegionStay{Participant: id, Kind: data[1], Elapsed: elapsed}, nil
}
