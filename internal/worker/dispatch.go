package worker

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tilequest/missionengine/internal/dispatcher"
	"github.com/tilequest/missionengine/internal/engine"
	"github.com/tilequest/missionengine/internal/parser"
	"github.com/tilequest/missionengine/pkg/core"
)

// Results returned by command handlers that have nothing else to report.
const (
	resultOK = "ok"
)

// RegisterHandlers registers all command handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	opts := []dispatcher.Option{dispatcher.Guarded(), dispatcher.Logged()}

	// Lifecycle - sync, order matters
	d.Register(":WORLD:LOAD:", m.handleWorldLoad, opts...)
	d.Register(":WORLD:READY:", m.handleWorldReady, opts...)
	d.Register(":WORLD:UNLOAD:", m.handleWorldUnload, opts...)
	d.Register(":PARTICIPANT:JOIN:", m.handleParticipantJoin, opts...)
	d.Register(":PARTICIPANT:LEAVE:", m.handleParticipantLeave, opts...)
	d.Register(":SAVE:", m.handleSave, opts...)
	d.Register(":TICK:", m.handleTick, opts...)

	// Gameplay events - one command per kind
	for _, kind := range core.EventKinds {
		d.Register(parser.EventCommand(kind), m.eventHandler(kind), opts...)
	}

	// Position reports - high volume, optionally queued
	posOpts := opts
	if m.deps.PositionBuffer > 0 {
		posOpts = append([]dispatcher.Option{dispatcher.Buffered(m.deps.PositionBuffer)}, opts...)
	}
	d.Register(":POSITION:", m.handlePosition, posOpts...)
	d.Register(":REGION:", m.handleRegion, posOpts...)

	// Mission commands
	d.Register(":MISSION:UNLOCK:", m.missionHandler(false, func(r parser.MissionRef) error {
		return m.engine.UnlockMission(r.Participant, r.ID, r.Announce)
	}), opts...)
	d.Register(":MISSION:START:", m.missionHandler(false, func(r parser.MissionRef) error {
		return m.engine.StartMission(r.Participant, r.ID)
	}), opts...)
	d.Register(":MISSION:COMPLETE:", m.missionHandler(false, func(r parser.MissionRef) error {
		return m.engine.CompleteMission(r.Participant, r.ID)
	}), opts...)
	d.Register(":MISSION:RESET:", m.missionHandler(false, func(r parser.MissionRef) error {
		return m.engine.ResetMission(r.Participant, r.ID)
	}), opts...)
	d.Register(":MISSION:PROVIDER:", m.missionHandler(true, func(r parser.MissionRef) error {
		return m.engine.AssignProvider(r.Participant, r.ID, r.Provider)
	}), opts...)

	// Queries - results are JSON
	d.Register(":QUERY:AVAILABLE:", m.listHandler(m.engine.AvailableMissions), opts...)
	d.Register(":QUERY:ACTIVE:", m.listHandler(m.engine.ActiveMissions), opts...)
	d.Register(":QUERY:COMPLETED:", m.listHandler(m.engine.CompletedMissions), opts...)
	d.Register(":QUERY:HAS_PROVIDER:", m.handleHasProvider, opts...)
	d.Register(":QUERY:MISSION:", m.handleGetMission, opts...)
	d.Register(":QUERY:SNAPSHOT:", m.handleSnapshot, opts...)
}

func (m *Manager) handleWorldLoad(e dispatcher.Event) (any, error) {
	id, err := m.parser.ParseName("world", e.Args)
	if err != nil {
		return nil, err
	}
	if err := m.engine.OnWorldLoad(id); err != nil {
		return nil, err
	}
	return resultOK, nil
}

func (m *Manager) handleWorldReady(e dispatcher.Event) (any, error) {
	if err := m.engine.MarkWorldReady(); err != nil {
		return nil, err
	}
	return resultOK, nil
}

func (m *Manager) handleWorldUnload(e dispatcher.Event) (any, error) {
	if err := m.engine.OnWorldUnload(); err != nil {
		return nil, err
	}
	return resultOK, nil
}

func (m *Manager) handleParticipantJoin(e dispatcher.Event) (any, error) {
	id, err := m.parser.ParseParticipant(e.Args)
	if err != nil {
		return nil, err
	}
	if err := m.engine.OnParticipantJoin(id); err != nil {
		return nil, err
	}
	return resultOK, nil
}

func (m *Manager) handleParticipantLeave(e dispatcher.Event) (any, error) {
	id, err := m.parser.ParseParticipant(e.Args)
	if err != nil {
		return nil, err
	}
	if err := m.engine.OnParticipantLeave(id); err != nil {
		return nil, err
	}
	return resultOK, nil
}

func (m *Manager) handleSave(e dispatcher.Event) (any, error) {
	if err := m.engine.OnSaveRequested(); err != nil {
		return nil, err
	}
	return resultOK, nil
}

func (m *Manager) handleTick(e dispatcher.Event) (any, error) {
	count := 1
	if len(e.Args) > 0 && e.Args[0] != "" {
		n, err := strconv.Atoi(e.Args[0])
		if err != nil || n < 1 {
			return nil, fmt.Errorf("tick: invalid count %q", e.Args[0])
		}
		count = n
	}
	var report engine.TickReport
	for i := 0; i < count; i++ {
		r := m.engine.Tick()
		report.Tick = r.Tick
		report.Unlocked = append(report.Unlocked, r.Unlocked...)
		report.Waiting = r.Waiting
	}
	return report, nil
}

func (m *Manager) eventHandler(kind core.EventKind) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (any, error) {
		ev, err := m.parser.ParseEvent(kind, e.Args)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s event: %w", kind, err)
		}
		return m.engine.Broadcast(ev), nil
	}
}

func (m *Manager) handlePosition(e dispatcher.Event) (any, error) {
	pos, err := m.parser.ParsePosition(e.Args)
	if err != nil {
		return nil, err
	}
	return m.engine.ReportPosition(pos.Participant, pos.X, pos.Y, pos.Elapsed), nil
}

func (m *Manager) handleRegion(e dispatcher.Event) (any, error) {
	stay, err := m.parser.ParseRegionStay(e.Args)
	if err != nil {
		return nil, err
	}
	return m.engine.ObserveRegion(stay.Participant, stay.Kind, stay.Elapsed), nil
}

func (m *Manager) missionHandler(withProvider bool, run func(parser.MissionRef) error) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (any, error) {
		ref, err := m.parser.ParseMissionRef(e.Args, withProvider)
		if err != nil {
			return nil, err
		}
		if err := run(ref); err != nil {
			return nil, err
		}
		return resultOK, nil
	}
}

func (m *Manager) listHandler(list func(core.ParticipantID) []engine.MissionView) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (any, error) {
		id, err := m.parser.ParseParticipant(e.Args)
		if err != nil {
			return nil, err
		}
		return marshal(list(id))
	}
}

func (m *Manager) handleHasProvider(e dispatcher.Event) (any, error) {
	id, provider, err := m.parser.ParseProviderQuery(e.Args)
	if err != nil {
		return nil, err
	}
	return strconv.FormatBool(m.engine.HasAvailableMissionFor(id, provider)), nil
}

func (m *Manager) handleGetMission(e dispatcher.Event) (any, error) {
	ref, err := m.parser.ParseMissionRef(e.Args, false)
	if err != nil {
		return nil, err
	}
	v, ok := m.engine.GetMission(ref.Participant, ref.ID)
	if !ok {
		return nil, fmt.Errorf("mission %d not visible to %s", ref.ID, ref.Participant)
	}
	return marshal(v)
}

func (m *Manager) handleSnapshot(e dispatcher.Event) (any, error) {
	snap := m.engine.Snapshot()
	if snap == nil {
		return nil, engine.ErrNoWorld
	}
	return marshal(snap)
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(b), nil
}
