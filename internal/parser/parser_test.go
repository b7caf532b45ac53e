package parser

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilequest/missionengine/pkg/core"
)

func newTestParser() *Parser {
	return NewParser(slog.Default())
}

func TestParseIntFromFloat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"integer", "32", 32, false},
		{"negative", "-4", -4, false},
		{"float with decimals", "32.00", 32, false},
		{"fractional rejects", "10.5", 0, true},
		{"empty string", "", 0, true},
		{"non-numeric", "ten", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIntFromFloat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"300", 300 * time.Second, false},
		{"1.5", 1500 * time.Millisecond, false},
		{"5m", 5 * time.Minute, false},
		{"-3", 0, true},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseDuration(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEventCommandRoundTrip(t *testing.T) {
	for _, k := range core.EventKinds {
		cmd := EventCommand(k)
		got, ok := KindOfCommand(cmd)
		require.True(t, ok, cmd)
		assert.Equal(t, k, got)
	}

	assert.Equal(t, ":EVENT:ITEM_ACQUIRED:", EventCommand(core.KindItemAcquired))

	_, ok := KindOfCommand(":EVENT:MOON_LANDED:")
	assert.False(t, ok)
	_, ok = KindOfCommand(":TICK:")
	assert.False(t, ok)
}

func TestParseEvent(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name string
		kind core.EventKind
		args []string
		want core.Event
	}{
		{
			name: "tile broken",
			kind: core.KindTileBroken,
			args: []string{`"alice"`, `"copper_ore"`, "12", "40.00"},
			want: core.TileBroken{Base: core.Base{Participant: "alice"}, X: 12, Y: 40, Tile: "copper_ore"},
		},
		{
			name: "tile placed with amount",
			kind: core.KindTilePlaced,
			args: []string{"bob", "torch", "-3", "7", "2"},
			want: core.TilePlaced{Base: core.Base{Participant: "bob", Amount: 2}, X: -3, Y: 7, Tile: "torch"},
		},
		{
			name: "entity defeated",
			kind: core.KindEntityDefeated,
			args: []string{"alice", "slime"},
			want: core.EntityDefeated{Base: core.Base{Participant: "alice"}, Entity: "slime"},
		},
		{
			name: "entity damaged amount is damage",
			kind: core.KindEntityDamaged,
			args: []string{"alice", "eye_of_cthulhu", "35"},
			want: core.EntityDamaged{Base: core.Base{Participant: "alice", Amount: 35}, Entity: "eye_of_cthulhu"},
		},
		{
			name: "dialogue",
			kind: core.KindEntityDialogueOpened,
			args: []string{"alice", "guide"},
			want: core.EntityDialogueOpened{Base: core.Base{Participant: "alice"}, Entity: "guide"},
		},
		{
			name: "active pickup",
			kind: core.KindItemAcquired,
			args: []string{"alice", "wood", "5"},
			want: core.ItemAcquired{Base: core.Base{Participant: "alice", Amount: 5}, Item: "wood"},
		},
		{
			name: "passive pickup",
			kind: core.KindItemAcquired,
			args: []string{"alice", "wood", "5", "tok-1", "true"},
			want: core.ItemAcquired{Base: core.Base{Participant: "alice", Amount: 5}, Item: "wood", Token: "tok-1", Passive: true},
		},
		{
			name: "crafted with token",
			kind: core.KindItemCrafted,
			args: []string{"alice", "workbench", "1", "tok-9"},
			want: core.ItemCrafted{Base: core.Base{Participant: "alice", Amount: 1}, Item: "workbench", Token: "tok-9"},
		},
		{
			name: "used",
			kind: core.KindItemUsed,
			args: []string{"alice", "healing_potion"},
			want: core.ItemUsed{Base: core.Base{Participant: "alice"}, Item: "healing_potion"},
		},
		{
			name: "region entered",
			kind: core.KindRegionEntered,
			args: []string{"alice", "desert", "300"},
			want: core.RegionEntered{Base: core.Base{Participant: "alice"}, Region: "desert", Dwell: 300 * time.Second},
		},
		{
			name: "extra args ignored",
			kind: core.KindEntityDefeated,
			args: []string{"alice", "slime", "1", "ignored"},
			want: core.EntityDefeated{Base: core.Base{Participant: "alice", Amount: 1}, Entity: "slime"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.ParseEvent(tt.kind, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.kind, got.Kind())
		})
	}
}

func TestParseEvent_Errors(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name string
		kind core.EventKind
		args []string
	}{
		{"unknown kind", core.EventKind("moon_landed"), []string{"alice"}},
		{"too few args", core.KindTileBroken, []string{"alice", "dirt"}},
		{"empty participant", core.KindEntityDefeated, []string{`""`, "slime"}},
		{"empty entity", core.KindEntityDefeated, []string{"alice", ""}},
		{"bad coordinate", core.KindTileBroken, []string{"alice", "dirt", "x", "1"}},
		{"negative amount", core.KindItemAcquired, []string{"alice", "wood", "-1"}},
		{"fractional amount", core.KindItemAcquired, []string{"alice", "wood", "1.5"}},
		{"bad passive flag", core.KindItemAcquired, []string{"alice", "wood", "1", "tok", "maybe"}},
		{"passive without token", core.KindItemAcquired, []string{"alice", "wood", "1", "", "1"}},
		{"empty region", core.KindRegionEntered, []string{"alice", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ParseEvent(tt.kind, tt.args)
			assert.Error(t, err)
		})
	}
}

func TestParseMissionRef(t *testing.T) {
	p := newTestParser()

	ref, err := p.ParseMissionRef([]string{"alice", "10"}, false)
	require.NoError(t, err)
	assert.Equal(t, MissionRef{Participant: "alice", ID: 10, Announce: true}, ref)

	ref, err = p.ParseMissionRef([]string{"alice", "10.0", "false"}, false)
	require.NoError(t, err)
	assert.False(t, ref.Announce)
	assert.Equal(t, 10, ref.ID)

	ref, err = p.ParseMissionRef([]string{"alice", "10", `"merchant"`}, true)
	require.NoError(t, err)
	assert.Equal(t, core.ProviderID("merchant"), ref.Provider)

	ref, err = p.ParseMissionRef([]string{"alice", "10"}, true)
	require.NoError(t, err)
	assert.Empty(t, ref.Provider, "missing provider clears the assignment")

	for _, bad := range [][]string{
		{"alice"},
		{"", "10"},
		{"alice", "ten"},
		{"alice", "-1"},
		{"alice", "10", "loud"},
	} {
		_, err := p.ParseMissionRef(bad, false)
		assert.Error(t, err, "%q", bad)
	}
}

func TestParseNameAndParticipant(t *testing.T) {
	p := newTestParser()

	name, err := p.ParseName("world", []string{`"forest_world"`})
	require.NoError(t, err)
	assert.Equal(t, "forest_world", name)

	_, err = p.ParseName("world", nil)
	assert.Error(t, err)

	id, err := p.ParseParticipant([]string{"alice"})
	require.NoError(t, err)
	assert.Equal(t, core.ParticipantID("alice"), id)

	_, err = p.ParseParticipant([]string{`""`})
	assert.Error(t, err)
}

func TestParseProviderQuery(t *testing.T) {
	p := newTestParser()

	id, provider, err := p.ParseProviderQuery([]string{"alice", "carpenter"})
	require.NoError(t, err)
	assert.Equal(t, core.ParticipantID("alice"), id)
	assert.Equal(t, core.ProviderID("carpenter"), provider)

	_, _, err = p.ParseProviderQuery([]string{"alice", ""})
	assert.Error(t, err)
}

func TestParsePosition(t *testing.T) {
	p := newTestParser()

	pos, err := p.ParsePosition([]string{"alice", "10.5", "-2", "0.25"})
	require.NoError(t, err)
	assert.Equal(t, Position{Participant: "alice", X: 10.5, Y: -2, Elapsed: 250 * time.Millisecond}, pos)

	pos, err = p.ParsePosition([]string{"alice", "1", "2"})
	require.NoError(t, err)
	assert.Zero(t, pos.Elapsed)

	_, err = p.ParsePosition([]string{"alice", "north", "2"})
	assert.Error(t, err)
	_, err = p.ParsePosition([]string{"alice", "1", "2", "-1"})
	assert.Error(t, err)
}

func TestParseRegionStay(t *testing.T) {
	p := newTestParser()

	stay, err := p.ParseRegionStay([]string{"alice", "desert", "60"})
	require.NoError(t, err)
	assert.Equal(t, RegionStay{Participant: "alice", Kind: "desert", Elapsed: time.Minute}, stay)

	stay, err = p.ParseRegionStay([]string{"alice"})
	require.NoError(t, err)
	assert.Empty(t, stay.Kind)
}
