package convert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/tilequest/missionengine/pkg/core"
)

func TestTreeJSON(t *testing.T) {
	tree := core.Tree{
		core.KeyCompletedMissions: []any{1, 2},
		core.KeyMissions:          []any{},
	}

	data, err := TreeToJSON(tree)
	require.NoError(t, err)

	got, err := JSONToTree(data)
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), float64(2)}, got[core.KeyCompletedMissions])
	assert.Equal(t, []any{}, got[core.KeyMissions])
}

func TestJSONToTree_EmptyAndNull(t *testing.T) {
	for _, in := range []datatypes.JSON{nil, datatypes.JSON("null")} {
		got, err := JSONToTree(in)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}

	_, err := JSONToTree(datatypes.JSON("{broken"))
	assert.Error(t, err)
}

func TestNotificationRoundTrip(t *testing.T) {
	n := core.Notification{
		Kind:         core.NotifyCompleted,
		MissionID:    4,
		MissionName:  "Into the Caves",
		Owner:        "alice",
		Provider:     "miner",
		SetIndex:     1,
		Progress:     core.ProgressCompleted,
		Availability: core.AvailabilityCompleted,
		Time:         time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	row := NotificationToEvent("overworld", n)
	assert.Equal(t, "overworld", row.WorldID)
	assert.Equal(t, "mission_completed", row.Kind)
	assert.Equal(t, 2, row.Progress)

	assert.Equal(t, n, EventToNotification(row))
}
