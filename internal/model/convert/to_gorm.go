package convert

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/tilequest/missionengine/internal/model"
	"github.com/tilequest/missionengine/pkg/core"
)

// TreeToJSON encodes a save tree for a datatypes.JSON column.
func TreeToJSON(tree core.Tree) (datatypes.JSON, error) {
	data, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encoding save tree: %w", err)
	}
	return datatypes.JSON(data), nil
}

// NotificationToEvent converts a lifecycle notification into a journal row.
func NotificationToEvent(worldID string, n core.Notification) model.MissionEvent {
	return model.MissionEvent{
		Time:         n.Time,
		WorldID:      worldID,
		Kind:         string(n.Kind),
		MissionID:    n.MissionID,
		MissionName:  n.MissionName,
		Mainline:     n.Mainline,
		Participant:  string(n.Owner),
		Provider:     string(n.Provider),
		Objective:    n.Objective,
		SetIndex:     n.SetIndex,
		Progress:     int(n.Progress),
		Availability: int(n.Availability),
	}
}
