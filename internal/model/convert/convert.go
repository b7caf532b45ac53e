// Package convert maps between GORM rows and core types.
package convert

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/tilequest/missionengine/internal/model"
	"github.com/tilequest/missionengine/pkg/core"
)

// JSONToTree decodes a datatypes.JSON column into a save tree.
func JSONToTree(data datatypes.JSON) (core.Tree, error) {
	if len(data) == 0 {
		return core.Tree{}, nil
	}
	var tree core.Tree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decoding save tree: %w", err)
	}
	if tree == nil {
		tree = core.Tree{}
	}
	return tree, nil
}

// EventToNotification converts a journal row back into a notification.
func EventToNotification(e model.MissionEvent) core.Notification {
	return core.Notification{
		Kind:         core.NotificationKind(e.Kind),
		MissionID:    e.MissionID,
		MissionName:  e.MissionName,
		Mainline:     e.Mainline,
		Owner:        core.ParticipantID(e.Participant),
		Provider:     core.ProviderID(e.Provider),
		Objective:    e.Objective,
		SetIndex:     e.SetIndex,
		Progress:     core.Progress(e.Progress),
		Availability: core.Availability(e.Availability),
		Time:         e.Time,
	}
}
