package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&SaveRecord{},
	&MissionEvent{},
}

// Save scopes
const (
	ScopeWorld       = "world"
	ScopeParticipant = "participant"
)

////////////////////////
// SAVE DATA
////////////////////////

// SaveRecord holds the persisted mission tree of one world or participant.
type SaveRecord struct {
	gorm.Model
	Scope    string         `json:"scope" gorm:"size:16;uniqueIndex:idx_save_owner"`
	OwnerKey string         `json:"ownerKey" gorm:"size:128;uniqueIndex:idx_save_owner"`
	Tree     datatypes.JSON `json:"tree"`
}

func (*SaveRecord) TableName() string {
	return "save_records"
}

////////////////////////
// JOURNAL
////////////////////////

// MissionEvent is one mission lifecycle notification, kept for analytics.
type MissionEvent struct {
	ID           uint      `json:"id" gorm:"primarykey"`
	Time         time.Time `json:"time" gorm:"index:idx_mission_event_time"`
	WorldID      string    `json:"worldId" gorm:"size:128;index:idx_mission_event_world"`
	Kind         string    `json:"kind" gorm:"size:32"`
	MissionID    int       `json:"missionId" gorm:"index:idx_mission_event_mission"`
	MissionName  string    `json:"missionName" gorm:"size:127"`
	Mainline     bool      `json:"mainline"`
	Participant  string    `json:"participant" gorm:"size:128"`
	Provider     string    `json:"provider" gorm:"size:64"`
	Objective    string    `json:"objective" gorm:"size:255"`
	SetIndex     int       `json:"setIndex"`
	Progress     int       `json:"progress"`
	Availability int       `json:"availability"`
}

func (*MissionEvent) TableName() string {
	return "mission_events"
}
