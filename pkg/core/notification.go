package core

import "time"

// NotificationKind names a mission lifecycle change.
type NotificationKind string

const (
	NotifyUnlocked           NotificationKind = "mission_unlocked"
	NotifyProviderOffer      NotificationKind = "provider_offer"
	NotifyStarted            NotificationKind = "mission_started"
	NotifyObjectiveCompleted NotificationKind = "objective_completed"
	NotifySetAdvanced        NotificationKind = "set_advanced"
	NotifyCompleted          NotificationKind = "mission_completed"
	NotifyReset              NotificationKind = "mission_reset"
	NotifyProviderAssigned   NotificationKind = "provider_assigned"
)

// Notification is a read-only description of a lifecycle change, delivered to
// presenters (UI) and observers (analytics).
type Notification struct {
	Kind         NotificationKind `json:"kind"`
	MissionID    int              `json:"missionId"`
	MissionName  string           `json:"missionName"`
	Mainline     bool             `json:"mainline"`
	Owner        ParticipantID    `json:"owner,omitempty"`
	Provider     ProviderID       `json:"provider,omitempty"`
	Objective    string           `json:"objective,omitempty"`
	SetIndex     int              `json:"setIndex"`
	Progress     Progress         `json:"progress"`
	Availability Availability     `json:"availability"`
	Time         time.Time        `json:"time"`
}
