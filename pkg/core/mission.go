// pkg/core/mission.go
package core

// ParticipantID identifies a connected player.
type ParticipantID string

// ProviderID identifies who offers a mission (usually an NPC kind).
type ProviderID string

// ItemToken identifies one physical item instance across its lifetime.
type ItemToken string

// Progress is how far a mission has been played.
type Progress int

const (
	ProgressInactive Progress = iota
	ProgressActive
	ProgressCompleted
)

func (p Progress) String() string {
	switch p {
	case ProgressInactive:
		return "inactive"
	case ProgressActive:
		return "active"
	case ProgressCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Valid reports whether p is one of the defined values.
func (p Progress) Valid() bool {
	return p >= ProgressInactive && p <= ProgressCompleted
}

// Availability is whether a mission can be taken.
type Availability int

const (
	AvailabilityLocked Availability = iota
	AvailabilityUnlocked
	AvailabilityCompleted
)

func (a Availability) String() string {
	switch a {
	case AvailabilityLocked:
		return "locked"
	case AvailabilityUnlocked:
		return "unlocked"
	case AvailabilityCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Valid reports whether a is one of the defined values.
func (a Availability) Valid() bool {
	return a >= AvailabilityLocked && a <= AvailabilityCompleted
}

// RewardItem is a stack of items granted on completion.
type RewardItem struct {
	Item     string `yaml:"item" json:"item"`
	Quantity int    `yaml:"quantity" json:"quantity"`
}

// Reward is what a mission grants when it completes.
type Reward struct {
	Items  []RewardItem `yaml:"items" json:"items"`
	Points int          `yaml:"points" json:"points"`
}

// Empty reports whether the reward grants nothing.
func (r Reward) Empty() bool {
	return len(r.Items) == 0 && r.Points == 0
}
