package core

// Tree is the portable key-value form of persisted mission state. Field
// names are a compatibility contract with existing save data.
type Tree map[string]any

// Scope-level keys.
const (
	KeyMissions          = "missions"
	KeyCompletedMissions = "completedMissions"
	KeyNotifiedMissions  = "notifiedMissions"
	KeyContributedItems  = "contributedItems"
)

// Mission record keys.
const (
	KeyID            = "id"
	KeyProgress      = "progress"
	KeyAvailability  = "availability"
	KeyUnlocked      = "unlocked"
	KeyCurrentIndex  = "currentIndex"
	KeyObjectiveSets = "objectiveSets"
)

// Objective set and objective keys.
const (
	KeyCheckedInventory = "hasCheckedInitialInventory"
	KeyObjectives       = "objectives"
	KeyDescription      = "description"
	KeyIsCompleted      = "isCompleted"
	KeyRequiredCount    = "requiredCount"
	KeyCurrentCount     = "currentCount"
)
