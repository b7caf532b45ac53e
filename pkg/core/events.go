// pkg/core/events.go
package core

import (
	"time"
)

// EventKind names a gameplay event type.
type EventKind string

const (
	KindTileBroken           EventKind = "tile_broken"
	KindTilePlaced           EventKind = "tile_placed"
	KindTileInteracted       EventKind = "tile_interacted"
	KindEntityDefeated       EventKind = "entity_defeated"
	KindEntityDialogueOpened EventKind = "entity_dialogue_opened"
	KindEntityDamaged        EventKind = "entity_damaged"
	KindItemAcquired         EventKind = "item_acquired"
	KindItemCrafted          EventKind = "item_crafted"
	KindItemUsed             EventKind = "item_used"
	KindRegionEntered        EventKind = "region_entered"
)

// EventKinds lists every kind in the taxonomy.
var EventKinds = []EventKind{
	KindTileBroken,
	KindTilePlaced,
	KindTileInteracted,
	KindEntityDefeated,
	KindEntityDialogueOpened,
	KindEntityDamaged,
	KindItemAcquired,
	KindItemCrafted,
	KindItemUsed,
	KindRegionEntered,
}

// Event is a gameplay event produced by an external collaborator.
type Event interface {
	Kind() EventKind
	// Source is the participant that caused the event.
	Source() ParticipantID
	// Count is how much the event contributes to a matching objective.
	Count() int
	// Target is the tile, entity, item or region kind the event is about.
	Target() string
}

// Base carries the fields shared by every event.
type Base struct {
	Participant ParticipantID
	Amount      int
}

// Source returns the causing participant.
func (b Base) Source() ParticipantID { return b.Participant }

// Count returns Amount, treating zero as one.
func (b Base) Count() int {
	if b.Amount == 0 {
		return 1
	}
	return b.Amount
}

// TileBroken is fired when a participant breaks a tile.
type TileBroken struct {
	Base
	X, Y int
	Tile string
}

func (TileBroken) Kind() EventKind  { return KindTileBroken }
func (e TileBroken) Target() string { return e.Tile }

// TilePlaced is fired when a participant places a tile.
type TilePlaced struct {
	Base
	X, Y int
	Tile string
}

func (TilePlaced) Kind() EventKind  { return KindTilePlaced }
func (e TilePlaced) Target() string { return e.Tile }

// TileInteracted is fired when a participant uses a tile (chest, door, altar).
type TileInteracted struct {
	Base
	X, Y int
	Tile string
}

func (TileInteracted) Kind() EventKind  { return KindTileInteracted }
func (e TileInteracted) Target() string { return e.Tile }

// EntityDefeated is fired when a participant defeats an entity.
type EntityDefeated struct {
	Base
	Entity string
}

func (EntityDefeated) Kind() EventKind  { return KindEntityDefeated }
func (e EntityDefeated) Target() string { return e.Entity }

// EntityDialogueOpened is fired when a participant opens dialogue with an entity.
type EntityDialogueOpened struct {
	Base
	Entity string
}

func (EntityDialogueOpened) Kind() EventKind  { return KindEntityDialogueOpened }
func (e EntityDialogueOpened) Target() string { return e.Entity }

// EntityDamaged is fired when a participant damages an entity. Amount is the damage dealt.
type EntityDamaged struct {
	Base
	Entity string
}

func (EntityDamaged) Kind() EventKind  { return KindEntityDamaged }
func (e EntityDamaged) Target() string { return e.Entity }

// ItemAcquired is fired when items enter a participant's inventory.
// Passive events come from inventory scans (equip/unequip, stack merges) and
// are subject to per-token de-duplication; active pickups always count.
type ItemAcquired struct {
	Base
	Item    string
	Token   ItemToken
	Passive bool
}

func (ItemAcquired) Kind() EventKind  { return KindItemAcquired }
func (e ItemAcquired) Target() string { return e.Item }

// ItemCrafted is fired when a participant crafts an item.
type ItemCrafted struct {
	Base
	Item  string
	Token ItemToken
}

func (ItemCrafted) Kind() EventKind  { return KindItemCrafted }
func (e ItemCrafted) Target() string { return e.Item }

// ItemUsed is fired when a participant consumes or uses an item.
type ItemUsed struct {
	Base
	Item  string
	Token ItemToken
}

func (ItemUsed) Kind() EventKind  { return KindItemUsed }
func (e ItemUsed) Target() string { return e.Item }

// RegionEntered is fired once a participant's dwell time in a region kind
// crosses a registered threshold.
type RegionEntered struct {
	Base
	Region string
	Dwell  time.Duration
}

func (RegionEntered) Kind() EventKind  { return KindRegionEntered }
func (e RegionEntered) Target() string { return e.Region }

// HeldItem is one stack in a participant's inventory, as reported by the
// inventory collaborator for initial inventory checks.
type HeldItem struct {
	Item     string
	Token    ItemToken
	Quantity int
}
