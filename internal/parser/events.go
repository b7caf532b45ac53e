package parser

import (
	"fmt"

	"github.com/tilequest/missionengine/pkg/core"
)

// ParseEvent parses the arguments of an :EVENT:<KIND>: command.
//
//	tile_*               participant, tile, x, y [, amount]
//	entity_*             participant, entity [, amount]
//	item_acquired        participant, item [, quantity [, token [, passive]]]
//	item_crafted/_used   participant, item [, quantity [, token]]
//	region_entered       participant, region [, dwell]
func (p *Parser) ParseEvent(kind core.EventKind, raw []string) (core.Event, error) {
	what := string(kind)
	switch kind {
	case core.KindTileBroken, core.KindTilePlaced, core.KindTileInteracted:
		return p.parseTileEvent(kind, raw)

	case core.KindEntityDefeated, core.KindEntityDialogueOpened, core.KindEntityDamaged:
		data, err := p.args(what, raw, 2, 3)
		if err != nil {
			return nil, err
		}
		base, err := baseOf(what, data[0], data[2])
		if err != nil {
			return nil, err
		}
		if data[1] == "" {
			return nil, fmt.Errorf("%s: entity is empty", what)
		}
		switch kind {
		case core.KindEntityDefeated:
			return core.EntityDefeated{Base: base, Entity: data[1]}, nil
		case core.KindEntityDialogueOpened:
			return core.EntityDialogueOpened{Base: base, Entity: data[1]}, nil
		default:
			return core.EntityDamaged{Base: base, Entity: data[1]}, nil
		}

	case core.KindItemAcquired, core.KindItemCrafted, core.KindItemUsed:
		return p.parseItemEvent(kind, raw)

	case core.KindRegionEntered:
		data, err := p.args(what, raw, 2, 3)
		if err != nil {
			return nil, err
		}
		base, err := baseOf(what, data[0], "")
		if err != nil {
			return nil, err
		}
		dwell, err := parseDuration(data[2])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", what, err)
		}
		if data[1] == "" {
			return nil, fmt.Errorf("%s: region is empty", what)
		}
		return core.RegionEntered{Base: base, Region: data[1], Dwell: dwell}, nil
	}
	return nil, fmt.Errorf("unknown event kind %q", kind)
}

func baseOf(what, participant, amount string) (core.Base, error) {
	id, err := participantOf(what, participant)
	if err != nil {
		return core.Base{}, err
	}
	n, err := parseCount(amount)
	if err != nil {
		return core.Base{}, fmt.Errorf("%s: invalid amount: %w", what, err)
	}
	return core.Base{Participant: id, Amount: n}, nil
}

func (p *Parser) parseTileEvent(kind core.EventKind, raw []string) (core.Event, error) {
	what := string(kind)
	data, err := p.args(what, raw, 4, 5)
	if err != nil {
		return nil, err
	}
	base, err := baseOf(what, data[0], data[4])
	if err != nil {
		return nil, err
	}
	if data[1] == "" {
		return nil, fmt.Errorf("%s: tile is empty", what)
	}
	x, err := parseIntFromFloat(data[2])
	if err != nil {
		return nil, fmt.Errorf("%s: invalid x: %w", what, err)
	}
	y, err := parseIntFromFloat(data[3])
	if err != nil {
		return nil, fmt.Errorf("%s: invalid y: %w", what, err)
	}

	switch kind {
	case core.KindTileBroken:
		return core.TileBroken{Base: base, X: int(x), Y: int(y), Tile: data[1]}, nil
	case core.KindTilePlaced:
		return core.TilePlaced{Base: base, X: int(x), Y: int(y), Tile: data[1]}, nil
	default:
		return core.TileInteracted{Base: base, X: int(x), Y: int(y), Tile: data[1]}, nil
	}
}

func (p *Parser) parseItemEvent(kind core.EventKind, raw []string) (core.Event, error) {
	what := string(kind)
	maxArgs := 4
	if kind == core.KindItemAcquired {
		maxArgs = 5
	}
	data, err := p.args(what, raw, 2, maxArgs)
	if err != nil {
		return nil, err
	}
	base, err := baseOf(what, data[0], data[2])
	if err != nil {
		return nil, err
	}
	if data[1] == "" {
		return nil, fmt.Errorf("%s: item is empty", what)
	}
	token := core.ItemToken(data[3])

	switch kind {
	case core.KindItemCrafted:
		return core.ItemCrafted{Base: base, Item: data[1], Token: token}, nil
	case core.KindItemUsed:
		return core.ItemUsed{Base: base, Item: data[1], Token: token}, nil
	}

	passive, err := parseFlag(data[4])
	if err != nil {
		return nil, fmt.Errorf("%s: invalid passive flag: %w", what, err)
	}
	if passive && token == "" {
		return nil, fmt.Errorf("%s: passive pickup needs an item token", what)
	}
	return core.ItemAcquired{Base: base, Item: data[1], Token: token, Passive: passive}, nil
}
