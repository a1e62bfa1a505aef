package world

// consume applies the energy transfer between a tile arriving on a cell and
// the cell's current occupant. It returns the tile that was eaten, if any.
func consume(incoming, existing *Tile, allowEggEating bool) *Tile {
	if incoming == nil || existing == nil {
		return nil
	}

	switch incoming.kind {
	case KindCreature:
		switch existing.kind {
		case KindFood:
			incoming.creature.Eat(existing)
			return existing
		case KindEgg:
			if allowEggEating {
				incoming.creature.Eat(existing)
				return existing
			}
		case KindCreature:
			// no combat
		}
	case KindFood:
		if existing.kind == KindCreature {
			existing.creature.Eat(incoming)
			return incoming
		}
	case KindEgg:
		// eggs never eat
	}
	return nil
}

// wins reports whether incoming takes the cell held by existing.
// Eggs only displace food, and food never displaces a creature.
// Otherwise the newer arrival wins.
func wins(incoming, existing *Tile) bool {
	if incoming == nil {
		return false
	}
	if existing == nil {
		return true
	}

	switch incoming.kind {
	case KindEgg:
		return existing.kind == KindFood
	case KindFood:
		return existing.kind != KindCreature
	default:
		return true
	}
}
