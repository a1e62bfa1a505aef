package world

import "log/slog"

// EggLaid records a mating.
type EggLaid struct {
	EggID      uint64
	MotherID   uint64
	FatherID   uint64
	Generation int
}

// Hatch records a creature released by an egg.
type Hatch struct {
	CreatureID uint64
	EggID      uint64
	Generation int
}

// TickReport summarises what happened during one World.Update.
// Placements made through World.Place between ticks are folded into the
// following report.
type TickReport struct {
	Tick uint64

	CreatureDeaths int
	EggsExpired    int
	FoodSpoiled    int

	FoodEaten int
	EggsEaten int
	Displaced int

	Laid    []EggLaid
	Hatched []Hatch

	// Removed holds creature tiles that left the grid, by death or displacement.
	Removed []*Tile
	// RemovedEggs holds IDs of eggs that left the grid without hatching.
	RemovedEggs []uint64
}

func (r *TickReport) noteDeath(t *Tile) {
	switch t.kind {
	case KindCreature:
		r.CreatureDeaths++
		r.Removed = append(r.Removed, t)
	case KindEgg:
		r.EggsExpired++
		r.RemovedEggs = append(r.RemovedEggs, t.id)
	case KindFood:
		r.FoodSpoiled++
	}
}

// noteRemoved records a tile pushed off the grid during placement.
func (r *TickReport) noteRemoved(t *Tile) {
	switch t.kind {
	case KindCreature:
		r.Removed = append(r.Removed, t)
	case KindEgg:
		r.RemovedEggs = append(r.RemovedEggs, t.id)
	}
}

func (r *TickReport) noteEaten(t *Tile) {
	if t == nil {
		return
	}
	switch t.kind {
	case KindFood:
		r.FoodEaten++
	case KindEgg:
		r.EggsEaten++
		r.RemovedEggs = append(r.RemovedEggs, t.id)
	}
}

// LogValue implements slog.LogValuer.
func (r TickReport) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("tick", r.Tick),
		slog.Int("creature_deaths", r.CreatureDeaths),
		slog.Int("eggs_expired", r.EggsExpired),
		slog.Int("food_spoiled", r.FoodSpoiled),
		slog.Int("food_eaten", r.FoodEaten),
		slog.Int("eggs_eaten", r.EggsEaten),
		slog.Int("displaced", r.Displaced),
		slog.Int("laid", len(r.Laid)),
		slog.Int("hatched", len(r.Hatched)),
	)
}
