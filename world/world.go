package world

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"github.com/pthm-cable/gridsoup/config"
	"github.com/pthm-cable/gridsoup/navigation"
	"github.com/pthm-cable/gridsoup/neural"
)

// ErrOutOfBounds reports an un-normalised coordinate reaching the grid.
var ErrOutOfBounds = errors.New("coordinate out of bounds")

// Phase names reported to a PhaseTimer during Update.
const (
	PhaseSnapshot = "snapshot"
	PhaseThink    = "think"
	PhaseMerge    = "merge"
)

// PhaseTimer receives phase boundaries while a tick runs.
type PhaseTimer interface {
	StartPhase(phase string)
}

// Options holds optional World collaborators.
type Options struct {
	// Rand drives mutation and blend ratios. When nil, or when mutations are
	// disabled in the config, eggs blend their parents evenly.
	Rand   *rand.Rand
	Logger *slog.Logger
	Phases PhaseTimer
}

// World is a sparse toroidal grid of tiles.
type World struct {
	width, height int
	tilesCfg      config.TilesConfig
	logInterval   int

	codec  *neural.Codec
	rng    *rand.Rand
	logger *slog.Logger
	phases PhaseTimer

	tiles  map[navigation.Coordinate]*Tile
	age    uint64
	nextID uint64

	// pending collects effects of Place calls made between ticks.
	pending TickReport

	parallel *parallelState
}

// New creates an empty world.
func New(cfg *config.Config, opts Options) *World {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rng := opts.Rand
	if !cfg.Genome.MutationsEnabled {
		rng = nil
	}

	return &World{
		width:       cfg.World.Width,
		height:      cfg.World.Height,
		tilesCfg:    cfg.Tiles,
		logInterval: cfg.Simulation.LogInterval,
		codec:       neural.NewCodec(neural.ParamsFromConfig(cfg)),
		rng:         rng,
		logger:      logger,
		phases:      opts.Phases,
		tiles:       make(map[navigation.Coordinate]*Tile),
		parallel:    newParallelState(cfg.Simulation.ParallelThreshold),
	}
}

// Close stops the update workers. The world remains usable; workers restart on demand.
func (w *World) Close() {
	w.parallel.stopWorkers()
}

// Width returns the grid width.
func (w *World) Width() int { return w.width }

// Height returns the grid height.
func (w *World) Height() int { return w.height }

// Age returns the number of completed ticks.
func (w *World) Age() uint64 { return w.age }

// Len returns the number of occupied cells.
func (w *World) Len() int { return len(w.tiles) }

// Codec returns the genome codec configured for this world.
func (w *World) Codec() *neural.Codec { return w.codec }

// Snapshot returns a read-only view of the current grid. It stays valid
// across Update, which never mutates the map it replaces.
func (w *World) Snapshot() Snapshot {
	return Snapshot{tiles: w.tiles, width: w.width, height: w.height}
}

// Get returns the tile at c after wrapping, or nil.
func (w *World) Get(c navigation.Coordinate) *Tile {
	return w.tiles[w.wrap(c)]
}

func (w *World) wrap(c navigation.Coordinate) navigation.Coordinate {
	return c.Wrap(w.width, w.height)
}

func (w *World) newTile(pos navigation.Coordinate, kind Kind) *Tile {
	w.nextID++
	return &Tile{id: w.nextID, pos: w.wrap(pos), kind: kind}
}

// NewCreature builds an unplaced generation-0 creature tile.
func (w *World) NewCreature(g *neural.Genome, pos navigation.Coordinate, orientation navigation.Direction) *Tile {
	t := w.newTile(pos, KindCreature)
	t.creature = newCreature(g, orientation, w.tilesCfg.LookAhead, 0)
	return t
}

// NewFood builds an unplaced food tile.
func (w *World) NewFood(pos navigation.Coordinate, energy float64) *Tile {
	t := w.newTile(pos, KindFood)
	t.food = &Food{energy: energy, spoilTime: w.tilesCfg.FoodSpoilTime}
	return t
}

// Place normalises the tile's position and puts it on the grid, resolving
// any conflict with the current occupant.
func (w *World) Place(t *Tile) error {
	if t == nil {
		return nil
	}
	t.pos = w.wrap(t.pos)
	_, err := w.place(t, w.tiles, &w.pending)
	return err
}

// place resolves t against the occupant of its cell in tiles and reports
// whether t holds the cell afterwards. Occupants that leave the grid are
// noted in report; a losing t is left to the caller.
func (w *World) place(t *Tile, tiles map[navigation.Coordinate]*Tile, report *TickReport) (bool, error) {
	if t == nil {
		return false, nil
	}
	if !t.pos.InBounds(w.width, w.height) {
		return false, fmt.Errorf("%w: %s in %dx%d", ErrOutOfBounds, t, w.width, w.height)
	}

	existing := tiles[t.pos]
	if existing == t {
		return true, nil
	}

	eaten := consume(t, existing, w.tilesCfg.AllowEggEating)
	report.noteEaten(eaten)

	if wins(t, existing) {
		tiles[t.pos] = t
		if existing != nil && existing != eaten {
			report.Displaced++
			report.noteRemoved(existing)
		}
		return true, nil
	}
	if t != eaten {
		report.Displaced++
	}
	return false, nil
}

// Update advances every tile by one tick. All tiles observe the grid as it
// was before the tick; survivors and their products are merged into a fresh
// grid in ascending ID order, which then replaces the current one.
func (w *World) Update() TickReport {
	report := w.pending
	w.pending = TickReport{}
	w.age++
	report.Tick = w.age

	w.startPhase(PhaseSnapshot)
	snap := w.Snapshot()
	tiles := w.Tiles()

	w.startPhase(PhaseThink)
	alive := w.parallel.run(tiles, snap)

	w.startPhase(PhaseMerge)
	next := make(map[navigation.Coordinate]*Tile, len(tiles))
	for i, t := range tiles {
		if !alive[i] {
			report.noteDeath(t)
			continue
		}
		child := w.produced(t, &report)
		// A hatching egg hands its cell to the hatchling.
		if child == nil || t.kind != KindEgg {
			kept, err := w.place(t, next, &report)
			if err != nil {
				w.logger.Error("dropping tile", "tile", t.String(), "error", err)
				continue
			}
			if !kept {
				report.noteRemoved(t)
			}
		}
		if child == nil {
			continue
		}
		kept, err := w.place(child, next, &report)
		if err != nil {
			w.logger.Error("dropping produced tile", "parent", t.String(), "error", err)
			continue
		}
		if kept && child.kind == KindEgg {
			w.recordLaid(child, &report)
		}
	}
	w.tiles = next

	if w.logInterval > 0 && w.age%uint64(w.logInterval) == 0 {
		w.logger.Info("world age", "age", w.age, "tiles", len(w.tiles))
	}
	return report
}

func (w *World) startPhase(phase string) {
	if w.phases != nil {
		w.phases.StartPhase(phase)
	}
}

// produced returns the tile a surviving tile releases this tick, if any.
// It runs serially so IDs and reproduction randomness are consumed in a
// fixed order.
func (w *World) produced(t *Tile, report *TickReport) *Tile {
	switch t.kind {
	case KindCreature:
		mate := t.creature.mate
		if mate == nil {
			return nil
		}
		t.creature.mate = nil
		return w.layEgg(t, mate)

	case KindEgg:
		e := t.egg
		if e.hatched || e.age < e.incubation {
			return nil
		}
		e.hatched = true
		hatchling := w.newTile(t.pos, KindCreature)
		hatchling.creature = newCreature(e.genome, e.orientation, w.tilesCfg.LookAhead, e.generation)
		report.Hatched = append(report.Hatched, Hatch{CreatureID: hatchling.id, EggID: t.id, Generation: e.generation})
		w.logger.Debug("egg hatched", "egg", t.id, "creature", hatchling.id, "pos", t.pos.String())
		return hatchling

	default:
		return nil
	}
}

// layEgg builds the egg for a mating between mother and father, placed
// behind the mother and facing away from her.
func (w *World) layEgg(mother, father *Tile) *Tile {
	m, f := mother.creature, father.creature

	g, err := w.codec.Reproduce(m.genome, f.genome, w.rng)
	if errors.Is(err, neural.ErrUninitializedMutationSource) {
		g, err = w.codec.Blend(m.genome, f.genome, 0.5)
	}
	if err != nil {
		w.logger.Warn("discarding egg", "mother", mother.id, "father", father.id, "error", err)
		return nil
	}

	orientation := m.orientation.Opposite()
	t := w.newTile(mother.pos.StepBack(m.orientation), KindEgg)
	t.egg = &Egg{
		genome:      g,
		orientation: orientation,
		incubation:  w.tilesCfg.EggIncubationTime,
		energy:      w.tilesCfg.EggEnergy,
		generation:  max(m.generation, f.generation) + 1,
		motherID:    mother.id,
		fatherID:    father.id,
		mother:      m,
		father:      f,
	}
	return t
}

// recordLaid credits both parents once their egg has taken its cell.
func (w *World) recordLaid(t *Tile, report *TickReport) {
	e := t.egg
	if e.mother != nil {
		e.mother.children++
	}
	if e.father != nil {
		e.father.children++
	}
	e.mother, e.father = nil, nil

	report.Laid = append(report.Laid, EggLaid{
		EggID:      t.id,
		MotherID:   e.motherID,
		FatherID:   e.fatherID,
		Generation: e.generation,
	})
	w.logger.Debug("egg laid", "egg", t.id, "mother", e.motherID, "father", e.fatherID, "pos", t.pos.String())
}

// Tiles returns every tile on the grid in ascending ID order.
func (w *World) Tiles() []*Tile {
	tiles := make([]*Tile, 0, len(w.tiles))
	for _, t := range w.tiles {
		tiles = append(tiles, t)
	}
	sort.Slice(tiles, func(i, j int) bool { return tiles[i].id < tiles[j].id })
	return tiles
}

// Census counts tiles per kind.
type Census struct {
	Creatures int
	Eggs      int
	Food      int
}

// Total returns the number of tiles counted.
func (c Census) Total() int { return c.Creatures + c.Eggs + c.Food }

// Census counts the tiles currently on the grid.
func (w *World) Census() Census {
	var c Census
	for _, t := range w.tiles {
		switch t.kind {
		case KindCreature:
			c.Creatures++
		case KindEgg:
			c.Eggs++
		case KindFood:
			c.Food++
		}
	}
	return c
}

// NextTileAfterOrAt returns the first occupied cell at or after start in
// reading order, wrapping to the origin when nothing follows start.
// It reports false for an empty grid.
func (w *World) NextTileAfterOrAt(start navigation.Coordinate) (*Tile, bool) {
	start = w.wrap(start)
	if t, ok := w.tiles[start]; ok {
		return t, true
	}

	var after, first *Tile
	for c, t := range w.tiles {
		if start.Before(c) && (after == nil || c.Before(after.pos)) {
			after = t
		}
		if first == nil || c.Before(first.pos) {
			first = t
		}
	}
	if after != nil {
		return after, true
	}
	return first, first != nil
}

// String renders the grid with one symbol per cell and '_' for empty cells.
func (w *World) String() string {
	buf := make([]byte, 0, (w.width+1)*w.height)
	for y := 0; y < w.height; y++ {
		for x := 0; x < w.width; x++ {
			if t := w.tiles[navigation.At(x, y)]; t != nil {
				buf = append(buf, t.Symbol())
			} else {
				buf = append(buf, '_')
			}
		}
		buf = append(buf, '\n')
	}
	return string(buf)
}
