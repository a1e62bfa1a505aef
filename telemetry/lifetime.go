package telemetry

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/gridsoup/components"
	"github.com/pthm-cable/gridsoup/world"
)

// Lifetime is the completed record of a creature that left the grid.
type Lifetime struct {
	CreatureID  uint64  `csv:"creature_id"`
	MotherID    uint64  `csv:"mother_id"`
	FatherID    uint64  `csv:"father_id"`
	Generation  int     `csv:"generation"`
	BirthTick   uint64  `csv:"birth_tick"`
	DeathTick   uint64  `csv:"death_tick"`
	Lifespan    int     `csv:"lifespan"`
	PeakEnergy  float64 `csv:"peak_energy"`
	Children    int     `csv:"children"`
	GenomeValue float64 `csv:"genome_value"`
	Genome      string  `csv:"genome"`
}

// LifetimeTracker mirrors every creature on the grid as an ECS entity with
// Lineage and Vitals components, and emits a Lifetime when it leaves.
type LifetimeTracker struct {
	registry *ecs.World

	mapper     *ecs.Map2[components.Lineage, components.Vitals]
	filter     *ecs.Filter2[components.Lineage, components.Vitals]
	lineageMap *ecs.Map1[components.Lineage]
	vitalsMap  *ecs.Map1[components.Vitals]

	entities   map[uint64]ecs.Entity  // tile ID -> entity
	eggParents map[uint64][2]uint64   // egg ID -> mother, father
	live       map[uint64]*world.Tile // scratch for Observe
}

// NewLifetimeTracker creates an empty tracker.
func NewLifetimeTracker() *LifetimeTracker {
	w := ecs.NewWorld()
	return &LifetimeTracker{
		registry:   w,
		mapper:     ecs.NewMap2[components.Lineage, components.Vitals](w),
		filter:     ecs.NewFilter2[components.Lineage, components.Vitals](w),
		lineageMap: ecs.NewMap1[components.Lineage](w),
		vitalsMap:  ecs.NewMap1[components.Vitals](w),
		entities:   make(map[uint64]ecs.Entity),
		eggParents: make(map[uint64][2]uint64),
		live:       make(map[uint64]*world.Tile),
	}
}

// Observe syncs the tracker with the grid after a tick and returns the
// lifetimes of creatures the report removed.
func (lt *LifetimeTracker) Observe(w *world.World, report world.TickReport) []Lifetime {
	for _, laid := range report.Laid {
		lt.eggParents[laid.EggID] = [2]uint64{laid.MotherID, laid.FatherID}
	}
	hatchedFrom := make(map[uint64]uint64, len(report.Hatched))
	for _, h := range report.Hatched {
		hatchedFrom[h.CreatureID] = h.EggID
	}

	// Register newcomers before querying; the query locks the ECS world.
	clear(lt.live)
	for _, t := range w.Tiles() {
		if t.Kind() != world.KindCreature {
			continue
		}
		lt.live[t.ID()] = t
		if _, ok := lt.entities[t.ID()]; !ok {
			var parents [2]uint64
			if eggID, ok := hatchedFrom[t.ID()]; ok {
				parents = lt.eggParents[eggID]
				delete(lt.eggParents, eggID)
			}
			lt.register(t, report.Tick, parents)
		}
	}

	// Eggs that left without hatching never release a creature.
	for _, id := range report.RemovedEggs {
		delete(lt.eggParents, id)
	}

	query := lt.filter.Query()
	for query.Next() {
		lineage, vitals := query.Get()
		if t, ok := lt.live[lineage.TileID]; ok {
			syncVitals(vitals, t.Creature())
		}
	}

	var done []Lifetime
	for _, t := range report.Removed {
		if l, ok := lt.finish(t, report.Tick); ok {
			done = append(done, l)
		}
	}
	return done
}

func (lt *LifetimeTracker) register(t *world.Tile, tick uint64, parents [2]uint64) {
	c := t.Creature()
	lineage := components.Lineage{
		TileID:      t.ID(),
		MotherID:    parents[0],
		FatherID:    parents[1],
		Generation:  c.Generation(),
		BirthTick:   tick,
		GenomeValue: c.Genome().Value(),
		Genome:      c.Genome().Digits(),
	}
	vitals := components.Vitals{}
	syncVitals(&vitals, c)
	lt.entities[t.ID()] = lt.mapper.NewEntity(&lineage, &vitals)
}

// finish closes the record of a removed creature. Creatures removed before
// the tracker ever saw them are recorded from their final state.
func (lt *LifetimeTracker) finish(t *world.Tile, tick uint64) (Lifetime, bool) {
	c := t.Creature()
	if c == nil {
		return Lifetime{}, false
	}

	e, ok := lt.entities[t.ID()]
	if !ok {
		lt.register(t, tick, [2]uint64{})
		e = lt.entities[t.ID()]
	}

	vitals := lt.vitalsMap.Get(e)
	syncVitals(vitals, c)
	lineage := lt.lineageMap.Get(e)

	l := Lifetime{
		CreatureID:  lineage.TileID,
		MotherID:    lineage.MotherID,
		FatherID:    lineage.FatherID,
		Generation:  lineage.Generation,
		BirthTick:   lineage.BirthTick,
		DeathTick:   tick,
		Lifespan:    vitals.Age,
		PeakEnergy:  vitals.PeakEnergy,
		Children:    vitals.Children,
		GenomeValue: lineage.GenomeValue,
		Genome:      lineage.Genome,
	}

	lt.registry.RemoveEntity(e)
	delete(lt.entities, t.ID())
	return l, true
}

func syncVitals(v *components.Vitals, c *world.Creature) {
	v.Age = c.Age()
	v.Energy = c.Energy()
	v.PeakEnergy = max(v.PeakEnergy, c.Energy())
	v.Children = c.Children()
	v.LastAction = c.LastAction()
}

// Get returns the tracked vitals for a creature tile, or nil.
func (lt *LifetimeTracker) Get(tileID uint64) *components.Vitals {
	e, ok := lt.entities[tileID]
	if !ok {
		return nil
	}
	return lt.vitalsMap.Get(e)
}

// Count returns the number of tracked creatures.
func (lt *LifetimeTracker) Count() int {
	return len(lt.entities)
}
