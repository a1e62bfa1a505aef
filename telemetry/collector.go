package telemetry

import "github.com/pthm-cable/gridsoup/world"

// Collector accumulates tick reports within windows and produces WindowStats.
type Collector struct {
	windowTicks uint64

	// Current window tracking
	windowStartTick uint64

	// Event counters for current window
	eggsLaid       int
	hatches        int
	creatureDeaths int
	eggsExpired    int
	foodSpoiled    int
	foodEaten      int
	eggsEaten      int
	displaced      int
	populated      int
	lifespans      []float64
}

// NewCollector creates a collector that flushes every windowTicks ticks.
func NewCollector(windowTicks int) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{windowTicks: uint64(windowTicks)}
}

// RecordTick folds one tick report into the current window.
func (c *Collector) RecordTick(r world.TickReport) {
	c.eggsLaid += len(r.Laid)
	c.hatches += len(r.Hatched)
	c.creatureDeaths += r.CreatureDeaths
	c.eggsExpired += r.EggsExpired
	c.foodSpoiled += r.FoodSpoiled
	c.foodEaten += r.FoodEaten
	c.eggsEaten += r.EggsEaten
	c.displaced += r.Displaced
}

// RecordPopulate records a successful external populate call.
func (c *Collector) RecordPopulate() {
	c.populated++
}

// RecordLifetimes adds the lifespans of creatures that left the grid.
func (c *Collector) RecordLifetimes(lifetimes []Lifetime) {
	for _, l := range lifetimes {
		c.lifespans = append(c.lifespans, float64(l.Lifespan))
	}
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick uint64) bool {
	return currentTick-c.windowStartTick >= c.windowTicks
}

// Flush produces a WindowStats from the window's events and the current
// grid, then resets counters for the next window.
func (c *Collector) Flush(currentTick uint64, w *world.World) WindowStats {
	census := w.Census()

	var energies, values, generations []float64
	generationMax := 0
	for _, t := range w.Tiles() {
		cr := t.Creature()
		if cr == nil {
			continue
		}
		energies = append(energies, cr.Energy())
		values = append(values, cr.Genome().Value())
		generations = append(generations, float64(cr.Generation()))
		generationMax = max(generationMax, cr.Generation())
	}

	energy := Describe(energies)
	value := Describe(values)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,

		Creatures: census.Creatures,
		Eggs:      census.Eggs,
		Food:      census.Food,

		EggsLaid:       c.eggsLaid,
		Hatches:        c.hatches,
		CreatureDeaths: c.creatureDeaths,
		EggsExpired:    c.eggsExpired,
		FoodSpoiled:    c.foodSpoiled,
		FoodEaten:      c.foodEaten,
		EggsEaten:      c.eggsEaten,
		Displaced:      c.displaced,
		Populated:      c.populated,

		EnergyMean: energy.Mean,
		EnergyP10:  energy.P10,
		EnergyP50:  energy.P50,
		EnergyP90:  energy.P90,

		ValueMean: value.Mean,
		ValueStd:  value.Std,

		GenerationMean: Describe(generations).Mean,
		GenerationMax:  generationMax,
		LifespanMean:   Describe(c.lifespans).Mean,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.eggsLaid = 0
	c.hatches = 0
	c.creatureDeaths = 0
	c.eggsExpired = 0
	c.foodSpoiled = 0
	c.foodEaten = 0
	c.eggsEaten = 0
	c.displaced = 0
	c.populated = 0
	c.lifespans = c.lifespans[:0]

	return stats
}

// WindowTicks returns the number of ticks per window.
func (c *Collector) WindowTicks() uint64 {
	return c.windowTicks
}
