package world

import (
	"math"

	"github.com/pthm-cable/gridsoup/navigation"
	"github.com/pthm-cable/gridsoup/neural"
)

// Actuator indices. Indices past ActMoveRight have no effect.
const (
	ActTurnLeft = iota
	ActTurnRight
	ActMoveForward
	ActMoveBackward
	ActMoveLeft
	ActMoveRight
)

// Creature is a genome-driven agent.
type Creature struct {
	genome      *neural.Genome
	brain       *neural.Brain
	orientation navigation.Direction
	age         int
	energy      float64
	generation  int
	children    int

	lookAhead  int
	numSensors int
	sensors    []float64

	lastAction int
	mate       *Tile // partner chosen this tick, consumed by the merge
}

func newCreature(g *neural.Genome, orientation navigation.Direction, lookAhead, generation int) *Creature {
	numSensors, _ := g.InToOut().Dims()
	return &Creature{
		genome:      g,
		brain:       neural.NewBrain(g),
		orientation: orientation,
		energy:      g.MaxEnergy(),
		generation:  generation,
		lookAhead:   lookAhead,
		numSensors:  numSensors,
		sensors:     make([]float64, 0, 7),
		lastAction:  -1,
	}
}

// Genome returns the creature's genome.
func (c *Creature) Genome() *neural.Genome { return c.genome }

// Orientation returns the direction the creature faces.
func (c *Creature) Orientation() navigation.Direction { return c.orientation }

// Age returns the number of ticks the creature has lived.
func (c *Creature) Age() int { return c.age }

// Energy returns the current energy.
func (c *Creature) Energy() float64 { return c.energy }

// Generation returns 0 for seeded creatures and one more than the older parent otherwise.
func (c *Creature) Generation() int { return c.generation }

// Children returns the number of eggs this creature has laid.
func (c *Creature) Children() int { return c.children }

// LastAction returns the actuator chosen on the most recent tick, or -1 before the first.
func (c *Creature) LastAction() int { return c.lastAction }

// MateScore returns the genetic distance between c and the occupant of a
// neighbouring cell, or 0 when that occupant is not a creature.
func (c *Creature) MateScore(other *Tile) float64 {
	if other == nil || other.kind != KindCreature {
		return 0
	}
	return math.Abs(c.genome.Value() - other.creature.genome.Value())
}

// Eat adds the tile's energy, capped at the genome's max energy.
func (c *Creature) Eat(t *Tile) {
	c.energy = math.Min(c.energy+t.EatEnergy(), c.genome.MaxEnergy())
}

// update runs one sense-think-act cycle. self is the tile holding c; its
// position moves when the creature walks.
func (c *Creature) update(self *Tile, s Snapshot) bool {
	c.age++

	density := c.lookCone(self.pos, s)
	front := s.At(self.pos.Step(c.orientation))
	mate := c.MateScore(front)

	c.sensors = append(c.sensors[:0],
		math.Tanh(float64(c.age)),
		c.energy/c.genome.MaxEnergy(),
		float64(self.pos.X)/float64(s.width),
		float64(self.pos.Y)/float64(s.height),
		c.orientation.Float(),
		density,
		mate,
	)
	outputs, err := c.brain.Think(c.sensors[:c.numSensors])
	if err != nil {
		// Sensors are sized from the genome, so this only fires on a corrupted creature.
		c.energy = 0
		return false
	}

	action := neural.Argmax(outputs)
	c.lastAction = action
	switch action {
	case ActTurnLeft:
		c.orientation = c.orientation.TurnLeft()
	case ActTurnRight:
		c.orientation = c.orientation.TurnRight()
	case ActMoveForward, ActMoveBackward, ActMoveLeft, ActMoveRight:
		if mate > 0 {
			c.mate = front
		} else {
			self.pos = s.wrap(self.pos.Step(c.moveDirection(action)))
		}
	}

	var sum float64
	for _, v := range outputs {
		sum += v
	}
	c.energy -= 1 + math.Abs(sum)
	return c.energy > 0
}

// lookCone counts occupied cells in a triangular fan ahead of pos, normalised
// by the squared look-ahead distance.
func (c *Creature) lookCone(pos navigation.Coordinate, s Snapshot) float64 {
	o := c.orientation
	left, right := o.TurnLeft(), o.TurnRight()

	seen := 0
	for i := 1; i <= c.lookAhead; i++ {
		p := pos.Add(o.Scale(i))
		if s.At(p) != nil {
			seen++
		}
		for j := 1; j < i; j++ {
			if s.At(p.Add(right.Scale(j))) != nil {
				seen++
			}
			if s.At(p.Add(left.Scale(j))) != nil {
				seen++
			}
		}
	}
	return float64(seen) / float64(c.lookAhead*c.lookAhead)
}

func (c *Creature) moveDirection(action int) navigation.Direction {
	switch action {
	case ActMoveBackward:
		return c.orientation.Opposite()
	case ActMoveLeft:
		return c.orientation.TurnLeft()
	case ActMoveRight:
		return c.orientation.TurnRight()
	default:
		return c.orientation
	}
}

// Egg incubates a recombined genome and hatches into a Creature.
type Egg struct {
	genome      *neural.Genome
	orientation navigation.Direction
	age         int
	incubation  int
	energy      float64
	generation  int

	motherID, fatherID uint64
	hatched            bool

	// parents awaiting credit until the egg is kept
	mother, father *Creature
}

// Genome returns the genome the hatchling will carry.
func (e *Egg) Genome() *neural.Genome { return e.genome }

// Orientation returns the direction the hatchling will face.
func (e *Egg) Orientation() navigation.Direction { return e.orientation }

// Age returns the number of ticks the egg has incubated.
func (e *Egg) Age() int { return e.age }

// Generation returns the hatchling's generation.
func (e *Egg) Generation() int { return e.generation }

// Parents returns the tile IDs of the mating creatures.
func (e *Egg) Parents() (mother, father uint64) { return e.motherID, e.fatherID }

// Hatched reports whether the egg has already released its creature.
func (e *Egg) Hatched() bool { return e.hatched }

func (e *Egg) update() bool {
	e.age++
	return e.age <= e.incubation
}
