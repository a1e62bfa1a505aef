// Package world implements the toroidal grid, its tiles and the per-tick update.
package world

import (
	"fmt"
	"math"

	"github.com/pthm-cable/gridsoup/navigation"
)

// Kind identifies the variant held by a Tile.
type Kind uint8

const (
	KindCreature Kind = iota + 1
	KindEgg
	KindFood
)

// Kinds lists every tile variant.
func Kinds() []Kind {
	return []Kind{KindCreature, KindEgg, KindFood}
}

func (k Kind) String() string {
	switch k {
	case KindCreature:
		return "creature"
	case KindEgg:
		return "egg"
	case KindFood:
		return "food"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// HSV is a color with hue in [0,360) and saturation and value in [0,1].
type HSV struct {
	H, S, V float64
}

// Tile is a grid-resident entity. Exactly one variant pointer is set,
// matching Kind.
type Tile struct {
	id   uint64
	pos  navigation.Coordinate
	kind Kind

	creature *Creature
	egg      *Egg
	food     *Food
}

// ID returns the tile's identifier, unique and increasing within one World.
func (t *Tile) ID() uint64 { return t.id }

// Pos returns the tile's grid position.
func (t *Tile) Pos() navigation.Coordinate { return t.pos }

// Kind returns the tile's variant.
func (t *Tile) Kind() Kind { return t.kind }

// Creature returns the creature state, or nil if the tile is not a creature.
func (t *Tile) Creature() *Creature { return t.creature }

// Egg returns the egg state, or nil if the tile is not an egg.
func (t *Tile) Egg() *Egg { return t.egg }

// Food returns the food state, or nil if the tile is not food.
func (t *Tile) Food() *Food { return t.food }

// Update advances the tile by one tick against the previous tick's grid.
// It reports whether the tile stays alive.
func (t *Tile) Update(s Snapshot) bool {
	switch t.kind {
	case KindCreature:
		return t.creature.update(t, s)
	case KindEgg:
		return t.egg.update()
	case KindFood:
		return t.food.update()
	default:
		return false
	}
}

// Color returns the tile's display color.
func (t *Tile) Color() HSV {
	switch t.kind {
	case KindCreature:
		c := t.creature
		return HSV{
			H: c.genome.Value() * 360,
			S: 0.2 + 0.8*(c.energy/c.genome.MaxEnergy()),
			V: 1 - 0.6*math.Tanh(float64(c.age)*0.1),
		}
	case KindEgg:
		e := t.egg
		return HSV{H: 250, S: 0.6, V: math.Min(0.5+0.5*float64(e.age)/float64(e.incubation), 1)}
	case KindFood:
		return HSV{H: 150, S: math.Tanh(t.food.energy), V: 0.8}
	default:
		return HSV{}
	}
}

// EatEnergy returns the energy a creature gains by eating this tile.
func (t *Tile) EatEnergy() float64 {
	switch t.kind {
	case KindEgg:
		return t.egg.energy
	case KindFood:
		return t.food.energy
	default:
		return 0
	}
}

// Symbol returns the single-character representation used in text dumps.
func (t *Tile) Symbol() byte {
	switch t.kind {
	case KindCreature:
		return 'C'
	case KindEgg:
		return 'E'
	case KindFood:
		return 'F'
	default:
		return '?'
	}
}

func (t *Tile) String() string {
	return fmt.Sprintf("%s#%d@%s", t.kind, t.id, t.pos)
}

// Food is a decaying energy payload.
type Food struct {
	energy    float64
	age       int
	spoilTime int
}

// Energy returns the payload yielded when eaten.
func (f *Food) Energy() float64 { return f.energy }

// Age returns the number of ticks the food has existed.
func (f *Food) Age() int { return f.age }

func (f *Food) update() bool {
	f.age++
	return f.age < f.spoilTime
}

// Snapshot is a read-only view of the grid as it was at the start of a tick.
type Snapshot struct {
	tiles         map[navigation.Coordinate]*Tile
	width, height int
}

// At returns the tile at c after wrapping, or nil if the cell is empty.
func (s Snapshot) At(c navigation.Coordinate) *Tile {
	return s.tiles[c.Wrap(s.width, s.height)]
}

// Width returns the grid width.
func (s Snapshot) Width() int { return s.width }

// Height returns the grid height.
func (s Snapshot) Height() int { return s.height }

func (s Snapshot) wrap(c navigation.Coordinate) navigation.Coordinate {
	return c.Wrap(s.width, s.height)
}
