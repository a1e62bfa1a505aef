// Package components defines the ECS components used to track creatures
// outside the grid.
package components

// Lineage identifies a creature and its ancestry. It does not change after registration.
type Lineage struct {
	TileID     uint64
	MotherID   uint64 // 0 for seeded creatures
	FatherID   uint64 // 0 for seeded creatures
	Generation int
	BirthTick  uint64

	GenomeValue float64
	Genome      string // decoded digits
}

// Seeded reports whether the creature was placed directly rather than hatched.
func (l Lineage) Seeded() bool {
	return l.MotherID == 0 && l.FatherID == 0
}

// Vitals tracks a creature's state over its lifetime.
type Vitals struct {
	Age        int
	Energy     float64
	PeakEnergy float64
	Children   int
	LastAction int
}
