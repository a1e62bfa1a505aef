package navigation

import "fmt"

// Coordinate is an integer grid position. It is a comparable value type and
// can be used directly as a map key.
type Coordinate struct {
	X, Y int
}

// At is shorthand for Coordinate{X: x, Y: y}.
func At(x, y int) Coordinate {
	return Coordinate{X: x, Y: y}
}

// Add returns c shifted by o.
func (c Coordinate) Add(o Coordinate) Coordinate {
	return Coordinate{X: c.X + o.X, Y: c.Y + o.Y}
}

// Sub returns c minus o.
func (c Coordinate) Sub(o Coordinate) Coordinate {
	return Coordinate{X: c.X - o.X, Y: c.Y - o.Y}
}

// Step returns the neighbouring coordinate in direction d.
func (c Coordinate) Step(d Direction) Coordinate {
	return c.Add(d.Vector())
}

// StepBack returns the neighbouring coordinate opposite direction d.
func (c Coordinate) StepBack(d Direction) Coordinate {
	return c.Sub(d.Vector())
}

// Mul scales both components by k.
func (c Coordinate) Mul(k int) Coordinate {
	return Coordinate{X: c.X * k, Y: c.Y * k}
}

// Wrap folds c into [0,width) x [0,height) on a torus.
func (c Coordinate) Wrap(width, height int) Coordinate {
	return Coordinate{X: mod(c.X, width), Y: mod(c.Y, height)}
}

// InBounds reports whether c lies inside [0,width) x [0,height).
func (c Coordinate) InBounds(width, height int) bool {
	return c.X >= 0 && c.X < width && c.Y >= 0 && c.Y < height
}

// Linearize returns the index of c in a row-major array with the given row width.
func (c Coordinate) Linearize(rowWidth int) int {
	return c.X + c.Y*rowWidth
}

// Before reports whether c is visited strictly before o when scanning row by row.
func (c Coordinate) Before(o Coordinate) bool {
	return c.Y < o.Y || (c.Y == o.Y && c.X < o.X)
}

// BeforeColumnWise reports whether c is visited strictly before o when scanning column by column.
func (c Coordinate) BeforeColumnWise(o Coordinate) bool {
	return c.X < o.X || (c.X == o.X && c.Y < o.Y)
}

// Compare orders coordinates in reading order. It returns -1, 0 or +1 and
// can be passed to slices.SortFunc.
func Compare(a, b Coordinate) int {
	switch {
	case a == b:
		return 0
	case a.Before(b):
		return -1
	default:
		return 1
	}
}

// Distance returns the Manhattan distance between two coordinates.
func Distance(a, b Coordinate) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d|%d)", c.X, c.Y)
}

// mod returns positive modulo (Go's % can return negative).
func mod(a, b int) int {
	return ((a % b) + b) % b
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
