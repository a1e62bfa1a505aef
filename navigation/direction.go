// Package navigation provides grid coordinates and the four compass directions.
package navigation

// Direction is one of the four compass directions, or Center.
// Center is a degenerate value used as an invalid or no-op heading.
type Direction uint8

const (
	Center Direction = iota
	North
	East
	South
	West
)

// numDirections is the number of real (non-center) directions.
const numDirections = 4

// Directions returns the four real directions in clockwise order starting at North.
func Directions() []Direction {
	return []Direction{North, East, South, West}
}

// Delta returns the unit step of the direction. North points towards smaller y.
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case North:
		return 0, -1
	case East:
		return 1, 0
	case South:
		return 0, 1
	case West:
		return -1, 0
	default:
		return 0, 0
	}
}

// Vector returns the unit step as a Coordinate.
func (d Direction) Vector() Coordinate {
	dx, dy := d.Delta()
	return Coordinate{X: dx, Y: dy}
}

// Scale returns the direction's unit step multiplied by k.
func (d Direction) Scale(k int) Coordinate {
	return d.Vector().Mul(k)
}

// TurnLeft rotates a quarter turn counter-clockwise.
func (d Direction) TurnLeft() Direction {
	switch d {
	case North:
		return West
	case East:
		return North
	case South:
		return East
	case West:
		return South
	default:
		return Center
	}
}

// TurnRight rotates a quarter turn clockwise.
func (d Direction) TurnRight() Direction {
	switch d {
	case North:
		return East
	case East:
		return South
	case South:
		return West
	case West:
		return North
	default:
		return Center
	}
}

// Opposite returns the direction pointing the other way.
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case East:
		return West
	case South:
		return North
	case West:
		return East
	default:
		return Center
	}
}

// IsHorizontal reports whether the direction is East or West.
func (d Direction) IsHorizontal() bool {
	return d == East || d == West
}

// Float maps the direction into [0,1] for use as a sensor value:
// Center=0, North=1/4, East=2/4, South=3/4, West=4/4.
func (d Direction) Float() float64 {
	if d > West {
		return 0
	}
	return float64(d) / numDirections
}

func (d Direction) String() string {
	switch d {
	case North:
		return "N"
	case East:
		return "E"
	case South:
		return "S"
	case West:
		return "W"
	default:
		return "C"
	}
}

// DirectionBetween returns the dominant direction pointing from one coordinate to another.
// Equal offsets on both axes resolve to the vertical direction; identical coordinates give Center.
func DirectionBetween(from, to Coordinate) Direction {
	diff := to.Sub(from)
	if diff.X == 0 && diff.Y == 0 {
		return Center
	}
	if abs(diff.X) > abs(diff.Y) {
		if diff.X > 0 {
			return East
		}
		return West
	}
	if diff.Y > 0 {
		return South
	}
	return North
}
