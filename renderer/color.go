package renderer

import (
	"errors"
	"fmt"
	"math"

	"github.com/pthm-cable/gridsoup/world"
)

// ErrIllegalColor reports saturation or value outside [0, 1].
var ErrIllegalColor = errors.New("illegal color value")

// RGB is an 8-bit color triple, the form handed to external consumers.
type RGB struct {
	R, G, B uint8
}

// String formats the triple as "(r, g, b)".
func (c RGB) String() string {
	return fmt.Sprintf("(%d, %d, %d)", c.R, c.G, c.B)
}

// HSVToRGB converts hue in degrees and saturation/value in [0, 1] to RGB.
// Hue is periodic and wrapped into [0, 360) first; channels are truncated.
func HSVToRGB(c world.HSV) (RGB, error) {
	if math.IsNaN(c.H) || math.IsInf(c.H, 0) {
		return RGB{}, fmt.Errorf("%w: hue %v", ErrIllegalColor, c.H)
	}
	if c.S < 0 || c.S > 1 || c.V < 0 || c.V > 1 || math.IsNaN(c.S) || math.IsNaN(c.V) {
		return RGB{}, fmt.Errorf("%w: saturation %v, value %v", ErrIllegalColor, c.S, c.V)
	}

	h := math.Mod(c.H, 360)
	if h < 0 {
		h += 360
	}

	chroma := c.V * c.S
	x := chroma * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := c.V - chroma

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = chroma, x, 0
	case h < 120:
		r, g, b = x, chroma, 0
	case h < 180:
		r, g, b = 0, chroma, x
	case h < 240:
		r, g, b = 0, x, chroma
	case h < 300:
		r, g, b = x, 0, chroma
	default:
		r, g, b = chroma, 0, x
	}

	return RGB{R: channel(r + m), G: channel(g + m), B: channel(b + m)}, nil
}

func channel(f float64) uint8 {
	v := int(f * 255)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
