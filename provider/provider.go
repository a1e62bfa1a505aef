// Package provider supplies genome material and color triples to the outside
// world. Base providers produce raw digit strings; Evolution wraps one of
// them around a simulation.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/pthm-cable/gridsoup/renderer"
)

// ErrNoData reports that a provider has nothing to hand out right now.
var ErrNoData = errors.New("no data available")

// Provider is a source of genome material.
type Provider interface {
	// RequestNewData readies the next item for RawData and PreparedData.
	RequestNewData(ctx context.Context) error
	// RawData returns the current item as a decimal digit string.
	RawData() (string, error)
	// PreparedData returns the current item as a color triple.
	PreparedData() (renderer.RGB, error)
}

// tripleFromDigits reads three 3-digit numbers from the front of s, each
// reduced modulo 255.
func tripleFromDigits(s string) (renderer.RGB, error) {
	if len(s) < 9 {
		return renderer.RGB{}, fmt.Errorf("%w: need 9 digits, got %q", ErrNoData, s)
	}
	var ch [3]uint8
	for i := range ch {
		n, err := strconv.Atoi(s[3*i : 3*i+3])
		if err != nil {
			return renderer.RGB{}, fmt.Errorf("parsing %q: %w", s[3*i:3*i+3], err)
		}
		ch[i] = uint8(n % 255)
	}
	return renderer.RGB{R: ch[0], G: ch[1], B: ch[2]}, nil
}
