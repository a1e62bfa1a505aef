package provider

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/pthm-cable/gridsoup/renderer"
)

// Random produces uniformly random genomes and colors from a seeded source.
type Random struct {
	rng        *rand.Rand
	geneLength int
	numGenes   int
	modulus    int
}

// NewRandom creates a provider of genomes with numGenes genes of geneLength digits.
func NewRandom(seed int64, geneLength, numGenes int) *Random {
	modulus := 1
	for i := 0; i < geneLength; i++ {
		modulus *= 10
	}
	return &Random{
		rng:        rand.New(rand.NewSource(seed)),
		geneLength: geneLength,
		numGenes:   numGenes,
		modulus:    modulus,
	}
}

// RequestNewData is a no-op; every RawData call draws fresh digits.
func (r *Random) RequestNewData(context.Context) error { return nil }

// RawData returns a new random genome of zero-padded genes.
func (r *Random) RawData() (string, error) {
	var sb strings.Builder
	sb.Grow(r.geneLength * r.numGenes)
	for i := 0; i < r.numGenes; i++ {
		fmt.Fprintf(&sb, "%0*d", r.geneLength, r.rng.Intn(r.modulus))
	}
	return sb.String(), nil
}

// PreparedData returns a random color.
func (r *Random) PreparedData() (renderer.RGB, error) {
	return renderer.RGB{
		R: uint8(r.rng.Intn(256)),
		G: uint8(r.rng.Intn(256)),
		B: uint8(r.rng.Intn(256)),
	}, nil
}
