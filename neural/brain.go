package neural

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Brain evaluates a genome's recurrent network. It carries hidden state
// between calls, so a Brain belongs to exactly one creature.
//
// Each step computes, without any activation function:
//
//	out    = sensorsᵀ·i2o + hiddenᵀ·h2o   (using the new hidden state)
//	hidden = sensorsᵀ·i2h + hiddenᵀ·h2h
type Brain struct {
	genome *Genome
	hidden *mat.VecDense
}

// NewBrain creates a brain for g with every hidden neuron initialised to 1.
func NewBrain(g *Genome) *Brain {
	n, _ := g.h2h.Dims()
	hidden := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		hidden.SetVec(i, 1)
	}
	return &Brain{genome: g, hidden: hidden}
}

// Genome returns the genome this brain was built from.
func (b *Brain) Genome() *Genome { return b.genome }

// Hidden returns a copy of the current hidden state.
func (b *Brain) Hidden() []float64 {
	out := make([]float64, b.hidden.Len())
	for i := range out {
		out[i] = b.hidden.AtVec(i)
	}
	return out
}

// Think advances the network by one step and returns one value per actuator.
func (b *Brain) Think(sensors []float64) ([]float64, error) {
	g := b.genome
	numSensors, numActuators := g.i2o.Dims()
	if len(sensors) != numSensors {
		return nil, fmt.Errorf("expected %d sensors, got %d", numSensors, len(sensors))
	}

	in := mat.NewVecDense(numSensors, append([]float64(nil), sensors...))

	var hidden, recurrent mat.VecDense
	hidden.MulVec(g.i2h.T(), in)
	recurrent.MulVec(g.h2h.T(), b.hidden)
	hidden.AddVec(&hidden, &recurrent)
	b.hidden = &hidden

	out := mat.NewVecDense(numActuators, nil)
	var fromHidden mat.VecDense
	out.MulVec(g.i2o.T(), in)
	fromHidden.MulVec(g.h2o.T(), b.hidden)
	out.AddVec(out, &fromHidden)

	return out.RawVector().Data, nil
}

// Argmax returns the index of the largest value, preferring the first on ties.
// It returns -1 for an empty slice.
func Argmax(values []float64) int {
	best := -1
	for i, v := range values {
		if best < 0 || v > values[best] {
			best = i
		}
	}
	return best
}
