package neural

import "github.com/pthm-cable/gridsoup/config"

// Params holds the genome layout and recombination settings used by a Codec.
type Params struct {
	GeneLength int
	NumGenes   int

	WeightBits int
	TargetBits int
	SourceBits int

	Sensors   int
	Neurons   int
	Actuators int

	MutationChance float64
	MinMaxEnergy   float64
	MaxBonusEnergy int
}

// ParamsFromConfig extracts codec parameters from a loaded config.
func ParamsFromConfig(cfg *config.Config) Params {
	g := cfg.Genome
	return Params{
		GeneLength:     g.GeneLength,
		NumGenes:       g.NumGenes,
		WeightBits:     g.WeightBits,
		TargetBits:     g.TargetBits,
		SourceBits:     g.SourceBits,
		Sensors:        g.Sensors,
		Neurons:        g.Neurons,
		Actuators:      g.Actuators,
		MutationChance: g.MutationChance,
		MinMaxEnergy:   g.MinMaxEnergy,
		MaxBonusEnergy: g.MaxBonusEnergy,
	}
}

// modulus returns 10^GeneLength, the exclusive upper bound of a gene value.
func (p Params) modulus() int {
	m := 1
	for i := 0; i < p.GeneLength; i++ {
		m *= 10
	}
	return m
}

// GenomeDigits returns the digit count of a full-length genome.
func (p Params) GenomeDigits() int {
	return p.GeneLength * p.NumGenes
}
