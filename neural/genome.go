// Package neural provides the digit-string genome codec and the recurrent brain it encodes.
package neural

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInvalidGenome reports digit material that cannot be decoded.
	ErrInvalidGenome = errors.New("invalid genome")

	// ErrUninitializedMutationSource reports a reproduction request without a random source.
	// Callers recover with Codec.Blend.
	ErrUninitializedMutationSource = errors.New("mutation source not initialized")
)

// Genome is the immutable decoded form of a digit string.
//
// The first gene is the trait gene (max energy). Every following gene encodes
// one weighted connection of the brain. Later genes for the same connection
// overwrite earlier ones.
type Genome struct {
	digits string
	genes  []int

	maxEnergy float64
	value     float64

	i2o *mat.Dense // sensors x actuators
	i2h *mat.Dense // sensors x neurons
	h2h *mat.Dense // neurons x neurons
	h2o *mat.Dense // neurons x actuators
}

// Digits returns the decoded digits. A trailing partial gene is not included.
func (g *Genome) Digits() string { return g.digits }

// NumGenes returns the number of decoded genes, including the trait gene.
func (g *Genome) NumGenes() int { return len(g.genes) }

// Gene returns the raw value of gene i.
func (g *Genome) Gene(i int) int { return g.genes[i] }

// MaxEnergy returns the energy capacity encoded by the trait gene.
func (g *Genome) MaxEnergy() float64 { return g.maxEnergy }

// Value returns tanh of the summed brain gene fractions, in [0,1).
// It is used as a hue and as the genetic distance for mate compatibility.
func (g *Genome) Value() float64 { return g.value }

// InToOut returns the sensor to actuator weights.
func (g *Genome) InToOut() mat.Matrix { return g.i2o }

// InToHidden returns the sensor to neuron weights.
func (g *Genome) InToHidden() mat.Matrix { return g.i2h }

// HiddenToHidden returns the recurrent neuron weights.
func (g *Genome) HiddenToHidden() mat.Matrix { return g.h2h }

// HiddenToOut returns the neuron to actuator weights.
func (g *Genome) HiddenToOut() mat.Matrix { return g.h2o }

// Codec decodes digit strings into genomes and recombines genomes.
// A Codec holds no mutable state and is safe for concurrent use.
type Codec struct {
	p       Params
	modulus int
}

// NewCodec creates a codec for the given layout.
func NewCodec(p Params) *Codec {
	return &Codec{p: p, modulus: p.modulus()}
}

// Params returns the codec's layout.
func (c *Codec) Params() Params { return c.p }

// Decode parses digits into a genome. Genes are consumed in GeneLength chunks
// until fewer than GeneLength digits remain; the remainder is dropped.
func (c *Codec) Decode(digits string) (*Genome, error) {
	gl := c.p.GeneLength
	if len(digits) < gl {
		return nil, fmt.Errorf("%w: %d digits, need at least %d", ErrInvalidGenome, len(digits), gl)
	}

	n := len(digits) / gl
	genes := make([]int, n)
	for i := range genes {
		v, err := parseGene(digits[i*gl : (i+1)*gl])
		if err != nil {
			return nil, fmt.Errorf("%w: gene %d: %v", ErrInvalidGenome, i, err)
		}
		genes[i] = v
	}

	return c.build(digits[:n*gl], genes), nil
}

// build derives traits and weight matrices from parsed genes.
func (c *Codec) build(digits string, genes []int) *Genome {
	p := c.p
	g := &Genome{
		digits: digits,
		genes:  genes,
		i2o:    mat.NewDense(p.Sensors, p.Actuators, nil),
		i2h:    mat.NewDense(p.Sensors, p.Neurons, nil),
		h2h:    mat.NewDense(p.Neurons, p.Neurons, nil),
		h2o:    mat.NewDense(p.Neurons, p.Actuators, nil),
	}

	g.maxEnergy = p.MinMaxEnergy + float64(genes[0]%p.MaxBonusEnergy)

	var sum float64
	for _, gene := range genes[1:] {
		c.connect(g, gene)
		sum += float64(gene) / float64(c.modulus)
	}
	g.value = math.Tanh(sum)

	return g
}

// connect unpacks one gene (weight, target, source; least significant first)
// and writes the weight into the matrix it routes to.
func (c *Codec) connect(g *Genome, gene int) {
	p := c.p

	weight := gene % (1 << p.WeightBits)
	gene >>= p.WeightBits
	target := gene % (1 << p.TargetBits)
	gene >>= p.TargetBits
	source := gene % (1 << p.SourceBits)

	source %= p.Sensors + p.Neurons
	target %= p.Neurons + p.Actuators
	half := float64(int(1) << (p.WeightBits - 1))
	w := (float64(weight) - half) / half

	if source < p.Sensors {
		if target < p.Neurons {
			g.i2h.Set(source, target, w)
		} else {
			g.i2o.Set(source, target-p.Neurons, w)
		}
		return
	}

	source -= p.Sensors
	if target < p.Neurons {
		g.h2h.Set(source, target, w)
	} else {
		g.h2o.Set(source, target-p.Neurons, w)
	}
}

// Reproduce recombines two parent genomes gene by gene. Each gene is replaced
// by a random value with the configured mutation chance, otherwise blended
// with a random mother ratio. A nil rng yields ErrUninitializedMutationSource.
func (c *Codec) Reproduce(mother, father *Genome, rng *rand.Rand) (*Genome, error) {
	if rng == nil {
		return nil, ErrUninitializedMutationSource
	}
	return c.recombine(mother, father, func(m, f int) int {
		if rng.Float64() < c.p.MutationChance {
			return rng.Intn(c.modulus)
		}
		return blendGene(m, f, rng.Float64())
	})
}

// Blend recombines two genomes deterministically with a fixed mother ratio and no mutation.
func (c *Codec) Blend(mother, father *Genome, ratio float64) (*Genome, error) {
	return c.recombine(mother, father, func(m, f int) int {
		return blendGene(m, f, ratio)
	})
}

// recombine builds a child of min(mother, father, NumGenes) genes.
func (c *Codec) recombine(mother, father *Genome, child func(m, f int) int) (*Genome, error) {
	if mother == nil || father == nil {
		return nil, fmt.Errorf("%w: cannot recombine nil genomes", ErrInvalidGenome)
	}

	n := min(len(mother.genes), len(father.genes), c.p.NumGenes)
	var sb strings.Builder
	sb.Grow(n * c.p.GeneLength)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%0*d", c.p.GeneLength, child(mother.genes[i], father.genes[i]))
	}

	return c.Decode(sb.String())
}

// blendGene mixes two gene values, rounding half to even.
func blendGene(m, f int, ratio float64) int {
	return int(math.RoundToEven(float64(m)*ratio + float64(f)*(1.0-ratio)))
}

// parseGene converts a fixed-width run of decimal digits.
func parseGene(chunk string) (int, error) {
	v := 0
	for i := 0; i < len(chunk); i++ {
		ch := chunk[i]
		if ch < '0' || ch > '9' {
			return 0, fmt.Errorf("non-digit %q at offset %d", ch, i)
		}
		v = v*10 + int(ch-'0')
	}
	return v, nil
}
