package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pthm-cable/gridsoup/renderer"
	"github.com/pthm-cable/gridsoup/simulation"
)

// Evolution turns a simulation into a provider. Each request steps the
// simulation; when the decider fires it also pulls fresh genome material
// from the base provider, which seeds the world on the next PreparedData.
type Evolution struct {
	sim          *simulation.Simulation
	base         Provider
	decide       simulation.Decider
	genomeLength int
	logger       *slog.Logger

	pending bool
	last    string
}

// NewEvolution wraps base around sim. genomeLength is the digit count the
// codec expects.
func NewEvolution(sim *simulation.Simulation, base Provider, decide simulation.Decider, genomeLength int, logger *slog.Logger) *Evolution {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evolution{
		sim:          sim,
		base:         base,
		decide:       decide,
		genomeLength: genomeLength,
		logger:       logger,
	}
}

// RequestNewData asks the base provider for material when the decider
// fires, then advances the simulation one step. The step happens even when
// the base provider fails.
func (e *Evolution) RequestNewData(ctx context.Context) error {
	var err error
	if e.decide() {
		if err = e.base.RequestNewData(ctx); err == nil {
			e.pending = true
		} else {
			err = fmt.Errorf("requesting genome material: %w", err)
		}
	}
	e.sim.ProcessStep()
	return err
}

// RawData returns the genome most recently used to populate the world.
func (e *Evolution) RawData() (string, error) {
	if e.last == "" {
		return "", ErrNoData
	}
	return e.last, nil
}

// PreparedData populates the world with pending material, if any, and
// returns the simulation's next channel triple. Populate failures are
// logged; the triple is returned regardless.
func (e *Evolution) PreparedData() (renderer.RGB, error) {
	if e.pending {
		e.pending = false
		if err := e.populate(); err != nil {
			e.logger.Warn("populate failed", "error", err)
		}
	}
	return e.sim.ChannelTriple(), nil
}

func (e *Evolution) populate() error {
	raw, err := e.base.RawData()
	if err != nil {
		return err
	}
	if raw == "" {
		return ErrNoData
	}
	data := FitLength(raw, e.genomeLength)
	if err := e.sim.Populate(data); err != nil {
		return err
	}
	e.last = data
	return nil
}

// FitLength repeats data until it holds at least n characters, then cuts it to n.
func FitLength(data string, n int) string {
	if data == "" || n <= 0 {
		return ""
	}
	if len(data) < n {
		data = strings.Repeat(data, (n+len(data)-1)/len(data))
	}
	return data[:n]
}
