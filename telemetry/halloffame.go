package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"

	"github.com/pthm-cable/gridsoup/config"
)

// HallEntry is a successful genome and the lifetime that earned its place.
type HallEntry struct {
	Genome     string  `json:"genome"`
	Fitness    float64 `json:"fitness"`
	CreatureID uint64  `json:"creature_id"`
	Generation int     `json:"generation"`
	Children   int     `json:"children"`
	Lifespan   int     `json:"lifespan"`
}

// GenomeSink persists genomes, e.g. provider.SQLiteStore.
type GenomeSink interface {
	SaveGenomes(ctx context.Context, genomes []string) error
}

// HallOfFame keeps the fittest genomes seen in a run, sorted by fitness.
type HallOfFame struct {
	hall    []HallEntry
	maxSize int
	cfg     config.TelemetryConfig
	rng     *rand.Rand
}

// NewHallOfFame creates an empty hall sized and weighted by cfg.
func NewHallOfFame(cfg config.TelemetryConfig, rng *rand.Rand) *HallOfFame {
	return &HallOfFame{
		hall:    make([]HallEntry, 0, cfg.HallOfFameSize),
		maxSize: cfg.HallOfFameSize,
		cfg:     cfg,
		rng:     rng,
	}
}

// Consider evaluates a finished lifetime for hall of fame entry.
// Returns true if the genome was added.
func (hof *HallOfFame) Consider(l Lifetime) bool {
	if hof.maxSize <= 0 {
		return false
	}
	// Entry criteria: reproduced at least once, or survived long enough
	if l.Children == 0 && l.Lifespan < hof.cfg.MinHallLifespan {
		return false
	}

	entry := HallEntry{
		Genome:     l.Genome,
		Fitness:    hof.fitness(l),
		CreatureID: l.CreatureID,
		Generation: l.Generation,
		Children:   l.Children,
		Lifespan:   l.Lifespan,
	}
	var added bool
	hof.hall, added = hof.insertEntry(hof.hall, entry)
	return added
}

// fitness computes the weighted fitness score.
func (hof *HallOfFame) fitness(l Lifetime) float64 {
	return float64(l.Children)*hof.cfg.ChildrenWeight + float64(l.Lifespan)*hof.cfg.LifespanWeight
}

// insertEntry adds an entry to the hall, maintaining sorted order by fitness.
// If the hall is full, the lowest-fitness entry is removed.
func (hof *HallOfFame) insertEntry(hall []HallEntry, entry HallEntry) ([]HallEntry, bool) {
	// Find insertion point (sorted descending by fitness)
	idx := sort.Search(len(hall), func(i int) bool {
		return hall[i].Fitness < entry.Fitness
	})

	// If hall is full and entry would be last (lowest), skip it
	if len(hall) >= hof.maxSize && idx >= hof.maxSize {
		return hall, false
	}

	hall = append(hall, HallEntry{})
	copy(hall[idx+1:], hall[idx:])
	hall[idx] = entry

	if len(hall) > hof.maxSize {
		hall = hall[:hof.maxSize]
	}
	return hall, true
}

// Sample selects a genome using tournament selection.
// Returns "" if the hall is empty.
func (hof *HallOfFame) Sample() string {
	if len(hof.hall) == 0 || hof.rng == nil {
		return ""
	}

	// Tournament selection with k=3
	const tournamentSize = 3
	var best *HallEntry
	for i := 0; i < tournamentSize && i < len(hof.hall); i++ {
		candidate := &hof.hall[hof.rng.Intn(len(hof.hall))]
		if best == nil || candidate.Fitness > best.Fitness {
			best = candidate
		}
	}
	return best.Genome
}

// Entries returns the hall, fittest first.
func (hof *HallOfFame) Entries() []HallEntry {
	return append([]HallEntry(nil), hof.hall...)
}

// Size returns the number of entries.
func (hof *HallOfFame) Size() int {
	return len(hof.hall)
}

// TopFitness returns the highest fitness in the hall, or 0 if it is empty.
func (hof *HallOfFame) TopFitness() float64 {
	if len(hof.hall) == 0 {
		return 0
	}
	return hof.hall[0].Fitness
}

// Save writes every genome in the hall to sink, fittest first.
func (hof *HallOfFame) Save(ctx context.Context, sink GenomeSink) error {
	if len(hof.hall) == 0 {
		return nil
	}
	genomes := make([]string, len(hof.hall))
	for i, e := range hof.hall {
		genomes[i] = e.Genome
	}
	if err := sink.SaveGenomes(ctx, genomes); err != nil {
		return fmt.Errorf("saving hall of fame: %w", err)
	}
	return nil
}

// MarshalJSON serializes the hall of fame to JSON.
func (hof *HallOfFame) MarshalJSON() ([]byte, error) {
	return json.MarshalIndent(hof.hall, "", "  ")
}
