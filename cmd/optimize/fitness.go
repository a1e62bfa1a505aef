package main

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/gridsoup/config"
	"github.com/pthm-cable/gridsoup/provider"
	"github.com/pthm-cable/gridsoup/simulation"
	"github.com/pthm-cable/gridsoup/telemetry"
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	maxTicks   int
	seeds      []int64
	baseConfig *config.Config
	logger     *slog.Logger

	// Best run tracking
	mu             sync.Mutex
	bestFitness    float64
	bestHallOfFame *telemetry.HallOfFame
	last           evaluation
}

// evaluation summarises one parameter vector across all seeds. Population
// figures are post-warmup window means.
type evaluation struct {
	Fitness        float64
	Quality        float64
	Creatures      float64
	Eggs           float64
	GenerationMean float64
	GenerationMax  int
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		seeds:       seeds,
		baseConfig:  baseCfg,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		bestFitness: math.Inf(1),
	}
}

// BestHallOfFame returns the hall of fame from the best evaluation.
func (fe *FitnessEvaluator) BestHallOfFame() *telemetry.HallOfFame {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestHallOfFame
}

// Last returns the summary of the most recent evaluation.
func (fe *FitnessEvaluator) Last() evaluation {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.last
}

// runResult holds the results from a single simulation run.
type runResult struct {
	windowStats []telemetry.WindowStats // collected via StatsCallback each window
	hallOfFame  *telemetry.HallOfFame
}

// seedResult holds the result from one seed evaluation.
type seedResult struct {
	evaluation
	hallOfFame *telemetry.HallOfFame
}

// Evaluate computes fitness for a parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	// Run all seeds in parallel
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			result, err := fe.runSimulation(x, s)
			if err != nil {
				fe.logger.Error("evaluation failed", "seed", s, "error", err)
				results[idx] = seedResult{}
				return
			}
			results[idx] = seedResult{
				evaluation: summarize(result.windowStats),
				hallOfFame: result.hallOfFame,
			}
		}(i, seed)
	}
	wg.Wait()

	// Aggregate results
	var mean evaluation
	bestSeedFitness := math.Inf(1)
	var bestSeedHallOfFame *telemetry.HallOfFame

	n := float64(len(results))
	for _, r := range results {
		mean.Fitness += r.Fitness / n
		mean.Quality += r.Quality / n
		mean.Creatures += r.Creatures / n
		mean.Eggs += r.Eggs / n
		mean.GenerationMean += r.GenerationMean / n
		mean.GenerationMax = max(mean.GenerationMax, r.GenerationMax)
		if r.Fitness < bestSeedFitness {
			bestSeedFitness = r.Fitness
			bestSeedHallOfFame = r.hallOfFame
		}
	}

	fe.mu.Lock()
	if mean.Fitness < fe.bestFitness {
		fe.bestFitness = mean.Fitness
		fe.bestHallOfFame = bestSeedHallOfFame
	}
	fe.last = mean
	fe.mu.Unlock()

	return mean.Fitness
}

// runSimulation executes a single headless run fed by the random provider.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) (*runResult, error) {
	cfg := fe.baseConfig.Clone()
	fe.params.ApplyToConfig(cfg, x)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	result := &runResult{}
	sim, err := simulation.New(cfg, seed, simulation.Options{
		Logger: fe.logger,
		StatsCallback: func(stats telemetry.WindowStats) {
			result.windowStats = append(result.windowStats, stats)
		},
	})
	if err != nil {
		return nil, err
	}
	defer sim.Close()

	g := cfg.Genome
	evo := provider.NewEvolution(sim,
		provider.NewRandom(seed, g.GeneLength, g.NumGenes),
		simulation.EveryXSteps(cfg.Population.StepsPerPopulateCall),
		g.GeneLength*g.NumGenes, fe.logger)

	ctx := context.Background()
	for tick := 0; tick < fe.maxTicks; tick++ {
		if err := evo.RequestNewData(ctx); err != nil {
			return nil, err
		}
		evo.PreparedData()
	}

	result.hallOfFame = sim.HallOfFame()
	return result, nil
}

// Quality weights.
const (
	qualityWeightStability  = 0.5
	qualityWeightGeneration = 0.5

	qualityWarmupWindows = 3 // skip first N windows (warmup)
	generationScale      = 10.0
)

// computeFitness is the negative mean creature count over the post-warmup
// windows, with up to a 20% quality bonus (lower = better).
func computeFitness(windows []telemetry.WindowStats) float64 {
	valid := postWarmup(windows)
	if len(valid) == 0 {
		return 0
	}
	var sum float64
	for _, w := range valid {
		sum += float64(w.Creatures)
	}
	mean := sum / float64(len(valid))
	return -(mean * (1.0 + 0.2*computeQuality(windows)))
}

// computeQuality scores population stability and lineage depth in [0, 1].
func computeQuality(windows []telemetry.WindowStats) float64 {
	valid := postWarmup(windows)
	if len(valid) < 2 {
		return 0
	}

	counts := make([]float64, len(valid))
	var generationSum float64
	for i, w := range valid {
		counts[i] = float64(w.Creatures)
		generationSum += w.GenerationMean
	}

	stability := 0.0
	mean, std := stat.MeanStdDev(counts, nil)
	if mean > 0 {
		cv := std / mean
		stability = math.Exp(-cv * cv)
	}
	generation := 1 - math.Exp(-generationSum/float64(len(valid))/generationScale)

	return clamp01(qualityWeightStability*stability + qualityWeightGeneration*generation)
}

// summarize reduces one run's windows to its evaluation.
func summarize(windows []telemetry.WindowStats) evaluation {
	ev := evaluation{
		Fitness: computeFitness(windows),
		Quality: computeQuality(windows),
	}
	valid := postWarmup(windows)
	if len(valid) == 0 {
		return ev
	}
	for _, w := range valid {
		ev.Creatures += float64(w.Creatures)
		ev.Eggs += float64(w.Eggs)
		ev.GenerationMean += w.GenerationMean
		ev.GenerationMax = max(ev.GenerationMax, w.GenerationMax)
	}
	n := float64(len(valid))
	ev.Creatures /= n
	ev.Eggs /= n
	ev.GenerationMean /= n
	return ev
}

func postWarmup(windows []telemetry.WindowStats) []telemetry.WindowStats {
	if len(windows) <= qualityWarmupWindows {
		return nil
	}
	return windows[qualityWarmupWindows:]
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
