// Package main searches world parameters with CMA-ES for settings that
// sustain a large, stable and evolving creature population.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/gridsoup/config"
	"github.com/pthm-cable/gridsoup/provider"
	"github.com/pthm-cable/gridsoup/telemetry"
)

// options holds the command line.
type options struct {
	configPath string
	maxTicks   int
	seeds      int
	maxEvals   int
	population int
	outputDir  string
	genomeDB   string
}

// evalRecord is one optimize_log.csv row: the outcome and the parameters
// that produced it, as they reached the config.
type evalRecord struct {
	Eval           int     `csv:"eval"`
	Fitness        float64 `csv:"fitness"`
	Quality        float64 `csv:"quality"`
	Creatures      float64 `csv:"creatures"`
	Eggs           float64 `csv:"eggs"`
	GenerationMean float64 `csv:"generation_mean"`
	GenerationMax  int     `csv:"generation_max"`

	FoodEnergy           float64 `csv:"food_energy"`
	FoodSpoilTime        int     `csv:"food_spoil_time"`
	EggIncubationTime    int     `csv:"egg_incubation_time"`
	MinMaxEnergy         float64 `csv:"min_max_energy"`
	MaxBonusEnergy       int     `csv:"max_bonus_energy"`
	MutationChance       float64 `csv:"mutation_chance"`
	StepsPerPopulateCall int     `csv:"steps_per_populate_call"`
}

func newEvalRecord(n int, ev evaluation, cfg *config.Config) evalRecord {
	return evalRecord{
		Eval:                 n,
		Fitness:              ev.Fitness,
		Quality:              ev.Quality,
		Creatures:            ev.Creatures,
		Eggs:                 ev.Eggs,
		GenerationMean:       ev.GenerationMean,
		GenerationMax:        ev.GenerationMax,
		FoodEnergy:           cfg.Tiles.FoodEnergy,
		FoodSpoilTime:        cfg.Tiles.FoodSpoilTime,
		EggIncubationTime:    cfg.Tiles.EggIncubationTime,
		MinMaxEnergy:         cfg.Genome.MinMaxEnergy,
		MaxBonusEnergy:       cfg.Genome.MaxBonusEnergy,
		MutationChance:       cfg.Genome.MutationChance,
		StepsPerPopulateCall: cfg.Population.StepsPerPopulateCall,
	}
}

// evalSeeds spaces seeds the way the runner spaces channels.
func evalSeeds(base int64, n int) []int64 {
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = base + int64(i)*7919
	}
	return seeds
}

// populationSize is the CMA-ES default lambda, 4 + floor(3 ln dim).
func populationSize(dim int) int {
	return 4 + int(math.Floor(3*math.Log(float64(dim))))
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Base config YAML file (empty = use defaults)")
	flag.IntVar(&opts.maxTicks, "max-ticks", 5000, "Simulation duration in ticks per run")
	flag.IntVar(&opts.seeds, "seeds", 3, "Number of seeds per evaluation")
	flag.IntVar(&opts.maxEvals, "max-evals", 200, "Maximum number of evaluations")
	flag.IntVar(&opts.population, "population", 0, "CMA-ES population size (0 = auto)")
	flag.StringVar(&opts.outputDir, "output", "", "Output directory for results")
	flag.StringVar(&opts.genomeDB, "genome-db", "", "SQLite database receiving the best run's hall of fame")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(context.Background(), opts, logger); err != nil {
		logger.Error("optimization failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger *slog.Logger) error {
	if opts.outputDir == "" {
		return errors.New("-output is required")
	}
	if err := os.MkdirAll(opts.outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	baseCfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	params := NewParamVector()
	seeds := evalSeeds(baseCfg.Simulation.Seed, opts.seeds)
	evaluator := NewFitnessEvaluator(params, opts.maxTicks, seeds, baseCfg)

	evalLog, err := telemetry.CreateCSV(filepath.Join(opts.outputDir, "optimize_log.csv"))
	if err != nil {
		return fmt.Errorf("creating evaluation log: %w", err)
	}
	defer evalLog.Close()

	popSize := opts.population
	if popSize == 0 {
		popSize = populationSize(params.Dim())
	}

	var (
		evals       int
		bestFitness = math.Inf(1)
		bestCfg     = baseCfg.Clone()
		start       = time.Now()
	)
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			raw := params.Denormalize(x)
			fitness := evaluator.Evaluate(raw)
			evals++

			cfg := baseCfg.Clone()
			params.ApplyToConfig(cfg, raw)
			if fitness < bestFitness {
				bestFitness = fitness
				bestCfg = cfg
			}

			ev := evaluator.Last()
			if err := evalLog.Append([]evalRecord{newEvalRecord(evals, ev, cfg)}); err != nil {
				logger.Error("failed to log evaluation", "error", err)
			}

			elapsed := time.Since(start)
			logger.Info("evaluation",
				"eval", evals,
				"max_evals", opts.maxEvals,
				"creatures", ev.Creatures,
				"eggs", ev.Eggs,
				"generation_mean", ev.GenerationMean,
				"quality", ev.Quality,
				"best_fitness", bestFitness,
				"elapsed", elapsed.Round(time.Second),
				"eta", (elapsed/time.Duration(evals)*time.Duration(opts.maxEvals-evals)).Round(time.Second),
			)
			return fitness
		},
	}

	logger.Info("starting CMA-ES",
		"params", params.Dim(),
		"population", popSize,
		"max_evals", opts.maxEvals,
		"seeds", seeds,
		"max_ticks", opts.maxTicks,
	)

	_, err = optimize.Minimize(problem, params.Normalize(params.DefaultVector()),
		&optimize.Settings{FuncEvaluations: opts.maxEvals},
		&optimize.CmaEsChol{InitStepSize: 0.3, Population: popSize})
	if err != nil {
		logger.Warn("optimization ended", "error", err)
	}
	logger.Info("optimization complete",
		"evals", evals,
		"best_fitness", bestFitness,
		"elapsed", time.Since(start).Round(time.Second),
	)

	return saveBest(ctx, opts, bestCfg, evaluator.BestHallOfFame(), logger)
}

// saveBest writes the winning config overlay and the hall of fame of its
// best seed.
func saveBest(ctx context.Context, opts options, cfg *config.Config, hof *telemetry.HallOfFame, logger *slog.Logger) error {
	cfgPath := filepath.Join(opts.outputDir, "best_config.yaml")
	if err := cfg.WriteYAML(cfgPath); err != nil {
		return err
	}
	logger.Info("best config saved", "path", cfgPath)

	if hof == nil {
		return nil
	}
	data, err := json.MarshalIndent(hof, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling hall of fame: %w", err)
	}
	hofPath := filepath.Join(opts.outputDir, "hall_of_fame.json")
	if err := os.WriteFile(hofPath, data, 0644); err != nil {
		return fmt.Errorf("writing hall of fame: %w", err)
	}
	logger.Info("hall of fame saved", "path", hofPath, "genomes", hof.Size())

	if opts.genomeDB == "" {
		return nil
	}
	store := provider.NewSQLiteStore(opts.genomeDB)
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("opening genome database: %w", err)
	}
	defer store.Close()
	return hof.Save(ctx, store)
}
