package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/pthm-cable/gridsoup/config"
	"github.com/pthm-cable/gridsoup/provider"
	"github.com/pthm-cable/gridsoup/renderer"
	"github.com/pthm-cable/gridsoup/simulation"
)

// runOptions holds the per-run settings shared by every channel.
type runOptions struct {
	cfg       *config.Config
	seed      int64
	maxTicks  int
	outputDir string
	logStats  bool
	print     bool
	genomeDB  *provider.SQLiteStore
	logger    *slog.Logger
	printMu   *sync.Mutex
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = use config)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks per channel (0 = until interrupted)")
	channels := flag.Int("channels", 0, "Number of independent worlds (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	genomeDB := flag.String("genome-db", "", "SQLite database receiving hall of fame genomes on shutdown")
	printGrid := flag.Bool("print", false, "Print the grid every log interval")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = cfg.Simulation.Seed
	}
	numChannels := cfg.Simulation.Channels
	if *channels > 0 {
		numChannels = *channels
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := runOptions{
		cfg:       cfg,
		seed:      rngSeed,
		maxTicks:  *maxTicks,
		outputDir: *outputDir,
		logStats:  *logStats,
		print:     *printGrid,
		logger:    logger,
		printMu:   &sync.Mutex{},
	}

	if *genomeDB != "" {
		store := provider.NewSQLiteStore(*genomeDB)
		if err := store.Init(ctx); err != nil {
			slog.Error("failed to open genome database", "path", *genomeDB, "error", err)
			os.Exit(1)
		}
		defer store.Close()
		opts.genomeDB = store
	}

	slog.Info("starting simulation",
		"seed", rngSeed,
		"channels", numChannels,
		"max_ticks", *maxTicks,
		"provider", cfg.Provider.Kind,
		"world", fmt.Sprintf("%dx%d", cfg.World.Width, cfg.World.Height),
	)

	var wg sync.WaitGroup
	errs := make([]error, numChannels)
	for ch := 0; ch < numChannels; ch++ {
		wg.Add(1)
		go func(ch int) {
			defer wg.Done()
			errs[ch] = runChannel(ctx, ch, opts)
		}(ch)
	}
	wg.Wait()

	failed := false
	for ch, err := range errs {
		if err != nil {
			slog.Error("channel failed", "channel", ch, "error", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

// runChannel runs one world until maxTicks or cancellation.
func runChannel(ctx context.Context, ch int, opts runOptions) error {
	cfg := opts.cfg
	seed := opts.seed + int64(ch)*7919
	logger := opts.logger.With("channel", ch)

	var outputDir string
	if opts.outputDir != "" {
		outputDir = filepath.Join(opts.outputDir, fmt.Sprintf("channel-%d", ch))
	}

	sim, err := simulation.New(cfg, seed, simulation.Options{
		Channel:   ch,
		Logger:    opts.logger,
		LogStats:  opts.logStats,
		OutputDir: outputDir,
	})
	if err != nil {
		return err
	}
	defer sim.Close()

	base, err := provider.New(ctx, cfg, seed)
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}
	defer provider.CloseIfSupported(base)

	evo := provider.NewEvolution(sim, base,
		simulation.EveryXSteps(cfg.Population.StepsPerPopulateCall),
		cfg.Derived.GenomeDigits, logger)

	for tick := 1; opts.maxTicks == 0 || tick <= opts.maxTicks; tick++ {
		if ctx.Err() != nil {
			logger.Info("interrupted", "tick", sim.Tick())
			break
		}
		if err := evo.RequestNewData(ctx); err != nil {
			logger.Warn("provider request failed", "error", err)
		}
		rgb, _ := evo.PreparedData()

		if opts.print && cfg.Simulation.LogInterval > 0 && tick%cfg.Simulation.LogInterval == 0 {
			opts.printMu.Lock()
			fmt.Printf("channel %d triple %s\n", ch, rgb)
			if err := renderer.WriteASCII(os.Stdout, sim.World()); err != nil {
				logger.Error("failed to print grid", "error", err)
			}
			opts.printMu.Unlock()
		}
	}

	if opts.maxTicks > 0 && int(sim.Tick()) >= opts.maxTicks {
		logger.Info("max ticks reached", "tick", sim.Tick())
	}

	// Persist results even when the run was interrupted.
	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := saveHallOfFame(saveCtx, sim, opts.genomeDB); err != nil {
		return err
	}
	logger.Info("channel finished",
		"tick", sim.Tick(),
		"hall_of_fame", sim.HallOfFame().Size(),
		"top_fitness", sim.HallOfFame().TopFitness(),
	)
	return nil
}

// saveHallOfFame keeps a nil store from becoming a non-nil GenomeSink.
func saveHallOfFame(ctx context.Context, sim *simulation.Simulation, store *provider.SQLiteStore) error {
	if store == nil {
		return sim.SaveHallOfFame(ctx, nil)
	}
	return sim.SaveHallOfFame(ctx, store)
}
