package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"slices"

	"github.com/pthm-cable/gridsoup/config"
	"github.com/pthm-cable/gridsoup/navigation"
	"github.com/pthm-cable/gridsoup/renderer"
	"github.com/pthm-cable/gridsoup/telemetry"
	"github.com/pthm-cable/gridsoup/world"
)

// Options configures a simulation run.
type Options struct {
	Channel   int
	Logger    *slog.Logger
	LogStats  bool   // log every flushed stats window
	OutputDir string // CSV output directory (empty = disabled)

	// StatsCallback is invoked with every flushed stats window.
	StatsCallback func(telemetry.WindowStats)
}

// CellColor is one occupied cell of a color export.
type CellColor struct {
	Pos   navigation.Coordinate
	Color world.HSV
}

// Simulation drives one world: it seeds it from external genome material,
// advances it, exports its colors and records telemetry.
type Simulation struct {
	cfg     *config.Config
	channel int
	logger  *slog.Logger

	world *world.World
	rng   *rand.Rand // spawn positions

	populateCalls int
	cursor        navigation.Coordinate
	tickOpen      bool

	// Telemetry
	collector     *telemetry.Collector
	perfCollector *telemetry.PerfCollector
	lifetimes     *telemetry.LifetimeTracker
	hallOfFame    *telemetry.HallOfFame
	outputManager *telemetry.OutputManager
	logStats      bool
	statsCallback func(telemetry.WindowStats)
}

// New creates a simulation over an empty world. Spawn positions, mutation
// and hall of fame sampling draw from independent sources derived from seed.
func New(cfg *config.Config, seed int64, opts Options) (*Simulation, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("channel", opts.Channel)

	outputManager, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("channel %d: %w", opts.Channel, err)
	}
	if err := outputManager.WriteConfig(cfg); err != nil {
		outputManager.Close()
		return nil, fmt.Errorf("channel %d: writing config: %w", opts.Channel, err)
	}

	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow)
	w := world.New(cfg, world.Options{
		Rand:   rand.New(rand.NewSource(seed + 1)),
		Logger: logger,
		Phases: perf,
	})

	return &Simulation{
		cfg:           cfg,
		channel:       opts.Channel,
		logger:        logger,
		world:         w,
		rng:           rand.New(rand.NewSource(seed)),
		collector:     telemetry.NewCollector(cfg.Telemetry.StatsWindow),
		perfCollector: perf,
		lifetimes:     telemetry.NewLifetimeTracker(),
		hallOfFame:    telemetry.NewHallOfFame(cfg.Telemetry, rand.New(rand.NewSource(seed+2))),
		outputManager: outputManager,
		logStats:      opts.LogStats,
		statsCallback: opts.StatsCallback,
	}, nil
}

// World returns the simulated world.
func (s *Simulation) World() *world.World { return s.world }

// Tick returns the number of completed steps.
func (s *Simulation) Tick() uint64 { return s.world.Age() }

// HallOfFame returns the genomes ranked so far.
func (s *Simulation) HallOfFame() *telemetry.HallOfFame { return s.hallOfFame }

// PopulateCalls returns the number of successful Populate calls.
func (s *Simulation) PopulateCalls() int { return s.populateCalls }

// Cursor returns the scan position used by ChannelTriple.
func (s *Simulation) Cursor() navigation.Coordinate { return s.cursor }

// Populate seeds the world from genome digits. Every
// populate_calls_per_creature_spawn-th call places a creature facing North
// at a random cell; every populate_calls_per_food_spawn-th call places food
// inside the central half of the grid. Invalid digits are rejected before
// anything changes.
func (s *Simulation) Populate(digits string) error {
	s.beginTick()
	s.perfCollector.StartPhase(telemetry.PhasePopulate)

	genome, err := s.world.Codec().Decode(digits)
	if err != nil {
		return fmt.Errorf("populate: %w", err)
	}

	call := s.populateCalls + 1
	pop := s.cfg.Population
	w, h := s.world.Width(), s.world.Height()

	if every := pop.PopulateCallsPerCreatureSpawn; every > 0 && call%every == 0 {
		pos := navigation.At(s.rng.Intn(w), s.rng.Intn(h))
		if err := s.world.Place(s.world.NewCreature(genome, pos, navigation.North)); err != nil {
			return fmt.Errorf("populate: %w", err)
		}
	}
	if every := pop.PopulateCallsPerFoodSpawn; every > 0 && call%every == 0 {
		pos := navigation.At(centralRange(s.rng, w), centralRange(s.rng, h))
		if err := s.world.Place(s.world.NewFood(pos, s.cfg.Tiles.FoodEnergy)); err != nil {
			return fmt.Errorf("populate: %w", err)
		}
	}

	s.populateCalls = call
	s.collector.RecordPopulate()
	return nil
}

// centralRange draws uniformly from [round(n/4), round(3n/4)].
func centralRange(rng *rand.Rand, n int) int {
	lo := int(math.Round(float64(n) * 0.25))
	hi := int(math.Round(float64(n) * 0.75))
	return lo + rng.Intn(hi-lo+1)
}

// ProcessStep advances the world by exactly one tick and records telemetry.
func (s *Simulation) ProcessStep() world.TickReport {
	s.beginTick()
	report := s.world.Update()

	s.perfCollector.StartPhase(telemetry.PhaseTelemetry)
	s.observe(report)
	s.perfCollector.EndTick()
	s.tickOpen = false
	return report
}

// beginTick opens a perf sample; populate calls before a step count toward it.
func (s *Simulation) beginTick() {
	if !s.tickOpen {
		s.perfCollector.StartTick()
		s.tickOpen = true
	}
}

func (s *Simulation) observe(report world.TickReport) {
	s.collector.RecordTick(report)

	done := s.lifetimes.Observe(s.world, report)
	s.collector.RecordLifetimes(done)
	for _, l := range done {
		s.hallOfFame.Consider(l)
	}
	if err := s.outputManager.WriteLifetimes(done); err != nil {
		s.logger.Error("failed to write lifetimes", "error", err)
	}

	if s.collector.ShouldFlush(report.Tick) {
		s.flushTelemetry(report.Tick)
	}
}

// flushTelemetry closes the stats window and hands it to every sink.
func (s *Simulation) flushTelemetry(tick uint64) {
	stats := s.collector.Flush(tick, s.world)
	perfStats := s.perfCollector.Stats()

	if s.statsCallback != nil {
		s.statsCallback(stats)
	}

	if s.logStats {
		stats.LogStats(s.logger, s.channel)
		s.logger.Info("perf", "stats", perfStats)
	}

	if err := s.outputManager.WriteTelemetry(stats); err != nil {
		s.logger.Error("failed to write telemetry", "error", err)
	}
	if err := s.outputManager.WritePerf(perfStats, stats.WindowEndTick); err != nil {
		s.logger.Error("failed to write perf", "error", err)
	}
}

// SnapshotColors exports every occupied cell with its color, in reading order.
func (s *Simulation) SnapshotColors() []CellColor {
	tiles := s.world.Tiles()
	cells := make([]CellColor, len(tiles))
	for i, t := range tiles {
		cells[i] = CellColor{Pos: t.Pos(), Color: t.Color()}
	}
	slices.SortFunc(cells, func(a, b CellColor) int {
		return navigation.Compare(a.Pos, b.Pos)
	})
	return cells
}

// ChannelTriple returns the RGB color of the first occupied cell at or after
// the scan cursor and moves the cursor one cell past it. An empty world
// yields black and still advances the cursor.
func (s *Simulation) ChannelTriple() renderer.RGB {
	t, ok := s.world.NextTileAfterOrAt(s.cursor)
	if !ok {
		s.advanceCursor(s.cursor)
		return renderer.RGB{}
	}

	s.advanceCursor(t.Pos())
	rgb, err := renderer.HSVToRGB(t.Color())
	if err != nil {
		s.logger.Warn("unrenderable tile", "tile", t.String(), "error", err)
		return renderer.RGB{}
	}
	return rgb
}

// advanceCursor moves the cursor to the cell after pos in reading order.
func (s *Simulation) advanceCursor(pos navigation.Coordinate) {
	next := pos.Step(navigation.East)
	if next.X >= s.world.Width() {
		next = navigation.At(0, pos.Y+1)
		if next.Y >= s.world.Height() {
			next = navigation.At(0, 0)
		}
	}
	s.cursor = next
}

// SaveHallOfFame writes the hall of fame to the output directory and, when
// sink is non-nil, to the genome store.
func (s *Simulation) SaveHallOfFame(ctx context.Context, sink telemetry.GenomeSink) error {
	if err := s.outputManager.WriteHallOfFame(s.hallOfFame); err != nil {
		return err
	}
	if sink == nil {
		return nil
	}
	return s.hallOfFame.Save(ctx, sink)
}

// Close stops the world's workers and closes output files.
func (s *Simulation) Close() error {
	s.world.Close()
	return s.outputManager.Close()
}
