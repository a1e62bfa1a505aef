// Package config provides configuration loading and validation for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
// A loaded Config is passed explicitly to every component; there is no global instance.
type Config struct {
	World      WorldConfig      `yaml:"world"`
	Genome     GenomeConfig     `yaml:"genome"`
	Tiles      TilesConfig      `yaml:"tiles"`
	Population PopulationConfig `yaml:"population"`
	Simulation SimulationConfig `yaml:"simulation"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Provider   ProviderConfig   `yaml:"provider"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds the grid dimensions. The grid wraps around on both axes.
type WorldConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// GenomeConfig holds the genome encoding and recombination parameters.
type GenomeConfig struct {
	GeneLength int `yaml:"gene_length"` // decimal digits per gene
	NumGenes   int `yaml:"num_genes"`   // genes per genome, including the trait gene

	// Bit widths of the fields packed into one gene, least significant first.
	WeightBits int `yaml:"weight_bits"`
	TargetBits int `yaml:"target_bits"`
	SourceBits int `yaml:"source_bits"`

	Sensors   int `yaml:"sensors"`
	Neurons   int `yaml:"neurons"`
	Actuators int `yaml:"actuators"`

	MutationChance   float64 `yaml:"mutation_chance"`   // per-gene probability of a random replacement
	MutationsEnabled bool    `yaml:"mutations_enabled"` // false = deterministic 0.5 blending
	MinMaxEnergy     float64 `yaml:"min_max_energy"`
	MaxBonusEnergy   int     `yaml:"max_bonus_energy"`
}

// TilesConfig holds per-tile lifecycle parameters.
type TilesConfig struct {
	LookAhead         int     `yaml:"look_ahead"`          // look-cone depth in cells
	EggIncubationTime int     `yaml:"egg_incubation_time"` // ticks until an egg hatches
	EggEnergy         float64 `yaml:"egg_energy"`          // energy gained by eating an egg
	FoodEnergy        float64 `yaml:"food_energy"`         // payload of newly spawned food
	FoodSpoilTime     int     `yaml:"food_spoil_time"`     // ticks until food disappears
	AllowEggEating    bool    `yaml:"allow_egg_eating"`
}

// PopulationConfig holds the external population policy.
type PopulationConfig struct {
	StepsPerPopulateCall          int `yaml:"steps_per_populate_call"`
	PopulateCallsPerCreatureSpawn int `yaml:"populate_calls_per_creature_spawn"`
	PopulateCallsPerFoodSpawn     int `yaml:"populate_calls_per_food_spawn"` // 0 = never spawn food
}

// SimulationConfig holds run-level settings.
type SimulationConfig struct {
	Seed              int64 `yaml:"seed"`
	Channels          int   `yaml:"channels"`           // independent worlds run side by side
	ParallelThreshold int   `yaml:"parallel_threshold"` // tiles needed before updates fan out to workers
	LogInterval       int   `yaml:"log_interval"`       // ticks between world age log lines (0 = off)
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow     int     `yaml:"stats_window"` // ticks per stats window
	PerfWindow      int     `yaml:"perf_window"`  // ticks averaged by the perf collector
	HallOfFameSize  int     `yaml:"hall_of_fame_size"`
	ChildrenWeight  float64 `yaml:"children_weight"`
	LifespanWeight  float64 `yaml:"lifespan_weight"`
	MinHallLifespan int     `yaml:"min_hall_lifespan"` // ticks a creature must live to enter the hall
}

// ProviderConfig selects and tunes the genome material source.
type ProviderConfig struct {
	Kind                  string  `yaml:"kind"` // random | file | server | cache | sqlite
	Path                  string  `yaml:"path"`
	URL                   string  `yaml:"url"`
	SimID                 int     `yaml:"sim_id"`
	BufferHalfSize        int     `yaml:"buffer_half_size"`
	CacheSize             int     `yaml:"cache_size"`
	CalculationsPerUpdate int     `yaml:"calculations_per_update"`
	TimeoutSec            float64 `yaml:"timeout_sec"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	GenomeDigits int // GeneLength * NumGenes
	GeneModulus  int // 10^GeneLength, exclusive upper bound of a gene value
	SensorSlots  int // Sensors + Neurons, number of addressable connection sources
	TargetSlots  int // Neurons + Actuators, number of addressable connection targets
}

// maxSensors is the number of sensor values a creature can produce.
const maxSensors = 7

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// MustLoad is like Load but panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("config: failed to load: %v", err))
	}
	return cfg
}

// Default returns the embedded defaults.
func Default() *Config {
	return MustLoad("")
}

// Clone returns a deep copy, for callers that tweak parameters per run.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Validate checks that the parameters describe a runnable simulation.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.World.Width > 0 && c.World.Height > 0, "world: dimensions must be positive, got %dx%d", c.World.Width, c.World.Height)

	g := c.Genome
	check(g.GeneLength > 0 && g.GeneLength <= 18, "genome: gene_length must be in [1,18], got %d", g.GeneLength)
	check(g.NumGenes > 0, "genome: num_genes must be positive, got %d", g.NumGenes)
	check(g.WeightBits > 0 && g.TargetBits > 0 && g.SourceBits > 0, "genome: bit widths must be positive")
	if g.GeneLength > 0 && g.GeneLength <= 18 {
		bits := g.WeightBits + g.TargetBits + g.SourceBits
		check(math.Pow(2, float64(bits)) <= math.Pow10(g.GeneLength),
			"genome: %d packed bits exceed the capacity of %d decimal digits", bits, g.GeneLength)
	}
	check(g.Sensors >= 1 && g.Sensors <= maxSensors, "genome: sensors must be in [1,%d], got %d", maxSensors, g.Sensors)
	check(g.Neurons >= 1, "genome: neurons must be positive, got %d", g.Neurons)
	check(g.Actuators >= 1, "genome: actuators must be positive, got %d", g.Actuators)
	check(g.MutationChance >= 0 && g.MutationChance <= 1, "genome: mutation_chance must be in [0,1], got %v", g.MutationChance)
	check(g.MinMaxEnergy > 0, "genome: min_max_energy must be positive, got %v", g.MinMaxEnergy)
	check(g.MaxBonusEnergy >= 1, "genome: max_bonus_energy must be at least 1, got %d", g.MaxBonusEnergy)

	t := c.Tiles
	check(t.LookAhead >= 1, "tiles: look_ahead must be positive, got %d", t.LookAhead)
	check(t.EggIncubationTime >= 1, "tiles: egg_incubation_time must be positive, got %d", t.EggIncubationTime)
	check(t.FoodSpoilTime >= 1, "tiles: food_spoil_time must be positive, got %d", t.FoodSpoilTime)

	p := c.Population
	check(p.StepsPerPopulateCall >= 1, "population: steps_per_populate_call must be positive, got %d", p.StepsPerPopulateCall)
	check(p.PopulateCallsPerCreatureSpawn >= 1, "population: populate_calls_per_creature_spawn must be positive, got %d", p.PopulateCallsPerCreatureSpawn)
	check(p.PopulateCallsPerFoodSpawn >= 0, "population: populate_calls_per_food_spawn must not be negative, got %d", p.PopulateCallsPerFoodSpawn)

	check(c.Simulation.Channels >= 1, "simulation: channels must be positive, got %d", c.Simulation.Channels)
	check(c.Telemetry.StatsWindow >= 1, "telemetry: stats_window must be positive, got %d", c.Telemetry.StatsWindow)

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	g := c.Genome
	c.Derived.GenomeDigits = g.GeneLength * g.NumGenes
	c.Derived.GeneModulus = int(math.Pow10(g.GeneLength))
	c.Derived.SensorSlots = g.Sensors + g.Neurons
	c.Derived.TargetSlots = g.Neurons + g.Actuators
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
