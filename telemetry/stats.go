package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a window of ticks.
type WindowStats struct {
	WindowStartTick uint64 `csv:"-"`
	WindowEndTick   uint64 `csv:"window_end"`

	// Population counts at window end
	Creatures int `csv:"creatures"`
	Eggs      int `csv:"eggs"`
	Food      int `csv:"food"`

	// Events during window
	EggsLaid       int `csv:"eggs_laid"`
	Hatches        int `csv:"hatches"`
	CreatureDeaths int `csv:"creature_deaths"`
	EggsExpired    int `csv:"eggs_expired"`
	FoodSpoiled    int `csv:"food_spoiled"`
	FoodEaten      int `csv:"food_eaten"`
	EggsEaten      int `csv:"eggs_eaten"`
	Displaced      int `csv:"displaced"`
	Populated      int `csv:"populated"`

	// Energy distribution (sampled at window end)
	EnergyMean float64 `csv:"energy_mean"`
	EnergyP10  float64 `csv:"energy_p10"`
	EnergyP50  float64 `csv:"energy_p50"`
	EnergyP90  float64 `csv:"energy_p90"`

	// Genome value distribution (sampled at window end)
	ValueMean float64 `csv:"value_mean"`
	ValueStd  float64 `csv:"value_std"`

	// Lineage
	GenerationMean float64 `csv:"generation_mean"`
	GenerationMax  int     `csv:"generation_max"`
	LifespanMean   float64 `csv:"lifespan_mean"` // creatures that died during the window
}

// Distribution summarises a sample.
type Distribution struct {
	Mean, Std     float64
	P10, P50, P90 float64
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Describe computes the mean, sample standard deviation and percentiles of values.
// An empty sample yields the zero Distribution; a single value has zero spread.
func Describe(values []float64) Distribution {
	n := len(values)
	if n == 0 {
		return Distribution{}
	}

	var d Distribution
	if n == 1 {
		d.Mean = values[0]
	} else {
		d.Mean, d.Std = stat.MeanStdDev(values, nil)
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	d.P10 = Percentile(sorted, 0.10)
	d.P50 = Percentile(sorted, 0.50)
	d.P90 = Percentile(sorted, 0.90)
	return d
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("window_start", s.WindowStartTick),
		slog.Uint64("window_end", s.WindowEndTick),
		slog.Int("creatures", s.Creatures),
		slog.Int("eggs", s.Eggs),
		slog.Int("food", s.Food),
		slog.Int("eggs_laid", s.EggsLaid),
		slog.Int("hatches", s.Hatches),
		slog.Int("creature_deaths", s.CreatureDeaths),
		slog.Int("eggs_expired", s.EggsExpired),
		slog.Int("food_spoiled", s.FoodSpoiled),
		slog.Int("food_eaten", s.FoodEaten),
		slog.Int("eggs_eaten", s.EggsEaten),
		slog.Int("displaced", s.Displaced),
		slog.Int("populated", s.Populated),
		slog.Float64("energy_mean", s.EnergyMean),
		slog.Float64("energy_p10", s.EnergyP10),
		slog.Float64("energy_p50", s.EnergyP50),
		slog.Float64("energy_p90", s.EnergyP90),
		slog.Float64("value_mean", s.ValueMean),
		slog.Float64("value_std", s.ValueStd),
		slog.Float64("generation_mean", s.GenerationMean),
		slog.Int("generation_max", s.GenerationMax),
		slog.Float64("lifespan_mean", s.LifespanMean),
	)
}

// LogStats logs the window stats on the given logger.
func (s WindowStats) LogStats(logger *slog.Logger, channel int) {
	logger.Info("stats", "channel", channel, "window", s)
}
