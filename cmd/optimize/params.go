// Package main provides CMA-ES optimization for grid simulation parameters.
package main

import (
	"math"

	"github.com/pthm-cable/gridsoup/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
	Integer bool    // rounded before it reaches the config
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Tiles
			{Name: "food_energy", Path: "tiles.food_energy", Min: 10, Max: 300, Default: 70},
			{Name: "food_spoil_time", Path: "tiles.food_spoil_time", Min: 5, Max: 300, Default: 50, Integer: true},
			{Name: "egg_incubation_time", Path: "tiles.egg_incubation_time", Min: 1, Max: 40, Default: 7, Integer: true},
			// Genome
			{Name: "min_max_energy", Path: "genome.min_max_energy", Min: 50, Max: 1500, Default: 500},
			{Name: "max_bonus_energy", Path: "genome.max_bonus_energy", Min: 1, Max: 1000, Default: 300, Integer: true},
			{Name: "mutation_chance", Path: "genome.mutation_chance", Min: 0, Max: 0.05, Default: 0.001},
			// Population
			{Name: "steps_per_populate_call", Path: "population.steps_per_populate_call", Min: 1, Max: 20, Default: 3, Integer: true},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds. Integer parameters are rounded.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := math.Max(spec.Min, math.Min(spec.Max, v[i]))
		if spec.Integer {
			val = math.Round(val)
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)

	// Order must match Specs order
	cfg.Tiles.FoodEnergy = clamped[0]
	cfg.Tiles.FoodSpoilTime = int(clamped[1])
	cfg.Tiles.EggIncubationTime = int(clamped[2])
	cfg.Genome.MinMaxEnergy = clamped[3]
	cfg.Genome.MaxBonusEnergy = int(clamped[4])
	cfg.Genome.MutationChance = clamped[5]
	cfg.Population.StepsPerPopulateCall = int(clamped[6])
}
