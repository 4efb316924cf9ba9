// Package main provides CMA-ES optimization for reaction-diffusion parameters.
package main

import (
	"github.com/pthm-cable/fieldfx/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
// Defaults come from cfg so a tuned config can be refined further.
func NewParamVector(cfg *config.Config) *ParamVector {
	rd := cfg.ReactionDiffusion
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "feed", Path: "reaction_diffusion.feed", Min: 0.01, Max: 0.1, Default: rd.Feed},
			{Name: "kill", Path: "reaction_diffusion.kill", Min: 0.03, Max: 0.075, Default: rd.Kill},
			{Name: "diffusion_b", Path: "reaction_diffusion.diffusion_b", Min: 0.2, Max: 0.8, Default: rd.DiffusionB},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values clamped into bounds.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return pv.Clamp(v)
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

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)
	for i, spec := range pv.Specs {
		switch spec.Name {
		case "feed":
			cfg.ReactionDiffusion.Feed = clamped[i]
		case "kill":
			cfg.ReactionDiffusion.Kill = clamped[i]
		case "diffusion_b":
			cfg.ReactionDiffusion.DiffusionB = clamped[i]
		}
	}
}
