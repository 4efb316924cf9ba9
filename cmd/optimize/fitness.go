package main

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/pthm-cable/fieldfx/config"
	"github.com/pthm-cable/fieldfx/effects"
	"github.com/pthm-cable/fieldfx/field"
	"github.com/pthm-cable/fieldfx/pipeline"
	"github.com/pthm-cable/fieldfx/telemetry"
)

// Fitness penalties.
const (
	failedRunPenalty = 100.0 // tick error or non-finite state
	deadPenalty      = 10.0  // b died out or saturated everywhere
	minSpread        = 0.01  // stddev of b below which the field counts as flat
)

// FitnessEvaluator runs headless reaction-diffusion and scores the final
// b concentration: mean close to the target coverage, with as much spatial
// structure (stddev) as possible.
type FitnessEvaluator struct {
	params     *ParamVector
	ticks      int
	size       int
	seeds      []int64
	target     float64
	baseConfig *config.Config

	mu          sync.Mutex
	lastMean    float64
	lastStdDev  float64
	bestFitness float64
	bestView    field.View
	bestPipe    *pipeline.Pipeline
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, ticks, size int, seeds []int64, target float64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		ticks:       ticks,
		size:        size,
		seeds:       seeds,
		target:      target,
		baseConfig:  baseCfg,
		bestFitness: math.Inf(1),
	}
}

// runResult holds the outcome of one seeded run.
type runResult struct {
	fitness float64
	stats   telemetry.FieldStats
	view    field.View
	pipe    *pipeline.Pipeline
}

// Evaluate computes fitness for a parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	results := make([]runResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.run(cfg, s)
		}(i, seed)
	}
	wg.Wait()

	var total, mean, std float64
	best := 0
	for i, r := range results {
		total += r.fitness
		mean += r.stats.Mean
		std += r.stats.StdDev
		if r.fitness < results[best].fitness {
			best = i
		}
	}
	n := float64(len(results))
	avg := total / n

	fe.mu.Lock()
	fe.lastMean, fe.lastStdDev = mean/n, std/n
	if avg < fe.bestFitness && results[best].pipe != nil {
		fe.bestFitness = avg
		if fe.bestPipe != nil {
			fe.bestPipe.Shutdown()
		}
		fe.bestPipe, fe.bestView = results[best].pipe, results[best].view
		results[best].pipe = nil
	}
	fe.mu.Unlock()

	for _, r := range results {
		if r.pipe != nil {
			r.pipe.Shutdown()
		}
	}
	return avg
}

// run simulates one seed. The returned pipeline is still open so the caller
// can keep the display of the best run.
func (fe *FitnessEvaluator) run(cfg *config.Config, seed int64) runResult {
	c := *cfg
	c.ReactionDiffusion.Seed = seed
	c.Effect.DisplayMode = ""

	prog, err := effects.NewReactionDiffusion(&c)
	if err != nil {
		return runResult{fitness: failedRunPenalty}
	}
	p := pipeline.New(prog, pipeline.Options{
		Workers: 1,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err := p.Initialize(fe.size, fe.size, prog.SlotSpecs()); err != nil {
		return runResult{fitness: failedRunPenalty}
	}

	var view field.View
	for i := 0; i < fe.ticks; i++ {
		if view, err = p.Tick(context.Background(), pipeline.Params{}); err != nil {
			p.Shutdown()
			return runResult{fitness: failedRunPenalty}
		}
	}

	conc, err := p.CurrentOf(effects.SlotConcentrations)
	if err != nil {
		p.Shutdown()
		return runResult{fitness: failedRunPenalty}
	}
	var sampler telemetry.FieldSampler
	b := sampler.Sample(uint64(fe.ticks), effects.SlotConcentrations, conc)[1]

	return runResult{fitness: fe.score(b), stats: b, view: view, pipe: p}
}

// score is the distance from the target coverage minus the spread, with a
// flat penalty for dead or saturated fields.
func (fe *FitnessEvaluator) score(b telemetry.FieldStats) float64 {
	if math.IsNaN(b.Mean) || math.IsNaN(b.StdDev) {
		return failedRunPenalty
	}
	f := 4*math.Abs(b.Mean-fe.target) - b.StdDev
	if b.StdDev < minSpread {
		f += deadPenalty
	}
	return f
}

// Last returns the mean and stddev of b from the most recent evaluation.
func (fe *FitnessEvaluator) Last() (mean, stddev float64) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastMean, fe.lastStdDev
}

// Best returns the display of the best run so far. Valid until Close.
func (fe *FitnessEvaluator) Best() (field.View, bool) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestView, fe.bestPipe != nil
}

// Close releases the best run's pipeline.
func (fe *FitnessEvaluator) Close() {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	if fe.bestPipe != nil {
		fe.bestPipe.Shutdown()
		fe.bestPipe = nil
	}
}

func (fe *FitnessEvaluator) copyConfig() *config.Config {
	c := *fe.baseConfig
	return &c
}
