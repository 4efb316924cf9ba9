// Frame dump tool - runs an effect headless and writes its display to a PNG.
//
// Usage: go run ./cmd/framedump -effect physarum -ticks 300 -out physarum.png
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/pthm-cable/fieldfx/config"
	"github.com/pthm-cable/fieldfx/effects"
	"github.com/pthm-cable/fieldfx/field"
	"github.com/pthm-cable/fieldfx/pipeline"
	"github.com/pthm-cable/fieldfx/snapshot"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	effect := flag.String("effect", "", "Effect to render (empty = use config)")
	outPath := flag.String("out", "frame.png", "Output PNG path")
	width := flag.Int("width", 0, "Field width (0 = use config)")
	height := flag.Int("height", 0, "Field height (0 = use config)")
	ticks := flag.Int("ticks", 120, "Ticks to run before capturing")
	scale := flag.Float64("scale", 1, "Output scale factor")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *effect != "" {
		cfg.Effect.Name = *effect
	}
	w, h := cfg.Derived.FieldWidth, cfg.Derived.FieldHeight
	if *width > 0 {
		w = *width
	}
	if *height > 0 {
		h = *height
	}

	prog, err := effects.New(cfg.Effect.Name, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build effect: %v\n", err)
		os.Exit(1)
	}

	p := pipeline.New(prog, pipeline.Options{
		Allocator:         field.NewHeapAllocator(cfg.Derived.MemoryBudget),
		Workers:           cfg.Pipeline.Workers,
		ParallelThreshold: cfg.Pipeline.ParallelThreshold,
		PassTimeout:       cfg.Derived.PassTimeout,
		Logger:            logger,
	})
	defer p.Shutdown()

	if err := p.Initialize(w, h, prog.SlotSpecs()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	fps := float64(max(cfg.Screen.TargetFPS, 1))
	var view field.View
	for i := 0; i < max(*ticks, 1); i++ {
		view, err = p.Tick(context.Background(), pipeline.Params{Time: float64(i) / fps})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Tick %d failed: %v\n", i, err)
			os.Exit(1)
		}
	}

	if err := snapshot.Save(*outPath, view, *scale, cfg.Effect.FlipY); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to export image: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s rendered to: %s (%dx%d, %d ticks)\n", prog.Name(), *outPath, w, h, *ticks)
}
