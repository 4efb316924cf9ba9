package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/fieldfx/config"
	"github.com/pthm-cable/fieldfx/effects"
	"github.com/pthm-cable/fieldfx/pipeline"
	"github.com/pthm-cable/fieldfx/player"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	effect := flag.String("effect", "", "Effect to run (empty = use config); one of "+strings.Join(effects.Names(), ", "))
	headless := flag.Bool("headless", false, "Run without graphics")
	logStats := flag.Bool("log-stats", false, "Output perf and field stats via slog")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N tick attempts (0 = unlimited)")
	maxFailures := flag.Int("max-failures", pipeline.DefaultFailureLimit, "Headless: stop after N consecutive failed ticks")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if *effect != "" {
		cfg.Effect.Name = *effect
	}

	opts := player.Options{
		Headless:  *headless,
		LogStats:  *logStats,
		OutputDir: *outputDir,
		Logger:    logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *headless {
		p, err := player.New(cfg, opts)
		if err != nil {
			slog.Error("failed to start", "error", err)
			os.Exit(1)
		}
		defer p.Unload()

		slog.Info("starting headless run",
			"effect", cfg.Effect.Name,
			"max_ticks", *maxTicks,
		)

		guard := pipeline.FailureGuard{Limit: *maxFailures}
		for attempts := 1; ; attempts++ {
			err := p.Update(ctx)
			if errors.Is(err, context.Canceled) {
				slog.Info("interrupted", "tick", p.Tick())
				return
			}
			if reason := guard.Observe(err); reason != nil {
				slog.Error("headless run failed",
					"tick", p.Tick(),
					"attempts", attempts,
					"permanent", pipeline.Permanent(reason),
					"error", reason,
				)
				p.Unload()
				os.Exit(1)
			}
			if *maxTicks > 0 && attempts >= *maxTicks {
				slog.Info("max ticks reached", "tick", p.Tick(), "attempts", attempts, "failures", p.Failures())
				return
			}
		}
	}

	// Graphical mode
	rl.SetConfigFlags(rl.FlagWindowResizable)
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), cfg.Screen.Title)
	defer rl.CloseWindow()

	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	p, err := player.New(cfg, opts)
	if err != nil {
		slog.Error("failed to start", "error", err)
		return
	}
	defer p.Unload()

	for !rl.WindowShouldClose() && ctx.Err() == nil {
		p.Update(ctx)
		p.Draw()

		if *maxTicks > 0 && int(p.Tick()) >= *maxTicks {
			break
		}
	}
}

