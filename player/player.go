// Package player runs one effect: it owns the pipeline, its sinks and the
// telemetry outputs, and drives them from the window or headless loop.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/fieldfx/camera"
	"github.com/pthm-cable/fieldfx/config"
	"github.com/pthm-cable/fieldfx/effects"
	"github.com/pthm-cable/fieldfx/field"
	"github.com/pthm-cable/fieldfx/pipeline"
	"github.com/pthm-cable/fieldfx/renderer"
	"github.com/pthm-cable/fieldfx/snapshot"
	"github.com/pthm-cable/fieldfx/stream"
	"github.com/pthm-cable/fieldfx/telemetry"
)

// Options holds runtime settings that are not part of the config file.
type Options struct {
	Headless  bool
	LogStats  bool
	OutputDir string // overrides telemetry.output_dir when set
	Logger    *slog.Logger
}

// Player runs a single effect program.
type Player struct {
	cfg    *config.Config
	logger *slog.Logger

	prog pipeline.Program
	pipe *pipeline.Pipeline

	perf    *telemetry.PerfCollector
	sampler telemetry.FieldSampler
	output  *telemetry.OutputManager

	display   *renderer.Display
	camera    *camera.Camera
	hub       *stream.Hub
	server    *http.Server
	snapshots *snapshot.Writer

	headless bool
	logStats bool
	paused   bool

	frames           uint64
	failures         uint64
	screenW, screenH float32
	mouseX, mouseY   float64
}

// New builds the configured effect and allocates its slots. In graphics
// mode the raylib window must already be open.
func New(cfg *config.Config, opts Options) (*Player, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	prog, err := effects.New(cfg.Effect.Name, cfg)
	if err != nil {
		return nil, err
	}

	p := &Player{
		cfg:      cfg,
		logger:   logger,
		prog:     prog,
		perf:     telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		headless: opts.Headless,
		logStats: opts.LogStats,
		screenW:  float32(cfg.Screen.Width),
		screenH:  float32(cfg.Screen.Height),
	}

	var sinks []pipeline.Sink
	if !opts.Headless {
		p.display = renderer.NewDisplay(int32(cfg.Screen.Width), int32(cfg.Screen.Height), cfg.Effect.FlipY, false)
		p.camera = camera.New(p.screenW, p.screenH, float32(cfg.Derived.FieldWidth), float32(cfg.Derived.FieldHeight))
		sinks = append(sinks, p.display)
	}
	if cfg.Stream.Addr != "" {
		p.startStream()
		sinks = append(sinks, p.hub)
	}
	if cfg.Snapshot.Dir != "" {
		p.snapshots, err = snapshot.NewWriter(cfg.Snapshot.Dir, cfg.Snapshot.Every, cfg.Snapshot.Scale, cfg.Effect.FlipY)
		if err != nil {
			p.Unload()
			return nil, err
		}
		sinks = append(sinks, p.snapshots)
	}

	outputDir := cfg.Telemetry.OutputDir
	if opts.OutputDir != "" {
		outputDir = opts.OutputDir
	}
	if outputDir != "" {
		p.output, err = telemetry.NewOutputManager(outputDir)
		if err != nil {
			p.Unload()
			return nil, err
		}
		if err := p.output.WriteConfig(cfg); err != nil {
			p.Unload()
			return nil, err
		}
		logger.Info("writing telemetry", "dir", p.output.Dir())
	}

	p.pipe = pipeline.New(prog, pipeline.Options{
		Allocator:         field.NewHeapAllocator(cfg.Derived.MemoryBudget),
		Workers:           cfg.Pipeline.Workers,
		ParallelThreshold: cfg.Pipeline.ParallelThreshold,
		PassTimeout:       cfg.Derived.PassTimeout,
		Logger:            logger,
		Perf:              p.perf,
		Sinks:             sinks,
	})
	if err := p.pipe.Initialize(cfg.Derived.FieldWidth, cfg.Derived.FieldHeight, prog.SlotSpecs()); err != nil {
		p.Unload()
		return nil, fmt.Errorf("initializing %s: %w", prog.Name(), err)
	}

	logger.Info("effect ready",
		"effect", prog.Name(),
		"width", cfg.Derived.FieldWidth,
		"height", cfg.Derived.FieldHeight,
		"slots", p.pipe.SlotNames(),
	)
	return p, nil
}

func (p *Player) startStream() {
	p.hub = stream.NewHub(p.cfg.Stream.Every, p.cfg.Effect.FlipY, p.logger)
	mux := http.NewServeMux()
	mux.Handle(p.cfg.Stream.Path, p.hub)
	p.server = &http.Server{Addr: p.cfg.Stream.Addr, Handler: mux}

	go func() {
		p.logger.Info("stream listening", "addr", p.cfg.Stream.Addr, "path", p.cfg.Stream.Path)
		if err := p.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("stream server failed", "error", err)
		}
	}()
}

// Update handles input (graphics mode) and advances the pipeline one tick.
// A failed tick leaves the previous frame on screen; the error is returned
// so callers can decide whether to stop.
func (p *Player) Update(ctx context.Context) error {
	if !p.headless {
		p.handleInput()
	}
	if p.paused {
		return nil
	}

	params := pipeline.Params{
		Time:   p.time(),
		MouseX: p.mouseX,
		MouseY: p.mouseY,
	}
	view, err := p.pipe.Tick(ctx, params)
	if view.Valid() {
		p.frames++
		p.flushTelemetry()
	}
	if err != nil {
		p.failures++
		return err
	}
	return nil
}

// time is wall-clock seconds in graphics mode and frame-derived in
// headless mode so runs are reproducible.
func (p *Player) time() float64 {
	if p.headless {
		fps := max(p.cfg.Screen.TargetFPS, 1)
		return float64(p.frames) / float64(fps)
	}
	return rl.GetTime()
}

// Draw renders the last presented frame and the HUD.
func (p *Player) Draw() {
	rl.BeginDrawing()
	rl.ClearBackground(rl.Black)

	p.display.Draw(p.camera)

	st := p.pipe.State()
	rl.DrawText(fmt.Sprintf("%s  %dx%d", p.prog.Name(), st.Width, st.Height), 10, 10, 20, rl.White)
	rl.DrawText(fmt.Sprintf("Tick: %d  FPS: %d", st.Tick, rl.GetFPS()), 10, 35, 20, rl.White)
	if p.paused {
		rl.DrawText("PAUSED", 10, 60, 20, rl.Yellow)
	}
	if p.camera.Zoom != 1 {
		rl.DrawText(fmt.Sprintf("Zoom: %.1fx  [Home]", p.camera.Zoom), 10, 85, 20, rl.White)
	}

	rl.EndDrawing()
	p.perf.RecordFrame()
}

// Unload releases the pipeline, sinks and output files. Safe to call on a
// partially constructed Player.
func (p *Player) Unload() {
	if p.pipe != nil {
		p.pipe.Shutdown()
	}
	if p.display != nil {
		p.display.Unload()
	}
	if p.hub != nil {
		p.hub.Close()
	}
	if p.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		p.server.Shutdown(ctx)
		cancel()
	}
	if p.output != nil {
		if err := p.output.Close(); err != nil {
			p.logger.Error("failed to close output", "error", err)
		}
	}
}

// Tick returns the number of committed ticks since start.
func (p *Player) Tick() uint64 {
	return p.frames
}

// Failures returns the number of ticks that returned an error since start.
func (p *Player) Failures() uint64 {
	return p.failures
}
