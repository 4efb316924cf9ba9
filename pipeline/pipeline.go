package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pthm-cable/fieldfx/field"
	"github.com/pthm-cable/fieldfx/pass"
	"github.com/pthm-cable/fieldfx/slots"
	"github.com/pthm-cable/fieldfx/telemetry"
)

// DisplayDepth is the display slot's history: current plus the frame
// before it, which is the double buffer.
const DisplayDepth = 2

var (
	// ErrNotInitialized is returned by Tick and Resize before Initialize or
	// after Shutdown.
	ErrNotInitialized = errors.New("pipeline: not initialized")
	// ErrInvalidSlotSpec is returned for malformed or duplicate slot specs.
	ErrInvalidSlotSpec = errors.New("pipeline: invalid slot spec")
)

// Options configures a Pipeline.
type Options struct {
	// Allocator provides Field storage (nil = unlimited heap).
	Allocator         field.Allocator
	Workers           int
	ParallelThreshold int
	PassTimeout       time.Duration
	Logger            *slog.Logger
	// Perf, when set, receives per-stage timings for every tick: each source
	// slot, each pass by label, the composite by mode, and the sinks.
	Perf  *telemetry.PerfCollector
	Sinks []Sink
}

// Pipeline runs one Program. Initialize, Tick, Resize and Shutdown are
// serialised; a Resize never overlaps an in-flight pass.
type Pipeline struct {
	mu     sync.Mutex
	prog   Program
	opts   Options
	logger *slog.Logger

	set   *slots.Set
	sched *pass.Scheduler
	specs []SlotSpec
	state State
	ready bool
}

// New creates a pipeline for prog. Call Initialize before Tick.
func New(prog Program, opts Options) *Pipeline {
	if opts.Allocator == nil {
		opts.Allocator = field.NewHeapAllocator(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		prog:   prog,
		opts:   opts,
		logger: logger.With("program", prog.Name()),
	}
}

// Initialize allocates every slot in specs, plus the display slot, at
// width×height.
func (p *Pipeline) Initialize(width, height int, specs []SlotSpec) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ready {
		return errors.New("pipeline: already initialized")
	}
	if err := validateSpecs(specs); err != nil {
		return err
	}

	set := slots.NewSet(p.opts.Allocator)
	for _, s := range specs {
		shape := field.Shape{Width: width, Height: height, Channels: s.Channels}
		var opts []slots.Option
		if s.Init != nil {
			opts = append(opts, slots.WithInit(s.Init))
		}
		if err := set.Allocate(s.Name, shape, s.Depth, opts...); err != nil {
			set.Close()
			return fmt.Errorf("initialize: %w", err)
		}
	}
	display := field.Shape{Width: width, Height: height, Channels: 4}
	if err := set.Allocate(DisplaySlot, display, DisplayDepth); err != nil {
		set.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	p.set = set
	p.sched = pass.New(set, DisplaySlot, pass.Options{
		Workers:           p.opts.Workers,
		ParallelThreshold: p.opts.ParallelThreshold,
		PassTimeout:       p.opts.PassTimeout,
		Logger:            p.logger,
	})
	p.specs = specs
	p.state = State{Width: width, Height: height}
	p.ready = true

	p.logger.Info("pipeline initialized", "width", width, "height", height, "slots", len(specs)+1)
	return nil
}

func validateSpecs(specs []SlotSpec) error {
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		switch {
		case s.Name == "":
			return fmt.Errorf("%w: empty name", ErrInvalidSlotSpec)
		case s.Name == DisplaySlot:
			return fmt.Errorf("%w: %q is reserved", ErrInvalidSlotSpec, s.Name)
		case seen[s.Name]:
			return fmt.Errorf("%w: duplicate slot %q", ErrInvalidSlotSpec, s.Name)
		case s.Depth < 1:
			return fmt.Errorf("%w: slot %q depth %d", ErrInvalidSlotSpec, s.Name, s.Depth)
		}
		seen[s.Name] = true
	}
	return nil
}

// Tick fills sources, runs the planned passes and composite, and presents
// the result. Any error aborts the rest of the tick; Fields already
// committed earlier in the tick stay committed, the failing write does not.
// A tick whose composite committed counts even when a sink then fails: the
// sink error is returned together with the committed view.
// The returned view is valid until the next Tick or Resize.
func (p *Pipeline) Tick(ctx context.Context, params Params) (field.View, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return field.View{}, ErrNotInitialized
	}

	perf := p.opts.Perf
	perf.StartTick()
	view, err := p.tick(ctx, params)
	perf.EndTick(err)

	if view.Valid() {
		p.state.Tick++
	}
	if err != nil {
		p.logger.Warn("tick aborted", "tick", p.state.Tick, "error", err)
	}
	return view, err
}

// tick returns a valid view once the display slot has been committed.
func (p *Pipeline) tick(ctx context.Context, params Params) (field.View, error) {
	perf := p.opts.Perf

	in := Inputs{Params: params, State: p.state, Slots: p.set}
	for _, s := range p.specs {
		if s.Source == nil {
			continue
		}
		done := perf.Track(telemetry.StageSource, s.Name)
		err := p.fill(ctx, s, in)
		done()
		if err != nil {
			return field.View{}, err
		}
	}

	plan, err := p.prog.Plan(params, p.state)
	if err != nil {
		return field.View{}, fmt.Errorf("plan: %w", err)
	}

	for _, d := range plan.Passes {
		done := perf.Track(telemetry.StagePass, d.Label())
		err := p.sched.RunPass(ctx, d)
		done()
		if err != nil {
			return field.View{}, err
		}
	}

	done := perf.Track(telemetry.StageComposite, plan.Composite.Label())
	err = p.sched.Composite(ctx, plan.Composite)
	done()
	if err != nil {
		return field.View{}, err
	}
	view, err := p.set.CurrentOf(DisplaySlot)
	if err != nil {
		return field.View{}, err
	}

	done = perf.Track(telemetry.StagePresent, "")
	defer done()
	for _, sink := range p.opts.Sinks {
		if err := sink.Present(view); err != nil {
			return view, fmt.Errorf("present: %w", err)
		}
	}
	return view, nil
}

func (p *Pipeline) fill(ctx context.Context, s SlotSpec, in Inputs) error {
	dst, err := p.set.Acquire(s.Name)
	if err != nil {
		return fmt.Errorf("source %q: %w", s.Name, err)
	}
	if err := s.Source.Fill(ctx, in, dst); err != nil {
		p.set.Release(s.Name, dst)
		return fmt.Errorf("source %q: %w", s.Name, err)
	}
	return p.set.Commit(s.Name, dst)
}

// Resize reallocates every slot at the new extent and resets all history.
// On failure the previous storage stays in place.
func (p *Pipeline) Resize(width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return ErrNotInitialized
	}
	if width == p.state.Width && height == p.state.Height {
		return nil
	}
	if err := p.set.Reshape(width, height); err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	p.state = State{Generation: p.state.Generation + 1, Width: width, Height: height}
	p.logger.Info("pipeline resized", "width", width, "height", height, "generation", p.state.Generation)
	return nil
}

// Shutdown stops the workers and releases all storage. It is safe to call
// more than once.
func (p *Pipeline) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return
	}
	p.sched.Close()
	p.set.Close()
	p.set, p.sched = nil, nil
	p.ready = false
	p.logger.Info("pipeline shut down", "ticks", p.state.Tick)
}

// State returns the current run state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// CurrentOf returns the current Field of a slot, valid until the next Tick.
func (p *Pipeline) CurrentOf(name string) (field.View, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ready {
		return field.View{}, ErrNotInitialized
	}
	return p.set.CurrentOf(name)
}

// HistoricalOf returns the Field that was current framesAgo commits ago.
func (p *Pipeline) HistoricalOf(name string, framesAgo int) (field.View, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ready {
		return field.View{}, ErrNotInitialized
	}
	return p.set.HistoricalOf(name, framesAgo)
}

// SlotNames lists every allocated slot, including the display slot.
func (p *Pipeline) SlotNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ready {
		return nil
	}
	return p.set.Names()
}
