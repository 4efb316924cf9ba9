package pass

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/pthm-cable/fieldfx/field"
	"github.com/pthm-cable/fieldfx/slots"
)

// DefaultParallelThreshold is the texel count below which passes run on
// the calling goroutine. Below this the dispatch overhead dominates.
const DefaultParallelThreshold = 64 * 64

// Options configures a Scheduler.
type Options struct {
	// Workers is the number of pool goroutines (0 = GOMAXPROCS).
	Workers int
	// ParallelThreshold overrides DefaultParallelThreshold when positive.
	ParallelThreshold int
	// PassTimeout aborts a pass that runs longer than this (0 = none).
	PassTimeout time.Duration
	Logger      *slog.Logger
}

// Scheduler runs passes against a slot set.
type Scheduler struct {
	slots     *slots.Set
	display   string
	pool      *workerPool
	threshold int
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates a scheduler. Composite output is committed to the display slot.
func New(set *slots.Set, display string, opts Options) *Scheduler {
	threshold := opts.ParallelThreshold
	if threshold <= 0 {
		threshold = DefaultParallelThreshold
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		slots:     set,
		display:   display,
		pool:      newWorkerPool(opts.Workers),
		threshold: threshold,
		timeout:   opts.PassTimeout,
		logger:    logger,
	}
}

// Close stops the worker pool.
func (s *Scheduler) Close() {
	s.pool.stop()
}

// resolve binds every read to a view.
func (s *Scheduler) resolve(reads []Read) ([]field.View, error) {
	views := make([]field.View, len(reads))
	for i, r := range reads {
		offset := r.Offset
		if r.Clamp {
			if n := s.slots.Retained(r.Slot); n > 0 && offset >= n {
				offset = n - 1
			}
		}
		v, err := s.slots.HistoricalOf(r.Slot, offset)
		if err != nil {
			return nil, err
		}
		views[i] = v
	}
	return views, nil
}

// evalFunc writes the output texel for (x, y).
type evalFunc func(x, y int, out []float32) error

// RunPass evaluates d.Kernel over the whole extent of d.Writes and commits
// the result. On any error the target is released and nothing is committed.
func (s *Scheduler) RunPass(ctx context.Context, d Descriptor) error {
	name := d.Label()
	if d.Kernel == nil {
		return fmt.Errorf("pass %q: %w", name, ErrNoKernel)
	}
	src, err := s.resolve(d.Reads)
	if err != nil {
		return fmt.Errorf("pass %q: %w", name, err)
	}
	return s.execute(ctx, name, d.Writes, src, func(x, y int, out []float32) error {
		return d.Kernel.Eval(x, y, src, out)
	})
}

// Composite shades every display pixel from d.Reads and commits the colour
// Field to the display slot. An invalid compositor fails before any work.
func (s *Scheduler) Composite(ctx context.Context, d CompositeDescriptor) error {
	name := d.Label()
	if d.Compositor == nil {
		return fmt.Errorf("composite %q: %w", name, ErrNoKernel)
	}
	if err := d.Compositor.Validate(); err != nil {
		return fmt.Errorf("composite %q: %w", name, err)
	}
	src, err := s.resolve(d.Reads)
	if err != nil {
		return fmt.Errorf("composite %q: %w", name, err)
	}
	return s.execute(ctx, name, s.display, src, func(x, y int, out []float32) error {
		return d.Compositor.Shade(x, y, src, out)
	})
}

func (s *Scheduler) execute(ctx context.Context, name, writes string, src []field.View, eval evalFunc) error {
	target, err := s.slots.Acquire(writes)
	if err != nil {
		return fmt.Errorf("pass %q: %w", name, err)
	}
	for _, v := range src {
		if v.ID() == target.ID() {
			s.slots.Release(writes, target)
			return fmt.Errorf("pass %q: %w (field %d)", name, ErrAliasedTarget, v.ID())
		}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.evaluate(ctx, name, target, eval); err != nil {
		s.slots.Release(writes, target)
		var kerr *KernelError
		if errors.As(err, &kerr) {
			s.logger.Error("kernel evaluation failed",
				"pass", kerr.Pass, "x", kerr.X, "y", kerr.Y, "error", kerr.Err)
		}
		return err
	}
	return s.slots.Commit(writes, target)
}

// evaluate runs eval for every texel of target, inline for small fields and
// on the worker pool otherwise.
func (s *Scheduler) evaluate(ctx context.Context, name string, target *field.Field, eval evalFunc) error {
	w, h, ch := target.Width(), target.Height(), target.Channels()
	var abort firstError

	rows := func(start, end int) error {
		var scratch [field.MaxChannels]float32
		out := scratch[:ch]
		for y := start; y < end; y++ {
			if abort.failed() {
				return nil
			}
			if err := ctx.Err(); err != nil {
				abort.store(fmt.Errorf("pass %q aborted: %w", name, err))
				return nil
			}
			for x := 0; x < w; x++ {
				clear(out)
				if err := eval(x, y, out); err != nil {
					abort.store(&KernelError{Pass: name, X: x, Y: y, Err: err})
					return nil
				}
				for c, v := range out {
					if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
						abort.store(&KernelError{Pass: name, X: x, Y: y,
							Err: fmt.Errorf("%w: channel %d = %v", ErrNonFinite, c, v)})
						return nil
					}
				}
				copy(target.Texel(x, y), out)
			}
		}
		return nil
	}

	if w*h < s.threshold {
		_ = rows(0, h)
	} else {
		_ = s.pool.run(h, rows)
	}
	return abort.get()
}
