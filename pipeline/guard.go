package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/pthm-cable/fieldfx/compositor"
	"github.com/pthm-cable/fieldfx/pass"
	"github.com/pthm-cable/fieldfx/slots"
)

// DefaultFailureLimit is the number of consecutive failed ticks a
// FailureGuard tolerates when Limit is 0.
const DefaultFailureLimit = 10

// ErrTooManyFailures is returned by FailureGuard.Observe once Limit ticks
// in a row have failed.
var ErrTooManyFailures = errors.New("pipeline: too many consecutive failed ticks")

// Permanent reports whether a tick error repeats on retry. An aborted tick
// commits nothing, so the next tick runs the same plan over the same state:
// kernel failures (including non-finite output), history underflow and
// invalid display modes fail again every time.
func Permanent(err error) bool {
	var kerr *pass.KernelError
	return errors.As(err, &kerr) ||
		errors.Is(err, pass.ErrNonFinite) ||
		errors.Is(err, slots.ErrHistoryUnderflow) ||
		errors.Is(err, compositor.ErrInvalidMode) ||
		errors.Is(err, ErrNotInitialized)
}

// FailureGuard decides when an unattended run should stop. Feed it the
// result of every tick.
type FailureGuard struct {
	Limit int

	consecutive int
}

// Observe returns nil while the run may continue. It returns err itself for
// cancellation and permanent errors, and ErrTooManyFailures wrapping the
// last error once Limit ticks in a row have failed. A successful tick
// resets the count.
func (g *FailureGuard) Observe(err error) error {
	if err == nil {
		g.consecutive = 0
		return nil
	}
	if errors.Is(err, context.Canceled) || Permanent(err) {
		return err
	}
	g.consecutive++
	limit := g.Limit
	if limit <= 0 {
		limit = DefaultFailureLimit
	}
	if g.consecutive >= limit {
		return fmt.Errorf("%w (%d): %w", ErrTooManyFailures, g.consecutive, err)
	}
	return nil
}

// Consecutive is the current run of failed ticks.
func (g *FailureGuard) Consecutive() int { return g.consecutive }
