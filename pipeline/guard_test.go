package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/pthm-cable/fieldfx/compositor"
	"github.com/pthm-cable/fieldfx/field"
	"github.com/pthm-cable/fieldfx/pass"
	"github.com/pthm-cable/fieldfx/slots"
)

// blowUp writes +Inf everywhere, like a field that has diverged.
type blowUp struct{}

func (blowUp) Name() string { return "blow-up" }

func (blowUp) Eval(_, _ int, _ []field.View, out []float32) error {
	out[0] = float32(math.Inf(1))
	return nil
}

type diverging struct{}

func (diverging) Name() string          { return "diverging" }
func (diverging) SlotSpecs() []SlotSpec { return []SlotSpec{{Name: "state", Channels: 1, Depth: 2}} }
func (diverging) Plan(Params, State) (Plan, error) {
	return Plan{
		Passes: []pass.Descriptor{{Kernel: blowUp{}, Reads: []pass.Read{{Slot: "state"}}, Writes: "state"}},
		Composite: pass.CompositeDescriptor{
			Compositor: &compositor.Compositor{Mode: compositor.ModeChannelA},
			Reads:      []pass.Read{{Slot: "state"}},
		},
	}, nil
}

func TestPermanent(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&pass.KernelError{Pass: "gray-scott", Err: errors.New("boom")}, true},
		{fmt.Errorf("pass %q: %w", "x", pass.ErrNonFinite), true},
		{fmt.Errorf("read: %w", slots.ErrHistoryUnderflow), true},
		{fmt.Errorf("composite: %w", compositor.ErrInvalidMode), true},
		{context.DeadlineExceeded, false},
		{errors.New("present: connection reset"), false},
	}
	for _, tc := range tests {
		if got := Permanent(tc.err); got != tc.want {
			t.Errorf("Permanent(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestFailureGuard_StopsOnDivergence(t *testing.T) {
	p := start(t, diverging{}, Options{})
	var guard FailureGuard

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := p.Tick(context.Background(), Params{})
		if !errors.Is(err, pass.ErrNonFinite) {
			t.Fatalf("attempt %d: expected non-finite error, got %v", attempt, err)
		}
		if stop := guard.Observe(err); stop == nil {
			t.Fatalf("attempt %d: guard let a diverged run continue", attempt)
		}
	}
	// Nothing ever commits, so the tick count cannot be used to end the run.
	if got := p.State().Tick; got != 0 {
		t.Errorf("tick count = %d, want 0", got)
	}
}

func TestFailureGuard_TransientLimit(t *testing.T) {
	guard := FailureGuard{Limit: 3}
	transient := errors.New("present: connection reset")

	if guard.Observe(transient) != nil || guard.Observe(transient) != nil {
		t.Fatal("stopped before the limit")
	}
	if guard.Observe(nil) != nil || guard.Consecutive() != 0 {
		t.Fatal("success did not reset the count")
	}
	for i := 1; i < 3; i++ {
		if err := guard.Observe(transient); err != nil {
			t.Fatalf("failure %d stopped early: %v", i, err)
		}
	}
	err := guard.Observe(transient)
	if !errors.Is(err, ErrTooManyFailures) || !errors.Is(err, transient) {
		t.Errorf("third failure = %v", err)
	}
}

func TestFailureGuard_Cancelled(t *testing.T) {
	var guard FailureGuard
	if err := guard.Observe(fmt.Errorf("pass: %w", context.Canceled)); !errors.Is(err, context.Canceled) {
		t.Errorf("cancellation = %v", err)
	}
}
