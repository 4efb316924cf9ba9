// Package pipeline is the effect runtime: it allocates the slots a Program
// declares, fills source slots, runs the Program's passes and composite
// each tick, and hands the display Field to presentation sinks.
package pipeline

import (
	"context"

	"github.com/pthm-cable/fieldfx/field"
	"github.com/pthm-cable/fieldfx/pass"
	"github.com/pthm-cable/fieldfx/slots"
)

// DisplaySlot is the pipeline-owned slot holding composite output.
const DisplaySlot = "display"

// Params is the per-tick input snapshot. Values are treated as validated.
type Params struct {
	Time           float64 // seconds since start
	MouseX, MouseY float64 // pixels, display space
}

// State describes where the pipeline is in its run.
type State struct {
	// Tick counts completed ticks since the last (re)initialisation.
	Tick uint64
	// Generation increments on every Resize.
	Generation    uint64
	Width, Height int
}

// Plan is one tick's work.
type Plan struct {
	Passes    []pass.Descriptor
	Composite pass.CompositeDescriptor
}

// Program declares its slots and plans each tick.
type Program interface {
	Name() string
	SlotSpecs() []SlotSpec
	Plan(p Params, s State) (Plan, error)
}

// SlotSpec declares one named slot. Depth is the number of retained
// commits; a delay of k frames needs Depth > k.
type SlotSpec struct {
	Name     string
	Channels int
	Depth    int
	Init     slots.Initializer
	// Source, when set, produces a new Field for the slot at the start of
	// every tick.
	Source Source
}

// Reader gives sources read-only access to other slots.
type Reader interface {
	CurrentOf(name string) (field.View, error)
	HistoricalOf(name string, framesAgo int) (field.View, error)
}

// Inputs are handed to a Source each tick.
type Inputs struct {
	Params Params
	State  State
	Slots  Reader
}

// Source fills dst, a fresh write target for its slot. dst contents are
// unspecified on entry; the Source must write every texel it cares about.
type Source interface {
	Fill(ctx context.Context, in Inputs, dst *field.Field) error
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, in Inputs, dst *field.Field) error

// Fill implements Source.
func (f SourceFunc) Fill(ctx context.Context, in Inputs, dst *field.Field) error {
	return f(ctx, in, dst)
}

// Sink receives the display Field after every successful tick. The view is
// valid until the next Tick or Resize.
type Sink interface {
	Present(v field.View) error
}
