// Package pass sequences stencil kernels over whole Fields, binding read
// and write storage from a slot set so that no pass ever writes the
// storage it reads.
package pass

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/fieldfx/field"
)

var (
	// ErrAliasedTarget is returned when a write target shares storage with a read.
	ErrAliasedTarget = errors.New("pass: write target aliases a read field")
	// ErrNonFinite is returned when a kernel produces NaN or Inf.
	ErrNonFinite = errors.New("pass: non-finite kernel output")
	// ErrNoKernel is returned for descriptors without a kernel.
	ErrNoKernel = errors.New("pass: descriptor has no kernel")
)

// Kernel computes one output texel from read-only source Fields. Eval must
// only depend on its inputs: pixels are evaluated in unspecified order and
// in parallel, so no pixel may observe another pixel's output from the same
// pass.
type Kernel interface {
	Name() string
	Eval(x, y int, src []field.View, out []float32) error
}

// Shader maps source Fields to a display colour for one pixel.
type Shader interface {
	Validate() error
	Shade(x, y int, src []field.View, out []float32) error
}

// Read binds a slot at a delay relative to its current Field. With Clamp
// set, delays beyond the retained history resolve to the oldest retained
// Field instead of failing.
type Read struct {
	Slot   string
	Offset int
	Clamp  bool
}

// Descriptor is one simulation pass: Kernel reads Reads and writes Writes.
type Descriptor struct {
	Name   string
	Kernel Kernel
	Reads  []Read
	Writes string
}

// Label is the pass name used in errors and timings: Name, else the
// kernel's name, else the written slot.
func (d Descriptor) Label() string {
	if d.Name != "" {
		return d.Name
	}
	if d.Kernel != nil {
		return d.Kernel.Name()
	}
	return d.Writes
}

// CompositeDescriptor is the display stage. It never declares a write slot;
// output goes to the scheduler's display slot.
type CompositeDescriptor struct {
	Name       string
	Compositor Shader
	Reads      []Read
}

// Label is Name, else the compositor's String (its display mode), else
// "composite".
func (d CompositeDescriptor) Label() string {
	if d.Name != "" {
		return d.Name
	}
	if s, ok := d.Compositor.(fmt.Stringer); ok {
		return s.String()
	}
	return "composite"
}

// KernelError identifies the pass and pixel where evaluation failed.
type KernelError struct {
	Pass string
	X, Y int
	Err  error
}

func (e *KernelError) Error() string {
	return fmt.Sprintf("pass %q: pixel (%d,%d): %v", e.Pass, e.X, e.Y, e.Err)
}

func (e *KernelError) Unwrap() error { return e.Err }
