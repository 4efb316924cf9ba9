// Package field provides the fixed-resolution float grids that carry all
// simulation state, plus read-only views and storage allocation.
package field

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrInvalidShape is returned for non-positive extents or unsupported channel counts.
var ErrInvalidShape = errors.New("field: invalid shape")

// MaxChannels is the widest texel a Field can hold (RGBA).
const MaxChannels = 4

// Shape describes the extent and texel width of a Field.
type Shape struct {
	Width    int
	Height   int
	Channels int
}

// Validate reports whether the shape can back a Field.
func (s Shape) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidShape, s.Width, s.Height)
	}
	if s.Channels < 1 || s.Channels > MaxChannels {
		return fmt.Errorf("%w: %d channels", ErrInvalidShape, s.Channels)
	}
	return nil
}

// Texels returns Width*Height.
func (s Shape) Texels() int { return s.Width * s.Height }

// Floats returns the number of float32 values needed to store the shape.
func (s Shape) Floats() int { return s.Width * s.Height * s.Channels }

// Bytes returns the storage size in bytes.
func (s Shape) Bytes() int64 { return int64(s.Floats()) * 4 }

// WithChannels returns a copy of s with a different channel count.
func (s Shape) WithChannels(c int) Shape {
	s.Channels = c
	return s
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Width, s.Height, s.Channels)
}

// nextID hands out storage identities. IDs are never reused, so two Fields
// with equal IDs are the same storage.
var nextID atomic.Uint64

// Field is a 2D grid of 1-4 channel float32 texels. Its shape never changes;
// a resize produces a new Field.
type Field struct {
	id    uint64
	shape Shape
	data  []float32
}

// newField allocates backing storage for a validated shape.
func newField(shape Shape) *Field {
	return &Field{
		id:    nextID.Add(1),
		shape: shape,
		data:  make([]float32, shape.Floats()),
	}
}

// ID returns the storage identity of the Field.
func (f *Field) ID() uint64 { return f.id }

// Shape returns the Field's shape.
func (f *Field) Shape() Shape { return f.shape }

// Width returns the horizontal extent in texels.
func (f *Field) Width() int { return f.shape.Width }

// Height returns the vertical extent in texels.
func (f *Field) Height() int { return f.shape.Height }

// Channels returns the number of channels per texel.
func (f *Field) Channels() int { return f.shape.Channels }

// Texel returns the writable channel slice at (x, y). Coordinates must be in range.
func (f *Field) Texel(x, y int) []float32 {
	i := (y*f.shape.Width + x) * f.shape.Channels
	return f.data[i : i+f.shape.Channels : i+f.shape.Channels]
}

// Row returns the writable slice for row y.
func (f *Field) Row(y int) []float32 {
	stride := f.shape.Width * f.shape.Channels
	return f.data[y*stride : (y+1)*stride]
}

// Data returns the raw interleaved storage.
func (f *Field) Data() []float32 { return f.data }

// Fill sets every texel to the given channel values. Missing values are zero.
func (f *Field) Fill(values ...float32) {
	ch := f.shape.Channels
	for i := 0; i < len(f.data); i += ch {
		for c := 0; c < ch; c++ {
			if c < len(values) {
				f.data[i+c] = values[c]
			} else {
				f.data[i+c] = 0
			}
		}
	}
}

// Clear zeroes the storage.
func (f *Field) Clear() {
	clear(f.data)
}

// View returns a read-only view of the Field.
func (f *Field) View() View { return View{f: f} }
