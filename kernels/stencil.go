// Package kernels implements the per-pixel stencil functions run by the
// pass scheduler: reaction-diffusion, trail decay, edge detection and the
// integer-lattice iteration count.
package kernels

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/fieldfx/field"
)

// ErrMissingInput is returned when a kernel is bound to too few or too narrow sources.
var ErrMissingInput = errors.New("kernels: missing input")

// weights3 is a 3x3 stencil indexed [dy+1][dx+1].
type weights3 [3][3]float64

var (
	// laplacianNine is the 9-point stencil: centre -1, edges 0.2, corners 0.05.
	laplacianNine = weights3{
		{0.05, 0.2, 0.05},
		{0.2, -1.0, 0.2},
		{0.05, 0.2, 0.05},
	}
	// laplacianFive is the cartesian 5-point stencil.
	laplacianFive = weights3{
		{0, 1, 0},
		{1, -4, 1},
		{0, 1, 0},
	}
	boxBlur = weights3{
		{1.0 / 9, 1.0 / 9, 1.0 / 9},
		{1.0 / 9, 1.0 / 9, 1.0 / 9},
		{1.0 / 9, 1.0 / 9, 1.0 / 9},
	}
	weightedBlur = weights3{
		{1.0 / 16, 2.0 / 16, 1.0 / 16},
		{2.0 / 16, 4.0 / 16, 2.0 / 16},
		{1.0 / 16, 2.0 / 16, 1.0 / 16},
	}
	sharpen = weights3{
		{-1, -1, -1},
		{-1, 8, -1},
		{-1, -1, -1},
	}
)

// convolve applies w to channel c of v around (x, y).
func convolve(v field.View, x, y, c int, w *weights3, e field.Edge) float64 {
	var sum float64
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			k := w[dy+1][dx+1]
			if k == 0 {
				continue
			}
			sum += k * float64(v.Get(x+dx, y+dy, c, e))
		}
	}
	return sum
}

func requireSources(name string, src []field.View, n, channels int) error {
	if len(src) < n {
		return fmt.Errorf("%w: %s needs %d sources, got %d", ErrMissingInput, name, n, len(src))
	}
	for i := 0; i < n; i++ {
		if !src[i].Valid() || src[i].Channels() < channels {
			return fmt.Errorf("%w: %s source %d needs %d channels", ErrMissingInput, name, i, channels)
		}
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
