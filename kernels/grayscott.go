package kernels

import (
	"fmt"
	"strings"

	"github.com/pthm-cable/fieldfx/field"
)

// Stencil selects the discrete Laplacian used for diffusion.
type Stencil uint8

const (
	StencilNinePoint Stencil = iota // -1 centre, 0.2 edges, 0.05 corners
	StencilFivePoint                // -4 centre, 1 edges
)

// ParseStencil converts a config string into a Stencil. Empty means nine-point.
func ParseStencil(s string) (Stencil, error) {
	switch strings.ToLower(s) {
	case "", "nine", "nine_point", "9":
		return StencilNinePoint, nil
	case "five", "five_point", "cartesian", "5":
		return StencilFivePoint, nil
	}
	return 0, fmt.Errorf("kernels: unknown stencil %q", s)
}

// GrayScott advances a two-species reaction-diffusion field by one step.
// Source 0 holds concentrations (a, b) in channels 0 and 1. Rates are not
// validated; stability is the caller's concern via DT.
type GrayScott struct {
	DiffusionA float64
	DiffusionB float64
	Feed       float64
	Kill       float64
	DT         float64
	Edge       field.Edge
	Stencil    Stencil
	// Clamp limits a' and b' to [0,1]. Without it the update is raw.
	Clamp bool
}

// Name implements pass.Kernel.
func (k GrayScott) Name() string { return "gray-scott" }

// Eval implements pass.Kernel.
func (k GrayScott) Eval(x, y int, src []field.View, out []float32) error {
	if err := requireSources(k.Name(), src, 1, 2); err != nil {
		return err
	}
	in := src[0]

	w := &laplacianNine
	if k.Stencil == StencilFivePoint {
		w = &laplacianFive
	}
	lapA := convolve(in, x, y, 0, w, k.Edge)
	lapB := convolve(in, x, y, 1, w, k.Edge)

	a := float64(in.At(x, y, 0))
	b := float64(in.At(x, y, 1))
	reaction := a * b * b

	a2 := a + (k.DiffusionA*lapA-reaction+k.Feed*(1-a))*k.DT
	b2 := b + (k.DiffusionB*lapB+reaction-(k.Kill+k.Feed)*b)*k.DT

	if k.Clamp {
		a2 = clamp01(a2)
		b2 = clamp01(b2)
	}

	out[0] = float32(a2)
	if len(out) > 1 {
		out[1] = float32(b2)
	}
	return nil
}
