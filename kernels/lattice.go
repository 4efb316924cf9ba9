package kernels

import (
	"math"

	"github.com/pthm-cable/fieldfx/field"
)

// DefaultIterationCeiling bounds CircleIterations.
const DefaultIterationCeiling = 4096

// DefaultE returns 4·sin²(π/9), the e parameter used when none is supplied.
func DefaultE() float64 {
	s := math.Sin(math.Pi / 9)
	return 4 * s * s
}

// CircleIterations repeatedly applies x ← x − ⌊d·y⌋, y ← y + ⌊e·x⌋ from
// (x0, y0) and returns the number of steps until the point returns to its
// start, or ceiling if it never does.
func CircleIterations(x0, y0 int, d, e float64, ceiling int) int {
	x := float64(x0)
	y := float64(y0)
	sx, sy := x, y

	for iter := 1; iter <= ceiling; iter++ {
		x -= math.Floor(d * y)
		y += math.Floor(e * x)
		if x == sx && y == sy {
			return iter
		}
	}
	return ceiling
}

// Lattice evaluates CircleIterations for every pixel. It reads no sources.
// Pixel (x, y) maps to lattice point (x+OriginX, y+OriginY). Zero E and
// Ceiling select DefaultE and DefaultIterationCeiling.
type Lattice struct {
	D, E             float64
	Ceiling          int
	OriginX, OriginY int
}

// Name implements pass.Kernel.
func (k Lattice) Name() string { return "integer-circles" }

// Eval implements pass.Kernel.
func (k Lattice) Eval(x, y int, _ []field.View, out []float32) error {
	e := k.E
	if e == 0 {
		e = DefaultE()
	}
	ceiling := k.Ceiling
	if ceiling <= 0 {
		ceiling = DefaultIterationCeiling
	}
	out[0] = float32(CircleIterations(x+k.OriginX, y+k.OriginY, k.D, e, ceiling))
	return nil
}
