package kernels

import "github.com/pthm-cable/fieldfx/field"

// EdgeDetect applies the 8-neighbour sharpen stencil (8·centre minus the
// neighbour sum). With Merge set, three sources are expected and output
// channel c is taken from source c, so differently delayed frames land in
// separate colour channels.
type EdgeDetect struct {
	Edge  field.Edge
	Merge bool
}

// Name implements pass.Kernel.
func (k EdgeDetect) Name() string {
	if k.Merge {
		return "edge-detect-merged"
	}
	return "edge-detect"
}

// Eval implements pass.Kernel.
func (k EdgeDetect) Eval(x, y int, src []field.View, out []float32) error {
	if k.Merge {
		if err := requireSources(k.Name(), src, 3, 3); err != nil {
			return err
		}
		for c := 0; c < 3 && c < len(out); c++ {
			out[c] = float32(convolve(src[c], x, y, c, &sharpen, k.Edge))
		}
	} else {
		if err := requireSources(k.Name(), src, 1, 1); err != nil {
			return err
		}
		n := min(len(out), src[0].Channels(), 3)
		for c := 0; c < n; c++ {
			out[c] = float32(convolve(src[0], x, y, c, &sharpen, k.Edge))
		}
	}
	if len(out) == 4 {
		out[3] = 1
	}
	return nil
}
