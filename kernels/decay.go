package kernels

import (
	"fmt"
	"strings"

	"github.com/pthm-cable/fieldfx/field"
)

// Blur selects the trail blur stencil.
type Blur uint8

const (
	BlurBox      Blur = iota // uniform 1/9
	BlurWeighted             // 1/16 corners, 2/16 edges, 4/16 centre
)

// ParseBlur converts a config string into a Blur. Empty means box.
func ParseBlur(s string) (Blur, error) {
	switch strings.ToLower(s) {
	case "", "box", "uniform":
		return BlurBox, nil
	case "weighted", "tent", "gaussian":
		return BlurWeighted, nil
	}
	return 0, fmt.Errorf("kernels: unknown blur %q", s)
}

// Decay blurs a trail field and scales it by Decay. When a second source is
// bound, its channels are added after decay (agent deposits).
type Decay struct {
	Blur  Blur
	Decay float64
	Edge  field.Edge
}

// Name implements pass.Kernel.
func (k Decay) Name() string { return "trail-decay" }

// Eval implements pass.Kernel.
func (k Decay) Eval(x, y int, src []field.View, out []float32) error {
	if err := requireSources(k.Name(), src, 1, 1); err != nil {
		return err
	}
	trail := src[0]

	w := &boxBlur
	if k.Blur == BlurWeighted {
		w = &weightedBlur
	}

	n := min(len(out), trail.Channels())
	for c := 0; c < n; c++ {
		v := convolve(trail, x, y, c, w, k.Edge) * k.Decay
		if len(src) > 1 && src[1].Valid() && c < src[1].Channels() {
			v += float64(src[1].At(x, y, c))
		}
		out[c] = float32(v)
	}
	return nil
}
