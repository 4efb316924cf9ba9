// Package source provides the pipeline's frame producers: a synthetic
// noise video standing in for a camera, a noise seed for reaction-diffusion
// and the physarum agent population.
package source

import (
	"context"

	"github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/fieldfx/field"
	"github.com/pthm-cable/fieldfx/pipeline"
	"github.com/pthm-cable/fieldfx/slots"
)

// NoiseVideo renders one colour frame per tick from time-varying simplex
// noise, one independent noise per channel.
type NoiseVideo struct {
	Scale float64 // spatial frequency, cycles per texel
	Speed float64 // noise units per second

	noise [3]opensimplex.Noise
}

// NewNoiseVideo creates a frame source. Identical seeds give identical frames.
func NewNoiseVideo(seed int64, scale, speed float64) *NoiseVideo {
	v := &NoiseVideo{Scale: scale, Speed: speed}
	for i := range v.noise {
		v.noise[i] = opensimplex.NewNormalized(seed + int64(i)*7919)
	}
	return v
}

// Fill implements pipeline.Source.
func (v *NoiseVideo) Fill(ctx context.Context, in pipeline.Inputs, dst *field.Field) error {
	z := in.Params.Time * v.Speed
	ch := dst.Channels()
	for y := 0; y < dst.Height(); y++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		fy := float64(y) * v.Scale
		for x := 0; x < dst.Width(); x++ {
			fx := float64(x) * v.Scale
			t := dst.Texel(x, y)
			for c := 0; c < min(ch, 3); c++ {
				t[c] = float32(v.noise[c].Eval3(fx, fy, z))
			}
			if ch == 4 {
				t[3] = 1
			}
		}
	}
	return nil
}

// NoiseSeed returns an initializer for two-species fields: a = 1
// everywhere and b = 1 in the noise peaks covering roughly coverage of the
// field.
func NoiseSeed(seed int64, scale, coverage float64) slots.Initializer {
	noise := opensimplex.NewNormalized(seed)
	threshold := 1 - coverage
	return func(x, y int, shape field.Shape, texel []float32) {
		texel[0] = 1
		if shape.Channels < 2 {
			return
		}
		if noise.Eval2(float64(x)*scale, float64(y)*scale) > threshold {
			texel[1] = 1
		} else {
			texel[1] = 0
		}
	}
}
