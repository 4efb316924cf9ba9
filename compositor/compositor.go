package compositor

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/pthm-cable/fieldfx/field"
)

// DefaultBlades is the kaleidoscope wedge count when none is configured.
const DefaultBlades = 6

// Compositor is one display configuration. Sources are bound in read order
// by the pass scheduler; all sources share the display extent. Output is
// always four channels (r, g, b, a).
type Compositor struct {
	Mode   Mode
	Invert bool
	Edge   field.Edge

	// Kaleidoscope.
	Blades float64
	Time   float64
	Rotate bool

	// MotionWeights weight the differences against sources 1..n. Missing
	// weights default to 1; MotionGain 0 means 1.
	MotionWeights []float64
	MotionGain    float64

	// Ceiling normalises ModeLogCount.
	Ceiling int

	// Spotlight blends a mouse-centred gradient over ModeColor output.
	Spotlight      bool
	MouseX, MouseY float64
}

// Validate checks the mode before any pixel work is done.
func (c *Compositor) Validate() error {
	if !c.Mode.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMode, c.Mode)
	}
	if (c.Mode == ModeKaleidoscope || c.Mode == ModeKaleidoscopeInterleave) && c.Blades < 0 {
		return fmt.Errorf("%w: %s with %v blades", ErrInvalidMode, c.Mode, c.Blades)
	}
	return nil
}

// String names the compositor by its display mode.
func (c *Compositor) String() string { return c.Mode.String() }

// Shade implements pass.Shader.
func (c *Compositor) Shade(x, y int, src []field.View, out []float32) error {
	if len(src) < c.Mode.Sources() {
		return fmt.Errorf("%w: %s needs %d sources, got %d", ErrMissingSource, c.Mode, c.Mode.Sources(), len(src))
	}
	for i := 0; i < c.Mode.Sources(); i++ {
		if !src[i].Valid() {
			return fmt.Errorf("%w: %s source %d unbound", ErrMissingSource, c.Mode, i)
		}
	}

	var rgb [3]float64
	switch {
	case c.Mode.grey():
		g, err := c.grey(x, y, src[0])
		if err != nil {
			return err
		}
		if c.Invert {
			g = 1 - g
		}
		rgb = [3]float64{g, g, g}

	case c.Mode == ModeHue:
		if src[0].Channels() < 2 {
			return fmt.Errorf("%w: hue needs two channels", ErrMissingSource)
		}
		rgb = hue(float64(src[0].At(x, y, 0)), float64(src[0].At(x, y, 1)))

	case c.Mode == ModeInterleave:
		for ch := 0; ch < 3; ch++ {
			rgb[ch] = colourAt(src[ch], x, y)[ch]
		}

	case c.Mode == ModeMotion, c.Mode == ModeMotionMasked:
		rgb = c.motion(x, y, src)

	case c.Mode == ModeKaleidoscope, c.Mode == ModeKaleidoscopeInterleave:
		rgb = c.kaleidoscope(x, y, src)

	case c.Mode == ModeColor:
		rgb = colourAt(src[0], x, y)
		if c.Invert {
			for i := range rgb {
				rgb[i] = 1 - rgb[i]
			}
		}
		if c.Spotlight {
			rgb = c.spotlight(x, y, src[0].Width(), src[0].Height(), rgb)
		}

	default:
		return fmt.Errorf("%w: %d", ErrInvalidMode, c.Mode)
	}

	for i := 0; i < 3 && i < len(out); i++ {
		out[i] = float32(rgb[i])
	}
	if len(out) > 3 {
		out[3] = 1
	}
	return nil
}

func (c *Compositor) grey(x, y int, v field.View) (float64, error) {
	a := float64(v.At(x, y, 0))
	if c.Mode == ModeChannelA {
		return a, nil
	}
	if c.Mode == ModeLogCount {
		ceiling := c.Ceiling
		if ceiling < 2 {
			ceiling = 4096
		}
		return math.Log(math.Max(a, 1)) / math.Log(float64(ceiling)), nil
	}
	if v.Channels() < 2 {
		return 0, fmt.Errorf("%w: %s needs two channels", ErrMissingSource, c.Mode)
	}
	b := float64(v.At(x, y, 1))
	switch c.Mode {
	case ModeDifference:
		return math.Abs(b - a), nil
	case ModeChannelB:
		return b, nil
	default: // ModeThreshold
		if b >= a {
			return 1, nil
		}
		return 0, nil
	}
}

// hue maps (a, b) to an HSV colour with value 1 and returns it in linear
// RGB: the angle of (a, b) picks the hue and its length, clamped to 1, the
// saturation. The origin is white.
func hue(a, b float64) [3]float64 {
	h := (math.Atan2(b, a) + math.Pi) / (2 * math.Pi)
	s := math.Min(math.Hypot(a, b), 1)
	r, g, bl := colorful.Hsv(math.Mod(h*360, 360), s, 1).LinearRgb()
	return [3]float64{r, g, bl}
}

// colourAt reads an rgb triple; one-channel sources replicate as grey.
func colourAt(v field.View, x, y int) [3]float64 {
	if v.Channels() == 1 {
		g := float64(v.At(x, y, 0))
		return [3]float64{g, g, g}
	}
	var rgb [3]float64
	for c := 0; c < 3 && c < v.Channels(); c++ {
		rgb[c] = float64(v.At(x, y, c))
	}
	return rgb
}

// motion sums w_i·(base − frame_i) over the delayed sources. The additive
// variant adds the sum to the base; the masked variant scales the base by
// the absolute differences.
func (c *Compositor) motion(x, y int, src []field.View) [3]float64 {
	base := colourAt(src[0], x, y)
	gain := c.MotionGain
	if gain == 0 {
		gain = 1
	}

	var acc [3]float64
	for i := 1; i < len(src); i++ {
		if !src[i].Valid() {
			continue
		}
		w := 1.0
		if i-1 < len(c.MotionWeights) {
			w = c.MotionWeights[i-1]
		}
		frame := colourAt(src[i], x, y)
		for ch := range acc {
			d := base[ch] - frame[ch]
			if c.Mode == ModeMotionMasked {
				d = math.Abs(d)
			}
			acc[ch] += w * d
		}
	}

	var rgb [3]float64
	for ch := range rgb {
		if c.Mode == ModeMotionMasked {
			rgb[ch] = base[ch] * clamp01(gain*acc[ch])
		} else {
			rgb[ch] = clamp01(base[ch] + gain*acc[ch])
		}
	}
	return rgb
}

func (c *Compositor) kaleidoscope(x, y int, src []field.View) [3]float64 {
	w, h := src[0].Width(), src[0].Height()
	px := 2*(float64(x)+0.5)/float64(w) - 1
	py := (2*(float64(y)+0.5)/float64(h) - 1) * float64(h) / float64(w)

	t := 0.0
	if c.Rotate {
		t = c.Time
	}
	blades := c.Blades
	if blades <= 0 {
		blades = DefaultBlades
	}

	u, v := Fold(px, py, blades, t)
	u, v = u-math.Floor(u), v-math.Floor(v)
	u, v = Transform(u, v, t)
	u, v = u*2, v*2

	var rgb [3]float64
	var texel [field.MaxChannels]float32
	for ch := 0; ch < 3; ch++ {
		s := src[0]
		if c.Mode == ModeKaleidoscopeInterleave {
			s = src[ch]
		}
		n := s.Channels()
		s.SampleUV(u, v, c.Edge, texel[:n])
		if n == 1 {
			rgb[ch] = float64(texel[0])
		} else if ch < n {
			rgb[ch] = float64(texel[ch])
		}
	}
	return rgb
}

// Fold maps a centred position to the kaleidoscope wedge: the angle is
// folded into 2π/blades sectors mirrored about their midline and the
// radius is warped by r^1.2·0.3.
func Fold(x, y, blades, t float64) (float64, float64) {
	th := math.Atan2(y, x)
	r := math.Hypot(x, y)
	q := 2 * math.Pi / blades
	th = math.Abs(glslMod(th+math.Cos(0.1*t), q) - 0.5*q)
	s := math.Pow(r, 1.2) * 0.3
	return s * math.Cos(th), s * math.Sin(th)
}

// Transform rotates the sampling plane by 0.5·sin(0.2t) and offsets it.
func Transform(x, y, t float64) (float64, float64) {
	fov := 0.5 * math.Sin(0.2*t)
	sin, cos := math.Sincos(fov)
	return x*cos - y*sin - 0.2*sin, x*sin + y*cos + 0.2*cos
}

func (c *Compositor) spotlight(x, y, w, h int, rgb [3]float64) [3]float64 {
	sx := (float64(x) + 0.5) / float64(w)
	sy := (float64(y) + 0.5) / float64(h)
	mx := c.MouseX / float64(w)
	my := c.MouseY / float64(h)
	pct := math.Hypot(sx-mx-1.5, sy-my-1.5)
	k := math.Max(-0.3, math.Min(0.5, 1.2-pct))

	blend := [3]float64{sx, sy, sx + sy}
	for i := range rgb {
		rgb[i] += (blend[i] - rgb[i]) * k
	}
	return rgb
}

// glslMod is x − m·floor(x/m), which differs from math.Mod for negative x.
func glslMod(x, m float64) float64 {
	return x - m*math.Floor(x/m)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
