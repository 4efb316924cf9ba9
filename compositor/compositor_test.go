package compositor

import (
	"errors"
	"math"
	"testing"

	"github.com/pthm-cable/fieldfx/field"
)

func solid(t *testing.T, w, h int, values ...float32) field.View {
	t.Helper()
	f, err := field.NewHeapAllocator(0).Allocate(field.Shape{Width: w, Height: h, Channels: len(values)})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	f.Fill(values...)
	return f.View()
}

func shade(t *testing.T, c *Compositor, x, y int, src ...field.View) [4]float32 {
	t.Helper()
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	var out [4]float32
	if err := c.Shade(x, y, src, out[:]); err != nil {
		t.Fatalf("shade: %v", err)
	}
	return out
}

func near(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-5 }

func TestCompositor_GreyModes(t *testing.T) {
	src := solid(t, 2, 2, 0.25, 0.75)
	tests := []struct {
		mode   Mode
		invert bool
		want   float32
	}{
		{ModeDifference, false, 0.5},
		{ModeChannelA, false, 0.25},
		{ModeChannelB, false, 0.75},
		{ModeChannelB, true, 0.25},
		{ModeThreshold, false, 1},
		{ModeThreshold, true, 0},
	}
	for _, tt := range tests {
		out := shade(t, &Compositor{Mode: tt.mode, Invert: tt.invert}, 1, 1, src)
		if !near(out[0], tt.want) || out[0] != out[1] || out[1] != out[2] || out[3] != 1 {
			t.Errorf("%s invert=%v: got %v, want grey %v", tt.mode, tt.invert, out, tt.want)
		}
	}

	below := solid(t, 1, 1, 0.8, 0.2)
	if out := shade(t, &Compositor{Mode: ModeThreshold}, 0, 0, below); out[0] != 0 {
		t.Errorf("threshold with b < a = %v, want 0", out[0])
	}
}

func TestCompositor_HueOriginIsWhite(t *testing.T) {
	out := shade(t, &Compositor{Mode: ModeHue}, 0, 0, solid(t, 1, 1, 0, 0))
	for i, v := range out {
		if math.IsNaN(float64(v)) || !near(v, 1) {
			t.Fatalf("channel %d = %v, want 1", i, v)
		}
	}
}

func TestCompositor_HueSaturates(t *testing.T) {
	out := shade(t, &Compositor{Mode: ModeHue}, 0, 0, solid(t, 1, 1, 3, 0))
	// angle 0 maps to hue 0.5 (cyan); magnitude clamps to full saturation.
	if !near(out[0], 0) || !near(out[1], 1) || !near(out[2], 1) {
		t.Errorf("hue of (3,0) = %v, want cyan", out)
	}
}

func TestCompositor_HueIsLinear(t *testing.T) {
	out := shade(t, &Compositor{Mode: ModeHue}, 0, 0, solid(t, 1, 1, 0.5, 0))
	// Half-saturated cyan is sRGB (0.5, 1, 1); 0.5 decodes to about 0.214.
	if math.Abs(float64(out[0])-0.2140) > 1e-3 || !near(out[1], 1) || !near(out[2], 1) {
		t.Errorf("hue of (0.5,0) = %v, want linear [0.214 1 1]", out)
	}
}

func TestCompositor_InterleaveExact(t *testing.T) {
	b0 := solid(t, 3, 3, 0.1, 0.2, 0.3, 1)
	b10 := solid(t, 3, 3, 0.4, 0.5, 0.6, 1)
	b25 := solid(t, 3, 3, 0.7, 0.8, 0.9, 1)

	out := shade(t, &Compositor{Mode: ModeInterleave}, 2, 1, b0, b10, b25)
	if out[0] != float32(0.1) || out[1] != float32(0.5) || out[2] != float32(0.9) || out[3] != 1 {
		t.Errorf("interleave = %v, want [0.1 0.5 0.9 1]", out)
	}
}

func TestCompositor_Motion(t *testing.T) {
	now := solid(t, 1, 1, 0.6, 0.6, 0.6)
	before := solid(t, 1, 1, 0.4, 0.6, 0.8)

	add := shade(t, &Compositor{Mode: ModeMotion}, 0, 0, now, before)
	if !near(add[0], 0.8) || !near(add[1], 0.6) || !near(add[2], 0.4) {
		t.Errorf("motion = %v, want [0.8 0.6 0.4]", add)
	}

	masked := shade(t, &Compositor{Mode: ModeMotionMasked, MotionGain: 2}, 0, 0, now, before)
	if !near(masked[0], 0.24) || !near(masked[1], 0) || !near(masked[2], 0.24) {
		t.Errorf("masked motion = %v, want [0.24 0 0.24]", masked)
	}

	still := shade(t, &Compositor{Mode: ModeMotionMasked}, 0, 0, now, now)
	if still[0] != 0 || still[1] != 0 || still[2] != 0 {
		t.Errorf("masked motion of static frame = %v, want black", still)
	}
}

func TestCompositor_MotionWeights(t *testing.T) {
	now := solid(t, 1, 1, 0.5)
	a := solid(t, 1, 1, 0.4)
	b := solid(t, 1, 1, 0.3)

	out := shade(t, &Compositor{Mode: ModeMotion, MotionWeights: []float64{1, 0}}, 0, 0, now, a, b)
	if !near(out[0], 0.6) {
		t.Errorf("weighted motion = %v, want 0.6", out[0])
	}
}

func TestCompositor_ColorInvertAndGrey(t *testing.T) {
	out := shade(t, &Compositor{Mode: ModeColor, Invert: true}, 0, 0, solid(t, 1, 1, 0.25, 0.5, 1))
	if !near(out[0], 0.75) || !near(out[1], 0.5) || !near(out[2], 0) {
		t.Errorf("inverted colour = %v", out)
	}
	grey := shade(t, &Compositor{Mode: ModeColor}, 0, 0, solid(t, 1, 1, 0.3))
	if grey[0] != grey[1] || grey[1] != grey[2] {
		t.Errorf("single channel not replicated: %v", grey)
	}
}

func TestCompositor_LogCount(t *testing.T) {
	out := shade(t, &Compositor{Mode: ModeLogCount, Ceiling: 4096}, 0, 0, solid(t, 1, 1, 64))
	if !near(out[0], 0.5) {
		t.Errorf("log count of 64/4096 = %v, want 0.5", out[0])
	}
	one := shade(t, &Compositor{Mode: ModeLogCount}, 0, 0, solid(t, 1, 1, 1))
	if one[0] != 0 {
		t.Errorf("log count of 1 = %v, want 0", one[0])
	}
}

func TestCompositor_KaleidoscopeUniformSource(t *testing.T) {
	src := solid(t, 8, 6, 0.3, 0.6, 0.9, 1)
	c := &Compositor{Mode: ModeKaleidoscope, Blades: 5, Time: 3, Rotate: true}
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			out := shade(t, c, x, y, src)
			if !near(out[0], 0.3) || !near(out[1], 0.6) || !near(out[2], 0.9) {
				t.Fatalf("(%d,%d) = %v", x, y, out)
			}
		}
	}

	r := solid(t, 4, 4, 1, 0, 0)
	g := solid(t, 4, 4, 0, 1, 0)
	b := solid(t, 4, 4, 0, 0, 1)
	out := shade(t, &Compositor{Mode: ModeKaleidoscopeInterleave}, 1, 2, r, g, b)
	if !near(out[0], 1) || !near(out[1], 1) || !near(out[2], 1) {
		t.Errorf("interleaved kaleidoscope = %v, want white", out)
	}
}

func TestFold_MirrorsWedges(t *testing.T) {
	// Points mirrored about a wedge boundary fold to the same position.
	blades := 4.0
	q := 2 * math.Pi / blades
	offset := math.Cos(0)
	for _, d := range []float64{0.1, 0.3} {
		a := q - offset - d
		b := q - offset + d
		ux, uy := Fold(math.Cos(a)*0.8, math.Sin(a)*0.8, blades, 0)
		vx, vy := Fold(math.Cos(b)*0.8, math.Sin(b)*0.8, blades, 0)
		if math.Abs(ux-vx) > 1e-9 || math.Abs(uy-vy) > 1e-9 {
			t.Errorf("d=%v: (%v,%v) != (%v,%v)", d, ux, uy, vx, vy)
		}
	}
}

func TestCompositor_InvalidMode(t *testing.T) {
	c := &Compositor{Mode: Mode(42)}
	if err := c.Validate(); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("Validate = %v, want ErrInvalidMode", err)
	}
	out := make([]float32, 4)
	if err := c.Shade(0, 0, []field.View{solid(t, 1, 1, 0)}, out); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("Shade = %v, want ErrInvalidMode", err)
	}
}

func TestCompositor_MissingSource(t *testing.T) {
	out := make([]float32, 4)
	c := &Compositor{Mode: ModeInterleave}
	if err := c.Shade(0, 0, []field.View{solid(t, 1, 1, 0, 0, 0)}, out); !errors.Is(err, ErrMissingSource) {
		t.Errorf("interleave with one source = %v", err)
	}
	d := &Compositor{Mode: ModeDifference}
	if err := d.Shade(0, 0, []field.View{solid(t, 1, 1, 0)}, out); !errors.Is(err, ErrMissingSource) {
		t.Errorf("difference on one channel = %v", err)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"difference", ModeDifference, false},
		{"Motion_Masked", ModeMotionMasked, false},
		{"4", ModeHue, false},
		{"kaleidoscope-interleave", ModeKaleidoscopeInterleave, false},
		{"12", 0, true},
		{"sepia", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidMode) {
				t.Errorf("ParseMode(%q) err = %v, want ErrInvalidMode", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseMode(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
}
