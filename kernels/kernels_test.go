package kernels

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/pthm-cable/fieldfx/field"
)

type kernel interface {
	Eval(x, y int, src []field.View, out []float32) error
}

func alloc(t *testing.T, w, h, ch int) *field.Field {
	t.Helper()
	f, err := field.NewHeapAllocator(0).Allocate(field.Shape{Width: w, Height: h, Channels: ch})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	return f
}

// apply evaluates k over every pixel into a fresh field of outCh channels.
func apply(t *testing.T, k kernel, src []field.View, w, h, outCh int) *field.Field {
	t.Helper()
	dst := alloc(t, w, h, outCh)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if err := k.Eval(x, y, src, dst.Texel(x, y)); err != nil {
				t.Fatalf("eval (%d,%d): %v", x, y, err)
			}
		}
	}
	return dst
}

func channelSum(f *field.Field, c int) float64 {
	var s float64
	for y := 0; y < f.Height(); y++ {
		for x := 0; x < f.Width(); x++ {
			s += float64(f.Texel(x, y)[c])
		}
	}
	return s
}

func TestGrayScott_WrapConservesMass(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	in := alloc(t, 16, 16, 2)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			tx := in.Texel(x, y)
			tx[0] = rng.Float32()
			tx[1] = 0
		}
	}

	k := GrayScott{DiffusionA: 1.0, DiffusionB: 0.5, DT: 0.2, Edge: field.EdgeWrap}
	out := apply(t, k, []field.View{in.View()}, 16, 16, 2)

	before, after := channelSum(in, 0), channelSum(out, 0)
	if math.Abs(before-after) > 1e-3 {
		t.Errorf("mass of a changed: %v -> %v", before, after)
	}
}

func TestGrayScott_WrapConservesTotalWithReaction(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	in := alloc(t, 12, 12, 2)
	for y := 0; y < 12; y++ {
		for x := 0; x < 12; x++ {
			tx := in.Texel(x, y)
			tx[0] = rng.Float32()
			tx[1] = rng.Float32()
		}
	}

	for _, st := range []Stencil{StencilNinePoint, StencilFivePoint} {
		k := GrayScott{DiffusionA: 1.0, DiffusionB: 0.5, DT: 0.1, Edge: field.EdgeWrap, Stencil: st}
		out := apply(t, k, []field.View{in.View()}, 12, 12, 2)

		before := channelSum(in, 0) + channelSum(in, 1)
		after := channelSum(out, 0) + channelSum(out, 1)
		if math.Abs(before-after) > 1e-3 {
			t.Errorf("stencil %d: total mass changed: %v -> %v", st, before, after)
		}
	}
}

func TestGrayScott_ClampedStaysInUnitRange(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	in := alloc(t, 10, 10, 2)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			tx := in.Texel(x, y)
			tx[0] = (rng.Float32() - 0.5) * 200
			tx[1] = (rng.Float32() - 0.5) * 200
		}
	}

	for _, edge := range []field.Edge{field.EdgeWrap, field.EdgeClamp, field.EdgeZero} {
		k := GrayScott{DiffusionA: 1, DiffusionB: 0.5, Feed: 0.055, Kill: 0.062, DT: 5, Edge: edge, Clamp: true}
		out := apply(t, k, []field.View{in.View()}, 10, 10, 2)
		for _, v := range out.Data() {
			if v < 0 || v > 1 {
				t.Fatalf("edge %v: clamped output %v outside [0,1]", edge, v)
			}
		}
	}
}

func TestGrayScott_RawIsUnclamped(t *testing.T) {
	in := alloc(t, 3, 3, 2)
	in.Fill(1, 0)
	in.Texel(1, 1)[1] = 5

	k := GrayScott{DiffusionA: 1, DiffusionB: 0.5, DT: 1, Edge: field.EdgeWrap}
	out := apply(t, k, []field.View{in.View()}, 3, 3, 2)
	if out.Texel(1, 1)[1] <= 1 && out.Texel(1, 1)[0] >= 0 {
		t.Errorf("expected raw update to leave [0,1], got %v", out.Texel(1, 1))
	}
}

func TestGrayScott_EdgePoliciesDifferAtBorder(t *testing.T) {
	in := alloc(t, 4, 4, 2)
	in.Fill(1, 0.5)

	results := map[field.Edge]float32{}
	for _, e := range []field.Edge{field.EdgeWrap, field.EdgeClamp, field.EdgeZero} {
		k := GrayScott{DiffusionA: 1, DiffusionB: 0.5, DT: 1, Edge: e}
		out := apply(t, k, []field.View{in.View()}, 4, 4, 2)
		results[e] = out.Texel(0, 0)[0]
	}
	// On a uniform field wrap and clamp see no gradient; zero padding does.
	if results[field.EdgeWrap] != results[field.EdgeClamp] {
		t.Errorf("wrap %v != clamp %v on uniform field", results[field.EdgeWrap], results[field.EdgeClamp])
	}
	if results[field.EdgeZero] == results[field.EdgeWrap] {
		t.Error("zero padding should change the border result")
	}
}

func TestGrayScott_MissingInput(t *testing.T) {
	narrow := alloc(t, 2, 2, 1)
	err := GrayScott{}.Eval(0, 0, []field.View{narrow.View()}, make([]float32, 2))
	if !errors.Is(err, ErrMissingInput) {
		t.Errorf("expected ErrMissingInput, got %v", err)
	}
}

func TestDecay_UniformFieldScales(t *testing.T) {
	in := alloc(t, 5, 5, 1)
	in.Fill(0.8)

	for _, blur := range []Blur{BlurBox, BlurWeighted} {
		k := Decay{Blur: blur, Decay: 0.5, Edge: field.EdgeWrap}
		out := apply(t, k, []field.View{in.View()}, 5, 5, 1)
		for _, v := range out.Data() {
			if math.Abs(float64(v)-0.4) > 1e-6 {
				t.Fatalf("blur %d: got %v, want 0.4", blur, v)
			}
		}
	}
}

func TestDecay_StencilShapes(t *testing.T) {
	in := alloc(t, 3, 3, 1)
	in.Texel(1, 1)[0] = 1

	box := apply(t, Decay{Blur: BlurBox, Decay: 1}, []field.View{in.View()}, 3, 3, 1)
	if got := box.Texel(0, 0)[0]; math.Abs(float64(got)-1.0/9) > 1e-6 {
		t.Errorf("box corner = %v, want 1/9", got)
	}

	weighted := apply(t, Decay{Blur: BlurWeighted, Decay: 1}, []field.View{in.View()}, 3, 3, 1)
	if got := weighted.Texel(1, 1)[0]; math.Abs(float64(got)-4.0/16) > 1e-6 {
		t.Errorf("weighted centre = %v, want 4/16", got)
	}
	if got := weighted.Texel(1, 0)[0]; math.Abs(float64(got)-2.0/16) > 1e-6 {
		t.Errorf("weighted edge = %v, want 2/16", got)
	}
	if got := weighted.Texel(0, 0)[0]; math.Abs(float64(got)-1.0/16) > 1e-6 {
		t.Errorf("weighted corner = %v, want 1/16", got)
	}
}

func TestDecay_AddsDeposit(t *testing.T) {
	trail := alloc(t, 3, 3, 1)
	deposit := alloc(t, 3, 3, 1)
	deposit.Texel(2, 2)[0] = 0.25

	out := apply(t, Decay{Decay: 0.9}, []field.View{trail.View(), deposit.View()}, 3, 3, 1)
	if got := out.Texel(2, 2)[0]; got != 0.25 {
		t.Errorf("deposit not added: %v", got)
	}
}

func TestEdgeDetect_SpikeAndFlat(t *testing.T) {
	in := alloc(t, 5, 5, 4)
	in.Fill(0.5, 0.5, 0.5, 1)

	flat := apply(t, EdgeDetect{Edge: field.EdgeClamp}, []field.View{in.View()}, 5, 5, 4)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			tx := flat.Texel(x, y)
			if tx[0] != 0 || tx[1] != 0 || tx[2] != 0 || tx[3] != 1 {
				t.Fatalf("flat field edge at (%d,%d) = %v", x, y, tx)
			}
		}
	}

	in.Fill(0, 0, 0, 1)
	in.Texel(2, 2)[0] = 1
	spike := apply(t, EdgeDetect{Edge: field.EdgeClamp}, []field.View{in.View()}, 5, 5, 4)
	if got := spike.Texel(2, 2)[0]; got != 8 {
		t.Errorf("centre = %v, want 8", got)
	}
	if got := spike.Texel(1, 1)[0]; got != -1 {
		t.Errorf("neighbour = %v, want -1", got)
	}
}

func TestEdgeDetect_MergeTakesChannelPerSource(t *testing.T) {
	srcs := make([]field.View, 3)
	for i := range srcs {
		f := alloc(t, 3, 3, 4)
		f.Texel(1, 1)[i] = float32(i + 1)
		srcs[i] = f.View()
	}

	out := apply(t, EdgeDetect{Merge: true}, srcs, 3, 3, 4)
	got := out.Texel(1, 1)
	if got[0] != 8 || got[1] != 16 || got[2] != 24 || got[3] != 1 {
		t.Errorf("merged centre = %v, want [8 16 24 1]", got)
	}

	if err := (EdgeDetect{Merge: true}).Eval(0, 0, srcs[:2], make([]float32, 4)); !errors.Is(err, ErrMissingInput) {
		t.Errorf("expected ErrMissingInput with two sources, got %v", err)
	}
}

func TestDefaultE(t *testing.T) {
	if got := DefaultE(); math.Abs(got-0.467911) > 1e-5 {
		t.Errorf("DefaultE = %v, want ~0.467911", got)
	}
}

func TestCircleIterations_OriginReturns(t *testing.T) {
	n := CircleIterations(0, 0, 1, DefaultE(), DefaultIterationCeiling)
	if n < 1 || n >= DefaultIterationCeiling {
		t.Fatalf("origin did not return within ceiling: %d", n)
	}
	if again := CircleIterations(0, 0, 1, DefaultE(), DefaultIterationCeiling); again != n {
		t.Errorf("non-deterministic count: %d then %d", n, again)
	}
}

func TestCircleIterations_Deterministic(t *testing.T) {
	for _, p := range [][2]int{{5, 3}, {-12, 40}, {100, -7}} {
		a := CircleIterations(p[0], p[1], 1, DefaultE(), DefaultIterationCeiling)
		b := CircleIterations(p[0], p[1], 1, DefaultE(), DefaultIterationCeiling)
		if a != b {
			t.Errorf("%v: %d != %d", p, a, b)
		}
		if a < 1 || a > DefaultIterationCeiling {
			t.Errorf("%v: count %d outside [1, ceiling]", p, a)
		}
	}
	if got := CircleIterations(5, 3, 1, DefaultE(), 4096); got < 2 {
		t.Errorf("(5,3) cannot return after one step, got %d", got)
	}
	if got := CircleIterations(5, 3, 1, DefaultE(), 1); got != 1 {
		t.Errorf("ceiling not honoured: %d", got)
	}
}

func TestLattice_UsesOriginAndDefaults(t *testing.T) {
	k := Lattice{D: 1, OriginX: -2, OriginY: -2}
	out := make([]float32, 1)
	if err := k.Eval(2, 2, nil, out); err != nil {
		t.Fatalf("eval: %v", err)
	}
	want := CircleIterations(0, 0, 1, DefaultE(), DefaultIterationCeiling)
	if int(out[0]) != want {
		t.Errorf("lattice at origin = %v, want %d", out[0], want)
	}
}

func TestParsers(t *testing.T) {
	if s, err := ParseStencil("cartesian"); err != nil || s != StencilFivePoint {
		t.Errorf("ParseStencil(cartesian) = %v, %v", s, err)
	}
	if b, err := ParseBlur("weighted"); err != nil || b != BlurWeighted {
		t.Errorf("ParseBlur(weighted) = %v, %v", b, err)
	}
	if _, err := ParseBlur("median"); err == nil {
		t.Error("expected error for unknown blur")
	}
}
