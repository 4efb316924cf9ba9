package field

import (
	"errors"
	"math"
	"testing"
)

func newTestField(t *testing.T, w, h, ch int) *Field {
	t.Helper()
	f, err := NewHeapAllocator(0).Allocate(Shape{Width: w, Height: h, Channels: ch})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	return f
}

func TestShape_Validate(t *testing.T) {
	tests := []struct {
		shape Shape
		ok    bool
	}{
		{Shape{4, 4, 1}, true},
		{Shape{4, 4, 4}, true},
		{Shape{0, 4, 1}, false},
		{Shape{4, -1, 1}, false},
		{Shape{4, 4, 0}, false},
		{Shape{4, 4, 5}, false},
	}
	for _, tt := range tests {
		err := tt.shape.Validate()
		if (err == nil) != tt.ok {
			t.Errorf("Validate(%v) = %v, want ok=%v", tt.shape, err, tt.ok)
		}
		if err != nil && !errors.Is(err, ErrInvalidShape) {
			t.Errorf("Validate(%v) error %v does not wrap ErrInvalidShape", tt.shape, err)
		}
	}
}

func TestResolve_Policies(t *testing.T) {
	tests := []struct {
		i    int
		e    Edge
		want int
		ok   bool
	}{
		{-1, EdgeWrap, 4, true},
		{5, EdgeWrap, 0, true},
		{-11, EdgeWrap, 4, true},
		{-1, EdgeClamp, 0, true},
		{9, EdgeClamp, 4, true},
		{-1, EdgeZero, 0, false},
		{5, EdgeZero, 0, false},
		{3, EdgeZero, 3, true},
	}
	for _, tt := range tests {
		got, ok := Resolve(tt.i, 5, tt.e)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Resolve(%d, 5, %v) = (%d, %v), want (%d, %v)", tt.i, tt.e, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseEdge(t *testing.T) {
	for in, want := range map[string]Edge{"": EdgeWrap, "wrap": EdgeWrap, "Clamp": EdgeClamp, "zero": EdgeZero} {
		got, err := ParseEdge(in)
		if err != nil || got != want {
			t.Errorf("ParseEdge(%q) = (%v, %v), want %v", in, got, err, want)
		}
	}
	if _, err := ParseEdge("mirror"); err == nil {
		t.Error("expected error for unknown edge policy")
	}
}

func TestView_FetchEdges(t *testing.T) {
	f := newTestField(t, 3, 2, 2)
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			tx := f.Texel(x, y)
			tx[0] = float32(y*3 + x)
			tx[1] = -1
		}
	}
	v := f.View()

	dst := make([]float32, 2)
	v.Fetch(-1, 0, EdgeWrap, dst)
	if dst[0] != 2 {
		t.Errorf("wrap fetch = %v, want 2", dst[0])
	}
	v.Fetch(-1, 5, EdgeClamp, dst)
	if dst[0] != 3 {
		t.Errorf("clamp fetch = %v, want 3", dst[0])
	}
	v.Fetch(3, 0, EdgeZero, dst)
	if dst[0] != 0 || dst[1] != 0 {
		t.Errorf("zero fetch = %v, want [0 0]", dst)
	}
	if got := v.Get(1, 1, 0, EdgeWrap); got != 4 {
		t.Errorf("Get = %v, want 4", got)
	}
}

func TestView_SampleUVTexelCentre(t *testing.T) {
	f := newTestField(t, 4, 4, 1)
	f.Texel(2, 1)[0] = 1
	v := f.View()

	dst := make([]float32, 1)
	v.SampleUV((2+0.5)/4, (1+0.5)/4, EdgeClamp, dst)
	if math.Abs(float64(dst[0])-1) > 1e-6 {
		t.Errorf("sample at texel centre = %v, want 1", dst[0])
	}
	v.SampleUV(2.0/4, (1+0.5)/4, EdgeClamp, dst)
	if math.Abs(float64(dst[0])-0.5) > 1e-6 {
		t.Errorf("sample between texels = %v, want 0.5", dst[0])
	}
}

func TestHeapAllocator_Budget(t *testing.T) {
	shape := Shape{Width: 8, Height: 8, Channels: 4}
	a := NewHeapAllocator(shape.Bytes() * 2)

	f1, err := a.Allocate(shape)
	if err != nil {
		t.Fatalf("first allocate: %v", err)
	}
	if _, err := a.Allocate(shape); err != nil {
		t.Fatalf("second allocate: %v", err)
	}

	_, err = a.Allocate(shape)
	var allocErr *AllocationError
	if !errors.As(err, &allocErr) {
		t.Fatalf("expected AllocationError, got %v", err)
	}
	if !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("expected ErrOutOfMemory, got %v", err)
	}

	a.Release(f1)
	if _, err := a.Allocate(shape); err != nil {
		t.Errorf("allocate after release: %v", err)
	}
	if a.Live() != 2 {
		t.Errorf("Live = %d, want 2", a.Live())
	}
}

func TestHeapAllocator_InvalidShape(t *testing.T) {
	_, err := NewHeapAllocator(0).Allocate(Shape{Width: 0, Height: 4, Channels: 1})
	if !errors.Is(err, ErrInvalidShape) {
		t.Errorf("expected ErrInvalidShape, got %v", err)
	}
}

func TestField_UniqueIDs(t *testing.T) {
	a := newTestField(t, 2, 2, 1)
	b := newTestField(t, 2, 2, 1)
	if a.ID() == b.ID() {
		t.Error("expected distinct storage identities")
	}
}

func TestToRGBA_FlipAndGrey(t *testing.T) {
	f := newTestField(t, 1, 2, 1)
	f.Texel(0, 0)[0] = 1
	f.Texel(0, 1)[0] = 0

	px := ToRGBA(f.View(), nil, false)
	if px[0].R != 255 || px[1].R != 0 || px[0].A != 255 {
		t.Errorf("unexpected pixels %v", px)
	}
	px = ToRGBA(f.View(), px, true)
	if px[0].R != 0 || px[1].R != 255 {
		t.Errorf("flip did not reverse rows: %v", px)
	}
}
