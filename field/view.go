package field

import "math"

// View is a read-only borrow of a Field. The zero View is invalid.
type View struct {
	f *Field
}

// Valid reports whether the view refers to storage.
func (v View) Valid() bool { return v.f != nil }

// ID returns the storage identity of the underlying Field.
func (v View) ID() uint64 { return v.f.id }

// Shape returns the underlying Field's shape.
func (v View) Shape() Shape { return v.f.shape }

// Width returns the horizontal extent in texels.
func (v View) Width() int { return v.f.shape.Width }

// Height returns the vertical extent in texels.
func (v View) Height() int { return v.f.shape.Height }

// Channels returns the number of channels per texel.
func (v View) Channels() int { return v.f.shape.Channels }

// At returns channel c at (x, y). Coordinates must be in range.
func (v View) At(x, y, c int) float32 {
	return v.f.data[(y*v.f.shape.Width+x)*v.f.shape.Channels+c]
}

// Get returns channel c at (x, y), resolving out-of-range coordinates with e.
func (v View) Get(x, y, c int, e Edge) float32 {
	xx, okX := Resolve(x, v.f.shape.Width, e)
	yy, okY := Resolve(y, v.f.shape.Height, e)
	if !okX || !okY {
		return 0
	}
	return v.At(xx, yy, c)
}

// Fetch copies the texel at (x, y) into dst, resolving coordinates with e.
// Channels beyond the Field's width are left untouched.
func (v View) Fetch(x, y int, e Edge, dst []float32) {
	n := min(len(dst), v.f.shape.Channels)
	xx, okX := Resolve(x, v.f.shape.Width, e)
	yy, okY := Resolve(y, v.f.shape.Height, e)
	if !okX || !okY {
		clear(dst[:n])
		return
	}
	i := (yy*v.f.shape.Width + xx) * v.f.shape.Channels
	copy(dst[:n], v.f.data[i:i+n])
}

// SampleUV bilinearly samples normalized coordinates (texel centres at
// (i+0.5)/extent) into dst, resolving neighbours with e.
func (v View) SampleUV(u, w float64, e Edge, dst []float32) {
	fx := u*float64(v.f.shape.Width) - 0.5
	fy := w*float64(v.f.shape.Height) - 0.5

	x0f := math.Floor(fx)
	y0f := math.Floor(fy)
	tx := float32(fx - x0f)
	ty := float32(fy - y0f)
	x0 := int(x0f)
	y0 := int(y0f)

	n := min(len(dst), v.f.shape.Channels)
	for c := 0; c < n; c++ {
		a := v.Get(x0, y0, c, e)
		b := v.Get(x0+1, y0, c, e)
		cc := v.Get(x0, y0+1, c, e)
		d := v.Get(x0+1, y0+1, c, e)

		top := a + (b-a)*tx
		bot := cc + (d-cc)*tx
		dst[c] = top + (bot-top)*ty
	}
}

// Channel appends channel c of every texel to dst as float64 and returns it.
func (v View) Channel(c int, dst []float64) []float64 {
	ch := v.f.shape.Channels
	for i := c; i < len(v.f.data); i += ch {
		dst = append(dst, float64(v.f.data[i]))
	}
	return dst
}

// Equal reports whether both views hold identical shapes and contents.
func (v View) Equal(o View) bool {
	if v.f.shape != o.f.shape {
		return false
	}
	for i := range v.f.data {
		if v.f.data[i] != o.f.data[i] {
			return false
		}
	}
	return true
}
