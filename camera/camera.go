// Package camera maps the window onto a field for pan and zoom.
package camera

import "math"

// Camera is a view into a toroidal field. Coordinates are in display
// texels: the field as it appears on screen, row 0 at the top.
type Camera struct {
	// Position is the view centre in texels
	X, Y float32

	// Zoom level (1.0 = whole field stretched over the viewport)
	Zoom float32

	// Viewport dimensions (screen size)
	ViewportW, ViewportH float32

	// Field dimensions in texels
	FieldW, FieldH float32

	// Zoom constraints
	MinZoom, MaxZoom float32
}

// New creates a camera centred on the field showing all of it.
func New(viewportW, viewportH, fieldW, fieldH float32) *Camera {
	return &Camera{
		X:         fieldW / 2,
		Y:         fieldH / 2,
		Zoom:      1.0,
		ViewportW: viewportW,
		ViewportH: viewportH,
		FieldW:    fieldW,
		FieldH:    fieldH,
		MinZoom:   1.0,
		MaxZoom:   16.0,
	}
}

// Scale returns screen pixels per texel along each axis.
func (c *Camera) Scale() (sx, sy float32) {
	return c.ViewportW / c.FieldW * c.Zoom, c.ViewportH / c.FieldH * c.Zoom
}

// FieldToScreen converts texel coordinates to screen coordinates, taking the
// shortest way round the torus.
func (c *Camera) FieldToScreen(fx, fy float32) (sx, sy float32) {
	kx, ky := c.Scale()
	dx := toroidalDelta(fx, c.X, c.FieldW)
	dy := toroidalDelta(fy, c.Y, c.FieldH)
	return c.ViewportW/2 + dx*kx, c.ViewportH/2 + dy*ky
}

// ScreenToField converts screen coordinates to texel coordinates wrapped
// into the field.
func (c *Camera) ScreenToField(sx, sy float32) (fx, fy float32) {
	kx, ky := c.Scale()
	dx := (sx - c.ViewportW/2) / kx
	dy := (sy - c.ViewportH/2) / ky
	return mod(c.X+dx, c.FieldW), mod(c.Y+dy, c.FieldH)
}

// SourceRect returns the visible texel rectangle. x and y may be negative or
// the rectangle may extend past the field; the texture wraps.
func (c *Camera) SourceRect() (x, y, w, h float32) {
	w = c.FieldW / c.Zoom
	h = c.FieldH / c.Zoom
	return c.X - w/2, c.Y - h/2, w, h
}

// Resize updates viewport dimensions.
func (c *Camera) Resize(viewportW, viewportH float32) {
	c.ViewportW = viewportW
	c.ViewportH = viewportH
}

// ResizeField keeps the view centred on the same relative position when the
// field extent changes.
func (c *Camera) ResizeField(fieldW, fieldH float32) {
	if fieldW == c.FieldW && fieldH == c.FieldH {
		return
	}
	c.X = c.X / c.FieldW * fieldW
	c.Y = c.Y / c.FieldH * fieldH
	c.FieldW = fieldW
	c.FieldH = fieldH
}

// Pan moves the camera by the given delta in screen pixels, wrapping around
// the field.
func (c *Camera) Pan(dx, dy float32) {
	kx, ky := c.Scale()
	c.X = mod(c.X+dx/kx, c.FieldW)
	c.Y = mod(c.Y+dy/ky, c.FieldH)
}

// SetZoom sets the zoom level, clamped to min/max.
func (c *Camera) SetZoom(zoom float32) {
	c.Zoom = clamp(zoom, c.MinZoom, c.MaxZoom)
}

// ZoomBy multiplies the current zoom by the given factor.
func (c *Camera) ZoomBy(factor float32) {
	c.SetZoom(c.Zoom * factor)
}

// Reset returns the camera to the default position and zoom.
func (c *Camera) Reset() {
	c.X = c.FieldW / 2
	c.Y = c.FieldH / 2
	c.Zoom = 1.0
}

// toroidalDelta computes the shortest signed distance from 'from' to 'to'
// in a toroidal space of the given size.
func toroidalDelta(to, from, size float32) float32 {
	d := to - from
	if d > size/2 {
		d -= size
	} else if d < -size/2 {
		d += size
	}
	return d
}

// mod computes the positive modulo (Go's % can return negative).
func mod(x, m float32) float32 {
	r := float32(math.Mod(float64(x), float64(m)))
	if r < 0 {
		r += m
	}
	return r
}

// clamp restricts a value to a range.
func clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
