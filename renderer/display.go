package renderer

import (
	"image/color"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/fieldfx/camera"
	"github.com/pthm-cable/fieldfx/field"
)

// Display presents the display field as a texture stretched over the window.
// Present uploads, Draw blits; both must run on the raylib thread.
type Display struct {
	tex        rl.Texture2D
	texW, texH int
	pixels     []color.RGBA

	flipY            bool
	smooth           bool
	screenW, screenH float32
	initialized      bool
}

// NewDisplay creates a display for a window of screenW×screenH. flipY
// uploads rows bottom-up; smooth selects bilinear filtering.
func NewDisplay(screenW, screenH int32, flipY, smooth bool) *Display {
	return &Display{
		screenW: float32(screenW),
		screenH: float32(screenH),
		flipY:   flipY,
		smooth:  smooth,
	}
}

// Init creates the backing texture (must be called after the raylib window
// is created).
func (d *Display) Init(w, h int) {
	if d.initialized {
		return
	}

	d.texW = w
	d.texH = h

	img := rl.GenImageColor(w, h, rl.Black)
	d.tex = rl.LoadTextureFromImage(img)
	if d.smooth {
		rl.SetTextureFilter(d.tex, rl.FilterBilinear)
	} else {
		rl.SetTextureFilter(d.tex, rl.FilterPoint)
	}
	rl.SetTextureWrap(d.tex, rl.WrapRepeat)
	rl.UnloadImage(img)

	d.initialized = true
}

// Resize updates the window dimensions the texture is stretched over.
func (d *Display) Resize(w, h float32) {
	d.screenW = w
	d.screenH = h
}

// Present implements pipeline.Sink. The texture is recreated when the
// field extent changes.
func (d *Display) Present(v field.View) error {
	if d.initialized && (v.Width() != d.texW || v.Height() != d.texH) {
		d.Unload()
	}
	if !d.initialized {
		d.Init(v.Width(), v.Height())
	}

	d.pixels = field.ToRGBA(v, d.pixels, d.flipY)
	rl.UpdateTexture(d.tex, d.pixels)
	return nil
}

// Draw renders the part of the last presented frame that cam sees, or the
// whole frame when cam is nil. The texture repeats, so views that cross the
// field edge wrap.
func (d *Display) Draw(cam *camera.Camera) {
	if !d.initialized {
		return
	}
	src := rl.Rectangle{X: 0, Y: 0, Width: float32(d.texW), Height: float32(d.texH)}
	if cam != nil {
		src.X, src.Y, src.Width, src.Height = cam.SourceRect()
	}
	dst := rl.Rectangle{X: 0, Y: 0, Width: d.screenW, Height: d.screenH}
	rl.DrawTexturePro(d.tex, src, dst, rl.Vector2{}, 0, rl.White)
}

// Unload frees GPU resources.
func (d *Display) Unload() {
	if !d.initialized {
		return
	}
	rl.UnloadTexture(d.tex)
	d.initialized = false
}
