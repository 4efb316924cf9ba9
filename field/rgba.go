package field

import (
	"image"
	"image/color"
)

// ToRGBA converts v into 8-bit pixels, reusing dst when it is large enough.
// Single-channel fields render as grey; alpha is taken from channel 3 when
// present and is opaque otherwise. flipY writes rows bottom-up, matching
// texture-space origin conventions.
func ToRGBA(v View, dst []color.RGBA, flipY bool) []color.RGBA {
	w, h := v.Width(), v.Height()
	if cap(dst) < w*h {
		dst = make([]color.RGBA, w*h)
	}
	dst = dst[:w*h]

	ch := v.Channels()
	var texel [MaxChannels]float32
	for y := 0; y < h; y++ {
		row := y
		if flipY {
			row = h - 1 - y
		}
		for x := 0; x < w; x++ {
			v.Fetch(x, y, EdgeClamp, texel[:ch])
			var px color.RGBA
			switch ch {
			case 1:
				g := to8(texel[0])
				px = color.RGBA{R: g, G: g, B: g, A: 255}
			case 2:
				px = color.RGBA{R: to8(texel[0]), G: to8(texel[1]), A: 255}
			case 3:
				px = color.RGBA{R: to8(texel[0]), G: to8(texel[1]), B: to8(texel[2]), A: 255}
			default:
				px = color.RGBA{R: to8(texel[0]), G: to8(texel[1]), B: to8(texel[2]), A: to8(texel[3])}
			}
			dst[row*w+x] = px
		}
	}
	return dst
}

// ToImage converts v into a new image.RGBA.
func ToImage(v View, flipY bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, v.Width(), v.Height()))
	pixels := ToRGBA(v, nil, flipY)
	for i, px := range pixels {
		j := i * 4
		img.Pix[j+0] = px.R
		img.Pix[j+1] = px.G
		img.Pix[j+2] = px.B
		img.Pix[j+3] = px.A
	}
	return img
}

func to8(v float32) uint8 {
	if v != v || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
