// Package snapshot exports display frames as PNG files.
package snapshot

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/pthm-cable/fieldfx/field"
)

// Encode converts v to an image scaled by scale (nearest neighbour, so
// individual texels stay sharp). scale <= 0 is treated as 1.
func Encode(v field.View, scale float64, flipY bool) *image.RGBA {
	src := field.ToImage(v, flipY)
	if scale <= 0 || scale == 1 {
		return src
	}
	w := max(int(float64(v.Width())*scale+0.5), 1)
	h := max(int(float64(v.Height())*scale+0.5), 1)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// Save writes v to path as a PNG.
func Save(path string, v field.View, scale float64, flipY bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := png.Encode(f, Encode(v, scale, flipY)); err != nil {
		f.Close()
		return fmt.Errorf("snapshot: encoding %s: %w", path, err)
	}
	return f.Close()
}

// Writer is a pipeline.Sink writing every Nth frame to
// dir/frame_000000.png, numbered by presented frame.
type Writer struct {
	dir   string
	every int
	scale float64
	flipY bool

	frames  uint64
	written int
}

// NewWriter creates dir if needed. every < 1 means every frame.
func NewWriter(dir string, every int, scale float64, flipY bool) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("snapshot: creating %s: %w", dir, err)
	}
	return &Writer{dir: dir, every: max(every, 1), scale: scale, flipY: flipY}, nil
}

// Present implements pipeline.Sink.
func (w *Writer) Present(v field.View) error {
	n := w.frames
	w.frames++
	if n%uint64(w.every) != 0 {
		return nil
	}
	if err := Save(w.Path(n), v, w.scale, w.flipY); err != nil {
		return err
	}
	w.written++
	return nil
}

// Path returns the file name used for presented frame n.
func (w *Writer) Path(n uint64) string {
	return filepath.Join(w.dir, fmt.Sprintf("frame_%06d.png", n))
}

// Written returns how many files have been written.
func (w *Writer) Written() int { return w.written }
