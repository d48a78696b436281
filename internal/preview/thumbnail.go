package preview

import (
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/ivlev/scene2video/internal/system"
)

// Thumbnailer scales rendered previews down. A session renders every
// preview at one size, so the scaled buffer is reused between calls.
type Thumbnailer struct {
	pool *system.ImagePool
}

func NewThumbnailer() *Thumbnailer {
	return &Thumbnailer{pool: system.NewImagePool(2)}
}

// Reused reports how many thumbnails were drawn into a recycled buffer.
func (t *Thumbnailer) Reused() int { return t.pool.Reused() }

// Write scales the image at src to width pixels, keeping its aspect ratio,
// and writes it to dst as PNG.
func (t *Thumbnailer) Write(src, dst string, width int) error {
	if width <= 0 {
		return fmt.Errorf("thumbnail width must be positive, got %d", width)
	}

	f, err := os.Open(src)
	if err != nil {
		return err
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("decode %s: %w", src, err)
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return fmt.Errorf("decode %s: empty image", src)
	}
	height := max(1, (b.Dy()*width+b.Dx()/2)/b.Dx())

	rect := image.Rect(0, 0, width, height)
	out := t.pool.Get(rect)
	defer t.pool.Put(out)
	draw.CatmullRom.Scale(out, rect, img, b, draw.Src, nil)

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	w, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := png.Encode(w, out); err != nil {
		w.Close()
		return fmt.Errorf("encode %s: %w", dst, err)
	}
	return w.Close()
}
