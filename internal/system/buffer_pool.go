package system

import (
	"image"
	"sync"
)

// ImagePool keeps scaled-image buffers between renders of one session.
// Buffers are keyed by size; at most perSize idle buffers are kept for each.
type ImagePool struct {
	mu      sync.Mutex
	idle    map[image.Point][]*image.RGBA
	perSize int
	reused  int
}

func NewImagePool(perSize int) *ImagePool {
	return &ImagePool{idle: make(map[image.Point][]*image.RGBA), perSize: max(1, perSize)}
}

// Get returns an image with bounds rect. A reused image keeps its old pixels.
func (p *ImagePool) Get(rect image.Rectangle) *image.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()

	size := rect.Size()
	if free := p.idle[size]; len(free) > 0 {
		img := free[len(free)-1]
		p.idle[size] = free[:len(free)-1]
		p.reused++
		img.Rect = rect
		return img
	}
	return image.NewRGBA(rect)
}

func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil || img.Rect.Empty() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	size := img.Rect.Size()
	if len(p.idle[size]) < p.perSize {
		p.idle[size] = append(p.idle[size], img)
	}
}

// Reused counts the Get calls served from an idle buffer.
func (p *ImagePool) Reused() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reused
}
