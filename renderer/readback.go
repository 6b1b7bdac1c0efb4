package renderer

import (
	"fmt"
	"log"

	gl "github.com/go-gl/gl/v4.1-core/gl"
)

// MinReadbackBuffers is the smallest pixel-pack ring that lets a read
// overlap with the next frame's rendering.
const MinReadbackBuffers = 2

// Readback copies a Target into CPU memory through a ring of pixel pack
// buffers. Each call issues an asynchronous read into one buffer and maps
// the oldest one, so the pixels returned lag the rendered frame by
// len(pbos)-1 frames.
type Readback struct {
	pbos    []uint32
	index   int
	pending int
	width   int
	height  int
}

func NewReadback(width, height, numPBOs int) (*Readback, error) {
	if numPBOs < MinReadbackBuffers {
		return nil, fmt.Errorf("number of PBOs must be at least %d", MinReadbackBuffers)
	}
	rb := &Readback{pbos: make([]uint32, numPBOs)}
	gl.GenBuffers(int32(numPBOs), &rb.pbos[0])
	rb.allocate(width, height)
	return rb, nil
}

func (rb *Readback) allocate(width, height int) {
	rb.width, rb.height = max(width, 1), max(height, 1)
	size := rb.width * rb.height * 4
	for _, pbo := range rb.pbos {
		gl.BindBuffer(gl.PIXEL_PACK_BUFFER, pbo)
		gl.BufferData(gl.PIXEL_PACK_BUFFER, size, nil, gl.STREAM_READ)
	}
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)
	rb.index = 0
	rb.pending = 0
	log.Printf("Readback: %d buffers of %dx%d", len(rb.pbos), rb.width, rb.height)
}

func (rb *Readback) Size() (int, int) { return rb.width, rb.height }

// Read queues a copy of t and returns the oldest completed frame. ok is
// false while the ring is still filling, and after a size change, which
// drops every queued frame.
func (rb *Readback) Read(t *Target) (pix []byte, width, height int, ok bool, err error) {
	tw, th := t.Size()
	if tw != rb.width || th != rb.height {
		rb.allocate(tw, th)
	}
	size := rb.width * rb.height * 4

	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, t.fbo)
	gl.ReadBuffer(gl.COLOR_ATTACHMENT0)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, rb.pbos[rb.index])
	gl.ReadPixels(0, 0, int32(rb.width), int32(rb.height), gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)

	oldest := (rb.index + 1) % len(rb.pbos)
	rb.index = oldest
	if rb.pending < len(rb.pbos)-1 {
		rb.pending++
		gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)
		return nil, 0, 0, false, nil
	}

	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, rb.pbos[oldest])
	ptr := gl.MapBufferRange(gl.PIXEL_PACK_BUFFER, 0, size, gl.MAP_READ_BIT)
	if ptr == nil {
		gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)
		return nil, 0, 0, false, fmt.Errorf("failed to map PBO %d", oldest)
	}
	pix = make([]byte, size)
	copy(pix, (*[1 << 30]byte)(ptr)[:size:size])
	gl.UnmapBuffer(gl.PIXEL_PACK_BUFFER)
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)
	return pix, rb.width, rb.height, true, nil
}

func (rb *Readback) Destroy() {
	if len(rb.pbos) > 0 {
		gl.DeleteBuffers(int32(len(rb.pbos)), &rb.pbos[0])
		rb.pbos = nil
	}
}
