package output

import (
	"github.com/richinsley/lightv/renderer"
)

// Capture reads a render target back every frame and forwards the pixels
// to a sink. Frames arrive a few frames late because of the readback ring.
type Capture struct {
	rb   *renderer.Readback
	sink Sink
}

func NewCapture(sink Sink, buffers int) (*Capture, error) {
	rb, err := renderer.NewReadback(1, 1, max(buffers, renderer.MinReadbackBuffers))
	if err != nil {
		return nil, err
	}
	return &Capture{rb: rb, sink: sink}, nil
}

// Grab must run on the GL thread after the target has been rendered.
func (c *Capture) Grab(t *renderer.Target) error {
	pix, w, h, ok, err := c.rb.Read(t)
	if err != nil || !ok {
		return err
	}
	return c.sink.WriteFrame(pix, w, h)
}

// Destroy releases the GL buffers and closes the sink.
func (c *Capture) Destroy() error {
	c.rb.Destroy()
	return c.sink.Close()
}
