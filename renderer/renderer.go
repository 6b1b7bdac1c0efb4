package renderer

import (
	"fmt"
	"log"

	"github.com/richinsley/lightv/graphics"
)

// FrameFunc draws one frame. nowMs is the context clock in milliseconds and
// the framebuffer size is the visible surface.
type FrameFunc func(nowMs float64, fbWidth, fbHeight int)

// Renderer owns the GL context and the shared fullscreen quad.
type Renderer struct {
	context graphics.Context
	quad    *Quad
	frames  int64
}

func NewRenderer(ctx graphics.Context) (*Renderer, error) {
	ctx.MakeCurrent()
	if err := InitGL(); err != nil {
		return nil, err
	}
	r := &Renderer{
		context: ctx,
		quad:    NewQuad(),
	}
	w, h := ctx.GetFramebufferSize()
	log.Printf("Renderer: framebuffer %dx%d, gles=%v", w, h, ctx.IsGLES())
	return r, nil
}

func (r *Renderer) Quad() *Quad { return r.quad }

func (r *Renderer) IsGLES() bool { return r.context.IsGLES() }

func (r *Renderer) FramebufferSize() (int, int) { return r.context.GetFramebufferSize() }

// Frames is the number of frames presented so far.
func (r *Renderer) Frames() int64 { return r.frames }

// Run drives frame once per display refresh until the context closes or
// maxFrames frames have been drawn; maxFrames <= 0 means no limit.
func (r *Renderer) Run(maxFrames int, frame FrameFunc) error {
	if frame == nil {
		return fmt.Errorf("renderer: nil frame function")
	}
	for !r.context.ShouldClose() {
		if maxFrames > 0 && r.frames >= int64(maxFrames) {
			break
		}
		w, h := r.context.GetFramebufferSize()
		frame(r.context.Time()*1000, w, h)
		r.context.EndFrame()
		r.frames++
	}
	return nil
}

func (r *Renderer) Shutdown() {
	r.quad.Destroy()
	r.context.Shutdown()
}
