// Package analysis is the region sampling mode: a test-pattern canvas or a
// single source is rendered into an offscreen target every frame and the
// regions drawn over it are sampled from that target.
package analysis

import (
	"fmt"
	"log"

	"github.com/richinsley/lightv/regions"
	"github.com/richinsley/lightv/renderer"
	"github.com/richinsley/lightv/sampling"
	"github.com/richinsley/lightv/scheduler"
	"github.com/richinsley/lightv/sources"
)

// App owns the canvas, the compositor it renders through and the color
// sampler. The source shown in SourceMode is borrowed and never disposed
// here.
type App struct {
	canvas     *Canvas
	canvasTex  uint32
	texW, texH int
	comp       *renderer.Compositor
	sampler    *renderer.ColorSampler
	regions    *regions.Manager
	sched      *scheduler.Scheduler

	source sources.Source
	nowMs  float64

	// Last framebuffer size seen by Frame, for redisplay after sampling.
	fbW, fbH int
	inFrame  bool
}

// canvasInput hands the canvas raster to the compositor 1:1.
type canvasInput struct{ a *App }

func (c canvasInput) TextureID() uint32           { return c.a.canvasTex }
func (c canvasInput) ContentSize() (int, int)     { return c.a.canvas.Size() }
func (c canvasInput) FillMode() renderer.FillMode { return renderer.Stretch }
func (c canvasInput) FlipY() bool                 { return false }
func (c canvasInput) Prefitted() bool             { return true }

// NewApp builds the GL resources for an output of width x height. The
// sampler reports through events.
func NewApp(quad *renderer.Quad, isGLES bool, width, height int, events regions.Events) (*App, error) {
	width, height = max(1, width), max(1, height)
	comp, err := renderer.NewCompositor(quad, width, height, isGLES)
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}
	sampler, err := renderer.NewColorSampler(quad, isGLES)
	if err != nil {
		comp.Destroy()
		return nil, fmt.Errorf("analysis: %w", err)
	}
	a := &App{
		canvas:  NewCanvas(width, height),
		comp:    comp,
		sampler: sampler,
		regions: regions.NewManager(sampler),
	}
	a.canvasTex = renderer.NewTexture(width, height)
	a.texW, a.texH = width, height
	a.regions.SetEvents(events)
	a.comp.SetInput(renderer.SlotA, canvasInput{a})
	a.sampler.SetSource(comp.Texture(), width, height)
	a.sampler.OnRestore(a.redisplay)
	a.sched = scheduler.New(scheduler.Hooks{
		Resize:     a.resize,
		Rescale:    func(sx, sy float64) { a.regions.ScaleContent(sx, sy) },
		Tick:       a.tick,
		Render:     a.render,
		Flush:      a.regions.Flush,
		Recompute:  a.regions.Recompute,
		HasRegions: func() bool { return a.regions.Len() > 0 },
	})
	log.Printf("Analysis: %dx%d canvas, mode %s", width, height, a.canvas.Mode())
	return a, nil
}

func (a *App) Regions() *regions.Manager { return a.regions }

func (a *App) Scheduler() *scheduler.Scheduler { return a.sched }

func (a *App) Mode() Mode { return a.canvas.Mode() }

// Target is the composited canvas the regions are sampled from.
func (a *App) Target() *renderer.Target { return a.comp.Target() }

// SetMode switches the canvas. SourceMode shows the source set with
// SetSource, or black without one.
func (a *App) SetMode(m Mode) {
	if m == a.canvas.Mode() {
		return
	}
	a.canvas.SetMode(m)
	a.bindInput()
	log.Printf("Analysis: mode %s", m)
}

// SetSource borrows src for SourceMode. The caller keeps ownership.
func (a *App) SetSource(src sources.Source) {
	a.source = src
	if src != nil {
		if w, h := a.sched.Size(); w > 0 && h > 0 {
			src.SetOutputSize(w, h)
		}
	}
	a.bindInput()
}

func (a *App) Source() sources.Source { return a.source }

func (a *App) bindInput() {
	if a.canvas.Mode() == SourceMode {
		if a.source != nil {
			a.comp.SetInput(renderer.SlotA, a.source)
		} else {
			a.comp.SetInput(renderer.SlotA, nil)
		}
		return
	}
	a.comp.SetInput(renderer.SlotA, canvasInput{a})
}

// SetSamplesPerEdge changes the sample density and resamples every region.
func (a *App) SetSamplesPerEdge(n int) { a.regions.SetSamplesPerEdge(n) }

// LockSize pins the output size, ignoring the framebuffer from then on.
func (a *App) LockSize(width, height int) { a.sched.LockSize(width, height) }

// Colors maps every region id to its most recent colors.
func (a *App) Colors() map[string][]sampling.Color {
	out := make(map[string][]sampling.Color, a.regions.Len())
	for _, r := range a.regions.Regions() {
		out[r.ID] = r.Colors
	}
	return out
}

// Frame is a renderer.FrameFunc: it runs the scheduler against the
// framebuffer size and shows the composite.
func (a *App) Frame(nowMs float64, fbWidth, fbHeight int) {
	a.nowMs = nowMs
	a.fbW, a.fbH = fbWidth, fbHeight
	a.inFrame = true
	a.sched.Frame(nowMs, fbWidth, fbHeight)
	a.inFrame = false
	a.comp.Present(fbWidth, fbHeight)
}

// redisplay shows the composite again after a sampling pass that ran
// outside Frame, such as a density change from a key binding. Inside Frame
// the closing Present does it.
func (a *App) redisplay() {
	if a.inFrame || a.fbW <= 0 || a.fbH <= 0 {
		return
	}
	a.comp.Present(a.fbW, a.fbH)
}

func (a *App) resize(width, height int) {
	a.canvas.Resize(width, height)
	a.comp.Resize(width, height)
	if a.source != nil {
		a.source.SetOutputSize(width, height)
	}
	a.sampler.SetSource(a.comp.Texture(), width, height)
}

func (a *App) tick(dtMs float64) {
	if a.canvas.Mode() == SourceMode && a.source != nil {
		a.source.Tick(dtMs)
	}
}

func (a *App) render() {
	if a.canvas.Draw(a.nowMs) {
		img := a.canvas.Image()
		w, h := a.canvas.Size()
		renderer.UploadRGBA(a.canvasTex, img.Pix, w, h, w != a.texW || h != a.texH)
		a.texW, a.texH = w, h
	}
	a.comp.Render()
}

// Destroy releases the GL resources owned by the app. The borrowed source
// is left alone.
func (a *App) Destroy() {
	a.regions.ClearAll()
	a.sampler.Destroy()
	a.comp.Destroy()
	renderer.DeleteTexture(a.canvasTex)
	a.canvasTex = 0
	a.source = nil
}
