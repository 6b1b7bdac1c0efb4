package main

import (
	"log"

	glfw "github.com/go-gl/glfw/v3.3/glfw"

	"github.com/richinsley/lightv/config"
	"github.com/richinsley/lightv/deck"
	"github.com/richinsley/lightv/glfwcontext"
	"github.com/richinsley/lightv/renderer"
	"github.com/richinsley/lightv/scheduler"
	"github.com/richinsley/lightv/sources"
)

const mixStep = 0.05

// vjApp mixes decks A and B through one compositor.
type vjApp struct {
	comp  *renderer.Compositor
	mixer *deck.Mixer
	sched *scheduler.Scheduler
}

func newVJ(cfg *config.Config, env *sources.Env, registry *sources.Registry, lock bool) (*vjApp, error) {
	comp, err := renderer.NewCompositor(env.Quad, cfg.Width, cfg.Height, env.IsGLES)
	if err != nil {
		return nil, err
	}
	v := &vjApp{
		comp:  comp,
		mixer: deck.NewMixer(comp, env, registry),
	}
	v.sched = scheduler.New(scheduler.Hooks{
		Resize: func(w, h int) {
			v.comp.Resize(w, h)
			v.mixer.Resize(w, h)
		},
		Tick:   v.mixer.Tick,
		Render: v.comp.Render,
	})
	if lock {
		v.sched.LockSize(cfg.Width, cfg.Height)
	}

	for _, bank := range []struct {
		id    deck.ID
		descs []sources.Descriptor
	}{{deck.A, cfg.DeckA}, {deck.B, cfg.DeckB}} {
		for _, d := range bank.descs {
			if _, err := v.mixer.AddDescriptor(bank.id, d); err != nil {
				log.Printf("Deck %s: skipping %s source: %v", bank.id, d.Type, err)
			}
		}
	}
	v.mixer.Apply(cfg.Mixer)
	return v, nil
}

func (v *vjApp) Frame(nowMs float64, fbWidth, fbHeight int) {
	v.sched.Frame(nowMs, fbWidth, fbHeight)
	v.comp.Present(fbWidth, fbHeight)
}

func (v *vjApp) Target() *renderer.Target { return v.comp.Target() }

func (v *vjApp) Destroy() {
	v.mixer.Dispose()
	v.comp.Destroy()
}

func (v *vjApp) bindKeys(win *glfwcontext.Context) {
	nudge := func(d float64) func() {
		return func() { v.mixer.SetMix(v.mixer.Settings().Mix + d) }
	}
	win.RegisterKeyCallback(glfw.KeyLeft, nudge(-mixStep))
	win.RegisterKeyCallback(glfw.KeyRight, nudge(mixStep))

	blendKeys := []glfw.Key{glfw.Key1, glfw.Key2, glfw.Key3, glfw.Key4}
	for i, k := range blendKeys {
		mode := renderer.BlendMode(i)
		win.RegisterKeyCallback(k, func() {
			v.mixer.SetBlendMode(mode)
			log.Printf("Blend: %s", mode)
		})
	}

	win.RegisterKeyCallback(glfw.KeyT, func() {
		tr := v.mixer.Settings().Transition
		tr.Type = (tr.Type + 1) % (renderer.LumaKey + 1)
		v.mixer.SetTransition(tr)
		log.Printf("Transition: %s", tr.Type)
	})

	step := func(id deck.ID) func() {
		return func() {
			if err := v.mixer.Step(id, 1); err != nil {
				log.Printf("Deck %s: %v", id, err)
			}
		}
	}
	win.RegisterKeyCallback(glfw.KeyA, step(deck.A))
	win.RegisterKeyCallback(glfw.KeyB, step(deck.B))
}
