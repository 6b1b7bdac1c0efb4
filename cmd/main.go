package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"strings"
	"syscall"
	"time"

	glfw "github.com/go-gl/glfw/v3.3/glfw"

	"github.com/richinsley/lightv/analysis"
	"github.com/richinsley/lightv/config"
	"github.com/richinsley/lightv/framerelay"
	"github.com/richinsley/lightv/glfwcontext"
	"github.com/richinsley/lightv/graphics"
	"github.com/richinsley/lightv/headless"
	"github.com/richinsley/lightv/regions"
	"github.com/richinsley/lightv/renderer"
	"github.com/richinsley/lightv/sampling"
	"github.com/richinsley/lightv/sources"
)

func init() {
	runtime.LockOSThread()
}

// app is what both modes hand to the render loop.
type app interface {
	Frame(nowMs float64, fbWidth, fbHeight int)
	Target() *renderer.Target
	Destroy()
}

func main() {
	fs := flag.NewFlagSet("lightv", flag.ExitOnError)
	opts := config.Bind(fs)
	fs.Parse(os.Args[1:])
	opts.MarkSet(fs)

	if *opts.Help {
		fmt.Println("lightv: live video mixer and region color sampler")
		fs.PrintDefaults()
		return
	}

	file, err := config.LoadFile(*opts.Config)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	cfg, err := config.Resolve(file, opts)
	if err != nil {
		log.Fatalf("Error in configuration: %v", err)
	}
	if cfg.Verbose {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("lightv: %v", err)
	}
}

func newContext(cfg *config.Config) (graphics.Context, *glfwcontext.Context, error) {
	if cfg.Headless {
		ctx, err := headless.NewHeadlessDevice(cfg.Width, cfg.Height, cfg.EGLDevice)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create headless context: %w", err)
		}
		return ctx, nil, nil
	}
	if err := glfwcontext.InitGraphics(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize GLFW: %w", err)
	}
	win, err := glfwcontext.New(cfg.Width, cfg.Height, "lightv", true)
	if err != nil {
		glfwcontext.TerminateGraphics()
		return nil, nil, fmt.Errorf("failed to create window: %w", err)
	}
	return win, win, nil
}

func newRelay(cfg *config.Config) framerelay.Provider {
	var p framerelay.Provider
	switch cfg.Relay.Kind {
	case config.RelaySHM:
		p = framerelay.NewSHM(cfg.Relay.Dir, cfg.Relay.Prefix)
	case config.RelayWebSocket:
		p = framerelay.NewWebSocket(cfg.Relay.Listen)
	default:
		return framerelay.None{}
	}
	if err := p.Start(); err != nil {
		log.Printf("Relay %s unavailable: %v", cfg.Relay.Kind, err)
		return framerelay.None{}
	}
	p.OnServersChanged(func(servers []framerelay.Server) {
		log.Printf("Relay: %d servers", len(servers))
	})
	return p
}

func run(cfg *config.Config) error {
	ctx, win, err := newContext(cfg)
	if err != nil {
		return err
	}
	if win != nil {
		defer glfwcontext.TerminateGraphics()
	}

	r, err := renderer.NewRenderer(ctx)
	if err != nil {
		ctx.Shutdown()
		return err
	}
	defer r.Shutdown()

	// Ctrl-C ends the loop normally so a recording gets its trailer.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		log.Println("Interrupted, finishing the current frame")
		ctx.RequestClose()
	}()

	relay := newRelay(cfg)
	defer relay.Stop()

	env := &sources.Env{
		Quad:       r.Quad(),
		IsGLES:     r.IsGLES(),
		Width:      cfg.Width,
		Height:     cfg.Height,
		FFmpegPath: cfg.FFmpegPath,
		FFmpegArgs: cfg.FFmpegArgs,
		WebcamSize: cfg.WebcamSize,
		Relay:      relay,
	}
	registry := sources.NewDefaultRegistry()
	// Recording needs a fixed frame size, so the window no longer drives it.
	lock := cfg.Record != ""

	var a app
	var an *analysis.App
	switch cfg.Mode {
	case config.ModeAnalysis:
		an, err = newAnalysis(cfg, env, registry, lock)
		if err != nil {
			return err
		}
		a = analysisApp{an}
	default:
		vj, err := newVJ(cfg, env, registry, lock)
		if err != nil {
			return err
		}
		if win != nil {
			vj.bindKeys(win)
		}
		a = vj
	}
	defer a.Destroy()
	if win != nil && an != nil {
		win.RegisterKeyCallback(glfw.KeyM, func() { an.SetMode(an.Mode().Next()) })
	}

	outs, err := newOutputs(cfg)
	if err != nil {
		return err
	}
	defer outs.Close()

	frame := func(nowMs float64, fbW, fbH int) {
		a.Frame(nowMs, fbW, fbH)
		outs.Grab(a.Target())
	}
	if cfg.Headless {
		pace := time.NewTicker(time.Second / time.Duration(cfg.FPS))
		defer pace.Stop()
		inner := frame
		frame = func(nowMs float64, fbW, fbH int) {
			<-pace.C
			inner(nowMs, fbW, fbH)
		}
	}

	log.Printf("Starting %s mode at %dx%d", cfg.Mode, cfg.Width, cfg.Height)
	if err := r.Run(cfg.Frames, frame); err != nil {
		return err
	}
	if an != nil && cfg.Frames > 0 {
		printColors(an.Colors())
	}
	return nil
}

func newAnalysis(cfg *config.Config, env *sources.Env, registry *sources.Registry, lock bool) (*analysis.App, error) {
	an, err := analysis.NewApp(env.Quad, env.IsGLES, cfg.Width, cfg.Height, regions.Events{
		OnError: func(msg string) { log.Printf("Regions: %s", msg) },
	})
	if err != nil {
		return nil, err
	}
	if lock {
		an.LockSize(cfg.Width, cfg.Height)
	}
	if d := cfg.Analysis.Source; d != nil {
		src, err := registry.Instantiate(*d)
		if err == nil {
			err = src.Load(env)
		}
		if err != nil {
			an.Destroy()
			return nil, fmt.Errorf("failed to load analysis source: %w", err)
		}
		src.Start()
		an.SetSource(src)
	}
	an.SetMode(cfg.Analysis.Canvas)
	an.SetSamplesPerEdge(cfg.Analysis.SamplesPerEdge)

	smoothing, ms := cfg.Analysis.SmoothingEnabled, cfg.Analysis.SmoothingMs
	for _, t := range cfg.Analysis.Regions {
		reg, err := an.Regions().AddRegion(t, regions.Patch{SmoothingEnabled: &smoothing, SmoothingMs: &ms})
		if err != nil {
			log.Printf("Analysis: failed to add %s region: %v", t, err)
			continue
		}
		log.Printf("Analysis: added %s (%d cells)", reg.ID, reg.Cells())
	}
	return an, nil
}

// analysisApp also owns the analysis source, which the App only borrows.
type analysisApp struct{ *analysis.App }

func (a analysisApp) Destroy() {
	src := a.Source()
	a.App.Destroy()
	if src != nil {
		src.Dispose()
	}
}

func printColors(colors map[string][]sampling.Color) {
	ids := make([]string, 0, len(colors))
	for id := range colors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		hex := make([]string, len(colors[id]))
		for i, c := range colors[id] {
			hex[i] = c.Hex
		}
		fmt.Printf("%s %s\n", id, strings.Join(hex, " "))
	}
}
