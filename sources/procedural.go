package sources

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/mitchellh/go-homedir"

	"github.com/richinsley/lightv/renderer"
	"github.com/richinsley/lightv/shader"
	"github.com/richinsley/lightv/translator"
)

// Procedural renders a WebGL2 fragment shader into its own offscreen target.
// The shader sees u_resolution and u_time and nothing else.
type Procedural struct {
	base
	frag string
	path string

	program uint32
	target  *renderer.Target
	resLoc  int32
	timeLoc int32
	time    float64
	lastErr error

	watcher *fsnotify.Watcher
	reloads Mailbox[string]
}

func NewProcedural(id string) *Procedural {
	return &Procedural{base: newBase(id, KindShader, renderer.Stretch), resLoc: -1, timeLoc: -1}
}

// FlipY is true because the target stores rows bottom-first.
func (p *Procedural) FlipY() bool { return true }

func (p *Procedural) TextureID() uint32 {
	if p.target == nil {
		return 0
	}
	return p.target.TextureID()
}

func (p *Procedural) Source() string {
	if p.frag == "" {
		return shader.DefaultProcedural
	}
	return p.frag
}

func (p *Procedural) Load(env *Env) error {
	if p.loaded {
		return nil
	}
	if env == nil || env.Quad == nil {
		return fmt.Errorf("shader %s: no quad to draw with", p.id)
	}
	p.bind(env)
	if p.path != "" {
		if src, err := readFrag(p.path); err != nil {
			log.Printf("Shader %s: %v", p.id, err)
		} else {
			p.frag = src
		}
	}
	target, err := renderer.NewTarget(p.outW, p.outH, false)
	if err != nil {
		return fmt.Errorf("shader %s: %w", p.id, err)
	}
	p.target = target
	if err := p.rebuild(p.Source()); err != nil {
		p.target.Destroy()
		p.target = nil
		return fmt.Errorf("shader %s: %w", p.id, err)
	}
	p.loaded = true
	p.watch()
	return nil
}

// rebuild translates and links src. On failure the previous program stays.
func (p *Procedural) rebuild(src string) error {
	isGLES := p.env != nil && p.env.IsGLES
	frag, err := translator.TranslateFragment(src, isGLES)
	if err != nil {
		p.lastErr = err
		return err
	}
	program, err := renderer.NewProgram(shader.GenerateVertexShader(isGLES), frag.Code)
	if err != nil {
		p.lastErr = err
		return err
	}
	if p.program != 0 {
		gl.DeleteProgram(p.program)
	}
	p.program = program
	p.resLoc = renderer.Uniform(program, mappedName(frag, "u_resolution"))
	p.timeLoc = renderer.Uniform(program, mappedName(frag, "u_time"))
	p.lastErr = nil
	log.Printf("Shader %s: program rebuilt", p.id)
	return nil
}

func mappedName(f *translator.Fragment, name string) string {
	if m := f.Location(name); m != "" {
		return m
	}
	return name
}

// LastError is the most recent compile failure, nil after a good build.
func (p *Procedural) LastError() error { return p.lastErr }

func readFrag(path string) (string, error) {
	full, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("failed to read fragment %s: %w", path, err)
	}
	return string(b), nil
}

// watch hot-reloads the fragment file. The directory is watched because
// editors often replace files by rename.
func (p *Procedural) watch() {
	p.unwatch()
	if p.path == "" {
		return
	}
	full, err := homedir.Expand(p.path)
	if err != nil {
		return
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("Shader %s: failed to create watcher: %v", p.id, err)
		return
	}
	if err := w.Add(filepath.Dir(full)); err != nil {
		log.Printf("Shader %s: failed to watch %s: %v", p.id, full, err)
		w.Close()
		return
	}
	p.watcher = w
	name := filepath.Base(full)
	go func() {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != name || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
					continue
				}
				src, err := readFrag(full)
				if err != nil {
					log.Printf("Shader %s: %v", p.id, err)
					continue
				}
				p.reloads.Put(src)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("Shader %s: watcher error: %v", p.id, err)
			}
		}
	}()
}

func (p *Procedural) unwatch() {
	if p.watcher != nil {
		p.watcher.Close()
		p.watcher = nil
	}
	p.reloads.Clear()
}

func (p *Procedural) Tick(dtMs float64) {
	if !p.loaded {
		return
	}
	if src, ok := p.reloads.Take(); ok && src != p.frag {
		if err := p.rebuild(src); err != nil {
			log.Printf("Shader %s: reload failed, keeping previous program: %v", p.id, err)
		} else {
			p.frag = src
		}
	}
	if !p.running {
		return
	}
	if dtMs > 0 {
		p.time += dtMs / 1000
	}
	p.render()
}

func (p *Procedural) render() {
	w, h := p.target.Size()
	p.target.Bind()
	gl.UseProgram(p.program)
	if p.resLoc != -1 {
		gl.Uniform2f(p.resLoc, float32(w), float32(h))
	}
	if p.timeLoc != -1 {
		gl.Uniform1f(p.timeLoc, float32(p.time))
	}
	p.env.Quad.Draw()
	p.target.Unbind()
}

// Time is the accumulated shader time in seconds.
func (p *Procedural) Time() float64 { return p.time }

func (p *Procedural) ContentSize() (int, int) {
	if p.target == nil {
		return p.outW, p.outH
	}
	return p.target.Size()
}

func (p *Procedural) SetOutputSize(width, height int) {
	if p.resize(width, height) && p.target != nil {
		p.target.Resize(p.outW, p.outH)
	}
}

func (p *Procedural) Dispose() {
	p.unwatch()
	if p.program != 0 {
		gl.DeleteProgram(p.program)
		p.program = 0
	}
	if p.target != nil {
		p.target.Destroy()
		p.target = nil
	}
	p.release()
}

func (p *Procedural) OptionsSchema() []Option {
	return []Option{
		fillModeOption(p.fill),
		{Key: "frag", Label: "Fragment shader", Type: "text", Value: p.Source()},
		{Key: "path", Label: "Watch file", Type: "text", Value: p.path},
	}
}

// SetOptions rebuilds immediately when loaded. A bad fragment is logged and
// the running program is kept.
func (p *Procedural) SetOptions(opts map[string]any) error {
	if err := p.applyFillMode(opts); err != nil {
		return err
	}
	if s, ok, err := optString(opts, "path"); err != nil {
		return err
	} else if ok && s != p.path {
		p.path = s
		if p.loaded {
			p.watch()
			if src, err := readFrag(s); err != nil {
				log.Printf("Shader %s: %v", p.id, err)
			} else {
				p.reloads.Put(src)
			}
		}
	}
	if s, ok, err := optString(opts, "frag"); err != nil {
		return err
	} else if ok && s != p.frag {
		if !p.loaded {
			p.frag = s
			return nil
		}
		if err := p.rebuild(s); err != nil {
			log.Printf("Shader %s: rebuild failed, keeping previous program: %v", p.id, err)
			return nil
		}
		p.frag = s
	}
	return nil
}

func (p *Procedural) Descriptor() Descriptor {
	d := p.descriptor()
	d.Frag = p.frag
	d.Path = p.path
	return d
}
